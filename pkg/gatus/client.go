// Package gatus reads endpoint health from a Gatus status page.
package gatus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client talks to the Gatus REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Gatus client. baseURL may be empty to disable it.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled reports whether a status page is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Result is one probe result for an endpoint.
type Result struct {
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	// Duration is the probe round trip in nanoseconds, as Gatus reports it.
	Duration int64 `json:"duration"`
}

// Endpoint is a monitored endpoint with its recent probe results.
type Endpoint struct {
	Name    string   `json:"name"`
	Group   string   `json:"group,omitempty"`
	Key     string   `json:"key"`
	Results []Result `json:"results"`
}

// Healthy reports whether the most recent probe succeeded. Endpoints
// with no results yet count as healthy.
func (e Endpoint) Healthy() bool {
	if len(e.Results) == 0 {
		return true
	}
	return e.Results[len(e.Results)-1].Success
}

// Uptime returns the success fraction of probes within the window.
// Returns 1 when no probes fall inside it.
func (e Endpoint) Uptime(window time.Duration) float64 {
	cutoff := time.Now().Add(-window)
	total, ok := 0, 0
	for _, r := range e.Results {
		if r.Timestamp.Before(cutoff) {
			continue
		}
		total++
		if r.Success {
			ok++
		}
	}
	if total == 0 {
		return 1
	}
	return float64(ok) / float64(total)
}

// Statuses returns every monitored endpoint.
func (c *Client) Statuses(ctx context.Context) ([]Endpoint, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("gatus not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/v1/endpoints/statuses", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch statuses: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gatus returned HTTP %d", resp.StatusCode)
	}

	var endpoints []Endpoint
	if err := json.NewDecoder(resp.Body).Decode(&endpoints); err != nil {
		return nil, fmt.Errorf("decode statuses: %w", err)
	}
	return endpoints, nil
}

// Unhealthy returns the endpoints whose latest probe failed, with their
// 7-day uptime attached.
func (c *Client) Unhealthy(ctx context.Context) ([]UnhealthyEndpoint, error) {
	endpoints, err := c.Statuses(ctx)
	if err != nil {
		return nil, err
	}
	var out []UnhealthyEndpoint
	for _, e := range endpoints {
		if e.Healthy() {
			continue
		}
		out = append(out, UnhealthyEndpoint{
			Name:         e.Name,
			Group:        e.Group,
			UptimeWeekly: e.Uptime(7 * 24 * time.Hour),
		})
	}
	return out, nil
}

// UnhealthyEndpoint is a failing endpoint summarized for the monitor.
type UnhealthyEndpoint struct {
	Name         string  `json:"name"`
	Group        string  `json:"group,omitempty"`
	UptimeWeekly float64 `json:"uptime_weekly"`
}
