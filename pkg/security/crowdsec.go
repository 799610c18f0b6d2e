package security

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// CrowdSecClient reads active decisions and alerts from the CrowdSec
// local API (LAPI) using a bouncer API key.
type CrowdSecClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewCrowdSecClient creates a LAPI client. An empty baseURL or apiKey
// disables it.
func NewCrowdSecClient(baseURL, apiKey string) *CrowdSecClient {
	return &CrowdSecClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled reports whether the LAPI is configured.
func (c *CrowdSecClient) Enabled() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// Decision is an active CrowdSec ban or captcha decision.
type Decision struct {
	ID       int64  `json:"id"`
	Origin   string `json:"origin"`
	Type     string `json:"type"`
	Scope    string `json:"scope"`
	Value    string `json:"value"`
	Duration string `json:"duration"`
	Scenario string `json:"scenario"`
}

func (c *CrowdSecClient) get(ctx context.Context, path string, out any) error {
	if !c.Enabled() {
		return fmt.Errorf("crowdsec not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("query crowdsec: %w", err)
	}
	defer resp.Body.Close()

	// LAPI returns 200 with "null" when there are no decisions.
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("crowdsec returned HTTP %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Decisions returns the active decisions.
func (c *CrowdSecClient) Decisions(ctx context.Context) ([]Decision, error) {
	var out []Decision
	if err := c.get(ctx, "/v1/decisions", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Alert is a CrowdSec alert with the scenario that triggered it.
type Alert struct {
	ID        int64      `json:"id"`
	Scenario  string     `json:"scenario"`
	Message   string     `json:"message"`
	Source    AlertSrc   `json:"source"`
	Decisions []Decision `json:"decisions"`
	CreatedAt string     `json:"created_at"`
}

// AlertSrc identifies the offending source of an alert.
type AlertSrc struct {
	Scope string `json:"scope"`
	Value string `json:"value"`
	IP    string `json:"ip,omitempty"`
	Cn    string `json:"cn,omitempty"`
}

// Alerts returns recent alerts.
func (c *CrowdSecClient) Alerts(ctx context.Context) ([]Alert, error) {
	var out []Alert
	if err := c.get(ctx, "/v1/alerts", &out); err != nil {
		return nil, err
	}
	return out, nil
}
