// Package k8sgpt talks to a K8sGPT deployment for AI-assisted cluster
// analysis, used as a supplementary signal by the agent.
package k8sgpt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client calls the K8sGPT HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a K8sGPT client. baseURL may be empty to disable it.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Enabled reports whether a K8sGPT backend is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Issue is one problem K8sGPT found.
type Issue struct {
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Namespace string `json:"namespace,omitempty"`
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
}

type analyzeResponse struct {
	Status   string `json:"status"`
	Problems int    `json:"problems"`
	Results  []struct {
		Kind  string `json:"kind"`
		Name  string `json:"name"`
		Error []struct {
			Text string `json:"Text"`
		} `json:"error"`
		Details string `json:"details"`
	} `json:"results"`
}

// Analyze runs a cluster analysis, optionally scoped to one namespace.
func (c *Client) Analyze(ctx context.Context, namespace string) ([]Issue, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("k8sgpt not configured")
	}
	url := c.baseURL + "/analyze"
	if namespace != "" {
		url += "?namespace=" + namespace
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyze cluster: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("k8sgpt returned HTTP %d", resp.StatusCode)
	}

	var parsed analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}

	issues := make([]Issue, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		// K8sGPT names objects "namespace/name".
		ns, name := "", r.Name
		if i := strings.IndexByte(r.Name, '/'); i > 0 {
			ns, name = r.Name[:i], r.Name[i+1:]
		}
		texts := make([]string, 0, len(r.Error))
		for _, e := range r.Error {
			texts = append(texts, e.Text)
		}
		issues = append(issues, Issue{
			Kind:      r.Kind,
			Name:      name,
			Namespace: ns,
			Error:     strings.Join(texts, "; "),
			Details:   r.Details,
		})
	}
	return issues, nil
}

// Summary renders an analysis as a short text block for agent prompts.
func (c *Client) Summary(ctx context.Context) (string, error) {
	issues, err := c.Analyze(ctx, "")
	if err != nil {
		return "", err
	}
	if len(issues) == 0 {
		return "K8sGPT found no issues.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "K8sGPT found %d issues:\n", len(issues))
	for _, i := range issues {
		fmt.Fprintf(&b, "- %s %s/%s: %s\n", i.Kind, i.Namespace, i.Name, i.Error)
	}
	return b.String(), nil
}
