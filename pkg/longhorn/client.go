// Package longhorn reads volume and node health from the Longhorn REST
// API for the storage monitor and agent tools.
package longhorn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client talks to the Longhorn manager API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Longhorn client. baseURL may be empty to disable
// storage monitoring.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled reports whether Longhorn is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Volume is a Longhorn volume with its health state.
type Volume struct {
	Name string `json:"name"`
	// State is the lifecycle state, e.g. "attached", "detached".
	State string `json:"state"`
	// Robustness is "healthy", "degraded", or "faulted".
	Robustness string `json:"robustness"`
	Size       string `json:"size"`
	// ActualSize is the used bytes on disk.
	ActualSize       int64 `json:"actualSize"`
	KubernetesStatus struct {
		Namespace    string `json:"namespace"`
		PVCName      string `json:"pvcName"`
		WorkloadsStatus []struct {
			PodName string `json:"podName"`
		} `json:"workloadsStatus"`
	} `json:"kubernetesStatus"`
}

type collection[T any] struct {
	Data []T `json:"data"`
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("longhorn not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("query longhorn: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("longhorn returned HTTP %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Volumes lists all volumes.
func (c *Client) Volumes(ctx context.Context) ([]Volume, error) {
	var coll collection[Volume]
	if err := c.get(ctx, "/v1/volumes", &coll); err != nil {
		return nil, err
	}
	return coll.Data, nil
}

// DegradedVolumes returns volumes that are not healthy. Detached
// volumes report "unknown" robustness and are skipped.
func (c *Client) DegradedVolumes(ctx context.Context) ([]Volume, error) {
	volumes, err := c.Volumes(ctx)
	if err != nil {
		return nil, err
	}
	var out []Volume
	for _, v := range volumes {
		if v.Robustness == "degraded" || v.Robustness == "faulted" {
			out = append(out, v)
		}
	}
	return out, nil
}

// Node is a Longhorn storage node.
type Node struct {
	Name              string `json:"name"`
	AllowScheduling   bool   `json:"allowScheduling"`
	Conditions        map[string]struct {
		Status string `json:"status"`
	} `json:"conditions"`
}

// Ready reports whether the node's Ready condition is True.
func (n Node) Ready() bool {
	cond, ok := n.Conditions["Ready"]
	return ok && cond.Status == "True"
}

// Nodes lists all storage nodes.
func (c *Client) Nodes(ctx context.Context) ([]Node, error) {
	var coll collection[Node]
	if err := c.get(ctx, "/v1/nodes", &coll); err != nil {
		return nil, err
	}
	return coll.Data, nil
}
