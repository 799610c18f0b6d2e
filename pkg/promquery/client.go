// Package promquery reads cluster metrics and firing alerts from a
// Prometheus server. It backs the firing-alert monitor check and the
// agent's metric tools.
package promquery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

const queryTimeout = 15 * time.Second

// Client wraps the Prometheus HTTP v1 API.
type Client struct {
	api promv1.API
}

// NewClient creates a Prometheus query client for the given address.
func NewClient(address string) (*Client, error) {
	if address == "" {
		return nil, fmt.Errorf("prometheus address is empty")
	}
	c, err := api.NewClient(api.Config{Address: address})
	if err != nil {
		return nil, fmt.Errorf("create prometheus client: %w", err)
	}
	return &Client{api: promv1.NewAPI(c)}, nil
}

// NewWithAPI wraps an existing API implementation. Used by tests.
func NewWithAPI(a promv1.API) *Client {
	return &Client{api: a}
}

// Vector runs an instant query and returns the resulting vector.
func (c *Client) Vector(ctx context.Context, query string) (model.Vector, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	val, warnings, err := c.api.Query(ctx, query, time.Now())
	if err != nil {
		return nil, fmt.Errorf("query prometheus: %w", err)
	}
	if len(warnings) > 0 {
		slog.Debug("Prometheus query warnings", "query", query, "warnings", warnings)
	}
	vec, ok := val.(model.Vector)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %s for query %q", val.Type(), query)
	}
	return vec, nil
}

// Scalar runs an instant query and returns the first sample value. The
// second return is false when the result set is empty.
func (c *Client) Scalar(ctx context.Context, query string) (float64, bool, error) {
	vec, err := c.Vector(ctx, query)
	if err != nil {
		return 0, false, err
	}
	if len(vec) == 0 {
		return 0, false, nil
	}
	return float64(vec[0].Value), true, nil
}

// Alert is a firing Prometheus alert in the shape the monitor consumes.
type Alert struct {
	Name      string            `json:"name"`
	Namespace string            `json:"namespace,omitempty"`
	Severity  string            `json:"severity,omitempty"`
	Summary   string            `json:"summary,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
	ActiveAt  time.Time         `json:"active_at"`
}

// FiringAlerts returns alerts currently in the firing state. Watchdog
// heartbeat alerts are dropped.
func (c *Client) FiringAlerts(ctx context.Context) ([]Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := c.api.Alerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch alerts: %w", err)
	}

	var out []Alert
	for _, a := range result.Alerts {
		if a.State != promv1.AlertStateFiring {
			continue
		}
		name := string(a.Labels[model.AlertNameLabel])
		if name == "Watchdog" {
			continue
		}
		labels := make(map[string]string, len(a.Labels))
		for k, v := range a.Labels {
			labels[string(k)] = string(v)
		}
		out = append(out, Alert{
			Name:      name,
			Namespace: string(a.Labels["namespace"]),
			Severity:  string(a.Labels["severity"]),
			Summary:   string(a.Annotations["summary"]),
			Labels:    labels,
			ActiveAt:  a.ActiveAt,
		})
	}
	return out, nil
}

// PodCPU returns a pod's CPU usage in cores over the last 5 minutes.
func (c *Client) PodCPU(ctx context.Context, namespace, pod string) (float64, bool, error) {
	q := fmt.Sprintf(`sum(rate(container_cpu_usage_seconds_total{namespace=%q, pod=%q, container!=""}[5m]))`,
		namespace, pod)
	return c.Scalar(ctx, q)
}

// PodMemory returns a pod's working-set memory in bytes.
func (c *Client) PodMemory(ctx context.Context, namespace, pod string) (float64, bool, error) {
	q := fmt.Sprintf(`sum(container_memory_working_set_bytes{namespace=%q, pod=%q, container!=""})`,
		namespace, pod)
	return c.Scalar(ctx, q)
}

// ErrorRate returns the fraction of 5xx responses in a namespace over
// the last 5 minutes, 0 when the namespace serves no traffic.
func (c *Client) ErrorRate(ctx context.Context, namespace string) (float64, error) {
	q := fmt.Sprintf(
		`sum(rate(http_requests_total{namespace=%q, status=~"5.."}[5m])) / sum(rate(http_requests_total{namespace=%q}[5m]))`,
		namespace, namespace)
	v, ok, err := c.Scalar(ctx, q)
	if err != nil || !ok {
		return 0, err
	}
	return v, nil
}

// LatencyQuantile returns the given request latency quantile in seconds
// for a namespace over the last 5 minutes.
func (c *Client) LatencyQuantile(ctx context.Context, namespace string, quantile float64) (float64, bool, error) {
	q := fmt.Sprintf(
		`histogram_quantile(%g, sum(rate(http_request_duration_seconds_bucket{namespace=%q}[5m])) by (le))`,
		quantile, namespace)
	return c.Scalar(ctx, q)
}
