// Package loki queries a Loki instance over its HTTP v1 API for log
// anomaly detection and agent log retrieval.
package loki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"
)

// maxLineLength truncates returned log lines so a noisy stack trace
// cannot blow up an agent prompt.
const maxLineLength = 500

var durationPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseWindow converts a compact window like "5m" or "1h" to a duration.
func ParseWindow(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid window %q, expected e.g. 5m, 1h", s)
	}
	n, _ := strconv.Atoi(m[1])
	switch m[2] {
	case "s":
		return time.Duration(n) * time.Second, nil
	case "m":
		return time.Duration(n) * time.Minute, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	default:
		return time.Duration(n) * 24 * time.Hour, nil
	}
}

// Client talks to the Loki query endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Loki client. baseURL may be empty, in which case
// every query fails with an explanatory error.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Entry is one log line with its stream labels.
type Entry struct {
	Timestamp time.Time
	Pod       string
	Container string
	Line      string
}

// Format renders the entry the way agents and operators see it.
func (e Entry) Format() string {
	return fmt.Sprintf("[%s] %s/%s: %s",
		e.Timestamp.UTC().Format(time.RFC3339), e.Pod, e.Container, e.Line)
}

type queryRangeResponse struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Stream map[string]string `json:"stream"`
			Values [][2]string       `json:"values"`
		} `json:"result"`
	} `json:"data"`
}

// QueryRange runs a LogQL query over the past window and returns up to
// limit entries, newest first. Lines longer than the cap are truncated.
func (c *Client) QueryRange(ctx context.Context, logql string, window time.Duration, limit int) ([]Entry, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("loki not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	now := time.Now()

	q := url.Values{}
	q.Set("query", logql)
	q.Set("start", strconv.FormatInt(now.Add(-window).UnixNano(), 10))
	q.Set("end", strconv.FormatInt(now.UnixNano(), 10))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("direction", "backward")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/loki/api/v1/query_range?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query loki: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("loki returned HTTP %d", resp.StatusCode)
	}

	var parsed queryRangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode loki response: %w", err)
	}

	var entries []Entry
	for _, stream := range parsed.Data.Result {
		for _, v := range stream.Values {
			ns, _ := strconv.ParseInt(v[0], 10, 64)
			line := v[1]
			if len(line) > maxLineLength {
				line = line[:maxLineLength] + "..."
			}
			entries = append(entries, Entry{
				Timestamp: time.Unix(0, ns),
				Pod:       stream.Stream["pod"],
				Container: stream.Stream["container"],
				Line:      line,
			})
		}
	}
	return entries, nil
}

// ErrorCount returns how many error-level lines a namespace logged in
// the window. Used by the log-spike monitor check.
func (c *Client) ErrorCount(ctx context.Context, namespace string, window time.Duration) (int, error) {
	if c.baseURL == "" {
		return 0, fmt.Errorf("loki not configured")
	}
	logql := fmt.Sprintf(`{namespace=%q} |~ "(?i)(error|exception|fatal|panic)"`, namespace)
	entries, err := c.QueryRange(ctx, logql, window, 5000)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// PodLogs returns recent formatted log lines for a pod, optionally
// narrowed to one container.
func (c *Client) PodLogs(ctx context.Context, namespace, pod, container string, window time.Duration, limit int) ([]string, error) {
	logql := fmt.Sprintf(`{namespace=%q, pod=%q}`, namespace, pod)
	if container != "" {
		logql = fmt.Sprintf(`{namespace=%q, pod=%q, container=%q}`, namespace, pod, container)
	}
	entries, err := c.QueryRange(ctx, logql, window, limit)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Format())
	}
	return out, nil
}

// NamespaceErrors returns recent formatted error lines for a namespace.
func (c *Client) NamespaceErrors(ctx context.Context, namespace string, window time.Duration, limit int) ([]string, error) {
	logql := fmt.Sprintf(`{namespace=%q} |~ "(?i)(error|exception|fatal|panic)"`, namespace)
	entries, err := c.QueryRange(ctx, logql, window, limit)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Format())
	}
	return out, nil
}
