// Package healthcheck runs deep health checks against exposed services:
// HTTP probes that look past the status code, TLS certificate expiry,
// and readiness of ingress-routed backends.
package healthcheck

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Expiry thresholds for the TLS check.
const (
	sslWarningWindow  = 30 * 24 * time.Hour
	sslCriticalWindow = 7 * 24 * time.Hour
)

// suspiciousBodySize flags 200 responses whose body is too small to be a
// real page. Error pages from misrouted ingresses are often tiny.
const suspiciousBodySize = 100

// Check statuses.
const (
	StatusOK       = "ok"
	StatusWarning  = "warning"
	StatusCritical = "critical"
	StatusUnknown  = "unknown"
)

// errorPageIndicators are body fragments that mean the endpoint served
// an error page despite a 2xx status.
var errorPageIndicators = []string{
	"404 not found",
	"502 bad gateway",
	"503 service unavailable",
	"default backend",
	"application error",
	"no healthy upstream",
}

// Result is the outcome of one health check.
type Result struct {
	Name      string        `json:"name"`
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Duration  time.Duration `json:"duration_ms"`
	CheckedAt time.Time     `json:"checked_at"`
}

// CheckFunc performs one health check.
type CheckFunc func(ctx context.Context) Result

// Checker runs registered health checks and keeps the latest results.
type Checker struct {
	mu      sync.Mutex
	checks  map[string]CheckFunc
	last    map[string]Result
	httpCli *http.Client
}

// NewChecker creates an empty checker.
func NewChecker() *Checker {
	return &Checker{
		checks: make(map[string]CheckFunc),
		last:   make(map[string]Result),
		httpCli: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Register adds or replaces a named check.
func (c *Checker) Register(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = fn
}

// RegisterURL registers an HTTP probe for the given URL.
func (c *Checker) RegisterURL(name, url string) {
	c.Register(name, func(ctx context.Context) Result {
		return c.ProbeURL(ctx, name, url)
	})
}

// RegisterSSL registers a certificate expiry check for host:443.
func (c *Checker) RegisterSSL(name, host string) {
	c.Register(name, func(ctx context.Context) Result {
		return c.CheckSSL(ctx, name, host)
	})
}

// RunAll runs every registered check concurrently and returns results
// sorted by name. Results are also retained for Results().
func (c *Checker) RunAll(ctx context.Context) []Result {
	c.mu.Lock()
	names := make([]string, 0, len(c.checks))
	fns := make([]CheckFunc, 0, len(c.checks))
	for name, fn := range c.checks {
		names = append(names, name)
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	results := make([]Result, len(names))
	var wg sync.WaitGroup
	for i := range names {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = fns[i](ctx)
		}(i)
	}
	wg.Wait()

	c.mu.Lock()
	for _, r := range results {
		c.last[r.Name] = r
	}
	c.mu.Unlock()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results
}

// Results returns the latest result of every check, sorted by name.
func (c *Checker) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Result, 0, len(c.last))
	for _, r := range c.last {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ProbeURL fetches the URL and inspects both status and body. A 2xx
// response can still fail the check when the body looks like an error
// page or is suspiciously small.
func (c *Checker) ProbeURL(ctx context.Context, name, url string) Result {
	start := time.Now()
	result := func(status, message string) Result {
		return Result{
			Name:      name,
			Status:    status,
			Message:   message,
			Duration:  time.Since(start),
			CheckedAt: time.Now(),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return result(StatusUnknown, fmt.Sprintf("bad URL: %v", err))
	}
	resp, err := c.httpCli.Do(req)
	if err != nil {
		return result(StatusCritical, fmt.Sprintf("unreachable: %v", err))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode >= 500 {
		return result(StatusCritical, fmt.Sprintf("HTTP %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return result(StatusWarning, fmt.Sprintf("HTTP %d", resp.StatusCode))
	}

	lower := strings.ToLower(string(body))
	for _, indicator := range errorPageIndicators {
		if strings.Contains(lower, indicator) {
			return result(StatusCritical, fmt.Sprintf("HTTP %d but body contains %q", resp.StatusCode, indicator))
		}
	}
	if len(body) < suspiciousBodySize {
		return result(StatusWarning, fmt.Sprintf("HTTP %d with a %d byte body, possibly a stub error page", resp.StatusCode, len(body)))
	}
	return result(StatusOK, fmt.Sprintf("HTTP %d", resp.StatusCode))
}

// CheckSSL connects to host:443 and checks the leaf certificate expiry.
func (c *Checker) CheckSSL(ctx context.Context, name, host string) Result {
	start := time.Now()
	result := func(status, message string) Result {
		return Result{
			Name:      name,
			Status:    status,
			Message:   message,
			Duration:  time.Since(start),
			CheckedAt: time.Now(),
		}
	}

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: 10 * time.Second},
		Config:    &tls.Config{ServerName: host},
	}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, "443"))
	if err != nil {
		return result(StatusCritical, fmt.Sprintf("TLS handshake failed: %v", err))
	}
	defer conn.Close()

	certs := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return result(StatusUnknown, "no peer certificate presented")
	}
	status, message := classifyExpiry(certs[0].NotAfter, time.Now())
	if status != StatusOK {
		slog.Warn("Certificate close to expiry", "host", host, "not_after", certs[0].NotAfter)
	}
	return result(status, message)
}

// classifyExpiry maps a certificate NotAfter to a check status.
func classifyExpiry(notAfter, now time.Time) (string, string) {
	left := notAfter.Sub(now)
	days := int(left.Hours() / 24)
	switch {
	case left <= 0:
		return StatusCritical, "certificate has expired"
	case left < sslCriticalWindow:
		return StatusCritical, fmt.Sprintf("certificate expires in %d days", days)
	case left < sslWarningWindow:
		return StatusWarning, fmt.Sprintf("certificate expires in %d days", days)
	default:
		return StatusOK, fmt.Sprintf("certificate valid for %d days", days)
	}
}
