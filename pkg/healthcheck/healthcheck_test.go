package healthcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeURLHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("<p>dashboard content</p>", 20)))
	}))
	defer srv.Close()

	result := NewChecker().ProbeURL(context.Background(), "app", srv.URL)
	assert.Equal(t, StatusOK, result.Status)
	assert.Equal(t, "HTTP 200", result.Message)
}

func TestProbeURLStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		want       string
	}{
		{"server error", http.StatusBadGateway, StatusCritical},
		{"client error", http.StatusNotFound, StatusWarning},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.statusCode)
			}))
			defer srv.Close()

			result := NewChecker().ProbeURL(context.Background(), "app", srv.URL)
			assert.Equal(t, tc.want, result.Status)
		})
	}
}

func TestProbeURLErrorPageBehindOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		body := "<html>502 Bad Gateway</html>" + strings.Repeat(" ", 200)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	result := NewChecker().ProbeURL(context.Background(), "app", srv.URL)
	assert.Equal(t, StatusCritical, result.Status)
	assert.Contains(t, result.Message, "502 bad gateway")
}

func TestProbeURLSuspiciouslySmallBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	result := NewChecker().ProbeURL(context.Background(), "app", srv.URL)
	assert.Equal(t, StatusWarning, result.Status)
	assert.Contains(t, result.Message, "2 byte body")
}

func TestProbeURLUnreachable(t *testing.T) {
	result := NewChecker().ProbeURL(context.Background(), "app", "http://127.0.0.1:1")
	assert.Equal(t, StatusCritical, result.Status)
	assert.Contains(t, result.Message, "unreachable")
}

func TestRunAllAndResults(t *testing.T) {
	c := NewChecker()
	c.Register("alpha", func(context.Context) Result {
		return Result{Name: "alpha", Status: StatusOK, CheckedAt: time.Now()}
	})
	c.Register("beta", func(context.Context) Result {
		return Result{Name: "beta", Status: StatusCritical, Message: "down", CheckedAt: time.Now()}
	})

	results := c.RunAll(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, "alpha", results[0].Name)
	assert.Equal(t, "beta", results[1].Name)

	latest := c.Results()
	require.Len(t, latest, 2)
	assert.Equal(t, StatusCritical, latest[1].Status)
}

func TestClassifyExpiry(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		notAfter time.Time
		want     string
	}{
		{"long validity", now.Add(90 * 24 * time.Hour), StatusOK},
		{"inside warning window", now.Add(20 * 24 * time.Hour), StatusWarning},
		{"inside critical window", now.Add(3 * 24 * time.Hour), StatusCritical},
		{"already expired", now.Add(-time.Hour), StatusCritical},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := classifyExpiry(tc.notAfter, now)
			assert.Equal(t, tc.want, status)
		})
	}
}
