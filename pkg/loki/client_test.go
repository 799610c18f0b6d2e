package loki

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"30s", 30 * time.Second},
		{"5m", 5 * time.Minute},
		{"1h", time.Hour},
		{"2d", 48 * time.Hour},
	}
	for _, tt := range tests {
		got, err := ParseWindow(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "5", "m5", "5w", "-5m", "5 m"} {
		_, err := ParseWindow(bad)
		assert.Error(t, err, bad)
	}
}

func lokiResponse(lines ...string) string {
	values := make([]string, 0, len(lines))
	ts := time.Now().UnixNano()
	for i, l := range lines {
		values = append(values, fmt.Sprintf(`["%d", %q]`, ts-int64(i), l))
	}
	return fmt.Sprintf(`{"status":"success","data":{"resultType":"streams","result":[
		{"stream":{"pod":"api-0","container":"app"},"values":[%s]}]}}`,
		strings.Join(values, ","))
}

func TestQueryRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/loki/api/v1/query_range", r.URL.Path)
		assert.Equal(t, "backward", r.URL.Query().Get("direction"))
		fmt.Fprint(w, lokiResponse("connection refused", "timeout"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	entries, err := c.QueryRange(context.Background(), `{namespace="default"}`, 5*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "api-0", entries[0].Pod)
	assert.Equal(t, "connection refused", entries[0].Line)
	assert.Contains(t, entries[0].Format(), "api-0/app: connection refused")
}

func TestQueryRangeTruncatesLongLines(t *testing.T) {
	long := strings.Repeat("x", 800)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, lokiResponse(long))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	entries, err := c.QueryRange(context.Background(), `{namespace="default"}`, time.Minute, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].Line, maxLineLength+3)
	assert.True(t, strings.HasSuffix(entries[0].Line, "..."))
}

func TestErrorCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("query"), `namespace="payments"`)
		fmt.Fprint(w, lokiResponse("error one", "error two", "error three"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	n, err := c.ErrorCount(context.Background(), "payments", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestUnconfiguredClient(t *testing.T) {
	c := NewClient("")
	_, err := c.QueryRange(context.Background(), "{}", time.Minute, 1)
	assert.ErrorContains(t, err, "not configured")
	_, err = c.ErrorCount(context.Background(), "default", time.Minute)
	assert.ErrorContains(t, err, "not configured")
}

func TestServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.QueryRange(context.Background(), "{}", time.Minute, 1)
	assert.ErrorContains(t, err, "502")
}
