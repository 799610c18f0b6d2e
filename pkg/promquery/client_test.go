package promquery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	return c
}

func vectorBody(value string) string {
	return fmt.Sprintf(`{"status":"success","data":{"resultType":"vector","result":[
		{"metric":{"namespace":"default"},"value":[%d, %q]}]}}`,
		time.Now().Unix(), value)
}

func TestScalar(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/query", r.URL.Path)
		fmt.Fprint(w, vectorBody("1.5"))
	})

	v, ok, err := c.Scalar(context.Background(), "up")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 1.5, v, 0.0001)
}

func TestScalarEmptyResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status":"success","data":{"resultType":"vector","result":[]}}`)
	})

	_, ok, err := c.Scalar(context.Background(), "up")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFiringAlertsFiltersStateAndWatchdog(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/alerts", r.URL.Path)
		fmt.Fprint(w, `{"status":"success","data":{"alerts":[
			{"labels":{"alertname":"KubePodCrashLooping","namespace":"payments","severity":"warning"},
			 "annotations":{"summary":"pod is crash looping"},
			 "state":"firing","activeAt":"2026-08-24T10:00:00Z","value":"1"},
			{"labels":{"alertname":"Watchdog"},"annotations":{},
			 "state":"firing","activeAt":"2026-08-24T10:00:00Z","value":"1"},
			{"labels":{"alertname":"NodePressure"},"annotations":{},
			 "state":"pending","activeAt":"2026-08-24T10:00:00Z","value":"1"}
		]}}`)
	})

	alerts, err := c.FiringAlerts(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "KubePodCrashLooping", alerts[0].Name)
	assert.Equal(t, "payments", alerts[0].Namespace)
	assert.Equal(t, "warning", alerts[0].Severity)
	assert.Equal(t, "pod is crash looping", alerts[0].Summary)
}

func TestErrorRateNoTraffic(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status":"success","data":{"resultType":"vector","result":[]}}`)
	})

	rate, err := c.ErrorRate(context.Background(), "quiet")
	require.NoError(t, err)
	assert.Zero(t, rate)
}

func TestNewClientRejectsEmptyAddress(t *testing.T) {
	_, err := NewClient("")
	assert.Error(t, err)
}
