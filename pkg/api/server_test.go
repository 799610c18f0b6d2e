package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/config"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/correlator"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/kube"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/store"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/tuner"
)

// fakeAgent records calls and replays a canned result.
type fakeAgent struct {
	mu             sync.Mutex
	result         models.InvestigationResult
	scans          []string
	investigations []struct{ Description, ThreadID string }
}

func (a *fakeAgent) Scan(_ context.Context, trigger string) models.InvestigationResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scans = append(a.scans, trigger)
	return a.result
}

func (a *fakeAgent) Investigate(_ context.Context, description, threadID string) models.InvestigationResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.investigations = append(a.investigations, struct{ Description, ThreadID string }{description, threadID})
	return a.result
}

func (a *fakeAgent) investigationCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.investigations)
}

func testSettings() *config.Settings {
	return &config.Settings{
		Host:                "127.0.0.1",
		Port:                8900,
		ProtectedNamespaces: []string{"kube-system"},
		MaxActionsPerHour:   30,
		ScanIntervalSeconds: 300,
		EscalationThreshold: 3,
	}
}

type testEnv struct {
	server *Server
	agent  *fakeAgent
	store  *store.Store
	kube   *fake.Clientset
}

func newTestEnv(t *testing.T, objects ...runtime.Object) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testSettings()
	st := store.NewWithClient(rdb)
	runtimeStore := config.NewRuntimeStore(rdb, cfg)
	clientset := fake.NewSimpleClientset(objects...)
	gateway := kube.NewGateway(kube.NewWithClientset(clientset, nil), cfg, runtimeStore, st)
	agent := &fakeAgent{result: models.InvestigationResult{
		Success:   true,
		Summary:   "all healthy",
		Timestamp: time.Now().UTC(),
	}}
	corr := correlator.New(
		func() (time.Duration, time.Duration, time.Duration) {
			return time.Minute, time.Hour, time.Hour
		},
		func(incidentID, description, threadID string) {},
	)
	t.Cleanup(corr.Stop)

	srv := NewServer(Deps{
		Config:     cfg,
		Runtime:    runtimeStore,
		Store:      st,
		Gateway:    gateway,
		Agent:      agent,
		Correlator: corr,
		Tuner:      tuner.New(st, runtimeStore, nil),
	})
	return &testEnv{server: srv, agent: agent, store: st, kube: clientset}
}

// request routes one request through the full echo router.
func (env *testEnv) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	env.server.routes().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthReportsRedis(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Redis)
}

func TestHealthDegradedWithoutRedis(t *testing.T) {
	env := newTestEnv(t)
	degraded, err := store.New("")
	require.NoError(t, err)
	env.server.store = degraded

	rec := env.request(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "degraded", resp.Status)
	assert.False(t, resp.Redis)
}

func TestSecurityHeadersSet(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(t, http.MethodGet, "/live", nil)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestConfigRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPatch, "/api/v1/config",
		map[string]any{"max_actions_per_hour": 5})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/config", nil)
	all := decode[map[string]any](t, rec)
	assert.EqualValues(t, 5, all["max_actions_per_hour"])

	rec = env.request(t, http.MethodPost, "/api/v1/config/reset",
		ConfigResetRequest{Key: "max_actions_per_hour"})
	require.Equal(t, http.StatusOK, rec.Code)
	all = decode[map[string]any](t, rec)
	assert.EqualValues(t, 30, all["max_actions_per_hour"])
}

func TestConfigRejectsUnknownKey(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(t, http.MethodPatch, "/api/v1/config",
		map[string]any{"no_such_option": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMonitorStatusUnavailableWithoutMonitor(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(t, http.MethodGet, "/api/v1/monitor/status", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestConnectionsEmptyWithoutManager(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(t, http.MethodGet, "/api/v1/connections", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ConnectionsResponse](t, rec)
	assert.Zero(t, resp.Count)
}
