package monitor

import (
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
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/classifier"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/config"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/devloop"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/kube"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/store"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/tuner"
)

type investigation struct {
	description string
	threadID    string
}

type capture struct {
	mu    sync.Mutex
	calls []investigation
}

func (c *capture) investigate(description, threadID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, investigation{description, threadID})
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *capture) first() investigation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[0]
}

func testConfig() *config.Settings {
	return &config.Settings{
		ProtectedNamespaces:      []string{"kube-system"},
		AnomalySuppressionWindow: 300,
		AnomalyBatchWindow:       1,
		EscalationThreshold:      3,
		AutoEscalateRecurring:    true,
		FastLoopIntervalSeconds:  30,
	}
}

func newTestMonitor(t *testing.T, cfg *config.Settings, devURL string, rec *capture, objects ...runtime.Object) *Monitor {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	st := store.NewWithClient(rdb)
	runtimeStore := config.NewRuntimeStore(rdb, cfg)
	var dev *devloop.Client
	if devURL != "" {
		dev = devloop.NewClient(devURL)
		cfg.DevControllerEnabled = true
	}
	tun := tuner.New(st, runtimeStore, dev)
	cls := classifier.New(func() int { return cfg.EscalationThreshold })

	m := New(cfg, runtimeStore, kube.NewWithClientset(fake.NewSimpleClientset(objects...), nil),
		cls, tun, nil, rec.investigate, Options{})
	t.Cleanup(m.Stop)
	return m
}

func TestEnqueueSuppressesWithinWindow(t *testing.T) {
	rec := &capture{}
	m := newTestMonitor(t, testConfig(), "", rec)

	a := models.Anomaly{
		Source:    "crashloop",
		Severity:  models.SeverityCritical,
		Namespace: "payments",
		Resource:  "pod/api-1",
		Message:   "crash looping",
		DedupeKey: "crashloop:payments/api-1/app",
	}
	m.Enqueue(a)
	m.Enqueue(a)
	m.Enqueue(a)

	assert.Len(t, m.queue, 1)
}

func TestDispatchBatchesAndInvestigates(t *testing.T) {
	rec := &capture{}
	m := newTestMonitor(t, testConfig(), "", rec)
	m.wg.Add(1)
	go m.dispatchLoop(context.Background())

	m.Enqueue(models.Anomaly{
		Source:    "crashloop",
		Severity:  models.SeverityCritical,
		Namespace: "payments",
		Resource:  "pod/api-1",
		Message:   "container app in CrashLoopBackOff",
		DedupeKey: "crashloop:payments/api-1/app",
	})
	m.Enqueue(models.Anomaly{
		Source:    "k8s_event",
		Severity:  models.SeverityWarning,
		Namespace: "payments",
		Resource:  "pod/api-1",
		Message:   "BackOff restarting failed container",
		DedupeKey: "k8s_event:payments/Pod/api-1/BackOff",
	})

	require.Eventually(t, func() bool { return rec.count() == 1 },
		5*time.Second, 50*time.Millisecond)

	call := rec.first()
	assert.Equal(t, "cm-payments-api-1", call.threadID)
	assert.Contains(t, call.description, "2 related anomalies")
	assert.Contains(t, call.description, "CrashLoopBackOff")
}

func TestLongTermEscalatesInsteadOfInvestigating(t *testing.T) {
	var goals []devloop.Goal
	var mu sync.Mutex
	devSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var g devloop.Goal
		require.NoError(t, json.NewDecoder(r.Body).Decode(&g))
		mu.Lock()
		goals = append(goals, g)
		mu.Unlock()
		g.ID = "goal-1"
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(g)
	}))
	defer devSrv.Close()

	rec := &capture{}
	m := newTestMonitor(t, testConfig(), devSrv.URL, rec)
	m.wg.Add(1)
	go m.dispatchLoop(context.Background())

	// node_condition classifies as long-term.
	m.Enqueue(models.Anomaly{
		Source:    "node_condition",
		Severity:  models.SeverityCritical,
		Resource:  "node/worker-2",
		Message:   "node worker-2 condition Ready is False",
		DedupeKey: "node:Ready:worker-2",
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(goals) == 1
	}, 5*time.Second, 50*time.Millisecond)
	assert.Zero(t, rec.count())
}

func TestObserveOnlyIsNotInvestigated(t *testing.T) {
	rec := &capture{}
	m := newTestMonitor(t, testConfig(), "", rec)
	m.wg.Add(1)
	go m.dispatchLoop(context.Background())

	m.Enqueue(models.Anomaly{
		Source:    "log_anomaly",
		Severity:  models.SeverityInfo,
		Namespace: "default",
		Resource:  "namespace/default",
		Message:   "12 error log lines",
		DedupeKey: "logs:default",
	})

	// Give the batch window time to flush; nothing should arrive.
	time.Sleep(1500 * time.Millisecond)
	assert.Zero(t, rec.count())
}

func TestCheckCrashLoopsFindsBackoff(t *testing.T) {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Namespace: "payments", Name: "api-1"},
		Status: corev1.PodStatus{
			ContainerStatuses: []corev1.ContainerStatus{{
				Name:         "app",
				RestartCount: 12,
				State: corev1.ContainerState{Waiting: &corev1.ContainerStateWaiting{
					Reason:  "CrashLoopBackOff",
					Message: "back-off 5m restarting failed container",
				}},
			}},
		},
	}
	rec := &capture{}
	m := newTestMonitor(t, testConfig(), "", rec, pod)

	anomalies, err := m.checkCrashLoops(context.Background())
	require.NoError(t, err)
	require.Len(t, anomalies, 1)
	assert.Equal(t, "crashloop:payments/api-1/app", anomalies[0].DedupeKey)
	assert.Equal(t, models.SeverityCritical, anomalies[0].Severity)
	assert.Equal(t, "pod/api-1", anomalies[0].Resource)
}

func TestEventWatcherSkipsProtectedNamespaces(t *testing.T) {
	rec := &capture{}
	m := newTestMonitor(t, testConfig(), "", rec)

	m.handleEvent(&corev1.Event{
		ObjectMeta:     metav1.ObjectMeta{Namespace: "kube-system"},
		InvolvedObject: corev1.ObjectReference{Kind: "Pod", Name: "coredns-abc"},
		Reason:         "BackOff",
		Message:        "back-off restarting failed container",
	})
	assert.Empty(t, m.queue)

	m.handleEvent(&corev1.Event{
		ObjectMeta:     metav1.ObjectMeta{Namespace: "payments"},
		InvolvedObject: corev1.ObjectReference{Kind: "Pod", Name: "api-1"},
		Reason:         "BackOff",
		Message:        "back-off restarting failed container",
	})
	require.Len(t, m.queue, 1)
	a := <-m.queue
	assert.Equal(t, "payments", a.Namespace)
}

func TestDeploymentCheckSkipsProtectedNamespaces(t *testing.T) {
	replicas := int32(3)
	degraded := func(ns, name string) *appsv1.Deployment {
		return &appsv1.Deployment{
			ObjectMeta: metav1.ObjectMeta{Namespace: ns, Name: name},
			Spec:       appsv1.DeploymentSpec{Replicas: &replicas},
			Status:     appsv1.DeploymentStatus{AvailableReplicas: 1},
		}
	}
	rec := &capture{}
	m := newTestMonitor(t, testConfig(), "", rec,
		degraded("kube-system", "coredns"), degraded("payments", "api"))

	anomalies, err := m.checkDeployments(context.Background())
	require.NoError(t, err)
	require.Len(t, anomalies, 1)
	assert.Equal(t, "payments", anomalies[0].Namespace)
	assert.Equal(t, "deployment:payments/api", anomalies[0].DedupeKey)
}

func TestStatusTracksCounters(t *testing.T) {
	rec := &capture{}
	m := newTestMonitor(t, testConfig(), "", rec)

	a := models.Anomaly{
		Source:    "crashloop",
		Namespace: "payments",
		Resource:  "pod/api-1",
		DedupeKey: "crashloop:payments/api-1/app",
	}
	m.Enqueue(a)
	m.Enqueue(a)

	st := m.Status()
	assert.False(t, st.Running)
	assert.Equal(t, int64(2), st.TotalSeen)
	assert.Equal(t, int64(1), st.TotalSuppressed)
	assert.Equal(t, 1, st.QueueDepth)
	assert.Equal(t, 1, st.TrackedKeys)
	assert.Contains(t, st.Checks, "crashloop")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	assert.True(t, m.Status().Running)
	m.Stop()
	assert.False(t, m.Status().Running)
}

func TestSweepPurgesStaleSuppressionEntries(t *testing.T) {
	rec := &capture{}
	m := newTestMonitor(t, testConfig(), "", rec)

	now := time.Now()
	m.mu.Lock()
	// 2x the 300 s window is the purge cutoff.
	m.suppressed["stale"] = now.Add(-11 * time.Minute)
	m.suppressed["fresh"] = now
	m.mu.Unlock()

	purged := m.sweepSuppressed(now)
	assert.Equal(t, 1, purged)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.NotContains(t, m.suppressed, "stale")
	assert.Contains(t, m.suppressed, "fresh")
}

func TestRuntimeOverridesMonitorCadence(t *testing.T) {
	rec := &capture{}
	m := newTestMonitor(t, testConfig(), "", rec)
	ctx := context.Background()

	assert.Equal(t, 300*time.Second, m.suppressionWindow())
	assert.Equal(t, time.Second, m.batchWindow())
	assert.False(t, m.eventWatchEnabled())

	require.NoError(t, m.runtime.Set(ctx, "anomaly_suppression_window", 7))
	require.NoError(t, m.runtime.Set(ctx, "anomaly_batch_window", 3))
	require.NoError(t, m.runtime.Set(ctx, "event_watch_enabled", true))

	assert.Equal(t, 7*time.Second, m.suppressionWindow())
	assert.Equal(t, 3*time.Second, m.batchWindow())
	assert.True(t, m.eventWatchEnabled())
}

func TestEventAnomalyConversion(t *testing.T) {
	event := &corev1.Event{
		ObjectMeta:     metav1.ObjectMeta{Namespace: "payments"},
		InvolvedObject: corev1.ObjectReference{Kind: "Pod", Name: "api-1"},
		Reason:         "OOMKilling",
		Message:        "memory cgroup out of memory",
		Count:          3,
	}
	a := eventAnomaly(event)
	assert.Equal(t, "k8s_event", a.Source)
	assert.Equal(t, models.SeverityCritical, a.Severity)
	assert.Equal(t, "k8s_event:payments/Pod/api-1/OOMKilling", a.DedupeKey)
	assert.Equal(t, 3, a.Count)
}

func TestThreadIDFallsBackToCluster(t *testing.T) {
	a := models.Anomaly{Resource: "node/worker-2"}
	assert.Equal(t, "cm-cluster-worker-2", threadID(a))
}
