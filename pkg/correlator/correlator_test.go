package correlator

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
)

type capture struct {
	mu    sync.Mutex
	fired []string
	desc  map[string]string
}

func (c *capture) investigate(id, description, threadID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fired = append(c.fired, id)
	if c.desc == nil {
		c.desc = map[string]string{}
	}
	c.desc[id] = description + "|" + threadID
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fired)
}

func fastWindows(window, debounce, expiry time.Duration) Windows {
	return func() (time.Duration, time.Duration, time.Duration) {
		return window, debounce, expiry
	}
}

func crashAlert(ns, deployment string) Alert {
	return Alert{
		Name:      "KubePodCrashLooping",
		Namespace: ns,
		Severity:  models.SeverityWarning,
		Labels:    map[string]string{"deployment": deployment},
		Annotations: map[string]string{
			"summary": "pod is crash looping",
		},
	}
}

func TestCorrelateGroupsSameKey(t *testing.T) {
	cap := &capture{}
	c := New(fastWindows(5*time.Minute, time.Hour, time.Hour), cap.investigate)
	defer c.Stop()

	first := c.Correlate(crashAlert("payments", "api"))
	second := c.Correlate(Alert{
		Name:      "KubeDeploymentReplicasMismatch",
		Namespace: "payments",
		Labels:    map[string]string{"deployment": "api"},
	})

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, second.Alerts, 2)
	assert.Equal(t, "payments/api", second.Key)
}

func TestCorrelateGroupsRelatedAlertNames(t *testing.T) {
	cap := &capture{}
	c := New(fastWindows(5*time.Minute, time.Hour, time.Hour), cap.investigate)
	defer c.Stop()

	first := c.Correlate(crashAlert("payments", "api"))
	// Different key (pod label) but a related alert name.
	second := c.Correlate(Alert{
		Name:      "KubePodNotReady",
		Namespace: "payments",
		Labels:    map[string]string{"pod": "api-7f9c"},
	})

	assert.Equal(t, first.ID, second.ID)
}

func TestCorrelateUnrelatedAlertsSeparateIncidents(t *testing.T) {
	cap := &capture{}
	c := New(fastWindows(5*time.Minute, time.Hour, time.Hour), cap.investigate)
	defer c.Stop()

	first := c.Correlate(crashAlert("payments", "api"))
	second := c.Correlate(Alert{
		Name:      "KubePersistentVolumeFillingUp",
		Namespace: "media",
		Labels:    map[string]string{"pod": "plex-0"},
	})

	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, c.ActiveIncidents(), 2)
}

func TestDebounceResetsOnNewAlert(t *testing.T) {
	cap := &capture{}
	c := New(fastWindows(5*time.Minute, 120*time.Millisecond, time.Hour), cap.investigate)
	defer c.Stop()

	inc := c.Correlate(crashAlert("payments", "api"))

	// Keep feeding alerts inside the debounce; the timer must restart
	// each time and fire exactly once after the burst ends.
	for i := 0; i < 3; i++ {
		time.Sleep(50 * time.Millisecond)
		c.Correlate(crashAlert("payments", "api"))
		assert.Zero(t, cap.count())
	}

	require.Eventually(t, func() bool { return cap.count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{inc.ID}, cap.fired)
	assert.Contains(t, cap.desc[inc.ID], "incident-"+inc.ID)
	assert.Contains(t, cap.desc[inc.ID], "KubePodCrashLooping")

	got := c.Incident(inc.ID)
	require.NotNil(t, got)
	assert.Equal(t, models.IncidentInvestigating, got.Status)
}

func TestInvestigatedIncidentNeverFiresAgain(t *testing.T) {
	cap := &capture{}
	c := New(fastWindows(5*time.Minute, 30*time.Millisecond, time.Hour), cap.investigate)
	defer c.Stop()

	first := c.Correlate(crashAlert("payments", "api"))
	require.Eventually(t, func() bool { return cap.count() == 1 }, time.Second, 5*time.Millisecond)

	// The same alert after dispatch opens a new incident.
	second := c.Correlate(crashAlert("payments", "api"))
	assert.NotEqual(t, first.ID, second.ID)

	require.Eventually(t, func() bool { return cap.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestExpireOldCancelsTimers(t *testing.T) {
	cap := &capture{}
	c := New(fastWindows(5*time.Minute, time.Hour, 0), cap.investigate)
	defer c.Stop()

	c.Correlate(crashAlert("payments", "api"))
	time.Sleep(5 * time.Millisecond)

	removed := c.ExpireOld()
	assert.Equal(t, 1, removed)
	assert.Empty(t, c.ActiveIncidents())
	assert.Zero(t, cap.count())
}

func TestCorrelationKeyDerivationOrder(t *testing.T) {
	assert.Equal(t, "ns/dep", correlationKey(Alert{
		Namespace: "ns",
		Labels:    map[string]string{"deployment": "dep", "pod": "dep-1"},
	}))
	assert.Equal(t, "ns/dep-1", correlationKey(Alert{
		Namespace: "ns",
		Labels:    map[string]string{"pod": "dep-1"},
	}))
	assert.Equal(t, "node/worker-2", correlationKey(Alert{
		Name:   "KubeNodeNotReady",
		Labels: map[string]string{"node": "worker-2"},
	}))
	assert.Equal(t, "ns/SomeAlert", correlationKey(Alert{
		Name:      "SomeAlert",
		Namespace: "ns",
	}))
}

func TestIncidentIDFormat(t *testing.T) {
	id := newIncidentID("payments/api", time.Now())
	assert.Len(t, id, len("inc-")+12)
	assert.Equal(t, "inc-", id[:4])
}
