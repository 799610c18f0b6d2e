// Package correlator groups related alerts into incidents so the agent
// investigates one coherent unit instead of a storm of single alerts.
package correlator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
)

// Alert is an inbound alert in the shape the correlator consumes.
type Alert struct {
	Name        string            `json:"name"`
	Namespace   string            `json:"namespace,omitempty"`
	Severity    string            `json:"severity,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// workloadLabels are tried in order to derive a correlation key.
var workloadLabels = []string{"deployment", "statefulset", "daemonset", "job_name", "pod"}

// relatedGroups lists alert names that describe the same underlying
// failure and should correlate even across different keys.
var relatedGroups = [][]string{
	{"KubePodCrashLooping", "KubePodNotReady", "KubeContainerWaiting"},
	{"KubeNodeNotReady", "KubeNodeUnreachable", "KubeletDown", "TargetDown"},
	{"KubeDeploymentReplicasMismatch", "KubeDeploymentRolloutStuck", "KubePodNotReady"},
	{"KubePersistentVolumeFillingUp", "KubePersistentVolumeErrors"},
	{"KubeMemoryOvercommit", "KubeContainerOOMKilled", "KubeQuotaAlmostFull"},
}

// Windows supplies the correlation timings, read per call so runtime
// overrides apply.
type Windows func() (window, debounce, expiry time.Duration)

// InvestigateFunc is called once per incident when its debounce expires.
type InvestigateFunc func(incidentID, description, threadID string)

type incidentState struct {
	models.Incident
	timer *time.Timer
}

// Correlator owns the incident set and the per-incident debounce timers.
type Correlator struct {
	windows     Windows
	investigate InvestigateFunc

	mu        sync.Mutex
	incidents map[string]*incidentState
	// byKey points at the active (non-investigated) incident per key.
	byKey map[string]*incidentState
}

// New creates a correlator.
func New(windows Windows, investigate InvestigateFunc) *Correlator {
	return &Correlator{
		windows:     windows,
		investigate: investigate,
		incidents:   make(map[string]*incidentState),
		byKey:       make(map[string]*incidentState),
	}
}

// Correlate folds an alert into an existing incident or creates a new
// one, and (re)schedules the incident's investigation debounce.
func (c *Correlator) Correlate(alert Alert) *models.Incident {
	window, debounce, _ := c.windows()
	now := time.Now().UTC()
	key := correlationKey(alert)

	c.mu.Lock()
	defer c.mu.Unlock()

	inc := c.findTarget(key, alert.Name, now, window)
	if inc == nil {
		inc = &incidentState{Incident: models.Incident{
			ID:        newIncidentID(key, now),
			Key:       key,
			FirstSeen: now,
			Status:    models.IncidentOpen,
		}}
		c.incidents[inc.ID] = inc
		c.byKey[key] = inc
		slog.Info("Opened incident", "incident_id", inc.ID, "key", key)
	}

	inc.Alerts = append(inc.Alerts, models.IncidentAlert{
		Name:       alert.Name,
		Namespace:  alert.Namespace,
		Severity:   alert.Severity,
		Labels:     alert.Labels,
		Summary:    alert.Annotations["summary"],
		ReceivedAt: now,
	})
	inc.LastSeen = now

	c.scheduleLocked(inc, debounce)
	snapshot := inc.Incident
	return &snapshot
}

// findTarget locates the incident an alert belongs to: same key within
// the window first, then a related alert name within the window.
// Investigated incidents never accept new alerts.
func (c *Correlator) findTarget(key, alertName string, now time.Time, window time.Duration) *incidentState {
	if inc, ok := c.byKey[key]; ok {
		if inc.Status == models.IncidentOpen && now.Sub(inc.LastSeen) <= window {
			return inc
		}
	}
	for _, inc := range c.incidents {
		if inc.Status != models.IncidentOpen || now.Sub(inc.LastSeen) > window {
			continue
		}
		for _, existing := range inc.Alerts {
			if related(alertName, existing.Name) {
				return inc
			}
		}
	}
	return nil
}

// scheduleLocked resets the incident's debounce timer. Exactly one
// timer exists per incident; a new alert during debounce restarts it so
// the agent sees the whole group.
func (c *Correlator) scheduleLocked(inc *incidentState, debounce time.Duration) {
	if inc.timer != nil {
		inc.timer.Stop()
	}
	id := inc.ID
	inc.timer = time.AfterFunc(debounce, func() { c.fire(id) })
}

func (c *Correlator) fire(id string) {
	c.mu.Lock()
	inc, ok := c.incidents[id]
	if !ok || inc.Status != models.IncidentOpen {
		c.mu.Unlock()
		return
	}
	inc.Status = models.IncidentInvestigating
	delete(c.byKey, inc.Key)
	description := describe(inc.Incident)
	c.mu.Unlock()

	slog.Info("Dispatching incident investigation", "incident_id", id,
		"alerts", len(inc.Alerts))
	c.investigate(id, description, "incident-"+id)
}

// ExpireOld drops incidents idle past the expiry window and cancels
// their timers.
func (c *Correlator) ExpireOld() int {
	_, _, expiry := c.windows()
	cutoff := time.Now().UTC().Add(-expiry)

	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, inc := range c.incidents {
		if inc.LastSeen.After(cutoff) {
			continue
		}
		if inc.timer != nil {
			inc.timer.Stop()
		}
		delete(c.incidents, id)
		if c.byKey[inc.Key] == inc {
			delete(c.byKey, inc.Key)
		}
		removed++
	}
	if removed > 0 {
		slog.Info("Expired incidents", "count", removed)
	}
	return removed
}

// ActiveIncidents returns all retained incidents, newest first.
func (c *Correlator) ActiveIncidents() []models.Incident {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Incident, 0, len(c.incidents))
	for _, inc := range c.incidents {
		out = append(out, inc.Incident)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	return out
}

// Incident returns one incident by id, nil when unknown.
func (c *Correlator) Incident(id string) *models.Incident {
	c.mu.Lock()
	defer c.mu.Unlock()
	if inc, ok := c.incidents[id]; ok {
		snapshot := inc.Incident
		return &snapshot
	}
	return nil
}

// Stop cancels all pending timers, used at shutdown.
func (c *Correlator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, inc := range c.incidents {
		if inc.timer != nil {
			inc.timer.Stop()
		}
	}
}

// correlationKey derives the grouping key: workload first, then node,
// then namespace plus alert name.
func correlationKey(alert Alert) string {
	for _, label := range workloadLabels {
		if v := alert.Labels[label]; v != "" {
			return fmt.Sprintf("%s/%s", alert.Namespace, v)
		}
	}
	if node := alert.Labels["node"]; node != "" {
		return "node/" + node
	}
	return fmt.Sprintf("%s/%s", alert.Namespace, alert.Name)
}

func related(a, b string) bool {
	if a == b {
		return true
	}
	for _, group := range relatedGroups {
		hasA, hasB := false, false
		for _, name := range group {
			if name == a {
				hasA = true
			}
			if name == b {
				hasB = true
			}
		}
		if hasA && hasB {
			return true
		}
	}
	return false
}

func newIncidentID(key string, now time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s-%d", key, now.UnixNano())))
	return "inc-" + hex.EncodeToString(sum[:])[:12]
}

// describe renders the combined incident description handed to the
// agent.
func describe(inc models.Incident) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Incident %s: %d correlated alerts for %s\n", inc.ID, len(inc.Alerts), inc.Key)
	for _, a := range inc.Alerts {
		fmt.Fprintf(&b, "- [%s] %s", a.Severity, a.Name)
		if a.Namespace != "" {
			fmt.Fprintf(&b, " (namespace %s)", a.Namespace)
		}
		if a.Summary != "" {
			fmt.Fprintf(&b, ": %s", a.Summary)
		}
		b.WriteString("\n")
	}
	return b.String()
}
