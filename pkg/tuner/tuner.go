// Package tuner is the feedback loop of the service: it counts
// recurring issue patterns, escalates persistent ones to the long-term
// fix pipeline, adapts the monitor cadence to cluster activity, and
// proposes operator-facing improvements.
package tuner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/config"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/devloop"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/store"
)

// Interval tuning bounds, seconds.
const (
	minFastLoopSeconds     = 15
	maxFastLoopSeconds     = 60
	defaultFastLoopSeconds = 30
)

// recentWindow is the lookback for judging cluster activity.
const recentWindow = time.Hour

type checkStats struct {
	total          int
	falsePositives int
}

// Tuner tracks issue patterns and tunes runtime behavior.
type Tuner struct {
	store   *store.Store
	runtime *config.RuntimeStore
	dev     *devloop.Client

	mu       sync.Mutex
	patterns map[string]*models.IssuePattern
	checks   map[string]*checkStats
}

// New creates a tuner. Patterns persisted before a restart are loaded
// lazily on first use.
func New(st *store.Store, runtime *config.RuntimeStore, dev *devloop.Client) *Tuner {
	return &Tuner{
		store:    st,
		runtime:  runtime,
		dev:      dev,
		patterns: make(map[string]*models.IssuePattern),
		checks:   make(map[string]*checkStats),
	}
}

// LoadPersisted restores durable pattern counters, typically at startup.
func (t *Tuner) LoadPersisted(ctx context.Context) {
	persisted, err := t.store.Patterns(ctx)
	if err != nil {
		if !store.IsUnavailable(err) {
			slog.Warn("Failed to load issue patterns", "error", err)
		}
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range persisted {
		p := persisted[i]
		t.patterns[p.Key] = &p
	}
	slog.Info("Loaded issue patterns", "count", len(persisted))
}

// RecordIssue counts one sighting of an anomaly pattern and returns the
// updated occurrence count.
func (t *Tuner) RecordIssue(ctx context.Context, a models.Anomaly) int {
	now := time.Now().UTC()

	t.mu.Lock()
	p, ok := t.patterns[a.DedupeKey]
	if !ok {
		p = &models.IssuePattern{
			Key:       a.DedupeKey,
			Namespace: a.Namespace,
			Resource:  a.Resource,
			Source:    a.Source,
			FirstSeen: now,
		}
		t.patterns[a.DedupeKey] = p
	}
	p.Count++
	p.LastSeen = now
	p.LastMessage = a.Message
	snapshot := *p
	t.mu.Unlock()

	if err := t.store.SavePattern(ctx, snapshot); err != nil && !store.IsUnavailable(err) {
		slog.Warn("Failed to persist issue pattern", "key", a.DedupeKey, "error", err)
	}
	return snapshot.Count
}

// ExternalCounts exposes the occurrence counts for the classifier.
func (t *Tuner) ExternalCounts() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.patterns))
	for key, p := range t.patterns {
		out[key] = p.Count
	}
	return out
}

// Patterns returns a snapshot of all tracked patterns.
func (t *Tuner) Patterns() []models.IssuePattern {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.IssuePattern, 0, len(t.patterns))
	for _, p := range t.patterns {
		out = append(out, *p)
	}
	return out
}

// AutoEscalate submits a long-term fix goal for a pattern, respecting a
// 24 h per-key cooldown. Returns true when a goal was submitted.
func (t *Tuner) AutoEscalate(ctx context.Context, patternKey, summary string) (bool, error) {
	if !t.dev.Enabled() {
		return false, nil
	}

	claimed, err := t.store.MarkEscalated(ctx, patternKey)
	if err != nil && !store.IsUnavailable(err) {
		return false, fmt.Errorf("check escalation cooldown: %w", err)
	}
	if err == nil && !claimed {
		slog.Debug("Escalation cooldown active", "pattern", patternKey)
		return false, nil
	}

	t.mu.Lock()
	p := t.patterns[patternKey]
	var count int
	var source string
	if p != nil {
		count, source = p.Count, p.Source
	}
	t.mu.Unlock()

	goal := devloop.Goal{
		Title: fmt.Sprintf("Fix recurring cluster issue: %s", patternKey),
		Description: fmt.Sprintf(
			"The issue %q (source %s) has occurred %d times and keeps coming back despite automatic remediation.\n\n%s",
			patternKey, source, count, summary),
		AcceptanceCriteria: []string{
			"The root cause of the recurring issue is identified and fixed",
			"The issue does not reoccur for 7 consecutive days",
			"Monitoring confirms the affected workload stays healthy",
		},
		Priority: "high",
	}
	created, err := t.dev.CreateGoal(ctx, goal)
	if err != nil {
		return false, fmt.Errorf("escalate %s: %w", patternKey, err)
	}
	slog.Info("Escalated recurring issue to long-term pipeline",
		"pattern", patternKey, "goal_id", created.ID)
	return true, nil
}

// TuneIntervals adapts the fast-loop interval to recent activity: a
// stable cluster slows sampling down, an active one speeds it up.
// Returns the interval now in effect, seconds.
func (t *Tuner) TuneIntervals(ctx context.Context) (int, error) {
	recent := t.recentIssueCount(time.Now().Add(-recentWindow))
	current := t.runtime.Int(ctx, "fast_loop_interval_seconds")

	var next int
	switch {
	case recent == 0:
		next = current + 10
		if next > maxFastLoopSeconds {
			next = maxFastLoopSeconds
		}
	case recent > 5:
		next = current - 5
		if next < minFastLoopSeconds {
			next = minFastLoopSeconds
		}
	default:
		next = defaultFastLoopSeconds
	}

	if next != current {
		if err := t.runtime.Set(ctx, "fast_loop_interval_seconds", next); err != nil {
			return current, fmt.Errorf("store tuned interval: %w", err)
		}
		slog.Info("Tuned fast-loop interval", "recent_issues", recent,
			"previous", current, "interval", next)
	}
	return next, nil
}

func (t *Tuner) recentIssueCount(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, p := range t.patterns {
		if p.LastSeen.After(cutoff) {
			n++
		}
	}
	return n
}

// TrackCheckEffectiveness records whether a check's finding turned out
// to be a false positive, feeding the threshold-tuning suggestions.
func (t *Tuner) TrackCheckEffectiveness(check string, falsePositive bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.checks[check]
	if !ok {
		s = &checkStats{}
		t.checks[check] = s
	}
	s.total++
	if falsePositive {
		s.falsePositives++
	}
}
