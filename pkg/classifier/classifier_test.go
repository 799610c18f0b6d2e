package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
)

func fixedThreshold(n int) func() int {
	return func() int { return n }
}

func TestRecurrenceWinsOverEverything(t *testing.T) {
	c := New(fixedThreshold(3))
	a := models.Anomaly{
		Source:    "crashloop",
		Severity:  models.SeverityCritical,
		Message:   "pod restarting",
		DedupeKey: "crashloop:default/api",
	}

	assert.Equal(t, models.LevelQuickFix, c.Classify(a, nil).Level)
	assert.Equal(t, models.LevelQuickFix, c.Classify(a, nil).Level)

	got := c.Classify(a, nil)
	assert.Equal(t, models.LevelLongTerm, got.Level)
	assert.Equal(t, 3, got.Occurrences)
	assert.Contains(t, got.Reason, "recurring")
}

func TestExternalCountsMergeWithMax(t *testing.T) {
	c := New(fixedThreshold(3))
	a := models.Anomaly{
		Source:    "crashloop",
		DedupeKey: "crashloop:default/api",
	}

	// First sighting internally, but the durable counter already saw it
	// five times before a restart.
	got := c.Classify(a, map[string]int{"crashloop:default/api": 5})
	assert.Equal(t, models.LevelLongTerm, got.Level)
	assert.Equal(t, 5, got.Occurrences)
}

func TestSourceRouting(t *testing.T) {
	c := New(fixedThreshold(100))

	tests := []struct {
		source string
		want   string
	}{
		{"node_condition", models.LevelLongTerm},
		{"crashloop", models.LevelQuickFix},
		{"gatus", models.LevelQuickFix},
		{"daemonset", models.LevelQuickFix},
	}
	for i, tt := range tests {
		got := c.Classify(models.Anomaly{
			Source:    tt.source,
			DedupeKey: string(rune('a' + i)),
		}, nil)
		assert.Equal(t, tt.want, got.Level, tt.source)
	}
}

func TestKeywordRouting(t *testing.T) {
	c := New(fixedThreshold(100))

	tests := []struct {
		message string
		want    string
	}{
		{"container hit its Memory Limit repeatedly", models.LevelLongTerm},
		{"node reports disk pressure", models.LevelLongTerm},
		{"pod stuck in ImagePullBackOff", models.LevelQuickFix},
		{"failed job batch-import", models.LevelQuickFix},
		{"OOM killed", models.LevelQuickFix},
	}
	for i, tt := range tests {
		got := c.Classify(models.Anomaly{
			Source:    "k8s_event",
			Severity:  models.SeverityWarning,
			Message:   tt.message,
			DedupeKey: string(rune('a' + i)),
		}, nil)
		assert.Equal(t, tt.want, got.Level, tt.message)
	}
}

func TestSeverityFallback(t *testing.T) {
	c := New(fixedThreshold(100))

	critical := c.Classify(models.Anomaly{
		Source: "prometheus_alert", Severity: models.SeverityCritical,
		Message: "something odd", DedupeKey: "k1",
	}, nil)
	assert.Equal(t, models.LevelQuickFix, critical.Level)

	info := c.Classify(models.Anomaly{
		Source: "prometheus_alert", Severity: models.SeverityInfo,
		Message: "something odd", DedupeKey: "k2",
	}, nil)
	assert.Equal(t, models.LevelObserveOnly, info.Level)

	warning := c.Classify(models.Anomaly{
		Source: "prometheus_alert", Severity: models.SeverityWarning,
		Message: "something odd", DedupeKey: "k3",
	}, nil)
	assert.Equal(t, models.LevelQuickFix, warning.Level)
}

func TestThresholdReadPerClassification(t *testing.T) {
	threshold := 100
	c := New(func() int { return threshold })
	a := models.Anomaly{Source: "crashloop", DedupeKey: "k"}

	assert.Equal(t, models.LevelQuickFix, c.Classify(a, nil).Level)

	// Lowering the threshold at runtime reroutes the next sighting.
	threshold = 2
	assert.Equal(t, models.LevelLongTerm, c.Classify(a, nil).Level)
}

func TestMaxLevel(t *testing.T) {
	assert.Equal(t, models.LevelLongTerm, MaxLevel(models.LevelQuickFix, models.LevelLongTerm))
	assert.Equal(t, models.LevelQuickFix, MaxLevel(models.LevelObserveOnly, models.LevelQuickFix))
	assert.Equal(t, models.LevelObserveOnly, MaxLevel(models.LevelObserveOnly, models.LevelObserveOnly))
}
