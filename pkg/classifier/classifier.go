// Package classifier assigns an escalation level to each anomaly:
// quick-fix, long-term, or observe-only. Classification is pure apart
// from the occurrence counts it accumulates per dedupe key.
package classifier

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
)

// Source routing. Node conditions are infrastructure problems the agent
// cannot durably fix; the quick-fix sources have known remediations.
var (
	longTermSources = map[string]bool{
		"node_condition": true,
	}
	quickFixSources = map[string]bool{
		"crashloop": true,
		"gatus":     true,
		"daemonset": true,
	}
)

// Keyword routing on the lowercased title+details text.
var (
	longTermKeywords = []string{
		"memory limit", "resource limit", "recurring",
		"disk pressure", "pid pressure", "node not ready", "notready",
	}
	quickFixKeywords = []string{
		"restart", "crashloop", "crash loop", "oom", "backoff",
		"failed job", "rollout stuck", "unhealthy endpoint",
	}
)

// Classifier assigns escalation levels and tracks per-key recurrence.
type Classifier struct {
	threshold func() int

	mu          sync.Mutex
	occurrences map[string]int
}

// New creates a classifier. threshold is read per classification so
// runtime overrides take effect immediately.
func New(threshold func() int) *Classifier {
	return &Classifier{
		threshold:   threshold,
		occurrences: make(map[string]int),
	}
}

// Classify decides the escalation level for an anomaly. external maps
// dedupe keys to occurrence counts tracked outside the classifier (the
// self-tuner's durable counters); the larger of internal and external
// wins so restarts do not reset recurrence detection.
func (c *Classifier) Classify(a models.Anomaly, external map[string]int) models.Classification {
	count := c.bump(a.DedupeKey)
	if ext := external[a.DedupeKey]; ext > count {
		count = ext
	}

	if threshold := c.threshold(); count >= threshold {
		return models.Classification{
			Level:       models.LevelLongTerm,
			Reason:      fmt.Sprintf("recurring issue: seen %d times (threshold %d)", count, threshold),
			Occurrences: count,
		}
	}

	if longTermSources[a.Source] {
		return models.Classification{
			Level:       models.LevelLongTerm,
			Reason:      fmt.Sprintf("source %q needs an infrastructure fix", a.Source),
			Occurrences: count,
		}
	}
	if quickFixSources[a.Source] {
		return models.Classification{
			Level:       models.LevelQuickFix,
			Reason:      fmt.Sprintf("source %q has a known remediation", a.Source),
			Occurrences: count,
		}
	}

	text := strings.ToLower(a.Message + " " + fmt.Sprint(a.Details))
	for _, kw := range longTermKeywords {
		if strings.Contains(text, kw) {
			return models.Classification{
				Level:       models.LevelLongTerm,
				Reason:      fmt.Sprintf("matched long-term keyword %q", kw),
				Occurrences: count,
			}
		}
	}
	for _, kw := range quickFixKeywords {
		if strings.Contains(text, kw) {
			return models.Classification{
				Level:       models.LevelQuickFix,
				Reason:      fmt.Sprintf("matched quick-fix keyword %q", kw),
				Occurrences: count,
			}
		}
	}

	switch a.Severity {
	case models.SeverityInfo:
		return models.Classification{
			Level:       models.LevelObserveOnly,
			Reason:      "informational severity",
			Occurrences: count,
		}
	default:
		return models.Classification{
			Level:       models.LevelQuickFix,
			Reason:      fmt.Sprintf("severity %q default", a.Severity),
			Occurrences: count,
		}
	}
}

// MaxLevel returns the more urgent of two levels. Long-term outranks
// quick-fix outranks observe-only; a batch is handled at its worst.
func MaxLevel(a, b string) string {
	rank := map[string]int{
		models.LevelObserveOnly: 0,
		models.LevelQuickFix:    1,
		models.LevelLongTerm:    2,
	}
	if rank[a] >= rank[b] {
		return a
	}
	return b
}

// Occurrences returns the internal count for a key.
func (c *Classifier) Occurrences(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.occurrences[key]
}

func (c *Classifier) bump(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.occurrences[key]++
	return c.occurrences[key]
}
