// Package models holds the domain types shared across subsystems.
package models

import "time"

// Anomaly is a single abnormal observation produced by a monitor check,
// the event watcher, or an external webhook.
type Anomaly struct {
	// Source identifies the producing check, e.g. "crashloop",
	// "prometheus_alert", "k8s_event", "node_condition".
	Source    string `json:"source"`
	Severity  string `json:"severity"`
	Namespace string `json:"namespace,omitempty"`
	// Resource is the affected object, e.g. "pod/api-7f9c" or
	// "deployment/checkout".
	Resource string `json:"resource,omitempty"`
	Message  string `json:"message"`
	// DedupeKey suppresses repeats of the same observation within the
	// suppression window.
	DedupeKey string         `json:"dedupe_key"`
	Count     int            `json:"count,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Severity levels, ordered. Critical outranks warning outranks info.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// severityRank orders severities for max-of-batch comparisons.
var severityRank = map[string]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityCritical: 2,
}

// SeverityAtLeast reports whether a is at least as severe as b. Unknown
// severities rank below info.
func SeverityAtLeast(a, b string) bool {
	return severityRank[a] >= severityRank[b]
}

// MaxSeverity returns the more severe of a and b.
func MaxSeverity(a, b string) string {
	if severityRank[a] >= severityRank[b] {
		return a
	}
	return b
}
