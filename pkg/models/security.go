package models

import "time"

// SecurityEvent is a runtime security finding, typically from a Falco
// webhook or the CrowdSec LAPI.
type SecurityEvent struct {
	Rule     string `json:"rule"`
	Priority string `json:"priority"`
	// Severity is the guardian severity mapped from the source priority.
	Severity     string         `json:"severity"`
	Output       string         `json:"output"`
	Source       string         `json:"source"`
	Namespace    string         `json:"namespace,omitempty"`
	Pod          string         `json:"pod,omitempty"`
	OutputFields map[string]any `json:"output_fields,omitempty"`
	Time         time.Time      `json:"time"`
}
