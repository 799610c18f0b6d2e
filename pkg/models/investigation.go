package models

import "time"

// InvestigationResult is the agent's report for a scan or investigation.
type InvestigationResult struct {
	InvestigationID string `json:"investigation_id,omitempty"`
	Success         bool   `json:"success"`
	Summary         string `json:"summary,omitempty"`
	Error           string `json:"error,omitempty"`
	// AuditLog holds the most recent gateway actions (last 10).
	AuditLog        []AuditEntry     `json:"audit_log,omitempty"`
	RateLimit       *RateLimitStatus `json:"rate_limit,omitempty"`
	DurationSeconds float64          `json:"duration_seconds"`
	Timestamp       time.Time        `json:"timestamp"`
}

// IssuePattern is a recurrence counter tracked by the self-tuner.
type IssuePattern struct {
	Key         string    `json:"key"`
	Namespace   string    `json:"namespace,omitempty"`
	Resource    string    `json:"resource,omitempty"`
	Source      string    `json:"source,omitempty"`
	Count       int       `json:"count"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	LastMessage string    `json:"last_message,omitempty"`
}
