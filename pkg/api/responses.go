package api

import (
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
)

// HealthResponse is returned by GET /health and /ready.
type HealthResponse struct {
	Status string `json:"status"`
	Redis  bool   `json:"redis"`
}

// ScanResponse is returned by POST /api/v1/scan.
type ScanResponse struct {
	Success         bool                    `json:"success"`
	Summary         string                  `json:"summary,omitempty"`
	Error           string                  `json:"error,omitempty"`
	AuditLog        []models.AuditEntry     `json:"audit_log,omitempty"`
	RateLimit       *models.RateLimitStatus `json:"rate_limit,omitempty"`
	DurationSeconds float64                 `json:"duration_seconds"`
	Timestamp       string                  `json:"timestamp"`
}

// InvestigateResponse is returned by POST /api/v1/investigate.
type InvestigateResponse struct {
	Success         bool                `json:"success"`
	Summary         string              `json:"summary,omitempty"`
	Error           string              `json:"error,omitempty"`
	AuditLog        []models.AuditEntry `json:"audit_log,omitempty"`
	InvestigationID string              `json:"investigation_id"`
	DurationSeconds float64             `json:"duration_seconds"`
	Timestamp       string              `json:"timestamp"`
}

// AuditLogResponse is returned by GET /api/v1/audit-log.
type AuditLogResponse struct {
	Entries   []models.AuditEntry    `json:"entries"`
	RateLimit models.RateLimitStatus `json:"rate_limit"`
}

// DecisionResponse is returned by the approval decide endpoints.
type DecisionResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// WebhookResponse is returned by POST /webhook/alertmanager.
type WebhookResponse struct {
	Status               string   `json:"status"`
	AlertsReceived       int      `json:"alerts_received"`
	Incidents            []string `json:"incidents"`
	InvestigationStarted bool     `json:"investigation_started"`
}

// FalcoResponse is returned by POST /webhook/falco.
type FalcoResponse struct {
	Status   string `json:"status"`
	Rule     string `json:"rule"`
	ThreadID string `json:"thread_id"`
}

// EscalationItem is one recurring pattern with its escalation state.
type EscalationItem struct {
	Pattern   models.IssuePattern `json:"pattern"`
	Escalated bool                `json:"escalated"`
}

// ConnectionsResponse is returned by GET /api/v1/connections.
type ConnectionsResponse struct {
	Count int      `json:"count"`
	IDs   []string `json:"ids"`
}
