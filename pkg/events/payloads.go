package events

import (
	"time"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
)

// ScanCompletePayload is published when a periodic or manual scan ends.
type ScanCompletePayload struct {
	Type      string `json:"type"` // always EventTypeScanComplete
	Success   bool   `json:"success"`
	Summary   string `json:"summary"`
	Trigger   string `json:"trigger"` // periodic, manual, incident
	Timestamp string `json:"timestamp"`
}

// HealthUpdatePayload carries the latest deep health check results.
type HealthUpdatePayload struct {
	Type      string         `json:"type"` // always EventTypeHealthUpdate
	Checks    map[string]any `json:"checks"`
	Timestamp string         `json:"timestamp"`
}

// AlertReceivedPayload is published per Alertmanager alert accepted by
// the webhook.
type AlertReceivedPayload struct {
	Type       string `json:"type"` // always EventTypeAlertReceived
	AlertName  string `json:"alert_name"`
	Namespace  string `json:"namespace,omitempty"`
	Severity   string `json:"severity,omitempty"`
	IncidentID string `json:"incident_id,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// SecurityAlertPayload is published for Falco and CrowdSec events.
type SecurityAlertPayload struct {
	Type      string `json:"type"` // always EventTypeSecurityAlert
	Rule      string `json:"rule"`
	Severity  string `json:"severity"`
	Namespace string `json:"namespace,omitempty"`
	Pod       string `json:"pod,omitempty"`
	Output    string `json:"output"`
	Timestamp string `json:"timestamp"`
}

// AnomalyDetectedPayload is published by the monitor dispatcher for
// each batched anomaly group.
type AnomalyDetectedPayload struct {
	Type      string `json:"type"` // always EventTypeAnomalyDetected
	Source    string `json:"source"`
	Severity  string `json:"severity"`
	Namespace string `json:"namespace,omitempty"`
	Resource  string `json:"resource,omitempty"`
	Message   string `json:"message"`
	Level     string `json:"level"` // escalation level for the batch
	Count     int    `json:"count"`
	Timestamp string `json:"timestamp"`
}

// InvestigationStartedPayload marks the beginning of an agent run. The
// investigation id reappears on the matching completed event.
type InvestigationStartedPayload struct {
	Type            string `json:"type"` // always EventTypeInvestigationStarted
	InvestigationID string `json:"investigation_id"`
	ThreadID        string `json:"thread_id"`
	Description     string `json:"description"`
	Timestamp       string `json:"timestamp"`
}

// InvestigationStepPayload is published per agent iteration.
type InvestigationStepPayload struct {
	Type      string   `json:"type"` // always EventTypeInvestigationStep
	ThreadID  string   `json:"thread_id"`
	Iteration int      `json:"iteration"`
	Tools     []string `json:"tools,omitempty"`
	Timestamp string   `json:"timestamp"`
}

// InvestigationCompletedPayload carries the agent's final report.
type InvestigationCompletedPayload struct {
	Type            string  `json:"type"` // always EventTypeInvestigationCompleted
	InvestigationID string  `json:"investigation_id"`
	ThreadID        string  `json:"thread_id"`
	Success         bool    `json:"success"`
	Summary         string  `json:"summary,omitempty"`
	Error           string  `json:"error,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	Timestamp       string  `json:"timestamp"`
}

// QuorumVotePayload is published after the safety quorum votes on a
// destructive action.
type QuorumVotePayload struct {
	Type      string  `json:"type"` // always EventTypeQuorumVote
	Action    string  `json:"action"`
	Approved  bool    `json:"approved"`
	Ratio     float64 `json:"ratio"`
	Reasons   string  `json:"reasons,omitempty"`
	Timestamp string  `json:"timestamp"`
}

// NewAnomalyDetected builds the payload for one anomaly with the
// classified escalation level of its batch.
func NewAnomalyDetected(a models.Anomaly, level string, count int) AnomalyDetectedPayload {
	return AnomalyDetectedPayload{
		Type:      EventTypeAnomalyDetected,
		Source:    a.Source,
		Severity:  a.Severity,
		Namespace: a.Namespace,
		Resource:  a.Resource,
		Message:   a.Message,
		Level:     level,
		Count:     count,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// Timestamp returns the canonical event timestamp format.
func Timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
