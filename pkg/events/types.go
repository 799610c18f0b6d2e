// Package events owns the WebSocket fan-out to dashboard clients. A
// single ConnectionManager per process tracks connections and pushes
// typed event payloads to every connected client.
package events

// Event type discriminators carried in every payload's "type" field.
const (
	EventTypeScanComplete           = "scan_complete"
	EventTypeHealthUpdate           = "health_update"
	EventTypeAlertReceived          = "alert_received"
	EventTypeSecurityAlert          = "security_alert"
	EventTypeAnomalyDetected        = "anomaly_detected"
	EventTypeInvestigationStarted   = "investigation_started"
	EventTypeInvestigationStep      = "investigation_step"
	EventTypeInvestigationCompleted = "investigation_completed"
	EventTypeQuorumVote             = "quorum_vote"
)

// ClientMessage is a message from a WebSocket client.
type ClientMessage struct {
	Action string `json:"action"`
}

// Client actions.
const (
	ActionPing      = "ping"
	ActionGetStatus = "get_status"
)
