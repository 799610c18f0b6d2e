package models

import "time"

// IncidentAlert is one alert folded into a correlated incident.
type IncidentAlert struct {
	Name      string            `json:"name"`
	Namespace string            `json:"namespace,omitempty"`
	Severity  string            `json:"severity,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
	// Summary comes from the alert's annotations when present.
	Summary    string    `json:"summary,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Incident groups related alerts received within the correlation window.
type Incident struct {
	ID string `json:"id"`
	// Key is the correlation key the alerts grouped under.
	Key       string          `json:"key"`
	Alerts    []IncidentAlert `json:"alerts"`
	FirstSeen time.Time       `json:"first_seen"`
	LastSeen  time.Time       `json:"last_seen"`
	// Status is "open" while accumulating, "investigating" once
	// dispatched, then "closed" after expiry.
	Status string `json:"status"`
}

// Incident statuses.
const (
	IncidentOpen          = "open"
	IncidentInvestigating = "investigating"
	IncidentClosed        = "closed"
)
