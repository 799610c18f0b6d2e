package models

// Escalation levels assigned by the classifier.
const (
	// LevelQuickFix marks issues the agent should remediate immediately.
	LevelQuickFix = "quick-fix"
	// LevelLongTerm marks recurring or infrastructural issues routed to
	// the long-term fix pipeline instead of the agent.
	LevelLongTerm = "long-term"
	// LevelObserveOnly marks low-grade issues that are recorded and
	// broadcast but not acted on.
	LevelObserveOnly = "observe-only"
)

// Classification is the classifier's verdict for an anomaly.
type Classification struct {
	Level string `json:"level"`
	// Reason explains which rule fired, for audit and display.
	Reason string `json:"reason"`
	// Occurrences is the recurrence count the decision was based on.
	Occurrences int `json:"occurrences"`
}
