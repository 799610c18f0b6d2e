// Package security handles runtime security signals: Falco webhook
// payloads and the CrowdSec local API.
package security

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
)

// falcoSeverity maps Falco priorities to guardian severities.
var falcoSeverity = map[string]string{
	"Emergency":     models.SeverityCritical,
	"Alert":         models.SeverityCritical,
	"Critical":      models.SeverityCritical,
	"Error":         models.SeverityCritical,
	"Warning":       models.SeverityWarning,
	"Notice":        models.SeverityWarning,
	"Informational": models.SeverityInfo,
	"Debug":         models.SeverityInfo,
}

type falcoPayload struct {
	Rule         string         `json:"rule"`
	Priority     string         `json:"priority"`
	Output       string         `json:"output"`
	Time         time.Time      `json:"time"`
	Source       string         `json:"source"`
	OutputFields map[string]any `json:"output_fields"`
}

// ParseFalcoEvent converts a Falco webhook body into a SecurityEvent.
func ParseFalcoEvent(body []byte) (*models.SecurityEvent, error) {
	var p falcoPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("parse falco payload: %w", err)
	}
	if p.Rule == "" {
		return nil, fmt.Errorf("falco payload has no rule")
	}

	severity, ok := falcoSeverity[p.Priority]
	if !ok {
		severity = models.SeverityWarning
	}

	ev := &models.SecurityEvent{
		Rule:         p.Rule,
		Priority:     p.Priority,
		Severity:     severity,
		Output:       p.Output,
		Source:       "falco",
		OutputFields: p.OutputFields,
		Time:         p.Time,
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	if ns, ok := p.OutputFields["k8s.ns.name"].(string); ok {
		ev.Namespace = ns
	}
	if pod, ok := p.OutputFields["k8s.pod.name"].(string); ok {
		ev.Pod = pod
	}
	return ev, nil
}
