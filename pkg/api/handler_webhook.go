package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/correlator"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/events"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/security"
)

// maxWebhookBody bounds inbound webhook payloads.
const maxWebhookBody = 1 << 20

// alertmanagerHandler handles POST /webhook/alertmanager. Only firing
// alerts feed the correlator; resolved notifications are acknowledged
// and dropped.
func (s *Server) alertmanagerHandler(c *echo.Context) error {
	var payload alertmanagerWebhook
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if s.correlator == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "correlator not running")
	}

	resp := WebhookResponse{Status: "accepted", Incidents: []string{}}
	seen := make(map[string]bool)
	for _, alert := range payload.Alerts {
		status := alert.Status
		if status == "" {
			status = payload.Status
		}
		if status != "firing" {
			continue
		}
		resp.AlertsReceived++

		labels := alert.Labels
		incident := s.correlator.Correlate(correlator.Alert{
			Name:        labels["alertname"],
			Namespace:   labels["namespace"],
			Severity:    labels["severity"],
			Labels:      labels,
			Annotations: alert.Annotations,
		})
		if incident != nil {
			if !seen[incident.ID] {
				seen[incident.ID] = true
				resp.Incidents = append(resp.Incidents, incident.ID)
			}
			if incident.Status == models.IncidentInvestigating {
				resp.InvestigationStarted = true
			}
			s.broadcast(events.AlertReceivedPayload{
				Type:       events.EventTypeAlertReceived,
				AlertName:  labels["alertname"],
				Namespace:  labels["namespace"],
				Severity:   labels["severity"],
				IncidentID: incident.ID,
				Timestamp:  events.Timestamp(),
			})
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// falcoHandler handles POST /webhook/falco. The event is broadcast and
// investigated in the background so the webhook returns immediately.
func (s *Server) falcoHandler(c *echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	event, err := security.ParseFalcoEvent(body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	s.broadcast(events.SecurityAlertPayload{
		Type:      events.EventTypeSecurityAlert,
		Rule:      event.Rule,
		Severity:  event.Severity,
		Namespace: event.Namespace,
		Pod:       event.Pod,
		Output:    event.Output,
		Timestamp: events.Timestamp(),
	})

	rule := event.Rule
	if len(rule) > 30 {
		rule = rule[:30]
	}
	threadID := "falco-" + rule
	if s.agent != nil {
		description := fmt.Sprintf("Runtime security event (%s severity)\nRule: %s\nOutput: %s",
			event.Severity, event.Rule, event.Output)
		if event.Namespace != "" {
			description += fmt.Sprintf("\nNamespace: %s, pod: %s", event.Namespace, event.Pod)
		}
		go s.agent.Investigate(context.Background(), description, threadID)
	}
	return c.JSON(http.StatusAccepted, FalcoResponse{
		Status:   "accepted",
		Rule:     event.Rule,
		ThreadID: threadID,
	})
}

func (s *Server) broadcast(payload any) {
	if s.events != nil {
		s.events.Broadcast(payload)
	}
}
