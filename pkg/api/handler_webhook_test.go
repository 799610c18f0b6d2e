package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func firingPayload() alertmanagerWebhook {
	return alertmanagerWebhook{
		Status: "firing",
		Alerts: []alertmanagerAlert{
			{
				Status: "firing",
				Labels: map[string]string{
					"alertname": "KubePodCrashLooping",
					"namespace": "payments",
					"severity":  "critical",
					"pod":       "api-1",
				},
				Annotations: map[string]string{"summary": "pod api-1 is crash looping"},
			},
			{
				Status: "firing",
				Labels: map[string]string{
					"alertname": "KubePodNotReady",
					"namespace": "payments",
					"severity":  "warning",
					"pod":       "api-1",
				},
			},
			{
				Status: "resolved",
				Labels: map[string]string{
					"alertname": "KubePodCrashLooping",
					"namespace": "payments",
				},
			},
		},
	}
}

func TestAlertmanagerFiringOnly(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/webhook/alertmanager", firingPayload())
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[WebhookResponse](t, rec)
	assert.Equal(t, "accepted", resp.Status)
	assert.Equal(t, 2, resp.AlertsReceived)
	// Related crashloop alerts for the same pod share one incident.
	assert.Len(t, resp.Incidents, 1)
	assert.False(t, resp.InvestigationStarted)
}

func TestAlertmanagerAllResolved(t *testing.T) {
	env := newTestEnv(t)
	payload := alertmanagerWebhook{
		Status: "resolved",
		Alerts: []alertmanagerAlert{
			{Status: "resolved", Labels: map[string]string{"alertname": "TargetDown"}},
		},
	}
	rec := env.request(t, http.MethodPost, "/webhook/alertmanager", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[WebhookResponse](t, rec)
	assert.Zero(t, resp.AlertsReceived)
	assert.Empty(t, resp.Incidents)
}

func TestFalcoWebhookInvestigates(t *testing.T) {
	env := newTestEnv(t)
	payload := map[string]any{
		"rule":     "Terminal shell in container with a very long rule name",
		"priority": "Critical",
		"output":   "A shell was spawned in a container",
		"output_fields": map[string]any{
			"k8s.ns.name":  "payments",
			"k8s.pod.name": "api-1",
		},
	}

	rec := env.request(t, http.MethodPost, "/webhook/falco", payload)
	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decode[FalcoResponse](t, rec)
	assert.Equal(t, "accepted", resp.Status)
	assert.Equal(t, "falco-Terminal shell in container wi", resp.ThreadID)

	require.Eventually(t, func() bool { return env.agent.investigationCount() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestFalcoWebhookRejectsRulelessPayload(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(t, http.MethodPost, "/webhook/falco", map[string]any{"priority": "Error"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, env.agent.investigationCount())
}
