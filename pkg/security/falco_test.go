package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
)

func TestParseFalcoEvent(t *testing.T) {
	body := []byte(`{
		"rule": "Terminal shell in container",
		"priority": "Notice",
		"output": "A shell was spawned in a container",
		"time": "2026-08-24T09:15:00Z",
		"output_fields": {
			"k8s.ns.name": "payments",
			"k8s.pod.name": "api-7f9c",
			"proc.cmdline": "bash"
		}
	}`)

	ev, err := ParseFalcoEvent(body)
	require.NoError(t, err)
	assert.Equal(t, "Terminal shell in container", ev.Rule)
	assert.Equal(t, models.SeverityWarning, ev.Severity)
	assert.Equal(t, "payments", ev.Namespace)
	assert.Equal(t, "api-7f9c", ev.Pod)
	assert.Equal(t, "falco", ev.Source)
}

func TestParseFalcoEventSeverityMap(t *testing.T) {
	tests := []struct {
		priority string
		want     string
	}{
		{"Emergency", models.SeverityCritical},
		{"Critical", models.SeverityCritical},
		{"Error", models.SeverityCritical},
		{"Warning", models.SeverityWarning},
		{"Notice", models.SeverityWarning},
		{"Informational", models.SeverityInfo},
		{"Unheard-of", models.SeverityWarning},
	}
	for _, tt := range tests {
		ev, err := ParseFalcoEvent([]byte(`{"rule":"r","priority":"` + tt.priority + `"}`))
		require.NoError(t, err, tt.priority)
		assert.Equal(t, tt.want, ev.Severity, tt.priority)
	}
}

func TestParseFalcoEventRejectsBadPayloads(t *testing.T) {
	_, err := ParseFalcoEvent([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseFalcoEvent([]byte(`{"priority":"Error"}`))
	assert.ErrorContains(t, err, "no rule")
}

func TestParseFalcoEventDefaultsTime(t *testing.T) {
	ev, err := ParseFalcoEvent([]byte(`{"rule":"r","priority":"Error"}`))
	require.NoError(t, err)
	assert.False(t, ev.Time.IsZero())
}
