package playbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
)

func crashloopAnomaly() models.Anomaly {
	return models.Anomaly{
		Source:    "crashloop",
		Severity:  models.SeverityWarning,
		Namespace: "payments",
		Resource:  "pod/api-7f9c",
		Message:   "container app in CrashLoopBackOff",
		DedupeKey: "crashloop:payments/api-7f9c/app",
	}
}

func TestFindMatchesBuiltin(t *testing.T) {
	r := NewRegistry()

	pb := r.Find(crashloopAnomaly())
	require.NotNil(t, pb)
	assert.Equal(t, "crashloop-restart", pb.Name)

	assert.Nil(t, r.Find(models.Anomaly{Source: "prometheus_alert", Message: "odd"}))
}

func TestFindMatchOperators(t *testing.T) {
	r := NewRegistry()

	oom := r.Find(models.Anomaly{
		Source:  "k8s_event",
		Message: "container was OOMKilled",
	})
	require.NotNil(t, oom)
	assert.Equal(t, "oomkilled-bump", oom.Name)

	errorRate := r.Find(models.Anomaly{
		Source:  "prometheus_alert",
		Message: "HTTP 503 error rate above 5%",
	})
	require.NotNil(t, errorRate)
	assert.Equal(t, "high-error-rate", errorRate.Name)
}

func TestNodeNotReadyRequiresBothRules(t *testing.T) {
	r := NewRegistry()

	pb := r.Find(models.Anomaly{
		Source:  "node_condition",
		Message: "node worker-2 is NotReady",
	})
	require.NotNil(t, pb)
	assert.Equal(t, "node-not-ready", pb.Name)

	// Same source but a pressure condition does not match this playbook.
	assert.Nil(t, r.Find(models.Anomaly{
		Source:  "node_condition",
		Message: "node worker-2 reports disk pressure",
	}))
}

func TestExecutionBudgetExhausts(t *testing.T) {
	r := NewRegistry()
	a := crashloopAnomaly()

	for i := 0; i < 3; i++ {
		require.NotNil(t, r.Find(a))
		r.RecordExecution("crashloop-restart")
	}
	assert.Nil(t, r.Find(a))
}

func TestRecordExecutionReturnsRemaining(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 2, r.RecordExecution("crashloop-restart"))
	assert.Equal(t, 1, r.RecordExecution("crashloop-restart"))
	assert.Equal(t, 0, r.RecordExecution("crashloop-restart"))
}

func TestRenderExpandsTemplates(t *testing.T) {
	r := NewRegistry()
	a := crashloopAnomaly()
	pb := r.Find(a)
	require.NotNil(t, pb)

	text := Render(pb, a)
	assert.Contains(t, text, `Playbook "crashloop-restart"`)
	assert.Contains(t, text, "namespace=payments")
	assert.Contains(t, text, "pod=api-7f9c")
	assert.NotContains(t, text, "{{")
}

func TestPlaybooksHaveNoEmptyMatch(t *testing.T) {
	for _, pb := range NewRegistry().Playbooks() {
		assert.NotEmpty(t, pb.Match, pb.Name)
		assert.NotEmpty(t, pb.Steps, pb.Name)
	}
}
