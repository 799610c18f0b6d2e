package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
)

func pendingApproval() models.Approval {
	return models.Approval{
		ID:        "ap-1",
		Action:    "restart_pod",
		Namespace: "default",
		Resource:  "pod/web-1",
		Reason:    "crash looping",
		Status:    models.ApprovalPending,
		CreatedAt: time.Now().UTC(),
	}
}

func TestApproveExecutesAction(t *testing.T) {
	pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "web-1"}}
	env := newTestEnv(t, pod)
	require.NoError(t, env.store.SaveApproval(context.Background(), pendingApproval()))

	rec := env.request(t, http.MethodPost, "/api/v1/approvals/ap-1/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[DecisionResponse](t, rec)
	assert.Equal(t, models.ApprovalApproved, resp.Status)
	assert.Contains(t, resp.Detail, "deleted pod default/web-1")

	// The pod is gone.
	_, err := env.kube.CoreV1().Pods("default").Get(context.Background(), "web-1", metav1.GetOptions{})
	assert.Error(t, err)
}

func TestRejectDoesNotExecute(t *testing.T) {
	pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "web-1"}}
	env := newTestEnv(t, pod)
	require.NoError(t, env.store.SaveApproval(context.Background(), pendingApproval()))

	rec := env.request(t, http.MethodPost, "/api/v1/approvals/ap-1/reject", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[DecisionResponse](t, rec)
	assert.Equal(t, models.ApprovalRejected, resp.Status)

	// The pod is untouched.
	_, err := env.kube.CoreV1().Pods("default").Get(context.Background(), "web-1", metav1.GetOptions{})
	assert.NoError(t, err)
}

func TestDecidingTwiceConflicts(t *testing.T) {
	pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "web-1"}}
	env := newTestEnv(t, pod)
	require.NoError(t, env.store.SaveApproval(context.Background(), pendingApproval()))

	rec := env.request(t, http.MethodPost, "/api/v1/approvals/ap-1/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/v1/approvals/ap-1/reject", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDecideUnknownApproval(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(t, http.MethodPost, "/api/v1/approvals/nope/approve", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListApprovals(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.SaveApproval(context.Background(), pendingApproval()))

	rec := env.request(t, http.MethodGet, "/api/v1/approvals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	approvals := decode[[]models.Approval](t, rec)
	require.Len(t, approvals, 1)
	assert.Equal(t, "ap-1", approvals[0].ID)
}
