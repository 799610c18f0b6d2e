package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewWithClient(rdb), mr
}

func TestRateLimitWindow(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	now := time.Now()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordAction(ctx, "restart_pod", now.Add(time.Duration(i)*time.Second)))
	}
	// One action outside the sliding hour.
	require.NoError(t, s.RecordAction(ctx, "scale_deployment", now.Add(-2*time.Hour)))

	n, err := s.ActionsInWindow(ctx, now.Add(3*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRateLimitPrunesExpiredMembers(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)
	now := time.Now()

	require.NoError(t, s.RecordAction(ctx, "restart_pod", now.Add(-90*time.Minute)))
	require.NoError(t, s.RecordAction(ctx, "restart_pod", now))

	n, err := s.ActionsInWindow(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	members, err := mr.ZMembers("guardian:rate_limit")
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestAuditLogAppendAndTrim(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	for i := 0; i < 510; i++ {
		require.NoError(t, s.AppendAudit(ctx, models.AuditEntry{
			Timestamp: time.Now().UTC(),
			Action:    "restart_pod",
			Namespace: "default",
			Success:   true,
		}))
	}

	entries, err := s.AuditLog(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 10)

	all, err := mr.List("guardian:audit_log")
	require.NoError(t, err)
	assert.Len(t, all, 500)
}

func TestAuditLogNewestFirst(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.AppendAudit(ctx, models.AuditEntry{Action: "first"}))
	require.NoError(t, s.AppendAudit(ctx, models.AuditEntry{Action: "second"}))

	entries, err := s.AuditLog(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Action)
	assert.Equal(t, "first", entries[1].Action)
}

func TestApprovalRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	a := models.Approval{
		ID:        "appr-1",
		Action:    "drain_node",
		Resource:  "node/worker-2",
		Status:    models.ApprovalPending,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.SaveApproval(ctx, a))

	got, err := s.Approval(ctx, "appr-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.ApprovalPending, got.Status)
	assert.Equal(t, "drain_node", got.Action)

	missing, err := s.Approval(ctx, "appr-2")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := s.Approvals(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPatternRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	p := models.IssuePattern{
		Key:       "crashloop:default/api",
		Namespace: "default",
		Source:    "crashloop",
		Count:     2,
		FirstSeen: time.Now().UTC().Truncate(time.Second),
		LastSeen:  time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.SavePattern(ctx, p))

	got, err := s.Pattern(ctx, p.Key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.Count)

	all, err := s.Patterns(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEscalationCooldown(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	claimed, err := s.MarkEscalated(ctx, "crashloop:default/api")
	require.NoError(t, err)
	assert.True(t, claimed)

	again, err := s.MarkEscalated(ctx, "crashloop:default/api")
	require.NoError(t, err)
	assert.False(t, again)

	active, err := s.IsEscalated(ctx, "crashloop:default/api")
	require.NoError(t, err)
	assert.True(t, active)

	mr.FastForward(25 * time.Hour)
	active, err = s.IsEscalated(ctx, "crashloop:default/api")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestLastScanRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	none, err := s.LastScan(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, s.SetLastScan(ctx, models.InvestigationResult{
		Success:   true,
		Summary:   "all clear",
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}))

	got, err := s.LastScan(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Success)
	assert.Equal(t, "all clear", got.Summary)
}

func TestDegradesWithoutBackend(t *testing.T) {
	ctx := context.Background()
	s := &Store{}

	assert.False(t, s.Available(ctx))
	assert.True(t, IsUnavailable(s.RecordAction(ctx, "restart_pod", time.Now())))
	_, err := s.ActionsInWindow(ctx, time.Now())
	assert.True(t, IsUnavailable(err))
	_, err = s.AuditLog(ctx, 10)
	assert.True(t, IsUnavailable(err))
}
