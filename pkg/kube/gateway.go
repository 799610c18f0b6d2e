package kube

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/config"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/metrics"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/store"
)

// auditRingMax bounds the in-memory audit ring kept alongside Redis.
const auditRingMax = 500

// ActionRequest describes one requested cluster mutation.
type ActionRequest struct {
	// Action is the canonical action name, e.g. "restart_pod",
	// "scale_deployment", "drain_node".
	Action    string         `json:"action"`
	Namespace string         `json:"namespace,omitempty"`
	// Resource names the target, e.g. "pod/api-7f9c" or "node/worker-2".
	Resource string         `json:"resource,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
}

// Gateway enforces policy on every cluster mutation: protected
// namespaces, human approval for destructive actions, and a sliding
// one-hour rate limit. Successful and failed executions are audited.
type Gateway struct {
	client  *Client
	cfg     *config.Settings
	runtime *config.RuntimeStore
	store   *store.Store

	mu     sync.Mutex
	recent []time.Time
	audit  []models.AuditEntry
}

// NewGateway wires the gateway to its policy sources.
func NewGateway(client *Client, cfg *config.Settings, runtime *config.RuntimeStore, st *store.Store) *Gateway {
	return &Gateway{
		client:  client,
		cfg:     cfg,
		runtime: runtime,
		store:   st,
	}
}

// Do runs the policy pipeline and executes the action. It returns a
// human-readable result detail, or a typed policy error.
func (g *Gateway) Do(ctx context.Context, req ActionRequest) (string, error) {
	return g.do(ctx, req, false)
}

// ExecuteApproval executes a previously approved request, skipping only
// the approval check. The other policies still apply.
func (g *Gateway) ExecuteApproval(ctx context.Context, a models.Approval) (string, error) {
	return g.do(ctx, ActionRequest{
		Action:    a.Action,
		Namespace: a.Namespace,
		Resource:  a.Resource,
		Reason:    a.Reason,
		Params:    a.Params,
	}, true)
}

func (g *Gateway) do(ctx context.Context, req ActionRequest, approved bool) (string, error) {
	log := slog.With("action", req.Action, "namespace", req.Namespace, "resource", req.Resource)

	if req.Namespace != "" && g.cfg.IsProtectedNamespace(req.Namespace) {
		log.Warn("Refusing mutation in protected namespace")
		metrics.RemediationsTotal.WithLabelValues(req.Action, "blocked_protected").Inc()
		return "", &ProtectedNamespaceError{Namespace: req.Namespace}
	}

	if !approved {
		if gatedAs, ok := g.approvalGate(req); ok {
			approval := models.Approval{
				ID:        uuid.NewString(),
				Action:    req.Action,
				Namespace: req.Namespace,
				Resource:  req.Resource,
				Reason:    req.Reason,
				Params:    req.Params,
				Status:    models.ApprovalPending,
				CreatedAt: time.Now().UTC(),
			}
			if err := g.store.SaveApproval(ctx, approval); err != nil && !store.IsUnavailable(err) {
				return "", fmt.Errorf("queue approval: %w", err)
			}
			log.Info("Action queued for approval", "approval_id", approval.ID, "gated_as", gatedAs)
			metrics.RemediationsTotal.WithLabelValues(req.Action, "pending_approval").Inc()
			return "", &ApprovalRequiredError{ApprovalID: approval.ID, Action: gatedAs}
		}
	}

	if status, limited := g.checkRateLimit(ctx); limited {
		log.Warn("Rate limit reached", "used", status.Used, "limit", status.Limit)
		metrics.RemediationsTotal.WithLabelValues(req.Action, "rate_limited").Inc()
		return "", &RateLimitedError{Status: status}
	}

	detail, err := g.execute(ctx, req)
	g.record(ctx, req, detail, err)
	if err != nil {
		log.Error("Action failed", "error", err)
		metrics.RemediationsTotal.WithLabelValues(req.Action, "error").Inc()
		return "", err
	}
	log.Info("Action executed", "detail", detail)
	metrics.RemediationsTotal.WithLabelValues(req.Action, "success").Inc()
	return detail, nil
}

// approvalGate reports whether the request needs approval, and the
// action name it is gated as. Scaling a deployment to zero replicas is
// gated as scale_to_zero.
func (g *Gateway) approvalGate(req ActionRequest) (string, bool) {
	name := req.Action
	if req.Action == "scale_deployment" {
		if replicas, ok := intParam(req.Params, "replicas"); ok && replicas == 0 {
			name = "scale_to_zero"
		}
	}
	if g.cfg.RequiresApproval(name) {
		return name, true
	}
	return "", false
}

// checkRateLimit counts actions in the sliding hour against the limit
// read fresh from the runtime config. Redis is the source of truth
// when available; otherwise an in-process window is used.
func (g *Gateway) checkRateLimit(ctx context.Context) (models.RateLimitStatus, bool) {
	limit := g.runtime.Int(ctx, "max_actions_per_hour")
	now := time.Now()

	used, err := g.store.ActionsInWindow(ctx, now)
	if err != nil {
		used = g.localActionsInWindow(now)
	}

	status := models.RateLimitStatus{Limit: limit, Used: used, Remaining: limit - used}
	if status.Remaining < 0 {
		status.Remaining = 0
	}
	metrics.RateLimitRemaining.Set(float64(status.Remaining))
	return status, used >= limit
}

func (g *Gateway) localActionsInWindow(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	cutoff := now.Add(-time.Hour)
	kept := g.recent[:0]
	for _, t := range g.recent {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	g.recent = kept
	return len(g.recent)
}

// record counts the action against the rate limit and appends audit
// entries to both Redis and the in-memory ring. Failed executions are
// audited but do not consume budget.
func (g *Gateway) record(ctx context.Context, req ActionRequest, detail string, execErr error) {
	now := time.Now()
	if execErr == nil {
		if err := g.store.RecordAction(ctx, req.Action, now); err != nil {
			g.mu.Lock()
			g.recent = append(g.recent, now)
			g.mu.Unlock()
		}
	}

	entry := models.AuditEntry{
		Timestamp: now.UTC(),
		Action:    req.Action,
		Namespace: req.Namespace,
		Resource:  req.Resource,
		Success:   execErr == nil,
		Detail:    detail,
	}
	if execErr != nil {
		entry.Error = execErr.Error()
	}
	if err := g.store.AppendAudit(ctx, entry); err != nil && !store.IsUnavailable(err) {
		slog.Warn("Failed to persist audit entry", "error", err)
	}

	g.mu.Lock()
	g.audit = append(g.audit, entry)
	if len(g.audit) > auditRingMax {
		g.audit = g.audit[len(g.audit)-auditRingMax:]
	}
	g.mu.Unlock()
}

// AuditLog returns the most recent n entries, newest first, preferring
// the durable log.
func (g *Gateway) AuditLog(ctx context.Context, n int) []models.AuditEntry {
	if entries, err := g.store.AuditLog(ctx, n); err == nil {
		return entries
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if n <= 0 || n > len(g.audit) {
		n = len(g.audit)
	}
	out := make([]models.AuditEntry, 0, n)
	for i := len(g.audit) - 1; i >= len(g.audit)-n; i-- {
		out = append(out, g.audit[i])
	}
	return out
}

// RateLimitStatus reports the current budget without consuming it.
func (g *Gateway) RateLimitStatus(ctx context.Context) models.RateLimitStatus {
	status, _ := g.checkRateLimit(ctx)
	return status
}

func intParam(params map[string]any, key string) (int, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func stringParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}
