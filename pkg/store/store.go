// Package store is the Redis-backed durable state of the service: the
// action rate-limit window, the audit log, pending approvals, issue
// pattern counters, and escalation cooldowns.
//
// Every operation tolerates an unavailable Redis: reads return zero
// values and writes report an error the caller may ignore. Callers that
// need an in-process fallback (the rate limiter does) check Available.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
)

// Redis keys.
const (
	rateLimitKey     = "guardian:rate_limit"
	auditLogKey      = "guardian:audit_log"
	approvalsKey     = "guardian:approvals"
	issuePatternsKey = "guardian:issue_patterns"
	escalatedPrefix  = "guardian:escalated:"
	lastScanKey      = "guardian:last_scan"
)

const (
	// auditLogMax bounds the persisted audit log.
	auditLogMax = 500
	// rateLimitTTL expires the rate-limit set well past the sliding hour.
	rateLimitTTL = 2 * time.Hour
	// escalationCooldown prevents re-escalating the same pattern for a day.
	escalationCooldown = 24 * time.Hour
)

// Store wraps a Redis client with the guardian's key schema.
type Store struct {
	rdb *redis.Client
}

// New connects to Redis at the given URL ("redis://host:port/db"). An
// empty URL returns a store with no backend; all operations degrade.
func New(url string) (*Store, error) {
	if url == "" {
		slog.Warn("No Redis URL configured, durable state disabled")
		return &Store{}, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return &Store{rdb: redis.NewClient(opts)}, nil
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Client exposes the underlying Redis client, nil when unavailable.
// The runtime config store and vector memory share the connection.
func (s *Store) Client() *redis.Client {
	return s.rdb
}

// Available reports whether Redis answers a ping.
func (s *Store) Available(ctx context.Context) bool {
	if s.rdb == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.rdb.Ping(ctx).Err() == nil
}

// Close releases the connection.
func (s *Store) Close() error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// RecordAction appends an action to the sliding rate-limit window.
func (s *Store) RecordAction(ctx context.Context, action string, at time.Time) error {
	if s.rdb == nil {
		return errUnavailable
	}
	member := fmt.Sprintf("%s|%s", at.UTC().Format(time.RFC3339Nano), action)
	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, rateLimitKey, redis.Z{Score: float64(at.Unix()), Member: member})
	pipe.Expire(ctx, rateLimitKey, rateLimitTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// ActionsInWindow counts actions recorded within the last hour, pruning
// expired members as a side effect.
func (s *Store) ActionsInWindow(ctx context.Context, now time.Time) (int, error) {
	if s.rdb == nil {
		return 0, errUnavailable
	}
	cutoff := now.Add(-time.Hour).Unix()
	if err := s.rdb.ZRemRangeByScore(ctx, rateLimitKey, "-inf", fmt.Sprintf("(%d", cutoff)).Err(); err != nil {
		return 0, err
	}
	n, err := s.rdb.ZCount(ctx, rateLimitKey, fmt.Sprintf("%d", cutoff), "+inf").Result()
	return int(n), err
}

// AppendAudit persists an audit entry, trimming the log to its cap.
func (s *Store) AppendAudit(ctx context.Context, entry models.AuditEntry) error {
	if s.rdb == nil {
		return errUnavailable
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, auditLogKey, raw)
	pipe.LTrim(ctx, auditLogKey, 0, auditLogMax-1)
	_, err = pipe.Exec(ctx)
	return err
}

// AuditLog returns the most recent n entries, newest first.
func (s *Store) AuditLog(ctx context.Context, n int) ([]models.AuditEntry, error) {
	if s.rdb == nil {
		return nil, errUnavailable
	}
	if n <= 0 || n > auditLogMax {
		n = auditLogMax
	}
	raws, err := s.rdb.LRange(ctx, auditLogKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]models.AuditEntry, 0, len(raws))
	for _, raw := range raws {
		var e models.AuditEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			slog.Warn("Skipping malformed audit entry", "error", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// SaveApproval persists an approval request or decision.
func (s *Store) SaveApproval(ctx context.Context, a models.Approval) error {
	if s.rdb == nil {
		return errUnavailable
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, approvalsKey, a.ID, raw).Err()
}

// Approval loads one approval by id. Returns (nil, nil) when absent.
func (s *Store) Approval(ctx context.Context, id string) (*models.Approval, error) {
	if s.rdb == nil {
		return nil, errUnavailable
	}
	raw, err := s.rdb.HGet(ctx, approvalsKey, id).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var a models.Approval
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil, fmt.Errorf("malformed approval %s: %w", id, err)
	}
	return &a, nil
}

// Approvals returns every stored approval.
func (s *Store) Approvals(ctx context.Context) ([]models.Approval, error) {
	if s.rdb == nil {
		return nil, errUnavailable
	}
	raws, err := s.rdb.HGetAll(ctx, approvalsKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.Approval, 0, len(raws))
	for id, raw := range raws {
		var a models.Approval
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			slog.Warn("Skipping malformed approval", "id", id, "error", err)
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// SavePattern upserts an issue pattern counter.
func (s *Store) SavePattern(ctx context.Context, p models.IssuePattern) error {
	if s.rdb == nil {
		return errUnavailable
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, issuePatternsKey, p.Key, raw).Err()
}

// Pattern loads one pattern by key. Returns (nil, nil) when absent.
func (s *Store) Pattern(ctx context.Context, key string) (*models.IssuePattern, error) {
	if s.rdb == nil {
		return nil, errUnavailable
	}
	raw, err := s.rdb.HGet(ctx, issuePatternsKey, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p models.IssuePattern
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("malformed pattern %s: %w", key, err)
	}
	return &p, nil
}

// Patterns returns every tracked pattern.
func (s *Store) Patterns(ctx context.Context) ([]models.IssuePattern, error) {
	if s.rdb == nil {
		return nil, errUnavailable
	}
	raws, err := s.rdb.HGetAll(ctx, issuePatternsKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.IssuePattern, 0, len(raws))
	for key, raw := range raws {
		var p models.IssuePattern
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			slog.Warn("Skipping malformed pattern", "key", key, "error", err)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// MarkEscalated sets the escalation cooldown for a pattern key. Returns
// true when this call claimed the cooldown, false when one was already
// active.
func (s *Store) MarkEscalated(ctx context.Context, key string) (bool, error) {
	if s.rdb == nil {
		return false, errUnavailable
	}
	return s.rdb.SetNX(ctx, escalatedPrefix+key, time.Now().UTC().Format(time.RFC3339), escalationCooldown).Result()
}

// IsEscalated reports whether the cooldown for key is active.
func (s *Store) IsEscalated(ctx context.Context, key string) (bool, error) {
	if s.rdb == nil {
		return false, errUnavailable
	}
	n, err := s.rdb.Exists(ctx, escalatedPrefix+key).Result()
	return n > 0, err
}

// SetLastScan records the latest scan report for the status endpoint.
func (s *Store) SetLastScan(ctx context.Context, result models.InvestigationResult) error {
	if s.rdb == nil {
		return errUnavailable
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, lastScanKey, raw, 0).Err()
}

// LastScan returns the latest scan report, nil when none recorded.
func (s *Store) LastScan(ctx context.Context) (*models.InvestigationResult, error) {
	if s.rdb == nil {
		return nil, errUnavailable
	}
	raw, err := s.rdb.Get(ctx, lastScanKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var r models.InvestigationResult
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("malformed last scan record: %w", err)
	}
	return &r, nil
}
