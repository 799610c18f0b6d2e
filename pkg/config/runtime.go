package config

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// runtimeConfigKey is the Redis hash holding operator overrides.
const runtimeConfigKey = "guardian:config"

// valueKind is the declared type of a runtime-overridable option.
type valueKind int

const (
	kindInt valueKind = iota
	kindFloat
	kindBool
	kindString
)

// runtimeSchema lists every option an operator may override at runtime.
// Writes for unknown keys or wrong types are rejected.
var runtimeSchema = map[string]valueKind{
	"fast_loop_interval_seconds":   kindInt,
	"scan_interval_seconds":        kindInt,
	"max_actions_per_hour":         kindInt,
	"anomaly_suppression_window":   kindInt,
	"anomaly_batch_window":         kindInt,
	"event_watch_enabled":          kindBool,
	"log_anomaly_min_count":        kindInt,
	"correlation_window_seconds":   kindInt,
	"correlation_debounce_seconds": kindInt,
	"correlation_expiry_seconds":   kindInt,
	"escalation_threshold":         kindInt,
	"auto_escalate_recurring":      kindBool,
	"max_agent_iterations":         kindInt,
	"quorum_enabled":               kindBool,
	"quorum_agents":                kindInt,
	"quorum_threshold":             kindFloat,
	"quiet_hours_start":            kindString,
	"quiet_hours_end":              kindString,
	"quiet_hours_tz":               kindString,
}

// RuntimeStore exposes runtime-overridable options. Overrides live in a
// Redis hash and win over the static Settings value; every read goes to
// Redis so operator edits take effect within one loop iteration. Without
// Redis the store degrades to the static defaults.
type RuntimeStore struct {
	rdb *redis.Client
	cfg *Settings
}

// NewRuntimeStore creates a runtime store. rdb may be nil, in which case
// all reads return the static default and writes fail.
func NewRuntimeStore(rdb *redis.Client, cfg *Settings) *RuntimeStore {
	return &RuntimeStore{rdb: rdb, cfg: cfg}
}

// Get returns the effective value for key: the override when present and
// parseable, else the static default. Unknown keys are an error.
func (s *RuntimeStore) Get(ctx context.Context, key string) (any, error) {
	kind, ok := runtimeSchema[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key %q", key)
	}

	def := s.defaultFor(key)
	if s.rdb == nil {
		return def, nil
	}

	raw, err := s.rdb.HGet(ctx, runtimeConfigKey, key).Result()
	if err == redis.Nil {
		return def, nil
	}
	if err != nil {
		slog.Debug("Runtime config read failed, using default", "key", key, "error", err)
		return def, nil
	}

	v, err := parseValue(kind, raw)
	if err != nil {
		slog.Warn("Runtime config override is malformed, using default", "key", key, "value", raw)
		return def, nil
	}
	return v, nil
}

// Set validates and stores an override.
func (s *RuntimeStore) Set(ctx context.Context, key string, value any) error {
	kind, ok := runtimeSchema[key]
	if !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	serialized, err := serializeValue(kind, value)
	if err != nil {
		return fmt.Errorf("invalid value for %q: %w", key, err)
	}
	if s.rdb == nil {
		return fmt.Errorf("runtime config store unavailable")
	}
	if err := s.rdb.HSet(ctx, runtimeConfigKey, key, serialized).Err(); err != nil {
		return fmt.Errorf("failed to store config override %q: %w", key, err)
	}
	slog.Info("Runtime config override set", "key", key, "value", serialized)
	return nil
}

// All returns the effective value of every known key.
func (s *RuntimeStore) All(ctx context.Context) map[string]any {
	out := make(map[string]any, len(runtimeSchema))
	for key := range runtimeSchema {
		v, err := s.Get(ctx, key)
		if err != nil {
			continue
		}
		out[key] = v
	}
	return out
}

// Reset removes the override for key, restoring the static default.
func (s *RuntimeStore) Reset(ctx context.Context, key string) error {
	if _, ok := runtimeSchema[key]; !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	if s.rdb == nil {
		return nil
	}
	return s.rdb.HDel(ctx, runtimeConfigKey, key).Err()
}

// ResetAll removes every override.
func (s *RuntimeStore) ResetAll(ctx context.Context) error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Del(ctx, runtimeConfigKey).Err()
}

// Int returns the effective integer value for key, falling back to the
// static default on any failure.
func (s *RuntimeStore) Int(ctx context.Context, key string) int {
	v, err := s.Get(ctx, key)
	if err != nil {
		return 0
	}
	if n, ok := v.(int); ok {
		return n
	}
	return 0
}

// Bool returns the effective boolean value for key.
func (s *RuntimeStore) Bool(ctx context.Context, key string) bool {
	v, err := s.Get(ctx, key)
	if err != nil {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Float returns the effective float value for key.
func (s *RuntimeStore) Float(ctx context.Context, key string) float64 {
	v, err := s.Get(ctx, key)
	if err != nil {
		return 0
	}
	f, _ := v.(float64)
	return f
}

// String returns the effective string value for key.
func (s *RuntimeStore) String(ctx context.Context, key string) string {
	v, err := s.Get(ctx, key)
	if err != nil {
		return ""
	}
	str, _ := v.(string)
	return str
}

func (s *RuntimeStore) defaultFor(key string) any {
	switch key {
	case "fast_loop_interval_seconds":
		return s.cfg.FastLoopIntervalSeconds
	case "scan_interval_seconds":
		return s.cfg.ScanIntervalSeconds
	case "max_actions_per_hour":
		return s.cfg.MaxActionsPerHour
	case "anomaly_suppression_window":
		return s.cfg.AnomalySuppressionWindow
	case "anomaly_batch_window":
		return s.cfg.AnomalyBatchWindow
	case "event_watch_enabled":
		return s.cfg.EventWatchEnabled
	case "log_anomaly_min_count":
		return s.cfg.LogAnomalyMinCount
	case "correlation_window_seconds":
		return s.cfg.CorrelationWindowSeconds
	case "correlation_debounce_seconds":
		return s.cfg.CorrelationDebounceSeconds
	case "correlation_expiry_seconds":
		return s.cfg.CorrelationExpirySeconds
	case "escalation_threshold":
		return s.cfg.EscalationThreshold
	case "auto_escalate_recurring":
		return s.cfg.AutoEscalateRecurring
	case "max_agent_iterations":
		return s.cfg.MaxAgentIterations
	case "quorum_enabled":
		return s.cfg.QuorumEnabled
	case "quorum_agents":
		return s.cfg.QuorumAgents
	case "quorum_threshold":
		return s.cfg.QuorumThreshold
	case "quiet_hours_start":
		return s.cfg.QuietHoursStart
	case "quiet_hours_end":
		return s.cfg.QuietHoursEnd
	case "quiet_hours_tz":
		return s.cfg.QuietHoursTZ
	}
	return nil
}

func parseValue(kind valueKind, raw string) (any, error) {
	switch kind {
	case kindInt:
		return strconv.Atoi(raw)
	case kindFloat:
		return strconv.ParseFloat(raw, 64)
	case kindBool:
		return strconv.ParseBool(raw)
	default:
		return raw, nil
	}
}

func serializeValue(kind valueKind, value any) (string, error) {
	switch kind {
	case kindInt:
		switch v := value.(type) {
		case int:
			return strconv.Itoa(v), nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		case float64:
			// JSON numbers decode as float64; accept integral values.
			if v == float64(int64(v)) {
				return strconv.FormatInt(int64(v), 10), nil
			}
			return "", fmt.Errorf("expected integer, got %v", v)
		default:
			return "", fmt.Errorf("expected integer, got %T", value)
		}
	case kindFloat:
		switch v := value.(type) {
		case float64:
			return strconv.FormatFloat(v, 'g', -1, 64), nil
		case int:
			return strconv.Itoa(v), nil
		default:
			return "", fmt.Errorf("expected number, got %T", value)
		}
	case kindBool:
		if v, ok := value.(bool); ok {
			return strconv.FormatBool(v), nil
		}
		return "", fmt.Errorf("expected boolean, got %T", value)
	default:
		if v, ok := value.(string); ok {
			return v, nil
		}
		return "", fmt.Errorf("expected string, got %T", value)
	}
}
