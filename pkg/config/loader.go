package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Initialize loads, merges, and validates configuration.
//
// Steps performed:
//  1. Read guardian.yaml from configDir (optional)
//  2. Expand ${VAR} environment references in the raw YAML
//  3. Parse into Settings
//  4. Merge built-in defaults underneath
//  5. Apply CLUSTER_GUARDIAN_* environment overrides on top
//  6. Validate
func Initialize(configDir string) (*Settings, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg := &Settings{}

	path := filepath.Join(configDir, "guardian.yaml")
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded := expandEnv(string(raw))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		log.Info("Loaded configuration file", "path", path)
	case errors.Is(err, os.ErrNotExist):
		log.Info("No guardian.yaml found, using defaults and environment")
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := mergo.Merge(cfg, defaultSettings()); err != nil {
		return nil, fmt.Errorf("failed to merge defaults: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized",
		"port", cfg.Port,
		"protected_namespaces", len(cfg.ProtectedNamespaces),
		"quorum_enabled", cfg.QuorumEnabled,
		"event_watch_enabled", cfg.EventWatchEnabled)
	return cfg, nil
}

// expandEnv replaces ${VAR} references with environment values. Unset
// variables expand to the empty string, matching shell semantics.
func expandEnv(s string) string {
	return os.Expand(s, os.Getenv)
}

// applyEnvOverrides overlays CLUSTER_GUARDIAN_* environment variables.
// List-valued options are comma-separated.
func applyEnvOverrides(cfg *Settings) {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			} else {
				slog.Warn("Ignoring non-integer environment override", "key", EnvPrefix+key, "value", v)
			}
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			} else {
				slog.Warn("Ignoring non-boolean environment override", "key", EnvPrefix+key, "value", v)
			}
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			} else {
				slog.Warn("Ignoring non-numeric environment override", "key", EnvPrefix+key, "value", v)
			}
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			parts := strings.Split(v, ",")
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			*dst = out
		}
	}

	str("HOST", &cfg.Host)
	integer("PORT", &cfg.Port)
	boolean("DEBUG", &cfg.Debug)
	list("ALLOWED_WS_ORIGINS", &cfg.AllowedWSOrigins)

	str("LLM_PROVIDER", &cfg.LLMProvider)
	str("LLM_BASE_URL", &cfg.LLMBaseURL)
	str("LLM_MODEL", &cfg.LLMModel)
	str("LLM_API_KEY", &cfg.LLMAPIKey)
	str("EMBEDDING_MODEL", &cfg.EmbeddingModel)

	str("KUBECONFIG_PATH", &cfg.KubeconfigPath)

	list("PROTECTED_NAMESPACES", &cfg.ProtectedNamespaces)
	integer("MAX_ACTIONS_PER_HOUR", &cfg.MaxActionsPerHour)
	list("REQUIRE_APPROVAL_FOR", &cfg.RequireApprovalFor)

	integer("SCAN_INTERVAL_SECONDS", &cfg.ScanIntervalSeconds)
	integer("FAST_LOOP_INTERVAL_SECONDS", &cfg.FastLoopIntervalSeconds)
	boolean("EVENT_WATCH_ENABLED", &cfg.EventWatchEnabled)
	integer("ANOMALY_SUPPRESSION_WINDOW", &cfg.AnomalySuppressionWindow)
	integer("ANOMALY_BATCH_WINDOW", &cfg.AnomalyBatchWindow)
	integer("LOG_ANOMALY_MIN_COUNT", &cfg.LogAnomalyMinCount)
	str("LOG_ANOMALY_WINDOW", &cfg.LogAnomalyWindow)

	integer("CORRELATION_WINDOW_SECONDS", &cfg.CorrelationWindowSeconds)
	integer("CORRELATION_DEBOUNCE_SECONDS", &cfg.CorrelationDebounceSeconds)
	integer("CORRELATION_EXPIRY_SECONDS", &cfg.CorrelationExpirySeconds)

	integer("ESCALATION_THRESHOLD", &cfg.EscalationThreshold)
	boolean("AUTO_ESCALATE_RECURRING", &cfg.AutoEscalateRecurring)
	str("DEV_CONTROLLER_URL", &cfg.DevControllerURL)
	boolean("DEV_CONTROLLER_ENABLED", &cfg.DevControllerEnabled)

	integer("MAX_AGENT_ITERATIONS", &cfg.MaxAgentIterations)

	boolean("QUORUM_ENABLED", &cfg.QuorumEnabled)
	integer("QUORUM_AGENTS", &cfg.QuorumAgents)
	float("QUORUM_THRESHOLD", &cfg.QuorumThreshold)

	str("QUIET_HOURS_START", &cfg.QuietHoursStart)
	str("QUIET_HOURS_END", &cfg.QuietHoursEnd)
	str("QUIET_HOURS_TZ", &cfg.QuietHoursTZ)

	str("PROMETHEUS_URL", &cfg.PrometheusURL)
	str("LOKI_URL", &cfg.LokiURL)
	str("GATUS_URL", &cfg.GatusURL)
	str("LONGHORN_URL", &cfg.LonghornURL)
	str("K8SGPT_URL", &cfg.K8sGPTURL)
	boolean("K8SGPT_ENABLED", &cfg.K8sGPTEnabled)
	str("CROWDSEC_LAPI_URL", &cfg.CrowdSecLAPIURL)
	str("CROWDSEC_API_KEY", &cfg.CrowdSecAPIKey)
	str("REDIS_URL", &cfg.RedisURL)
	str("DOMAIN", &cfg.Domain)

	str("SLACK_WEBHOOK_URL", &cfg.SlackWebhookURL)
	str("NOTIFICATION_CHANNEL", &cfg.NotificationChannel)
	str("DISCORD_WEBHOOK_URL", &cfg.DiscordWebhookURL)
	str("TEAMS_WEBHOOK_URL", &cfg.TeamsWebhookURL)
	str("PAGERDUTY_INTEGRATION_KEY", &cfg.PagerDutyIntegrationKey)
	str("CUSTOM_WEBHOOK_URL", &cfg.CustomWebhookURL)
	str("CUSTOM_WEBHOOK_METHOD", &cfg.CustomWebhookMethod)
	str("CUSTOM_WEBHOOK_HEADERS", &cfg.CustomWebhookHeaders)

	str("GITHUB_TOKEN", &cfg.GitHubToken)
	str("GITHUB_OWNER", &cfg.GitHubOwner)
	str("GITHUB_REPO", &cfg.GitHubRepo)
	str("GITHUB_BASE_BRANCH", &cfg.GitHubBaseBranch)
}
