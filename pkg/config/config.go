// Package config loads and validates Cluster Guardian configuration.
//
// Configuration comes from three layers, lowest priority first:
//  1. built-in defaults
//  2. guardian.yaml in the config directory (with ${ENV} expansion)
//  3. CLUSTER_GUARDIAN_* environment variables
//
// A fourth layer, operator overrides written at runtime, lives in the
// RuntimeStore and is read per-use so edits take effect within one loop
// iteration.
package config

import (
	"time"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "CLUSTER_GUARDIAN_"

// Settings is the complete static configuration of the service.
type Settings struct {
	// HTTP surface
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Debug bool   `yaml:"debug"`

	// Allowed WebSocket origins. Empty list accepts any origin.
	AllowedWSOrigins []string `yaml:"allowed_ws_origins"`

	// LLM backend (OpenAI-compatible chat completions)
	LLMProvider    string `yaml:"llm_provider"`
	LLMBaseURL     string `yaml:"llm_base_url"`
	LLMModel       string `yaml:"llm_model"`
	LLMAPIKey      string `yaml:"llm_api_key"`
	EmbeddingModel string `yaml:"embedding_model"`

	// Kubernetes
	KubeconfigPath string `yaml:"kubeconfig_path"`

	// Action gateway policy
	ProtectedNamespaces []string `yaml:"protected_namespaces"`
	MaxActionsPerHour   int      `yaml:"max_actions_per_hour"`
	RequireApprovalFor  []string `yaml:"require_approval_for"`

	// Monitor cadence
	ScanIntervalSeconds      int  `yaml:"scan_interval_seconds"`
	FastLoopIntervalSeconds  int  `yaml:"fast_loop_interval_seconds"`
	EventWatchEnabled        bool `yaml:"event_watch_enabled"`
	AnomalySuppressionWindow int  `yaml:"anomaly_suppression_window"`
	AnomalyBatchWindow       int  `yaml:"anomaly_batch_window"`
	LogAnomalyMinCount       int  `yaml:"log_anomaly_min_count"`
	LogAnomalyWindow         string `yaml:"log_anomaly_window"`

	// Incident correlator
	CorrelationWindowSeconds   int `yaml:"correlation_window_seconds"`
	CorrelationDebounceSeconds int `yaml:"correlation_debounce_seconds"`
	CorrelationExpirySeconds   int `yaml:"correlation_expiry_seconds"`

	// Self-tuner / long-term pipeline
	EscalationThreshold   int    `yaml:"escalation_threshold"`
	AutoEscalateRecurring bool   `yaml:"auto_escalate_recurring"`
	DevControllerURL      string `yaml:"dev_controller_url"`
	DevControllerEnabled  bool   `yaml:"dev_controller_enabled"`

	// Agent
	MaxAgentIterations int `yaml:"max_agent_iterations"`

	// Quorum gate
	QuorumEnabled   bool    `yaml:"quorum_enabled"`
	QuorumAgents    int     `yaml:"quorum_agents"`
	QuorumThreshold float64 `yaml:"quorum_threshold"`

	// Quiet hours ("HH:MM", IANA timezone)
	QuietHoursStart string `yaml:"quiet_hours_start"`
	QuietHoursEnd   string `yaml:"quiet_hours_end"`
	QuietHoursTZ    string `yaml:"quiet_hours_tz"`

	// External backends
	PrometheusURL   string `yaml:"prometheus_url"`
	LokiURL         string `yaml:"loki_url"`
	GatusURL        string `yaml:"gatus_url"`
	LonghornURL     string `yaml:"longhorn_url"`
	K8sGPTURL       string `yaml:"k8sgpt_url"`
	K8sGPTEnabled   bool   `yaml:"k8sgpt_enabled"`
	CrowdSecLAPIURL string `yaml:"crowdsec_lapi_url"`
	CrowdSecAPIKey  string `yaml:"crowdsec_api_key"`
	RedisURL        string `yaml:"redis_url"`

	// Base domain for deep health checks on exposed services. Empty disables
	// the domain-dependent checks.
	Domain string `yaml:"domain"`

	// Notifications
	SlackWebhookURL         string `yaml:"slack_webhook_url"`
	NotificationChannel     string `yaml:"notification_channel"`
	DiscordWebhookURL       string `yaml:"discord_webhook_url"`
	TeamsWebhookURL         string `yaml:"teams_webhook_url"`
	PagerDutyIntegrationKey string `yaml:"pagerduty_integration_key"`
	CustomWebhookURL        string `yaml:"custom_webhook_url"`
	CustomWebhookMethod     string `yaml:"custom_webhook_method"`
	CustomWebhookHeaders    string `yaml:"custom_webhook_headers"`

	// GitHub remediation PRs
	GitHubToken      string `yaml:"github_token"`
	GitHubOwner      string `yaml:"github_owner"`
	GitHubRepo       string `yaml:"github_repo"`
	GitHubBaseBranch string `yaml:"github_base_branch"`
}

// ScanInterval returns the periodic scan interval as a duration.
func (s *Settings) ScanInterval() time.Duration {
	return time.Duration(s.ScanIntervalSeconds) * time.Second
}

// FastLoopInterval returns the monitor fast-loop interval as a duration.
func (s *Settings) FastLoopInterval() time.Duration {
	return time.Duration(s.FastLoopIntervalSeconds) * time.Second
}

// SuppressionWindow returns the anomaly suppression window as a duration.
func (s *Settings) SuppressionWindow() time.Duration {
	return time.Duration(s.AnomalySuppressionWindow) * time.Second
}

// BatchWindow returns the anomaly batch window as a duration.
func (s *Settings) BatchWindow() time.Duration {
	return time.Duration(s.AnomalyBatchWindow) * time.Second
}

// IsProtectedNamespace reports whether ns is in the protected set.
func (s *Settings) IsProtectedNamespace(ns string) bool {
	for _, p := range s.ProtectedNamespaces {
		if p == ns {
			return true
		}
	}
	return false
}

// RequiresApproval reports whether the named action is approval-gated.
func (s *Settings) RequiresApproval(action string) bool {
	for _, a := range s.RequireApprovalFor {
		if a == action {
			return true
		}
	}
	return false
}
