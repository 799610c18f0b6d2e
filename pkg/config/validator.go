package config

import (
	"fmt"
	"regexp"
	"time"
)

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// validate checks option ranges and cross-field consistency. Fatal at
// startup; runtime overrides are validated separately by the RuntimeStore.
func validate(cfg *Settings) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be in [1, 65535], got %d", cfg.Port)
	}
	if cfg.MaxActionsPerHour < 0 {
		return fmt.Errorf("max_actions_per_hour must be >= 0, got %d", cfg.MaxActionsPerHour)
	}
	if cfg.FastLoopIntervalSeconds < 1 {
		return fmt.Errorf("fast_loop_interval_seconds must be >= 1, got %d", cfg.FastLoopIntervalSeconds)
	}
	if cfg.ScanIntervalSeconds < 1 {
		return fmt.Errorf("scan_interval_seconds must be >= 1, got %d", cfg.ScanIntervalSeconds)
	}
	if cfg.AnomalySuppressionWindow < 0 {
		return fmt.Errorf("anomaly_suppression_window must be >= 0, got %d", cfg.AnomalySuppressionWindow)
	}
	if cfg.CorrelationDebounceSeconds < 0 {
		return fmt.Errorf("correlation_debounce_seconds must be >= 0, got %d", cfg.CorrelationDebounceSeconds)
	}
	if cfg.MaxAgentIterations < 2 {
		return fmt.Errorf("max_agent_iterations must be >= 2, got %d", cfg.MaxAgentIterations)
	}
	if cfg.QuorumAgents < 1 {
		return fmt.Errorf("quorum_agents must be >= 1, got %d", cfg.QuorumAgents)
	}
	if cfg.QuorumThreshold < 0 || cfg.QuorumThreshold >= 1 {
		return fmt.Errorf("quorum_threshold must be in [0, 1), got %g", cfg.QuorumThreshold)
	}
	if cfg.EscalationThreshold < 1 {
		return fmt.Errorf("escalation_threshold must be >= 1, got %d", cfg.EscalationThreshold)
	}

	// Quiet hours: both ends or neither, HH:MM, resolvable timezone.
	if (cfg.QuietHoursStart == "") != (cfg.QuietHoursEnd == "") {
		return fmt.Errorf("quiet_hours_start and quiet_hours_end must be set together")
	}
	if cfg.QuietHoursStart != "" {
		if !clockPattern.MatchString(cfg.QuietHoursStart) {
			return fmt.Errorf("quiet_hours_start must be HH:MM, got %q", cfg.QuietHoursStart)
		}
		if !clockPattern.MatchString(cfg.QuietHoursEnd) {
			return fmt.Errorf("quiet_hours_end must be HH:MM, got %q", cfg.QuietHoursEnd)
		}
		if _, err := time.LoadLocation(cfg.QuietHoursTZ); err != nil {
			return fmt.Errorf("quiet_hours_tz %q is not a valid timezone: %w", cfg.QuietHoursTZ, err)
		}
	}

	if cfg.DevControllerEnabled && cfg.DevControllerURL == "" {
		return fmt.Errorf("dev_controller_url is required when dev_controller_enabled is true")
	}
	if cfg.K8sGPTEnabled && cfg.K8sGPTURL == "" {
		return fmt.Errorf("k8sgpt_url is required when k8sgpt_enabled is true")
	}

	return nil
}
