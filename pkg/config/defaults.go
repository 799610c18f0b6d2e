package config

// defaultSettings returns the built-in configuration defaults. YAML and
// environment overrides are merged on top.
func defaultSettings() *Settings {
	return &Settings{
		Host: "0.0.0.0",
		Port: 8900,

		LLMProvider:    "openai",
		LLMModel:       "gpt-4o",
		EmbeddingModel: "text-embedding-3-small",

		ProtectedNamespaces: []string{
			"kube-system",
			"kube-public",
			"kube-node-lease",
			"longhorn-system",
			"calico-system",
			"tigera-operator",
		},
		MaxActionsPerHour: 30,
		RequireApprovalFor: []string{
			"delete_pvc",
			"cordon_node",
			"drain_node",
			"scale_to_zero",
		},

		ScanIntervalSeconds:      300,
		FastLoopIntervalSeconds:  30,
		EventWatchEnabled:        true,
		AnomalySuppressionWindow: 300,
		AnomalyBatchWindow:       10,
		LogAnomalyMinCount:       10,
		LogAnomalyWindow:         "5m",

		CorrelationWindowSeconds:   300,
		CorrelationDebounceSeconds: 30,
		CorrelationExpirySeconds:   3600,

		EscalationThreshold:   3,
		AutoEscalateRecurring: true,

		MaxAgentIterations: 25,

		QuorumEnabled:   true,
		QuorumAgents:    3,
		QuorumThreshold: 0.5,

		QuietHoursTZ: "UTC",

		PrometheusURL:   "http://prometheus-kube-prometheus-prometheus.prometheus.svc.cluster.local:9090",
		LokiURL:         "http://loki-gateway.loki.svc.cluster.local:80",
		LonghornURL:     "http://longhorn-frontend.longhorn-system.svc.cluster.local:8000",
		CrowdSecLAPIURL: "http://crowdsec-lapi.crowdsec.svc.cluster.local:8080",

		CustomWebhookMethod: "POST",
		GitHubBaseBranch:    "main",
	}
}
