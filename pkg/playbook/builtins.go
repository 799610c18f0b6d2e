package playbook

// builtins returns the built-in remediation procedures.
func builtins() []Playbook {
	return []Playbook{
		{
			Name:        "crashloop-restart",
			Description: "Container stuck in CrashLoopBackOff",
			Match: []MatchRule{
				{Field: "source", Op: OpEquals, Value: "crashloop"},
			},
			Steps: []Step{
				{Action: "get_pod_logs", Args: map[string]string{"namespace": "{{namespace}}", "pod": "{{pod}}"},
					Note: "look for the crash reason before acting"},
				{Action: "describe_pod", Args: map[string]string{"namespace": "{{namespace}}", "pod": "{{pod}}"}},
				{Action: "restart_pod", Args: map[string]string{"namespace": "{{namespace}}", "pod": "{{pod}}"},
					Note: "only if the logs show a transient failure"},
			},
			MaxAutoExecutions: 3,
		},
		{
			Name:        "oomkilled-bump",
			Description: "Container killed by the OOM killer",
			Match: []MatchRule{
				{Field: "message", Op: OpContains, Value: "oomkilled"},
			},
			Steps: []Step{
				{Action: "get_pod_metrics", Args: map[string]string{"namespace": "{{namespace}}", "pod": "{{pod}}"},
					Note: "compare working set to the configured limit"},
				{Action: "rollout_restart", Args: map[string]string{"namespace": "{{namespace}}", "deployment": "{{name}}"}},
				{Action: "create_remediation_pr",
					Note: "propose a higher memory limit if usage is consistently near the cap"},
			},
			MaxAutoExecutions: 3,
		},
		{
			Name:        "node-not-ready",
			Description: "Node reporting NotReady",
			Match: []MatchRule{
				{Field: "source", Op: OpEquals, Value: "node_condition"},
				{Field: "message", Op: OpContains, Value: "notready"},
			},
			Steps: []Step{
				{Action: "get_node_status", Args: map[string]string{"node": "{{name}}"}},
				{Action: "get_recent_events", Note: "check for kubelet or network failures"},
				{Action: "cordon_node", Args: map[string]string{"node": "{{name}}"},
					Note: "requires approval; prevents new pods landing on a flapping node"},
			},
			MaxAutoExecutions: 2,
		},
		{
			Name:        "cert-expiring",
			Description: "TLS certificate close to expiry or failing renewal",
			Match: []MatchRule{
				{Field: "source", Op: OpEquals, Value: "certificate"},
			},
			Steps: []Step{
				{Action: "check_certificates", Note: "confirm which certificate and how long is left"},
				{Action: "get_recent_events", Args: map[string]string{"namespace": "{{namespace}}"},
					Note: "cert-manager reports issuance errors as events"},
				{Action: "notify", Note: "renewal problems usually need issuer or DNS fixes outside the cluster"},
			},
			MaxAutoExecutions: 3,
		},
		{
			Name:        "volume-degraded",
			Description: "Replicated volume degraded or faulted",
			Match: []MatchRule{
				{Field: "source", Op: OpEquals, Value: "storage"},
			},
			Steps: []Step{
				{Action: "check_storage_health", Note: "identify the degraded volume and its node"},
				{Action: "get_node_status", Note: "a down storage node is the usual cause"},
				{Action: "notify", Note: "replica rebuilds are automatic; alert only if rebuild stalls"},
			},
			MaxAutoExecutions: 3,
		},
		{
			Name:        "high-error-rate",
			Description: "Service error rate spike",
			Match: []MatchRule{
				{Field: "message", Op: OpRegex, Value: "(?i)(error rate|5xx|http 5\\d\\d)"},
			},
			Steps: []Step{
				{Action: "get_error_rate", Args: map[string]string{"namespace": "{{namespace}}"}},
				{Action: "search_logs", Args: map[string]string{"namespace": "{{namespace}}"},
					Note: "find the dominant error"},
				{Action: "rollback_deployment", Args: map[string]string{"namespace": "{{namespace}}", "deployment": "{{name}}"},
					Note: "only if the spike started right after a rollout"},
			},
			MaxAutoExecutions: 2,
		},
		{
			Name:        "failed-jobs",
			Description: "Job with failed completions",
			Match: []MatchRule{
				{Field: "message", Op: OpContains, Value: "failed job"},
			},
			Steps: []Step{
				{Action: "get_failed_jobs", Args: map[string]string{"namespace": "{{namespace}}"}},
				{Action: "get_pod_logs", Note: "read the failing pod's output"},
				{Action: "delete_job", Args: map[string]string{"namespace": "{{namespace}}", "job": "{{name}}"},
					Note: "clear the failed job so the cronjob can retry cleanly"},
			},
			MaxAutoExecutions: 3,
		},
	}
}
