package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/certmon"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/devloop"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/gatus"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/ghpr"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/healthcheck"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/k8sgpt"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/kube"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/loki"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/longhorn"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/memory"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/notify"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/playbook"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/promquery"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/security"
)

// Tool is one callable exposed to the model. Destructive tools are
// additionally gated by the quorum before execution.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Destructive bool
	Run         func(ctx context.Context, args map[string]any) (string, error)
}

// Deps bundles everything the tool surface reaches. Nil members are
// allowed; their tools report "not configured".
type Deps struct {
	Kube      *kube.Client
	Gateway   *kube.Gateway
	Prom      *promquery.Client
	Loki      *loki.Client
	Gatus     *gatus.Client
	K8sGPT    *k8sgpt.Client
	CrowdSec  *security.CrowdSecClient
	Longhorn  *longhorn.Client
	Certs     *certmon.Monitor
	Health    *healthcheck.Checker
	Memory    *memory.Memory
	Playbooks *playbook.Registry
	Notifier  *notify.Hub
	GitHub    *ghpr.Client
	Dev       *devloop.Client
}

// BuildTools assembles the full tool surface for the given deps.
func BuildTools(d Deps) []Tool {
	var tools []Tool
	tools = append(tools, clusterReadTools(d)...)
	tools = append(tools, metricTools(d)...)
	tools = append(tools, logTools(d)...)
	tools = append(tools, auxiliaryTools(d)...)
	tools = append(tools, memoryTools(d)...)
	tools = append(tools, actionTools(d)...)
	return tools
}

func clusterReadTools(d Deps) []Tool {
	return []Tool{
		{
			Name:        "get_crashlooping_pods",
			Description: "List containers in CrashLoopBackOff or with excessive restarts, cluster-wide.",
			Parameters:  params(nil),
			Run: func(ctx context.Context, _ map[string]any) (string, error) {
				return asJSON(d.Kube.CrashLoopingPods(ctx))
			},
		},
		{
			Name:        "get_node_problems",
			Description: "List NotReady nodes and nodes under memory, disk, or PID pressure.",
			Parameters:  params(nil),
			Run: func(ctx context.Context, _ map[string]any) (string, error) {
				return asJSON(d.Kube.NodeProblems(ctx))
			},
		},
		{
			Name:        "get_daemonset_problems",
			Description: "List daemonsets with fewer ready pods than desired.",
			Parameters:  params(nil),
			Run: func(ctx context.Context, _ map[string]any) (string, error) {
				return asJSON(d.Kube.DaemonSetProblems(ctx))
			},
		},
		{
			Name:        "get_deployment_problems",
			Description: "List deployments stuck below their desired replica count.",
			Parameters:  params(nil),
			Run: func(ctx context.Context, _ map[string]any) (string, error) {
				return asJSON(d.Kube.DeploymentProblems(ctx))
			},
		},
		{
			Name:        "get_failed_jobs",
			Description: "List jobs with failed completions, cluster-wide.",
			Parameters:  params(nil),
			Run: func(ctx context.Context, _ map[string]any) (string, error) {
				return asJSON(d.Kube.FailedJobs(ctx))
			},
		},
		{
			Name:        "get_pod_logs",
			Description: "Fetch the log tail of a pod's container through the API server.",
			Parameters: params(map[string]string{
				"namespace": "pod namespace",
				"pod":       "pod name",
				"container": "container name (optional)",
			}, "namespace", "pod"),
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				return d.Kube.PodLogs(ctx, argString(args, "namespace"),
					argString(args, "pod"), argString(args, "container"), 100)
			},
		},
		{
			Name:        "describe_pod",
			Description: "Describe a pod: phase, container states, restarts, and recent warning events.",
			Parameters: params(map[string]string{
				"namespace": "pod namespace",
				"pod":       "pod name",
			}, "namespace", "pod"),
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				return d.Kube.DescribePod(ctx, argString(args, "namespace"), argString(args, "pod"))
			},
		},
		{
			Name:        "list_pods",
			Description: "List pods with phase, readiness, and restart counts. Omit namespace for all.",
			Parameters: params(map[string]string{
				"namespace": "namespace to list, empty for all",
			}),
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				return asJSON(d.Kube.ListPods(ctx, argString(args, "namespace")))
			},
		},
		{
			Name:        "get_recent_events",
			Description: "List recent Kubernetes warning events, newest first.",
			Parameters: params(map[string]string{
				"namespace": "namespace to scope to, empty for all",
			}),
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				events, err := d.Kube.RecentEvents(ctx, argString(args, "namespace"), 30)
				if err != nil {
					return "", err
				}
				var b strings.Builder
				for _, ev := range events {
					fmt.Fprintf(&b, "%s %s/%s %s: %s\n", ev.LastTimestamp.Format(time.RFC3339),
						ev.InvolvedObject.Kind, ev.InvolvedObject.Name, ev.Reason, ev.Message)
				}
				if b.Len() == 0 {
					return "no recent warning events", nil
				}
				return b.String(), nil
			},
		},
		{
			Name:        "list_namespaces",
			Description: "List all namespace names in the cluster.",
			Parameters:  params(nil),
			Run: func(ctx context.Context, _ map[string]any) (string, error) {
				return asJSON(d.Kube.NamespaceNames(ctx))
			},
		},
	}
}

func metricTools(d Deps) []Tool {
	return []Tool{
		{
			Name:        "query_prometheus",
			Description: "Run an arbitrary PromQL instant query and return the result vector.",
			Parameters: params(map[string]string{
				"query": "PromQL expression",
			}, "query"),
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				if d.Prom == nil {
					return "prometheus not configured", nil
				}
				vec, err := d.Prom.Vector(ctx, argString(args, "query"))
				if err != nil {
					return "", err
				}
				return vec.String(), nil
			},
		},
		{
			Name:        "get_firing_alerts",
			Description: "List currently firing Prometheus alerts (excluding Watchdog).",
			Parameters:  params(nil),
			Run: func(ctx context.Context, _ map[string]any) (string, error) {
				if d.Prom == nil {
					return "prometheus not configured", nil
				}
				return asJSON(d.Prom.FiringAlerts(ctx))
			},
		},
		{
			Name:        "get_pod_cpu",
			Description: "Current CPU usage of a pod in cores.",
			Parameters: params(map[string]string{
				"namespace": "pod namespace",
				"pod":       "pod name",
			}, "namespace", "pod"),
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				if d.Prom == nil {
					return "prometheus not configured", nil
				}
				v, ok, err := d.Prom.PodCPU(ctx, argString(args, "namespace"), argString(args, "pod"))
				if err != nil {
					return "", err
				}
				if !ok {
					return "no CPU samples for this pod", nil
				}
				return fmt.Sprintf("%.3f cores", v), nil
			},
		},
		{
			Name:        "get_pod_memory",
			Description: "Current working-set memory of a pod in bytes.",
			Parameters: params(map[string]string{
				"namespace": "pod namespace",
				"pod":       "pod name",
			}, "namespace", "pod"),
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				if d.Prom == nil {
					return "prometheus not configured", nil
				}
				v, ok, err := d.Prom.PodMemory(ctx, argString(args, "namespace"), argString(args, "pod"))
				if err != nil {
					return "", err
				}
				if !ok {
					return "no memory samples for this pod", nil
				}
				return fmt.Sprintf("%.0f bytes", v), nil
			},
		},
		{
			Name:        "get_error_rate",
			Description: "Fraction of HTTP 5xx responses in a namespace over the last 5 minutes.",
			Parameters: params(map[string]string{
				"namespace": "namespace to measure",
			}, "namespace"),
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				if d.Prom == nil {
					return "prometheus not configured", nil
				}
				rate, err := d.Prom.ErrorRate(ctx, argString(args, "namespace"))
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%.2f%% of requests are 5xx", rate*100), nil
			},
		},
		{
			Name:        "get_latency_quantile",
			Description: "Request latency quantile for a namespace (e.g. 0.95).",
			Parameters: params(map[string]string{
				"namespace": "namespace to measure",
				"quantile":  "quantile between 0 and 1",
			}, "namespace"),
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				if d.Prom == nil {
					return "prometheus not configured", nil
				}
				quantile := argFloat(args, "quantile", 0.95)
				v, ok, err := d.Prom.LatencyQuantile(ctx, argString(args, "namespace"), quantile)
				if err != nil {
					return "", err
				}
				if !ok {
					return "no latency samples", nil
				}
				return fmt.Sprintf("p%.0f latency is %.3fs", quantile*100, v), nil
			},
		},
	}
}

func logTools(d Deps) []Tool {
	return []Tool{
		{
			Name:        "search_logs",
			Description: "Search namespace logs in Loki for errors, exceptions, and panics.",
			Parameters: params(map[string]string{
				"namespace": "namespace to search",
				"window":    "time window like 15m or 1h (default 15m)",
			}, "namespace"),
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				if d.Loki == nil {
					return "loki not configured", nil
				}
				window, err := loki.ParseWindow(argStringDefault(args, "window", "15m"))
				if err != nil {
					return "", err
				}
				lines, err := d.Loki.NamespaceErrors(ctx, argString(args, "namespace"), window, 50)
				if err != nil {
					return "", err
				}
				if len(lines) == 0 {
					return "no error logs in the window", nil
				}
				return strings.Join(lines, "\n"), nil
			},
		},
		{
			Name:        "count_log_errors",
			Description: "Count error-level log lines in a namespace over a window.",
			Parameters: params(map[string]string{
				"namespace": "namespace to count",
				"window":    "time window like 5m or 1h (default 5m)",
			}, "namespace"),
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				if d.Loki == nil {
					return "loki not configured", nil
				}
				window, err := loki.ParseWindow(argStringDefault(args, "window", "5m"))
				if err != nil {
					return "", err
				}
				count, err := d.Loki.ErrorCount(ctx, argString(args, "namespace"), window)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("%d error lines", count), nil
			},
		},
	}
}

func auxiliaryTools(d Deps) []Tool {
	return []Tool{
		{
			Name:        "get_unhealthy_endpoints",
			Description: "List status-page endpoints that are currently failing, with weekly uptime.",
			Parameters:  params(nil),
			Run: func(ctx context.Context, _ map[string]any) (string, error) {
				if d.Gatus == nil || !d.Gatus.Enabled() {
					return "status page not configured", nil
				}
				return asJSON(d.Gatus.Unhealthy(ctx))
			},
		},
		{
			Name:        "analyze_cluster",
			Description: "Run an automated cluster analysis and return detected issues.",
			Parameters: params(map[string]string{
				"namespace": "namespace to scope to, empty for all",
			}),
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				if d.K8sGPT == nil || !d.K8sGPT.Enabled() {
					return "cluster analyzer not configured", nil
				}
				return asJSON(d.K8sGPT.Analyze(ctx, argString(args, "namespace")))
			},
		},
		{
			Name:        "get_security_decisions",
			Description: "List active CrowdSec ban decisions (blocked IPs and ranges).",
			Parameters:  params(nil),
			Run: func(ctx context.Context, _ map[string]any) (string, error) {
				if d.CrowdSec == nil || !d.CrowdSec.Enabled() {
					return "crowdsec not configured", nil
				}
				return asJSON(d.CrowdSec.Decisions(ctx))
			},
		},
		{
			Name:        "get_security_alerts",
			Description: "List recent CrowdSec alerts (attack scenarios observed).",
			Parameters:  params(nil),
			Run: func(ctx context.Context, _ map[string]any) (string, error) {
				if d.CrowdSec == nil || !d.CrowdSec.Enabled() {
					return "crowdsec not configured", nil
				}
				return asJSON(d.CrowdSec.Alerts(ctx))
			},
		},
		{
			Name:        "check_storage_health",
			Description: "List degraded or faulted replicated volumes.",
			Parameters:  params(nil),
			Run: func(ctx context.Context, _ map[string]any) (string, error) {
				if d.Longhorn == nil || !d.Longhorn.Enabled() {
					return "storage backend not configured", nil
				}
				return asJSON(d.Longhorn.DegradedVolumes(ctx))
			},
		},
		{
			Name:        "check_storage_nodes",
			Description: "List storage node readiness.",
			Parameters:  params(nil),
			Run: func(ctx context.Context, _ map[string]any) (string, error) {
				if d.Longhorn == nil || !d.Longhorn.Enabled() {
					return "storage backend not configured", nil
				}
				return asJSON(d.Longhorn.Nodes(ctx))
			},
		},
		{
			Name:        "check_certificates",
			Description: "List certificates that are expiring soon or failing to renew.",
			Parameters:  params(nil),
			Run: func(ctx context.Context, _ map[string]any) (string, error) {
				if d.Certs == nil {
					return "certificate monitor not configured", nil
				}
				findings, err := d.Certs.Check(ctx)
				if err != nil {
					return "", err
				}
				if len(findings) == 0 {
					return "all certificates healthy", nil
				}
				return asJSON(findings, nil)
			},
		},
		{
			Name:        "run_health_checks",
			Description: "Run all registered deep health checks and return their results.",
			Parameters:  params(nil),
			Run: func(ctx context.Context, _ map[string]any) (string, error) {
				if d.Health == nil {
					return "health checks not configured", nil
				}
				return asJSON(d.Health.RunAll(ctx), nil)
			},
		},
		{
			Name:        "find_playbook",
			Description: "Find a remediation playbook matching an issue and return its steps.",
			Parameters: params(map[string]string{
				"source":    "issue source (crashloop, node_condition, gatus, ...)",
				"severity":  "issue severity",
				"namespace": "affected namespace",
				"resource":  "affected resource, e.g. pod/api-123",
				"message":   "issue description",
			}, "source", "message"),
			Run: func(_ context.Context, args map[string]any) (string, error) {
				if d.Playbooks == nil {
					return "playbooks not configured", nil
				}
				a := models.Anomaly{
					Source:    argString(args, "source"),
					Severity:  argString(args, "severity"),
					Namespace: argString(args, "namespace"),
					Resource:  argString(args, "resource"),
					Message:   argString(args, "message"),
				}
				pb := d.Playbooks.Find(a)
				if pb == nil {
					return "no matching playbook with execution budget left", nil
				}
				remaining := d.Playbooks.RecordExecution(pb.Name)
				return fmt.Sprintf("%s\n(%d automatic executions remaining)",
					playbook.Render(pb, a), remaining), nil
			},
		},
		{
			Name:        "notify",
			Description: "Send a notification to the configured channels (Slack, PagerDuty, ...).",
			Parameters: params(map[string]string{
				"title":    "short notification title",
				"message":  "notification body",
				"severity": "info, warning, or critical",
			}, "title", "message"),
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				if d.Notifier == nil || !d.Notifier.Enabled() {
					return "no notification channels configured", nil
				}
				results := d.Notifier.NotifyAll(ctx, notify.Notification{
					Title:    argString(args, "title"),
					Message:  argString(args, "message"),
					Severity: argStringDefault(args, "severity", models.SeverityInfo),
				})
				return asJSON(results, nil)
			},
		},
		{
			Name:        "create_remediation_pr",
			Description: "Open a GitHub pull request with configuration changes fixing a recurring issue.",
			Parameters: params(map[string]string{
				"branch": "branch name for the fix",
				"title":  "pull request title",
				"body":   "pull request description",
				"path":   "file path to change",
				"content": "full new file content",
			}, "branch", "title", "path", "content"),
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				if d.GitHub == nil || !d.GitHub.Enabled() {
					return "github integration not configured", nil
				}
				url, err := d.GitHub.CreateRemediationPR(ctx,
					argString(args, "branch"), argString(args, "title"), argString(args, "body"),
					map[string]string{argString(args, "path"): argString(args, "content")})
				if err != nil {
					return "", err
				}
				return "created " + url, nil
			},
		},
		{
			Name:        "escalate_to_dev",
			Description: "File a goal with the development controller for a fix needing code changes.",
			Parameters: params(map[string]string{
				"title":       "goal title",
				"description": "what needs fixing and the evidence",
			}, "title", "description"),
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				if d.Dev == nil || !d.Dev.Enabled() {
					return "dev controller not configured", nil
				}
				goal, err := d.Dev.CreateGoal(ctx, devloop.Goal{
					Title:       argString(args, "title"),
					Description: argString(args, "description"),
					Priority:    "high",
				})
				if err != nil {
					return "", err
				}
				return "created goal " + goal.ID, nil
			},
		},
	}
}

func memoryTools(d Deps) []Tool {
	return []Tool{
		{
			Name:        "recall_similar_issues",
			Description: "Recall past incidents similar to the current issue, with their resolutions.",
			Parameters: params(map[string]string{
				"issue": "description of the current issue",
			}, "issue"),
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				if d.Memory == nil || !d.Memory.Available() {
					return "memory not configured", nil
				}
				matches, err := d.Memory.Recall(ctx, argString(args, "issue"), memory.DefaultTopK)
				if err != nil {
					return "", err
				}
				if len(matches) == 0 {
					return "no similar past incidents", nil
				}
				return asJSON(matches, nil)
			},
		},
		{
			Name:        "remember_resolution",
			Description: "Store how an issue was resolved so future investigations can recall it.",
			Parameters: params(map[string]string{
				"issue":      "what was wrong",
				"resolution": "how it was fixed",
				"namespace":  "affected namespace (optional)",
			}, "issue", "resolution"),
			Run: func(ctx context.Context, args map[string]any) (string, error) {
				if d.Memory == nil || !d.Memory.Available() {
					return "memory not configured", nil
				}
				meta := map[string]string{}
				if ns := argString(args, "namespace"); ns != "" {
					meta["namespace"] = ns
				}
				id, err := d.Memory.Store(ctx, argString(args, "issue"),
					argString(args, "resolution"), meta)
				if err != nil {
					return "", err
				}
				return "stored as " + id, nil
			},
		},
	}
}

// actionTools are the gateway mutations. All but uncordon_node are
// destructive and pass the quorum gate.
func actionTools(d Deps) []Tool {
	run := func(action string, paramKeys ...string) func(context.Context, map[string]any) (string, error) {
		return func(ctx context.Context, args map[string]any) (string, error) {
			actionParams := map[string]any{}
			for _, key := range paramKeys {
				if v, ok := args[key]; ok {
					actionParams[key] = v
				}
			}
			return d.Gateway.Do(ctx, kube.ActionRequest{
				Action:    action,
				Namespace: argString(args, "namespace"),
				Resource:  argString(args, "resource"),
				Reason:    argString(args, "reason"),
				Params:    actionParams,
			})
		}
	}

	return []Tool{
		{
			Name:        "restart_pod",
			Description: "Delete a pod so its controller recreates it.",
			Parameters: params(map[string]string{
				"namespace": "pod namespace",
				"resource":  "pod name, e.g. pod/api-7f9c or api-7f9c",
				"reason":    "why this restart is needed",
			}, "namespace", "resource", "reason"),
			Destructive: true,
			Run:         run("restart_pod"),
		},
		{
			Name:        "rollout_restart",
			Description: "Trigger a rolling restart of a deployment.",
			Parameters: params(map[string]string{
				"namespace": "deployment namespace",
				"resource":  "deployment name",
				"reason":    "why this restart is needed",
			}, "namespace", "resource", "reason"),
			Destructive: true,
			Run:         run("rollout_restart"),
		},
		{
			Name:        "scale_deployment",
			Description: "Scale a deployment to a replica count. Scaling to zero requires operator approval.",
			Parameters: params(map[string]string{
				"namespace": "deployment namespace",
				"resource":  "deployment name",
				"replicas":  "target replica count",
				"reason":    "why this scaling is needed",
			}, "namespace", "resource", "replicas", "reason"),
			Destructive: true,
			Run:         run("scale_deployment", "replicas"),
		},
		{
			Name:        "rollback_deployment",
			Description: "Roll a deployment back to its previous ReplicaSet revision.",
			Parameters: params(map[string]string{
				"namespace": "deployment namespace",
				"resource":  "deployment name",
				"reason":    "why this rollback is needed",
			}, "namespace", "resource", "reason"),
			Destructive: true,
			Run:         run("rollback_deployment"),
		},
		{
			Name:        "delete_pvc",
			Description: "Delete a PersistentVolumeClaim. Requires operator approval.",
			Parameters: params(map[string]string{
				"namespace": "claim namespace",
				"resource":  "claim name",
				"reason":    "why deletion is needed",
			}, "namespace", "resource", "reason"),
			Destructive: true,
			Run:         run("delete_pvc"),
		},
		{
			Name:        "delete_job",
			Description: "Delete a failed job so its cronjob can retry cleanly.",
			Parameters: params(map[string]string{
				"namespace": "job namespace",
				"resource":  "job name",
				"reason":    "why deletion is needed",
			}, "namespace", "resource", "reason"),
			Destructive: true,
			Run:         run("delete_job"),
		},
		{
			Name:        "cordon_node",
			Description: "Mark a node unschedulable. Requires operator approval.",
			Parameters: params(map[string]string{
				"resource": "node name",
				"reason":   "why the node must stop receiving pods",
			}, "resource", "reason"),
			Destructive: true,
			Run:         run("cordon_node"),
		},
		{
			Name:        "drain_node",
			Description: "Cordon a node and evict its pods. Requires operator approval.",
			Parameters: params(map[string]string{
				"resource": "node name",
				"reason":   "why the node must be drained",
			}, "resource", "reason"),
			Destructive: true,
			Run:         run("drain_node"),
		},
		{
			Name:        "uncordon_node",
			Description: "Mark a node schedulable again.",
			Parameters: params(map[string]string{
				"resource": "node name",
				"reason":   "why the node is healthy again",
			}, "resource", "reason"),
			Run: run("uncordon_node"),
		},
	}
}

// params builds the JSON-schema parameter object for a tool.
func params(props map[string]string, required ...string) map[string]any {
	properties := map[string]any{}
	for name, description := range props {
		typ := "string"
		if name == "replicas" || name == "quantile" {
			typ = "number"
		}
		properties[name] = map[string]any{"type": typ, "description": description}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// asJSON renders a (value, error) pair as a compact JSON tool result.
func asJSON[T any](v T, err error) (string, error) {
	if err != nil {
		return "", err
	}
	data, merr := json.Marshal(v)
	if merr != nil {
		return "", merr
	}
	if string(data) == "null" || string(data) == "[]" {
		return "no results", nil
	}
	return string(data), nil
}

func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func argStringDefault(args map[string]any, key, def string) string {
	if v := argString(args, key); v != "" {
		return v
	}
	return def
}

func argFloat(args map[string]any, key string, def float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return def
}
