package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/loki"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
)

// PVC usage thresholds in percent.
const (
	pvcWarningPercent  = 85
	pvcCriticalPercent = 95
)

// pvcUsageQuery returns per-claim usage percent above the warning
// threshold.
const pvcUsageQuery = `100 * kubelet_volume_stats_used_bytes / kubelet_volume_stats_capacity_bytes > 85`

// checkFunc is one fast-loop check.
type checkFunc struct {
	name string
	run  func(ctx context.Context) ([]models.Anomaly, error)
}

// checks assembles the fast-loop check set. Checks whose backend is
// not configured are skipped at build time.
func (m *Monitor) checks() []checkFunc {
	out := []checkFunc{
		{"crashloop", m.checkCrashLoops},
		{"node_condition", m.checkNodes},
		{"daemonset", m.checkDaemonSets},
		{"deployment", m.checkDeployments},
	}
	if m.prom != nil {
		out = append(out,
			checkFunc{"prometheus_alert", m.checkPromAlerts},
			checkFunc{"pvc", m.checkPVCUsage},
		)
	}
	if m.ingress != nil {
		out = append(out, checkFunc{"ingress", m.checkIngress})
	}
	if m.gatus != nil && m.gatus.Enabled() {
		out = append(out, checkFunc{"gatus", m.checkGatus})
	}
	if m.loki != nil {
		out = append(out, checkFunc{"log_anomaly", m.checkLogSpikes})
	}
	return out
}

func (m *Monitor) checkCrashLoops(ctx context.Context) ([]models.Anomaly, error) {
	pods, err := m.kube.CrashLoopingPods(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Anomaly
	for _, p := range pods {
		out = append(out, models.Anomaly{
			Source:    "crashloop",
			Severity:  models.SeverityCritical,
			Namespace: p.Namespace,
			Resource:  "pod/" + p.Pod,
			Message:   fmt.Sprintf("container %s in %s (%d restarts): %s", p.Container, p.Reason, p.Restarts, p.Message),
			DedupeKey: fmt.Sprintf("crashloop:%s/%s/%s", p.Namespace, p.Pod, p.Container),
			Timestamp: time.Now(),
		})
	}
	return out, nil
}

func (m *Monitor) checkNodes(ctx context.Context) ([]models.Anomaly, error) {
	problems, err := m.kube.NodeProblems(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Anomaly
	for _, p := range problems {
		severity := models.SeverityWarning
		if p.Condition == "Ready" {
			severity = models.SeverityCritical
		}
		out = append(out, models.Anomaly{
			Source:    "node_condition",
			Severity:  severity,
			Resource:  "node/" + p.Node,
			Message:   fmt.Sprintf("node %s condition %s is %s: %s", p.Node, p.Condition, p.Status, p.Message),
			DedupeKey: fmt.Sprintf("node:%s:%s", p.Condition, p.Node),
			Timestamp: time.Now(),
		})
	}
	return out, nil
}

func (m *Monitor) checkDaemonSets(ctx context.Context) ([]models.Anomaly, error) {
	problems, err := m.kube.DaemonSetProblems(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Anomaly
	for _, p := range problems {
		severity := models.SeverityWarning
		if p.Ready == 0 {
			severity = models.SeverityCritical
		}
		out = append(out, models.Anomaly{
			Source:    "daemonset",
			Severity:  severity,
			Namespace: p.Namespace,
			Resource:  "daemonset/" + p.Name,
			Message:   fmt.Sprintf("daemonset %s/%s has %d/%d pods ready", p.Namespace, p.Name, p.Ready, p.Desired),
			DedupeKey: fmt.Sprintf("daemonset:%s/%s", p.Namespace, p.Name),
			Timestamp: time.Now(),
		})
	}
	return out, nil
}

func (m *Monitor) checkDeployments(ctx context.Context) ([]models.Anomaly, error) {
	problems, err := m.kube.DeploymentProblems(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Anomaly
	for _, p := range problems {
		if m.cfg.IsProtectedNamespace(p.Namespace) {
			continue
		}
		message := fmt.Sprintf("deployment %s/%s has %d/%d replicas available", p.Namespace, p.Name, p.Available, p.Desired)
		if p.Reason != "" {
			message += ", progress: " + p.Reason
		}
		out = append(out, models.Anomaly{
			Source:    "deployment",
			Severity:  models.SeverityWarning,
			Namespace: p.Namespace,
			Resource:  "deployment/" + p.Name,
			Message:   message,
			DedupeKey: fmt.Sprintf("deployment:%s/%s", p.Namespace, p.Name),
			Timestamp: time.Now(),
		})
	}
	return out, nil
}

func (m *Monitor) checkPromAlerts(ctx context.Context) ([]models.Anomaly, error) {
	alerts, err := m.prom.FiringAlerts(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Anomaly
	for _, a := range alerts {
		severity := a.Severity
		switch severity {
		case models.SeverityInfo, models.SeverityWarning, models.SeverityCritical:
		default:
			severity = models.SeverityWarning
		}
		message := a.Summary
		if message == "" {
			message = "alert " + a.Name + " is firing"
		}
		out = append(out, models.Anomaly{
			Source:    "prometheus_alert",
			Severity:  severity,
			Namespace: a.Namespace,
			Resource:  "alert/" + a.Name,
			Message:   message,
			DedupeKey: fmt.Sprintf("prom_alert:%s:%s", a.Name, a.Namespace),
			Timestamp: time.Now(),
		})
	}
	return out, nil
}

func (m *Monitor) checkPVCUsage(ctx context.Context) ([]models.Anomaly, error) {
	vec, err := m.prom.Vector(ctx, pvcUsageQuery)
	if err != nil {
		return nil, err
	}
	var out []models.Anomaly
	for _, sample := range vec {
		namespace := string(sample.Metric["namespace"])
		claim := string(sample.Metric["persistentvolumeclaim"])
		percent := float64(sample.Value)
		severity := models.SeverityWarning
		if percent >= pvcCriticalPercent {
			severity = models.SeverityCritical
		}
		out = append(out, models.Anomaly{
			Source:    "pvc",
			Severity:  severity,
			Namespace: namespace,
			Resource:  "pvc/" + claim,
			Message:   fmt.Sprintf("volume %s/%s is %.0f%% full", namespace, claim, percent),
			DedupeKey: fmt.Sprintf("pvc:%s/%s", namespace, claim),
			Timestamp: time.Now(),
		})
	}
	return out, nil
}

func (m *Monitor) checkIngress(ctx context.Context) ([]models.Anomaly, error) {
	findings, err := m.ingress.Check(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Anomaly
	for _, f := range findings {
		severity := models.SeverityWarning
		if f.Severity == "critical" {
			severity = models.SeverityCritical
		}
		out = append(out, models.Anomaly{
			Source:    "ingress",
			Severity:  severity,
			Namespace: f.Namespace,
			Resource:  "ingressroute/" + f.Route,
			Message:   f.Message,
			DedupeKey: fmt.Sprintf("ingress:%s/%s", f.Namespace, f.Route),
			Timestamp: time.Now(),
		})
	}
	return out, nil
}

func (m *Monitor) checkGatus(ctx context.Context) ([]models.Anomaly, error) {
	unhealthy, err := m.gatus.Unhealthy(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Anomaly
	for _, e := range unhealthy {
		out = append(out, models.Anomaly{
			Source:   "gatus",
			Severity: models.SeverityWarning,
			Resource: "endpoint/" + e.Name,
			Message: fmt.Sprintf("status page endpoint %s (%s) is failing, weekly uptime %.1f%%",
				e.Name, e.Group, e.UptimeWeekly*100),
			DedupeKey: fmt.Sprintf("gatus:%s/%s", e.Group, e.Name),
			Timestamp: time.Now(),
		})
	}
	return out, nil
}

func (m *Monitor) checkLogSpikes(ctx context.Context) ([]models.Anomaly, error) {
	namespaces, err := m.kube.NamespaceNames(ctx)
	if err != nil {
		return nil, err
	}
	window, err := loki.ParseWindow(m.cfg.LogAnomalyWindow)
	if err != nil {
		window = 5 * time.Minute
	}
	minCount := m.runtime.Int(ctx, "log_anomaly_min_count")
	if minCount <= 0 {
		minCount = 10
	}

	var out []models.Anomaly
	for _, ns := range namespaces {
		if m.cfg.IsProtectedNamespace(ns) {
			continue
		}
		count, err := m.loki.ErrorCount(ctx, ns, window)
		if err != nil {
			// One unreachable namespace should not hide the rest.
			continue
		}
		if count < minCount {
			continue
		}
		out = append(out, models.Anomaly{
			Source:    "log_anomaly",
			Severity:  models.SeverityWarning,
			Namespace: ns,
			Resource:  "namespace/" + ns,
			Message:   fmt.Sprintf("%d error log lines in %s over %s", count, ns, m.cfg.LogAnomalyWindow),
			DedupeKey: "logs:" + ns,
			Count:     count,
			Timestamp: time.Now(),
		})
	}
	return out, nil
}
