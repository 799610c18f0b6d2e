package kube

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// crashLoopRestartThreshold is the restart count at which a waiting
// container is reported even without the CrashLoopBackOff reason.
const crashLoopRestartThreshold = 5

// CrashLoopingContainer identifies one crash-looping container.
type CrashLoopingContainer struct {
	Namespace string `json:"namespace"`
	Pod       string `json:"pod"`
	Container string `json:"container"`
	Restarts  int32  `json:"restarts"`
	Reason    string `json:"reason"`
	Message   string `json:"message,omitempty"`
}

// CrashLoopingPods finds containers in CrashLoopBackOff or with an
// excessive restart count, across all namespaces.
func (c *Client) CrashLoopingPods(ctx context.Context) ([]CrashLoopingContainer, error) {
	pods, err := c.clientset.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", err)
	}
	var out []CrashLoopingContainer
	for _, pod := range pods.Items {
		for _, cs := range pod.Status.ContainerStatuses {
			waiting := cs.State.Waiting
			isBackoff := waiting != nil && waiting.Reason == "CrashLoopBackOff"
			if !isBackoff && cs.RestartCount < crashLoopRestartThreshold {
				continue
			}
			entry := CrashLoopingContainer{
				Namespace: pod.Namespace,
				Pod:       pod.Name,
				Container: cs.Name,
				Restarts:  cs.RestartCount,
				Reason:    "ExcessiveRestarts",
			}
			if waiting != nil {
				entry.Reason = waiting.Reason
				entry.Message = waiting.Message
			}
			out = append(out, entry)
		}
	}
	return out, nil
}

// NodeProblem is an abnormal node condition.
type NodeProblem struct {
	Node      string `json:"node"`
	Condition string `json:"condition"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

// NodeProblems reports NotReady nodes and pressure conditions.
func (c *Client) NodeProblems(ctx context.Context) ([]NodeProblem, error) {
	nodes, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	var out []NodeProblem
	for _, node := range nodes.Items {
		for _, cond := range node.Status.Conditions {
			bad := false
			switch cond.Type {
			case corev1.NodeReady:
				bad = cond.Status != corev1.ConditionTrue
			case corev1.NodeMemoryPressure, corev1.NodeDiskPressure, corev1.NodePIDPressure:
				bad = cond.Status == corev1.ConditionTrue
			}
			if bad {
				out = append(out, NodeProblem{
					Node:      node.Name,
					Condition: string(cond.Type),
					Status:    string(cond.Status),
					Message:   cond.Message,
				})
			}
		}
	}
	return out, nil
}

// DaemonSetProblem is a daemonset with unavailable pods.
type DaemonSetProblem struct {
	Namespace   string `json:"namespace"`
	Name        string `json:"name"`
	Desired     int32  `json:"desired"`
	Ready       int32  `json:"ready"`
	Unavailable int32  `json:"unavailable"`
}

// DaemonSetProblems reports daemonsets whose ready count is below
// desired.
func (c *Client) DaemonSetProblems(ctx context.Context) ([]DaemonSetProblem, error) {
	sets, err := c.clientset.AppsV1().DaemonSets(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list daemonsets: %w", err)
	}
	var out []DaemonSetProblem
	for _, ds := range sets.Items {
		if ds.Status.NumberReady >= ds.Status.DesiredNumberScheduled {
			continue
		}
		out = append(out, DaemonSetProblem{
			Namespace:   ds.Namespace,
			Name:        ds.Name,
			Desired:     ds.Status.DesiredNumberScheduled,
			Ready:       ds.Status.NumberReady,
			Unavailable: ds.Status.NumberUnavailable,
		})
	}
	return out, nil
}

// DeploymentProblem is a deployment stuck below its desired replicas.
type DeploymentProblem struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Desired   int32  `json:"desired"`
	Available int32  `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// DeploymentProblems reports deployments with unavailable replicas or a
// failed progress condition. Deployments scaled to zero are not
// problems.
func (c *Client) DeploymentProblems(ctx context.Context) ([]DeploymentProblem, error) {
	deps, err := c.clientset.AppsV1().Deployments(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	var out []DeploymentProblem
	for _, d := range deps.Items {
		desired := int32(1)
		if d.Spec.Replicas != nil {
			desired = *d.Spec.Replicas
		}
		if desired == 0 || d.Status.AvailableReplicas >= desired {
			continue
		}
		problem := DeploymentProblem{
			Namespace: d.Namespace,
			Name:      d.Name,
			Desired:   desired,
			Available: d.Status.AvailableReplicas,
		}
		for _, cond := range d.Status.Conditions {
			if cond.Type == "Progressing" && cond.Status == corev1.ConditionFalse {
				problem.Reason = cond.Reason
			}
		}
		out = append(out, problem)
	}
	return out, nil
}

// PodLogs fetches the tail of a container's log through the API server.
func (c *Client) PodLogs(ctx context.Context, namespace, pod, container string, tailLines int64) (string, error) {
	opts := &corev1.PodLogOptions{TailLines: &tailLines}
	if container != "" {
		opts.Container = container
	}
	stream, err := c.clientset.CoreV1().Pods(namespace).GetLogs(pod, opts).Stream(ctx)
	if err != nil {
		return "", fmt.Errorf("stream logs for %s/%s: %w", namespace, pod, err)
	}
	defer stream.Close()
	raw, err := io.ReadAll(stream)
	if err != nil {
		return "", fmt.Errorf("read logs for %s/%s: %w", namespace, pod, err)
	}
	return string(raw), nil
}

// RecentEvents returns warning events, newest first, optionally scoped
// to one namespace.
func (c *Client) RecentEvents(ctx context.Context, namespace string, limit int) ([]corev1.Event, error) {
	if namespace == "" {
		namespace = metav1.NamespaceAll
	}
	events, err := c.clientset.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{
		FieldSelector: "type=Warning",
	})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	items := events.Items
	sort.Slice(items, func(i, j int) bool {
		return items[i].LastTimestamp.After(items[j].LastTimestamp.Time)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// PodSummary is a compact pod listing for agent tools.
type PodSummary struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Phase     string `json:"phase"`
	Ready     string `json:"ready"`
	Restarts  int32  `json:"restarts"`
	Node      string `json:"node,omitempty"`
}

// ListPods summarizes pods in a namespace ("" for all).
func (c *Client) ListPods(ctx context.Context, namespace string) ([]PodSummary, error) {
	if namespace == "" {
		namespace = metav1.NamespaceAll
	}
	pods, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", err)
	}
	out := make([]PodSummary, 0, len(pods.Items))
	for _, pod := range pods.Items {
		ready, total, restarts := 0, len(pod.Spec.Containers), int32(0)
		for _, cs := range pod.Status.ContainerStatuses {
			if cs.Ready {
				ready++
			}
			restarts += cs.RestartCount
		}
		out = append(out, PodSummary{
			Namespace: pod.Namespace,
			Name:      pod.Name,
			Phase:     string(pod.Status.Phase),
			Ready:     fmt.Sprintf("%d/%d", ready, total),
			Restarts:  restarts,
			Node:      pod.Spec.NodeName,
		})
	}
	return out, nil
}

// DescribePod returns a readable description of one pod: status,
// container states, and recent warning events.
func (c *Client) DescribePod(ctx context.Context, namespace, name string) (string, error) {
	pod, err := c.clientset.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("get pod %s/%s: %w", namespace, name, err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Pod %s/%s on node %s, phase %s\n", pod.Namespace, pod.Name, pod.Spec.NodeName, pod.Status.Phase)
	for _, cs := range pod.Status.ContainerStatuses {
		state := "running"
		detail := ""
		switch {
		case cs.State.Waiting != nil:
			state = "waiting"
			detail = cs.State.Waiting.Reason
		case cs.State.Terminated != nil:
			state = "terminated"
			detail = cs.State.Terminated.Reason
		}
		fmt.Fprintf(&b, "  container %s: %s %s, restarts %d\n", cs.Name, state, detail, cs.RestartCount)
	}
	events, err := c.RecentEvents(ctx, namespace, 50)
	if err == nil {
		for _, ev := range events {
			if ev.InvolvedObject.Kind == "Pod" && ev.InvolvedObject.Name == name {
				fmt.Fprintf(&b, "  event %s: %s\n", ev.Reason, ev.Message)
			}
		}
	}
	return b.String(), nil
}

// FailedJob is a job with failed completions.
type FailedJob struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Failed    int32  `json:"failed"`
	Reason    string `json:"reason,omitempty"`
}

// FailedJobs lists jobs with failures across all namespaces.
func (c *Client) FailedJobs(ctx context.Context) ([]FailedJob, error) {
	jobs, err := c.clientset.BatchV1().Jobs(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	var out []FailedJob
	for _, job := range jobs.Items {
		if job.Status.Failed == 0 {
			continue
		}
		fj := FailedJob{Namespace: job.Namespace, Name: job.Name, Failed: job.Status.Failed}
		for _, cond := range job.Status.Conditions {
			if cond.Type == "Failed" && cond.Status == corev1.ConditionTrue {
				fj.Reason = cond.Reason
			}
		}
		out = append(out, fj)
	}
	return out, nil
}

// NamespaceNames lists namespace names.
func (c *Client) NamespaceNames(ctx context.Context) ([]string, error) {
	nss, err := c.clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	names := make([]string, 0, len(nss.Items))
	for _, ns := range nss.Items {
		names = append(names, ns.Name)
	}
	return names, nil
}
