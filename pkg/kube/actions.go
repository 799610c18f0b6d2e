package kube

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	policyv1 "k8s.io/api/policy/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
)

// restartedAtAnnotation marks rollout restarts triggered by the
// guardian, mirroring kubectl's restart mechanism.
const restartedAtAnnotation = "cluster-guardian/restartedAt"

// revisionAnnotation is set by the deployment controller on each
// ReplicaSet it owns.
const revisionAnnotation = "deployment.kubernetes.io/revision"

// execute dispatches a validated request to its implementation.
func (g *Gateway) execute(ctx context.Context, req ActionRequest) (string, error) {
	switch req.Action {
	case "restart_pod":
		return g.restartPod(ctx, req.Namespace, g.targetName(req, "pod"))
	case "rollout_restart":
		return g.rolloutRestart(ctx, req.Namespace, g.targetName(req, "deployment"))
	case "scale_deployment":
		replicas, ok := intParam(req.Params, "replicas")
		if !ok {
			return "", fmt.Errorf("scale_deployment requires a replicas parameter")
		}
		return g.scaleDeployment(ctx, req.Namespace, g.targetName(req, "deployment"), int32(replicas))
	case "rollback_deployment":
		return g.rollbackDeployment(ctx, req.Namespace, g.targetName(req, "deployment"))
	case "delete_pvc":
		return g.deletePVC(ctx, req.Namespace, g.targetName(req, "pvc"))
	case "delete_job":
		return g.deleteJob(ctx, req.Namespace, g.targetName(req, "job"))
	case "cordon_node":
		return g.setCordon(ctx, g.targetName(req, "node"), true)
	case "uncordon_node":
		return g.setCordon(ctx, g.targetName(req, "node"), false)
	case "drain_node":
		return g.drainNode(ctx, g.targetName(req, "node"))
	default:
		return "", fmt.Errorf("unknown action %q", req.Action)
	}
}

// targetName resolves the object name from params, falling back to the
// "kind/name" form of the resource field.
func (g *Gateway) targetName(req ActionRequest, param string) string {
	if name := stringParam(req.Params, param); name != "" {
		return name
	}
	if i := strings.IndexByte(req.Resource, '/'); i >= 0 {
		return req.Resource[i+1:]
	}
	return req.Resource
}

func (g *Gateway) restartPod(ctx context.Context, namespace, name string) (string, error) {
	if namespace == "" || name == "" {
		return "", fmt.Errorf("restart_pod requires namespace and pod")
	}
	if err := g.client.clientset.CoreV1().Pods(namespace).Delete(ctx, name, metav1.DeleteOptions{}); err != nil {
		return "", fmt.Errorf("delete pod %s/%s: %w", namespace, name, err)
	}
	return fmt.Sprintf("deleted pod %s/%s, controller will recreate it", namespace, name), nil
}

func (g *Gateway) rolloutRestart(ctx context.Context, namespace, name string) (string, error) {
	if namespace == "" || name == "" {
		return "", fmt.Errorf("rollout_restart requires namespace and deployment")
	}
	patch := fmt.Sprintf(
		`{"spec":{"template":{"metadata":{"annotations":{%q:%q}}}}}`,
		restartedAtAnnotation, time.Now().UTC().Format(time.RFC3339))
	_, err := g.client.clientset.AppsV1().Deployments(namespace).Patch(
		ctx, name, types.StrategicMergePatchType, []byte(patch), metav1.PatchOptions{})
	if err != nil {
		return "", fmt.Errorf("patch deployment %s/%s: %w", namespace, name, err)
	}
	return fmt.Sprintf("rollout restart of deployment %s/%s triggered", namespace, name), nil
}

func (g *Gateway) scaleDeployment(ctx context.Context, namespace, name string, replicas int32) (string, error) {
	if namespace == "" || name == "" {
		return "", fmt.Errorf("scale_deployment requires namespace and deployment")
	}
	if replicas < 0 {
		return "", fmt.Errorf("replicas must be >= 0, got %d", replicas)
	}
	deployments := g.client.clientset.AppsV1().Deployments(namespace)
	scale, err := deployments.GetScale(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("get scale of %s/%s: %w", namespace, name, err)
	}
	previous := scale.Spec.Replicas
	scale.Spec.Replicas = replicas
	if _, err := deployments.UpdateScale(ctx, name, scale, metav1.UpdateOptions{}); err != nil {
		return "", fmt.Errorf("scale %s/%s: %w", namespace, name, err)
	}
	return fmt.Sprintf("scaled deployment %s/%s from %d to %d replicas", namespace, name, previous, replicas), nil
}

// rollbackDeployment re-applies the pod template of the previous
// revision's ReplicaSet, the same mechanism kubectl rollout undo uses.
func (g *Gateway) rollbackDeployment(ctx context.Context, namespace, name string) (string, error) {
	if namespace == "" || name == "" {
		return "", fmt.Errorf("rollback_deployment requires namespace and deployment")
	}
	deployment, err := g.client.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("get deployment %s/%s: %w", namespace, name, err)
	}

	allRS, err := g.client.clientset.AppsV1().ReplicaSets(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return "", fmt.Errorf("list replicasets: %w", err)
	}
	var owned []appsv1.ReplicaSet
	for _, rs := range allRS.Items {
		for _, ref := range rs.OwnerReferences {
			if ref.Kind == "Deployment" && ref.UID == deployment.UID {
				owned = append(owned, rs)
			}
		}
	}
	if len(owned) < 2 {
		return "", fmt.Errorf("deployment %s/%s has no previous revision to roll back to", namespace, name)
	}
	sort.Slice(owned, func(i, j int) bool {
		return rsRevision(owned[i]) > rsRevision(owned[j])
	})
	previous := owned[1]

	templateJSON, err := json.Marshal(previous.Spec.Template)
	if err != nil {
		return "", fmt.Errorf("encode previous template: %w", err)
	}
	patch := fmt.Sprintf(`{"spec":{"template":%s}}`, templateJSON)
	_, err = g.client.clientset.AppsV1().Deployments(namespace).Patch(
		ctx, name, types.StrategicMergePatchType, []byte(patch), metav1.PatchOptions{})
	if err != nil {
		return "", fmt.Errorf("apply rollback patch: %w", err)
	}
	return fmt.Sprintf("rolled back deployment %s/%s to revision %d",
		namespace, name, rsRevision(previous)), nil
}

func rsRevision(rs appsv1.ReplicaSet) int64 {
	n, _ := strconv.ParseInt(rs.Annotations[revisionAnnotation], 10, 64)
	return n
}

func (g *Gateway) deletePVC(ctx context.Context, namespace, name string) (string, error) {
	if namespace == "" || name == "" {
		return "", fmt.Errorf("delete_pvc requires namespace and pvc")
	}
	if err := g.client.clientset.CoreV1().PersistentVolumeClaims(namespace).Delete(ctx, name, metav1.DeleteOptions{}); err != nil {
		return "", fmt.Errorf("delete pvc %s/%s: %w", namespace, name, err)
	}
	return fmt.Sprintf("deleted pvc %s/%s", namespace, name), nil
}

func (g *Gateway) deleteJob(ctx context.Context, namespace, name string) (string, error) {
	if namespace == "" || name == "" {
		return "", fmt.Errorf("delete_job requires namespace and job")
	}
	policy := metav1.DeletePropagationBackground
	err := g.client.clientset.BatchV1().Jobs(namespace).Delete(ctx, name, metav1.DeleteOptions{
		PropagationPolicy: &policy,
	})
	if err != nil {
		return "", fmt.Errorf("delete job %s/%s: %w", namespace, name, err)
	}
	return fmt.Sprintf("deleted job %s/%s", namespace, name), nil
}

func (g *Gateway) setCordon(ctx context.Context, name string, unschedulable bool) (string, error) {
	if name == "" {
		return "", fmt.Errorf("node name required")
	}
	patch := fmt.Sprintf(`{"spec":{"unschedulable":%t}}`, unschedulable)
	_, err := g.client.clientset.CoreV1().Nodes().Patch(
		ctx, name, types.StrategicMergePatchType, []byte(patch), metav1.PatchOptions{})
	if err != nil {
		return "", fmt.Errorf("patch node %s: %w", name, err)
	}
	if unschedulable {
		return fmt.Sprintf("cordoned node %s", name), nil
	}
	return fmt.Sprintf("uncordoned node %s", name), nil
}

// drainNode cordons the node and evicts its pods. Pods in protected
// namespaces and DaemonSet-owned pods are skipped with a reason.
func (g *Gateway) drainNode(ctx context.Context, name string) (string, error) {
	if _, err := g.setCordon(ctx, name, true); err != nil {
		return "", err
	}

	pods, err := g.client.clientset.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{
		FieldSelector: "spec.nodeName=" + name,
	})
	if err != nil {
		return "", fmt.Errorf("list pods on node %s: %w", name, err)
	}

	var evicted []string
	skipped := map[string]string{}
	for _, pod := range pods.Items {
		id := pod.Namespace + "/" + pod.Name
		if g.cfg.IsProtectedNamespace(pod.Namespace) {
			skipped[id] = "protected namespace"
			continue
		}
		if ownedByDaemonSet(pod.OwnerReferences) {
			skipped[id] = "daemonset pod"
			continue
		}
		eviction := &policyv1.Eviction{
			ObjectMeta: metav1.ObjectMeta{Name: pod.Name, Namespace: pod.Namespace},
		}
		if err := g.client.clientset.PolicyV1().Evictions(pod.Namespace).Evict(ctx, eviction); err != nil {
			skipped[id] = fmt.Sprintf("eviction failed: %v", err)
			continue
		}
		evicted = append(evicted, id)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "drained node %s: evicted %d pods", name, len(evicted))
	if len(skipped) > 0 {
		fmt.Fprintf(&b, ", skipped %d (", len(skipped))
		first := true
		for id, reason := range skipped {
			if !first {
				b.WriteString("; ")
			}
			fmt.Fprintf(&b, "%s: %s", id, reason)
			first = false
		}
		b.WriteString(")")
	}
	return b.String(), nil
}

func ownedByDaemonSet(refs []metav1.OwnerReference) bool {
	for _, ref := range refs {
		if ref.Kind == "DaemonSet" {
			return true
		}
	}
	return false
}
