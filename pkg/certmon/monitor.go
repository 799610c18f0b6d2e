// Package certmon watches cert-manager Certificate resources for
// certificates that are expiring or failing to renew.
package certmon

import (
	"context"
	"fmt"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
)

// Expiry thresholds.
const (
	warningWindow  = 30 * 24 * time.Hour
	criticalWindow = 7 * 24 * time.Hour
)

var certificateGVR = schema.GroupVersionResource{
	Group:    "cert-manager.io",
	Version:  "v1",
	Resource: "certificates",
}

// Monitor reads Certificate CRDs.
type Monitor struct {
	dyn dynamic.Interface
}

// NewMonitor creates a certificate monitor. dyn may be nil when
// cert-manager is not installed; Check then returns nothing.
func NewMonitor(dyn dynamic.Interface) *Monitor {
	return &Monitor{dyn: dyn}
}

// Finding is one certificate problem.
type Finding struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	// Severity is "warning" below the renewal window, "critical" within
	// a week of expiry or when the certificate is not ready.
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	NotAfter  time.Time `json:"not_after,omitempty"`
	DaysLeft  int       `json:"days_left,omitempty"`
}

// Check lists all certificates and reports those expiring soon or not
// in a Ready state.
func (m *Monitor) Check(ctx context.Context) ([]Finding, error) {
	if m.dyn == nil {
		return nil, nil
	}
	list, err := m.dyn.Resource(certificateGVR).Namespace(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}

	now := time.Now()
	var findings []Finding
	for _, item := range list.Items {
		findings = append(findings, inspect(item, now)...)
	}
	return findings, nil
}

func inspect(cert unstructured.Unstructured, now time.Time) []Finding {
	var findings []Finding
	ns, name := cert.GetNamespace(), cert.GetName()

	if ready, reason := readyCondition(cert); !ready {
		findings = append(findings, Finding{
			Namespace: ns,
			Name:      name,
			Severity:  "critical",
			Message:   fmt.Sprintf("certificate %s/%s is not ready: %s", ns, name, reason),
		})
	}

	notAfterStr, found, _ := unstructured.NestedString(cert.Object, "status", "notAfter")
	if !found || notAfterStr == "" {
		return findings
	}
	notAfter, err := time.Parse(time.RFC3339, notAfterStr)
	if err != nil {
		return findings
	}

	left := notAfter.Sub(now)
	if left >= warningWindow {
		return findings
	}
	days := int(left.Hours() / 24)
	severity := "warning"
	if left < criticalWindow {
		severity = "critical"
	}
	findings = append(findings, Finding{
		Namespace: ns,
		Name:      name,
		Severity:  severity,
		Message:   fmt.Sprintf("certificate %s/%s expires in %d days", ns, name, days),
		NotAfter:  notAfter,
		DaysLeft:  days,
	})
	return findings
}

// readyCondition extracts the Ready condition; certificates without
// conditions count as ready to avoid noise during initial issuance.
func readyCondition(cert unstructured.Unstructured) (bool, string) {
	conditions, found, _ := unstructured.NestedSlice(cert.Object, "status", "conditions")
	if !found {
		return true, ""
	}
	for _, c := range conditions {
		cond, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if cond["type"] != "Ready" {
			continue
		}
		if cond["status"] == "True" {
			return true, ""
		}
		reason, _ := cond["reason"].(string)
		message, _ := cond["message"].(string)
		if message != "" {
			return false, message
		}
		return false, reason
	}
	return true, ""
}
