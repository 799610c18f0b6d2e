package healthcheck

import (
	"context"
	"fmt"
	"regexp"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
)

var ingressRouteGVR = schema.GroupVersionResource{
	Group:    "traefik.io",
	Version:  "v1alpha1",
	Resource: "ingressroutes",
}

// hostPattern extracts hostnames from Traefik match rules such as
// Host(`grafana.example.com`) && PathPrefix(`/`).
var hostPattern = regexp.MustCompile("Host\\(`([^`]+)`\\)")

// Route is one ingress-routed service discovered from an IngressRoute.
type Route struct {
	Namespace string   `json:"namespace"`
	Name      string   `json:"name"`
	Hosts     []string `json:"hosts"`
	Services  []string `json:"services"`
}

// IngressFinding is one problem with an ingress route or its backend.
type IngressFinding struct {
	Namespace string `json:"namespace"`
	Route     string `json:"route"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
}

// IngressMonitor inspects IngressRoute resources, their backend
// endpoints, and the exposed hosts.
type IngressMonitor struct {
	clientset kubernetes.Interface
	dyn       dynamic.Interface
	checker   *Checker
}

// NewIngressMonitor creates an ingress monitor. dyn may be nil when the
// IngressRoute CRD is not installed; Check then returns nothing.
func NewIngressMonitor(clientset kubernetes.Interface, dyn dynamic.Interface, checker *Checker) *IngressMonitor {
	return &IngressMonitor{clientset: clientset, dyn: dyn, checker: checker}
}

// Routes lists all IngressRoutes with their hosts and backend services.
func (m *IngressMonitor) Routes(ctx context.Context) ([]Route, error) {
	if m.dyn == nil {
		return nil, nil
	}
	list, err := m.dyn.Resource(ingressRouteGVR).Namespace(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list ingressroutes: %w", err)
	}

	var routes []Route
	for _, item := range list.Items {
		routes = append(routes, parseRoute(item))
	}
	return routes, nil
}

// Check verifies that each ingress route has ready backend endpoints
// and that its hosts answer over HTTPS.
func (m *IngressMonitor) Check(ctx context.Context) ([]IngressFinding, error) {
	routes, err := m.Routes(ctx)
	if err != nil {
		return nil, err
	}

	var findings []IngressFinding
	for _, route := range routes {
		for _, svc := range route.Services {
			ready, err := m.readyEndpoints(ctx, route.Namespace, svc)
			if err != nil {
				findings = append(findings, IngressFinding{
					Namespace: route.Namespace,
					Route:     route.Name,
					Severity:  StatusWarning,
					Message:   fmt.Sprintf("cannot read endpoints for service %s: %v", svc, err),
				})
				continue
			}
			if ready == 0 {
				findings = append(findings, IngressFinding{
					Namespace: route.Namespace,
					Route:     route.Name,
					Severity:  StatusCritical,
					Message:   fmt.Sprintf("service %s has no ready endpoints", svc),
				})
			}
		}
		for _, host := range route.Hosts {
			result := m.checker.ProbeURL(ctx, route.Name, "https://"+host)
			if result.Status == StatusOK {
				continue
			}
			findings = append(findings, IngressFinding{
				Namespace: route.Namespace,
				Route:     route.Name,
				Severity:  result.Status,
				Message:   fmt.Sprintf("host %s: %s", host, result.Message),
			})
		}
	}
	return findings, nil
}

func (m *IngressMonitor) readyEndpoints(ctx context.Context, namespace, service string) (int, error) {
	endpoints, err := m.clientset.CoreV1().Endpoints(namespace).Get(ctx, service, metav1.GetOptions{})
	if err != nil {
		return 0, err
	}
	ready := 0
	for _, subset := range endpoints.Subsets {
		ready += len(subset.Addresses)
	}
	return ready, nil
}

func parseRoute(item unstructured.Unstructured) Route {
	route := Route{
		Namespace: item.GetNamespace(),
		Name:      item.GetName(),
	}
	hostSeen := map[string]bool{}

	specRoutes, _, _ := unstructured.NestedSlice(item.Object, "spec", "routes")
	for _, r := range specRoutes {
		entry, ok := r.(map[string]any)
		if !ok {
			continue
		}
		match, _ := entry["match"].(string)
		for _, m := range hostPattern.FindAllStringSubmatch(match, -1) {
			if !hostSeen[m[1]] {
				hostSeen[m[1]] = true
				route.Hosts = append(route.Hosts, m[1])
			}
		}
		services, _ := entry["services"].([]any)
		for _, s := range services {
			svc, ok := s.(map[string]any)
			if !ok {
				continue
			}
			if name, _ := svc["name"].(string); name != "" {
				route.Services = append(route.Services, name)
			}
		}
	}
	return route
}
