package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
)

// watchReconnectDelay is how long to wait before reopening a failed
// event stream.
const watchReconnectDelay = 5 * time.Second

// watchEvents streams warning events from the API server between fast
// loop ticks, so sudden failures surface without waiting for the next
// tick. The stream is reopened after a delay whenever it closes.
func (m *Monitor) watchEvents(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		if !m.eventWatchEnabled() {
			select {
			case <-m.stop:
				return
			case <-ctx.Done():
				return
			case <-time.After(watchReconnectDelay):
			}
			continue
		}

		if err := m.runWatch(ctx); err != nil {
			slog.Warn("Event watch closed, reconnecting", "error", err, "delay", watchReconnectDelay)
		}
		select {
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		case <-time.After(watchReconnectDelay):
		}
	}
}

func (m *Monitor) runWatch(ctx context.Context) error {
	watcher, err := m.kube.Clientset().CoreV1().Events(metav1.NamespaceAll).Watch(ctx, metav1.ListOptions{
		FieldSelector: "type=Warning",
	})
	if err != nil {
		return fmt.Errorf("open event watch: %w", err)
	}
	defer watcher.Stop()

	for {
		select {
		case <-m.stop:
			return nil
		case <-ctx.Done():
			return nil
		case evt, ok := <-watcher.ResultChan():
			if !ok {
				return fmt.Errorf("event stream closed")
			}
			event, ok := evt.Object.(*corev1.Event)
			if !ok {
				continue
			}
			m.handleEvent(event)
		}
	}
}

// handleEvent filters one warning event and enqueues the survivors.
// Events in protected namespaces never enter the anomaly pipeline.
func (m *Monitor) handleEvent(event *corev1.Event) {
	m.mu.Lock()
	m.lastWatch = time.Now()
	m.mu.Unlock()
	if m.cfg.IsProtectedNamespace(event.Namespace) {
		return
	}
	m.Enqueue(eventAnomaly(event))
}

// eventAnomaly converts a warning event into an anomaly.
func eventAnomaly(event *corev1.Event) models.Anomaly {
	kind := event.InvolvedObject.Kind
	name := event.InvolvedObject.Name
	severity := models.SeverityWarning
	switch event.Reason {
	case "OOMKilling", "OOMKilled", "FailedMount", "NodeNotReady", "Evicted":
		severity = models.SeverityCritical
	}
	return models.Anomaly{
		Source:    "k8s_event",
		Severity:  severity,
		Namespace: event.Namespace,
		Resource:  fmt.Sprintf("%s/%s", kind, name),
		Message:   fmt.Sprintf("%s on %s/%s: %s", event.Reason, kind, name, event.Message),
		DedupeKey: fmt.Sprintf("k8s_event:%s/%s/%s/%s", event.Namespace, kind, name, event.Reason),
		Count:     int(event.Count),
		Timestamp: time.Now(),
	}
}
