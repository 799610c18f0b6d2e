// Package monitor runs the continuous fast loop: concurrent cluster
// checks feeding a single dispatcher that batches, classifies, and
// routes anomalies to investigation or escalation.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/classifier"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/config"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/events"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/gatus"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/healthcheck"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/kube"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/loki"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/metrics"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/promquery"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/tuner"
)

// queueSize bounds the anomaly queue. Checks drop anomalies when the
// dispatcher falls this far behind.
const queueSize = 256

// recentLimit bounds the anomaly history served by the telemetry API.
const recentLimit = 50

// sweepInterval paces the background purge of stale suppression entries.
const sweepInterval = time.Minute

// InvestigateFunc hands an anomaly batch to the agent.
type InvestigateFunc func(description, threadID string)

// Broadcaster pushes payloads to dashboard clients.
type Broadcaster interface {
	Broadcast(payload any)
}

// Monitor owns the fast loop and the anomaly dispatcher.
type Monitor struct {
	cfg     *config.Settings
	runtime *config.RuntimeStore
	kube    *kube.Client
	prom    *promquery.Client
	loki    *loki.Client
	gatus   *gatus.Client
	ingress *healthcheck.IngressMonitor

	classifier  *classifier.Classifier
	tuner       *tuner.Tuner
	events      Broadcaster
	investigate InvestigateFunc

	queue chan models.Anomaly

	mu         sync.Mutex
	running    bool
	lastLoop   time.Time
	lastWatch  time.Time
	totalSeen  int64
	totalSupp  int64
	suppressed map[string]time.Time
	batches    map[string]*batch
	// recent keeps the newest accepted anomalies for the telemetry API.
	recent []models.Anomaly

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// batch accumulates anomalies for one {namespace}/{resource} target
// during the batch window.
type batch struct {
	anomalies []models.Anomaly
	timer     *time.Timer
}

// Options carries the optional backends.
type Options struct {
	Prom    *promquery.Client
	Loki    *loki.Client
	Gatus   *gatus.Client
	Ingress *healthcheck.IngressMonitor
}

// New builds the monitor. investigate and broadcaster may be nil.
func New(cfg *config.Settings, runtime *config.RuntimeStore, kubeClient *kube.Client,
	cls *classifier.Classifier, tun *tuner.Tuner, broadcaster Broadcaster,
	investigate InvestigateFunc, opts Options) *Monitor {
	return &Monitor{
		cfg:         cfg,
		runtime:     runtime,
		kube:        kubeClient,
		prom:        opts.Prom,
		loki:        opts.Loki,
		gatus:       opts.Gatus,
		ingress:     opts.Ingress,
		classifier:  cls,
		tuner:       tun,
		events:      broadcaster,
		investigate: investigate,
		queue:       make(chan models.Anomaly, queueSize),
		suppressed:  make(map[string]time.Time),
		batches:     make(map[string]*batch),
		stop:        make(chan struct{}),
	}
}

// Start launches the fast loop, the dispatcher, the suppression sweep,
// and the event watcher. It returns immediately. The watcher goroutine
// idles while event_watch_enabled is off so the toggle can be flipped
// at runtime.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	m.running = true
	m.mu.Unlock()
	m.wg.Add(4)
	go m.fastLoop(ctx)
	go m.dispatchLoop(ctx)
	go m.sweepLoop(ctx)
	go m.watchEvents(ctx)
	slog.Info("Continuous monitor started",
		"fast_loop_interval", m.cfg.FastLoopInterval(),
		"event_watch", m.eventWatchEnabled())
}

// Stop shuts the monitor down and waits for its goroutines.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}

// fastLoop runs every check concurrently each tick. The interval is
// re-read from the runtime config store every tick so operator and
// self-tuner changes apply within one iteration.
func (m *Monitor) fastLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		interval := time.Duration(m.runtime.Int(ctx, "fast_loop_interval_seconds")) * time.Second
		if interval <= 0 {
			interval = m.cfg.FastLoopInterval()
		}
		select {
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
		m.RunChecks(ctx)
		m.mu.Lock()
		m.lastLoop = time.Now()
		m.mu.Unlock()
	}
}

// suppressionWindow is the effective dedupe window, runtime override
// first.
func (m *Monitor) suppressionWindow() time.Duration {
	if s := m.runtime.Int(context.Background(), "anomaly_suppression_window"); s > 0 {
		return time.Duration(s) * time.Second
	}
	return m.cfg.SuppressionWindow()
}

// batchWindow is the effective batch window, runtime override first.
func (m *Monitor) batchWindow() time.Duration {
	if s := m.runtime.Int(context.Background(), "anomaly_batch_window"); s > 0 {
		return time.Duration(s) * time.Second
	}
	if w := m.cfg.BatchWindow(); w > 0 {
		return w
	}
	return 10 * time.Second
}

// eventWatchEnabled reflects the runtime toggle for the event watcher.
func (m *Monitor) eventWatchEnabled() bool {
	return m.runtime.Bool(context.Background(), "event_watch_enabled")
}

// RunChecks executes all checks once and enqueues their anomalies.
func (m *Monitor) RunChecks(ctx context.Context) {
	var wg sync.WaitGroup
	for _, check := range m.checks() {
		wg.Add(1)
		go func(check checkFunc) {
			defer wg.Done()
			anomalies, err := check.run(ctx)
			if err != nil {
				slog.Warn("Monitor check failed", "check", check.name, "error", err)
				return
			}
			for _, a := range anomalies {
				m.Enqueue(a)
			}
		}(check)
	}
	wg.Wait()
}

// Enqueue adds one anomaly to the dispatch queue unless its dedupe key
// was emitted within the suppression window.
func (m *Monitor) Enqueue(a models.Anomaly) {
	now := time.Now()
	window := m.suppressionWindow()

	m.mu.Lock()
	m.totalSeen++
	if last, ok := m.suppressed[a.DedupeKey]; ok && now.Sub(last) < window {
		m.totalSupp++
		m.mu.Unlock()
		return
	}
	m.suppressed[a.DedupeKey] = now
	m.recent = append(m.recent, a)
	if len(m.recent) > recentLimit {
		m.recent = m.recent[len(m.recent)-recentLimit:]
	}
	m.mu.Unlock()

	metrics.IssuesDetected.WithLabelValues(a.Source).Inc()
	select {
	case m.queue <- a:
	default:
		slog.Warn("Anomaly queue full, dropping", "dedupe_key", a.DedupeKey)
	}
}

// dispatchLoop batches queued anomalies by target and flushes each
// batch after the batch window.
func (m *Monitor) dispatchLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		case a := <-m.queue:
			m.addToBatch(ctx, a)
		}
	}
}

// sweepLoop purges suppression entries older than twice the window so
// one-off dedupe keys do not accumulate forever.
func (m *Monitor) sweepLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		case <-time.After(sweepInterval):
		}
		if purged := m.sweepSuppressed(time.Now()); purged > 0 {
			slog.Debug("Purged stale suppression entries", "count", purged)
		}
	}
}

func (m *Monitor) sweepSuppressed(now time.Time) int {
	cutoff := 2 * m.suppressionWindow()
	m.mu.Lock()
	defer m.mu.Unlock()
	purged := 0
	for key, at := range m.suppressed {
		if now.Sub(at) >= cutoff {
			delete(m.suppressed, key)
			purged++
		}
	}
	return purged
}

func (m *Monitor) addToBatch(ctx context.Context, a models.Anomaly) {
	key := batchKey(a)
	window := m.batchWindow()

	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[key]
	if !ok {
		b = &batch{}
		b.timer = time.AfterFunc(window, func() { m.flush(ctx, key) })
		m.batches[key] = b
	}
	b.anomalies = append(b.anomalies, a)
}

// flush classifies and routes one completed batch.
func (m *Monitor) flush(ctx context.Context, key string) {
	m.mu.Lock()
	b, ok := m.batches[key]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.batches, key)
	m.mu.Unlock()
	if len(b.anomalies) == 0 {
		return
	}

	external := m.tuner.ExternalCounts()
	level := ""
	for i := range b.anomalies {
		m.tuner.RecordIssue(ctx, b.anomalies[i])
		c := m.classifier.Classify(b.anomalies[i], external)
		level = classifier.MaxLevel(level, c.Level)
	}

	lead := b.anomalies[0]
	if m.events != nil {
		m.events.Broadcast(events.NewAnomalyDetected(lead, level, len(b.anomalies)))
	}
	slog.Info("Anomaly batch dispatched", "target", key,
		"count", len(b.anomalies), "level", level, "source", lead.Source)

	if level == models.LevelLongTerm && m.cfg.AutoEscalateRecurring {
		if ok, err := m.tuner.AutoEscalate(ctx, lead.DedupeKey, describeBatch(b.anomalies)); err != nil {
			slog.Warn("Auto-escalation failed", "key", lead.DedupeKey, "error", err)
		} else if ok {
			return
		}
	}
	if level == models.LevelObserveOnly {
		return
	}
	if m.investigate != nil {
		m.investigate(describeBatch(b.anomalies), threadID(lead))
	}
}

// Status is the monitor's telemetry snapshot.
type Status struct {
	Running         bool      `json:"running"`
	LastLoopTS      time.Time `json:"last_loop_ts"`
	LastWatchTS     time.Time `json:"last_watch_ts"`
	QueueDepth      int       `json:"queue_depth"`
	TotalSeen       int64     `json:"total_seen"`
	TotalSuppressed int64     `json:"total_suppressed"`
	TrackedKeys     int       `json:"tracked_keys"`
	PendingBatches  int       `json:"pending_batches"`
	Checks          []string  `json:"checks"`
	EventWatch      bool      `json:"event_watch"`
}

// Status reports the current state of the fast loop.
func (m *Monitor) Status() Status {
	var names []string
	for _, c := range m.checks() {
		names = append(names, c.name)
	}
	watch := m.eventWatchEnabled()
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Running:         m.running,
		LastLoopTS:      m.lastLoop,
		LastWatchTS:     m.lastWatch,
		QueueDepth:      len(m.queue),
		TotalSeen:       m.totalSeen,
		TotalSuppressed: m.totalSupp,
		TrackedKeys:     len(m.suppressed),
		PendingBatches:  len(m.batches),
		Checks:          names,
		EventWatch:      watch,
	}
}

// RecentAnomalies returns the newest accepted anomalies, newest first.
func (m *Monitor) RecentAnomalies() []models.Anomaly {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Anomaly, len(m.recent))
	for i, a := range m.recent {
		out[len(m.recent)-1-i] = a
	}
	return out
}

// batchKey groups anomalies hitting the same workload.
func batchKey(a models.Anomaly) string {
	return a.Namespace + "/" + a.Resource
}

// threadID is the conversation id for monitor-triggered investigations.
func threadID(a models.Anomaly) string {
	resource := a.Resource
	if i := strings.IndexByte(resource, '/'); i >= 0 {
		resource = resource[i+1:]
	}
	ns := a.Namespace
	if ns == "" {
		ns = "cluster"
	}
	return fmt.Sprintf("cm-%s-%s", ns, resource)
}

func describeBatch(anomalies []models.Anomaly) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d related anomalies detected:\n", len(anomalies))
	for _, a := range anomalies {
		fmt.Fprintf(&b, "- [%s/%s] %s\n", a.Source, a.Severity, a.Message)
	}
	return b.String()
}
