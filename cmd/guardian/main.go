// Cluster Guardian server: continuous monitoring, incident
// correlation, and agentic investigation for a Kubernetes cluster.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/agent"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/api"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/certmon"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/classifier"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/config"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/correlator"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/devloop"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/events"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/gatus"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/ghpr"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/healthcheck"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/k8sgpt"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/kube"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/loki"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/longhorn"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/memory"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/monitor"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/notify"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/playbook"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/promquery"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/security"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/store"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/tuner"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/version"
)

// housekeepingInterval paces incident expiry and interval tuning.
const housekeepingInterval = 10 * time.Minute

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "."),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Debug("No .env file, continuing with existing environment", "path", envPath)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	cfg, err := config.Initialize(*configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	slog.Info("Starting Cluster Guardian",
		"version", version.Full(), "host", cfg.Host, "port", cfg.Port)

	ctx := context.Background()

	// Durable store. Runs degraded (in-memory state only) without Redis.
	st, err := store.New(cfg.RedisURL)
	if err != nil {
		slog.Error("Invalid Redis configuration", "error", err)
		os.Exit(1)
	}
	defer func() { _ = st.Close() }()
	if st.Available(ctx) {
		slog.Info("Connected to Redis")
	}
	runtimeStore := config.NewRuntimeStore(st.Client(), cfg)

	kubeClient, err := kube.NewClient(cfg.KubeconfigPath)
	if err != nil {
		slog.Error("Failed to build Kubernetes client", "error", err)
		os.Exit(1)
	}

	// Optional backends. A nil client disables its checks and tools.
	var prom *promquery.Client
	if cfg.PrometheusURL != "" {
		if prom, err = promquery.NewClient(cfg.PrometheusURL); err != nil {
			slog.Warn("Metric backend unavailable", "error", err)
		}
	}
	var lokiClient *loki.Client
	if cfg.LokiURL != "" {
		lokiClient = loki.NewClient(cfg.LokiURL)
	}
	var gatusClient *gatus.Client
	if cfg.GatusURL != "" {
		gatusClient = gatus.NewClient(cfg.GatusURL)
	}
	var k8sgptClient *k8sgpt.Client
	if cfg.K8sGPTEnabled && cfg.K8sGPTURL != "" {
		k8sgptClient = k8sgpt.NewClient(cfg.K8sGPTURL)
	}
	var crowdsec *security.CrowdSecClient
	if cfg.CrowdSecLAPIURL != "" {
		crowdsec = security.NewCrowdSecClient(cfg.CrowdSecLAPIURL, cfg.CrowdSecAPIKey)
	}
	var longhornClient *longhorn.Client
	if cfg.LonghornURL != "" {
		longhornClient = longhorn.NewClient(cfg.LonghornURL)
	}
	var dev *devloop.Client
	if cfg.DevControllerEnabled && cfg.DevControllerURL != "" {
		dev = devloop.NewClient(cfg.DevControllerURL)
	}
	var github *ghpr.Client
	if cfg.GitHubToken != "" {
		github = ghpr.NewClient(cfg.GitHubToken, cfg.GitHubOwner, cfg.GitHubRepo, cfg.GitHubBaseBranch)
	}
	certs := certmon.NewMonitor(kubeClient.Dynamic())
	notifier := notify.NewHub(cfg)

	checker := healthcheck.NewChecker()
	if cfg.Domain != "" {
		checker.RegisterSSL("domain-certificate", cfg.Domain)
	}
	ingress := healthcheck.NewIngressMonitor(kubeClient.Clientset(), kubeClient.Dynamic(), checker)
	discovery := healthcheck.NewDiscovery(ingress, 10)

	var mem *memory.Memory
	if cfg.LLMBaseURL != "" {
		embedder := memory.NewOpenAIEmbedder(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModel)
		mem = memory.New(st.Client(), embedder)
	}

	gateway := kube.NewGateway(kubeClient, cfg, runtimeStore, st)
	cls := classifier.New(func() int { return runtimeStore.Int(ctx, "escalation_threshold") })
	tun := tuner.New(st, runtimeStore, dev)
	tun.LoadPersisted(ctx)
	playbooks := playbook.NewRegistry()
	connManager := events.NewConnectionManager(10 * time.Second)

	// Agent loop.
	llm := agent.NewOpenAIClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)
	quorum := agent.NewDynamicQuorum(llm, func() (bool, int, float64) {
		return runtimeStore.Bool(ctx, "quorum_enabled"),
			runtimeStore.Int(ctx, "quorum_agents"),
			runtimeStore.Float(ctx, "quorum_threshold")
	}, func(p events.QuorumVotePayload) { connManager.Broadcast(p) })
	quiet, err := agent.NewDynamicQuietHours(func() (string, string, string) {
		return runtimeStore.String(ctx, "quiet_hours_start"),
			runtimeStore.String(ctx, "quiet_hours_end"),
			runtimeStore.String(ctx, "quiet_hours_tz")
	})
	if err != nil {
		slog.Error("Invalid quiet hours configuration", "error", err)
		os.Exit(1)
	}
	tools := agent.BuildTools(agent.Deps{
		Kube:      kubeClient,
		Gateway:   gateway,
		Prom:      prom,
		Loki:      lokiClient,
		Gatus:     gatusClient,
		K8sGPT:    k8sgptClient,
		CrowdSec:  crowdsec,
		Longhorn:  longhornClient,
		Certs:     certs,
		Health:    checker,
		Memory:    mem,
		Playbooks: playbooks,
		Notifier:  notifier,
		GitHub:    github,
		Dev:       dev,
	})
	orchestrator := agent.NewOrchestrator(llm, tools, quorum, quiet, gateway, mem, connManager,
		func() int { return runtimeStore.Int(ctx, "max_agent_iterations") })
	slog.Info("Agent initialized", "tools", len(tools),
		"quorum", cfg.QuorumEnabled, "model", cfg.LLMModel)

	investigate := func(description, threadID string) {
		go orchestrator.Investigate(context.Background(), description, threadID)
	}

	// Incident correlator.
	corr := correlator.New(
		func() (time.Duration, time.Duration, time.Duration) {
			return time.Duration(runtimeStore.Int(ctx, "correlation_window_seconds")) * time.Second,
				time.Duration(runtimeStore.Int(ctx, "correlation_debounce_seconds")) * time.Second,
				time.Duration(runtimeStore.Int(ctx, "correlation_expiry_seconds")) * time.Second
		},
		func(incidentID, description, threadID string) { investigate(description, threadID) },
	)
	defer corr.Stop()

	// Continuous monitor.
	mon := monitor.New(cfg, runtimeStore, kubeClient, cls, tun, connManager, investigate,
		monitor.Options{Prom: prom, Loki: lokiClient, Gatus: gatusClient, Ingress: ingress})
	mon.Start(ctx)
	defer mon.Stop()

	connManager.SetStatusFunc(func() any {
		return map[string]any{
			"monitor":    mon.Status(),
			"rate_limit": gateway.RateLimitStatus(context.Background()),
			"incidents":  len(corr.ActiveIncidents()),
			"version":    version.Full(),
		}
	})

	// Housekeeping: expire stale incidents, adapt loop intervals.
	housekeepingStop := make(chan struct{})
	go func() {
		for {
			select {
			case <-housekeepingStop:
				return
			case <-time.After(housekeepingInterval):
			}
			if expired := corr.ExpireOld(); expired > 0 {
				slog.Info("Expired stale incidents", "count", expired)
			}
			if _, err := tun.TuneIntervals(context.Background()); err != nil {
				slog.Warn("Interval tuning failed", "error", err)
			}
		}
	}()
	defer close(housekeepingStop)

	srv := api.NewServer(api.Deps{
		Config:     cfg,
		Runtime:    runtimeStore,
		Store:      st,
		Gateway:    gateway,
		Agent:      orchestrator,
		Monitor:    mon,
		Correlator: corr,
		Tuner:      tun,
		Checker:    checker,
		Discovery:  discovery,
		Events:     connManager,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	if notifier.Enabled() {
		notifier.Notify(ctx, notify.Notification{
			Title:    "Cluster Guardian started",
			Message:  "Monitoring is active on " + cfg.Domain,
			Severity: models.SeverityInfo,
		})
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	slog.Info("Shutdown complete")
}
