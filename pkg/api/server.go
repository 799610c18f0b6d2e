// Package api exposes the guardian's HTTP surface: the REST API, the
// Alertmanager and Falco webhooks, the WebSocket stream, and metrics.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/config"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/correlator"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/events"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/healthcheck"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/kube"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/monitor"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/store"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/tuner"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// Agent is the investigation surface the API drives. Satisfied by
// agent.Orchestrator.
type Agent interface {
	Scan(ctx context.Context, trigger string) models.InvestigationResult
	Investigate(ctx context.Context, description, threadID string) models.InvestigationResult
}

// Deps carries the server's collaborators. Optional ones may be nil and
// their routes respond 503.
type Deps struct {
	Config     *config.Settings
	Runtime    *config.RuntimeStore
	Store      *store.Store
	Gateway    *kube.Gateway
	Agent      Agent
	Monitor    *monitor.Monitor
	Correlator *correlator.Correlator
	Tuner      *tuner.Tuner
	Checker    *healthcheck.Checker
	Discovery  *healthcheck.Discovery
	Events     *events.ConnectionManager
}

// Server is the guardian HTTP server.
type Server struct {
	cfg        *config.Settings
	runtime    *config.RuntimeStore
	store      *store.Store
	gateway    *kube.Gateway
	agent      Agent
	monitor    *monitor.Monitor
	correlator *correlator.Correlator
	tuner      *tuner.Tuner
	checker    *healthcheck.Checker
	discovery  *healthcheck.Discovery
	events     *events.ConnectionManager

	httpSrv  *http.Server
	stopScan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewServer builds the server and its route table.
func NewServer(deps Deps) *Server {
	s := &Server{
		cfg:        deps.Config,
		runtime:    deps.Runtime,
		store:      deps.Store,
		gateway:    deps.Gateway,
		agent:      deps.Agent,
		monitor:    deps.Monitor,
		correlator: deps.Correlator,
		tuner:      deps.Tuner,
		checker:    deps.Checker,
		discovery:  deps.Discovery,
		events:     deps.Events,
		stopScan:   make(chan struct{}),
	}
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", deps.Config.Host, deps.Config.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.Use(securityHeaders())
	e.Use(observeRequests())

	e.GET("/health", s.healthHandler)
	e.GET("/ready", s.healthHandler)
	e.GET("/live", s.liveHandler)
	e.GET("/metrics", func(c *echo.Context) error {
		promhttp.Handler().ServeHTTP(c.Response(), c.Request())
		return nil
	})
	e.GET("/ws", s.wsHandler)

	e.POST("/webhook/alertmanager", s.alertmanagerHandler)
	e.POST("/webhook/falco", s.falcoHandler)

	v1 := e.Group("/api/v1")
	v1.POST("/scan", s.scanHandler)
	v1.GET("/scan/last", s.lastScanHandler)
	v1.POST("/investigate", s.investigateHandler)
	v1.GET("/audit-log", s.auditLogHandler)
	v1.GET("/approvals", s.listApprovalsHandler)
	v1.POST("/approvals/:id/approve", s.approveHandler)
	v1.POST("/approvals/:id/reject", s.rejectHandler)
	v1.GET("/incidents", s.listIncidentsHandler)
	v1.GET("/incidents/:id", s.getIncidentHandler)
	v1.GET("/monitor/status", s.monitorStatusHandler)
	v1.GET("/monitor/anomalies", s.monitorAnomaliesHandler)
	v1.GET("/config", s.getConfigHandler)
	v1.PATCH("/config", s.patchConfigHandler)
	v1.POST("/config/reset", s.resetConfigHandler)
	v1.GET("/health-checks", s.healthChecksHandler)
	v1.GET("/escalations", s.escalationsHandler)
	v1.GET("/services/discovered", s.discoveredServicesHandler)
	v1.GET("/self-tuner/suggestions", s.suggestionsHandler)
	v1.GET("/connections", s.connectionsHandler)
	return e
}

// Start begins serving and launches the periodic scan loop. It blocks
// until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.wg.Add(1)
	go s.scanLoop()
	slog.Info("API server listening", "addr", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops the scan loop and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopScan) })
	s.wg.Wait()
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

// scanLoop triggers a full scan every scan interval. The interval is
// re-read from the config store each cycle so runtime overrides apply
// without a restart.
func (s *Server) scanLoop() {
	defer s.wg.Done()
	for {
		interval := time.Duration(s.runtime.Int(context.Background(), "scan_interval_seconds")) * time.Second
		if interval <= 0 {
			interval = s.cfg.ScanInterval()
		}
		select {
		case <-s.stopScan:
			return
		case <-time.After(interval):
		}
		if s.agent == nil {
			continue
		}
		ctx := context.Background()
		result := s.agent.Scan(ctx, "periodic")
		if err := s.store.SetLastScan(ctx, result); err != nil && !store.IsUnavailable(err) {
			slog.Warn("Persisting scan result failed", "error", err)
		}
	}
}
