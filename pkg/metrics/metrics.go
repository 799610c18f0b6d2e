// Package metrics defines the Prometheus instrumentation exposed at
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal counts completed cluster scans by result.
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardian_scans_total",
		Help: "Completed cluster scans by result.",
	}, []string{"result"})

	// ScanDuration observes how long scans take.
	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "guardian_scan_duration_seconds",
		Help:    "Duration of cluster scans.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	// RemediationsTotal counts gateway actions by action and result.
	RemediationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardian_remediations_total",
		Help: "Remediation actions attempted through the gateway.",
	}, []string{"action", "result"})

	// HealthCheckStatus reports the latest deep health check per service
	// (1 healthy, 0 unhealthy).
	HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "guardian_health_check_status",
		Help: "Latest deep health check result per service (1 healthy).",
	}, []string{"service"})

	// AgentIterations counts agent loop iterations.
	AgentIterations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guardian_agent_iterations_total",
		Help: "Agent reasoning loop iterations.",
	})

	// RateLimitRemaining reports the remaining action budget for the
	// sliding hour.
	RateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "guardian_rate_limit_remaining",
		Help: "Remaining actions in the sliding one-hour budget.",
	})

	// ActiveWebsockets tracks connected dashboard clients.
	ActiveWebsockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "guardian_active_websockets",
		Help: "Currently connected WebSocket clients.",
	})

	// IssuesDetected counts anomalies by producing check.
	IssuesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardian_issues_detected_total",
		Help: "Anomalies detected by source check.",
	}, []string{"source"})

	// QuorumVotes counts quorum gate outcomes.
	QuorumVotes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardian_quorum_votes_total",
		Help: "Quorum gate decisions by outcome.",
	}, []string{"outcome"})

	// HTTPRequests counts API requests by method, path, and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardian_http_requests_total",
		Help: "HTTP requests served.",
	}, []string{"method", "path", "status"})

	// HTTPDuration observes API request latency by method and path.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "guardian_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)
