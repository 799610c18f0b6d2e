package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/store"
)

// scanHandler handles POST /api/v1/scan: one full synchronous sweep.
func (s *Server) scanHandler(c *echo.Context) error {
	if s.agent == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "agent not configured")
	}
	ctx := c.Request().Context()
	result := s.agent.Scan(ctx, "manual")
	if err := s.store.SetLastScan(ctx, result); err != nil && !store.IsUnavailable(err) {
		return mapGatewayError(err)
	}
	return c.JSON(http.StatusOK, ScanResponse{
		Success:         result.Success,
		Summary:         result.Summary,
		Error:           result.Error,
		AuditLog:        result.AuditLog,
		RateLimit:       result.RateLimit,
		DurationSeconds: result.DurationSeconds,
		Timestamp:       result.Timestamp.UTC().Format(time.RFC3339),
	})
}

// lastScanHandler handles GET /api/v1/scan/last.
func (s *Server) lastScanHandler(c *echo.Context) error {
	result, err := s.store.LastScan(c.Request().Context())
	if err != nil {
		if store.IsUnavailable(err) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "durable store unavailable")
		}
		return mapGatewayError(err)
	}
	if result == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no scan has completed yet")
	}
	return c.JSON(http.StatusOK, result)
}

// investigateHandler handles POST /api/v1/investigate. The request is
// synchronous; started and completed events share the returned
// investigation id.
func (s *Server) investigateHandler(c *echo.Context) error {
	if s.agent == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "agent not configured")
	}
	var req InvestigateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Description == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "description field is required")
	}
	threadID := req.ThreadID
	if threadID == "" {
		threadID = "api-" + uuid.NewString()[:8]
	}

	result := s.agent.Investigate(c.Request().Context(), req.Description, threadID)
	investigationID := result.InvestigationID
	if investigationID == "" {
		investigationID = threadID
	}
	return c.JSON(http.StatusOK, InvestigateResponse{
		Success:         result.Success,
		Summary:         result.Summary,
		Error:           result.Error,
		AuditLog:        result.AuditLog,
		InvestigationID: investigationID,
		DurationSeconds: result.DurationSeconds,
		Timestamp:       result.Timestamp.UTC().Format(time.RFC3339),
	})
}

// auditLogHandler handles GET /api/v1/audit-log.
func (s *Server) auditLogHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	entries := s.gateway.AuditLog(ctx, 100)
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	return c.JSON(http.StatusOK, AuditLogResponse{
		Entries:   entries,
		RateLimit: s.gateway.RateLimitStatus(ctx),
	})
}
