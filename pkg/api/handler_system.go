package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// healthHandler handles GET /health and GET /ready. The guardian stays
// ready without Redis; the flag tells operators it runs degraded.
func (s *Server) healthHandler(c *echo.Context) error {
	resp := HealthResponse{Status: "ok"}
	if s.store != nil && s.store.Available(c.Request().Context()) {
		resp.Redis = true
	} else {
		resp.Status = "degraded"
	}
	return c.JSON(http.StatusOK, resp)
}

// liveHandler handles GET /live.
func (s *Server) liveHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// monitorStatusHandler handles GET /api/v1/monitor/status.
func (s *Server) monitorStatusHandler(c *echo.Context) error {
	if s.monitor == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "monitor not running")
	}
	return c.JSON(http.StatusOK, s.monitor.Status())
}

// monitorAnomaliesHandler handles GET /api/v1/monitor/anomalies.
func (s *Server) monitorAnomaliesHandler(c *echo.Context) error {
	if s.monitor == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "monitor not running")
	}
	return c.JSON(http.StatusOK, s.monitor.RecentAnomalies())
}

// connectionsHandler handles GET /api/v1/connections.
func (s *Server) connectionsHandler(c *echo.Context) error {
	resp := ConnectionsResponse{IDs: []string{}}
	if s.events != nil {
		resp.IDs = s.events.ConnectionIDs()
		resp.Count = len(resp.IDs)
	}
	return c.JSON(http.StatusOK, resp)
}
