package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
)

// listIncidentsHandler handles GET /api/v1/incidents.
func (s *Server) listIncidentsHandler(c *echo.Context) error {
	incidents := []models.Incident{}
	if s.correlator != nil {
		incidents = s.correlator.ActiveIncidents()
	}
	return c.JSON(http.StatusOK, incidents)
}

// getIncidentHandler handles GET /api/v1/incidents/:id.
func (s *Server) getIncidentHandler(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "incident id is required")
	}
	if s.correlator == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "correlator not running")
	}
	incident := s.correlator.Incident(id)
	if incident == nil {
		return echo.NewHTTPError(http.StatusNotFound, "incident not found")
	}
	return c.JSON(http.StatusOK, incident)
}
