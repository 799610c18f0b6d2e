package api

import (
	"context"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/healthcheck"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/tuner"
)

// healthChecksHandler handles GET /api/v1/health-checks: runs every
// registered deep health check and returns the results. ?cached=true
// serves the previous run instead.
func (s *Server) healthChecksHandler(c *echo.Context) error {
	if s.checker == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "health checks not configured")
	}
	var results []healthcheck.Result
	if c.QueryParam("cached") == "true" {
		results = s.checker.Results()
	} else {
		results = s.checker.RunAll(c.Request().Context())
	}
	if results == nil {
		results = []healthcheck.Result{}
	}
	return c.JSON(http.StatusOK, results)
}

// escalationsHandler handles GET /api/v1/escalations: recurring
// patterns together with whether each has been escalated.
func (s *Server) escalationsHandler(c *echo.Context) error {
	items := []EscalationItem{}
	if s.tuner != nil {
		ctx := c.Request().Context()
		for _, p := range s.tuner.Patterns() {
			items = append(items, EscalationItem{
				Pattern:   p,
				Escalated: s.isEscalated(ctx, p.Key),
			})
		}
	}
	return c.JSON(http.StatusOK, items)
}

func (s *Server) isEscalated(ctx context.Context, key string) bool {
	escalated, err := s.store.IsEscalated(ctx, key)
	return err == nil && escalated
}

// discoveredServicesHandler handles GET /api/v1/services/discovered.
func (s *Server) discoveredServicesHandler(c *echo.Context) error {
	if s.discovery == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "service discovery not configured")
	}
	services := s.discovery.Services(c.Request().Context())
	if services == nil {
		services = []healthcheck.Route{}
	}
	return c.JSON(http.StatusOK, services)
}

// suggestionsHandler handles GET /api/v1/self-tuner/suggestions.
func (s *Server) suggestionsHandler(c *echo.Context) error {
	suggestions := []tuner.Suggestion{}
	if s.tuner != nil {
		threshold := s.runtime.Int(c.Request().Context(), "escalation_threshold")
		suggestions = append(suggestions, s.tuner.SuggestImprovements(threshold)...)
	}
	return c.JSON(http.StatusOK, suggestions)
}
