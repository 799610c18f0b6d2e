package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/models"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/store"
)

// listApprovalsHandler handles GET /api/v1/approvals.
func (s *Server) listApprovalsHandler(c *echo.Context) error {
	approvals, err := s.store.Approvals(c.Request().Context())
	if err != nil {
		if store.IsUnavailable(err) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "durable store unavailable")
		}
		return mapGatewayError(err)
	}
	if approvals == nil {
		approvals = []models.Approval{}
	}
	return c.JSON(http.StatusOK, approvals)
}

// approveHandler handles POST /api/v1/approvals/:id/approve: marks the
// approval approved and executes the gated action.
func (s *Server) approveHandler(c *echo.Context) error {
	return s.decide(c, models.ApprovalApproved)
}

// rejectHandler handles POST /api/v1/approvals/:id/reject.
func (s *Server) rejectHandler(c *echo.Context) error {
	return s.decide(c, models.ApprovalRejected)
}

func (s *Server) decide(c *echo.Context, decision string) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "approval id is required")
	}
	ctx := c.Request().Context()

	approval, err := s.store.Approval(ctx, id)
	if err != nil {
		if store.IsUnavailable(err) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "durable store unavailable")
		}
		return mapGatewayError(err)
	}
	if approval == nil {
		return echo.NewHTTPError(http.StatusNotFound, "approval not found")
	}
	if approval.Status != models.ApprovalPending {
		return echo.NewHTTPError(http.StatusConflict, "approval has already been decided")
	}

	now := time.Now().UTC()
	approval.Status = decision
	approval.DecidedAt = &now
	approval.DecidedBy = decidedBy(c)
	if err := s.store.SaveApproval(ctx, *approval); err != nil && !store.IsUnavailable(err) {
		return mapGatewayError(err)
	}

	resp := DecisionResponse{ID: approval.ID, Status: decision}
	if decision == models.ApprovalApproved {
		detail, err := s.gateway.ExecuteApproval(ctx, *approval)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Detail = detail
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// decidedBy resolves the acting user from proxy headers, falling back
// to a generic API identity.
func decidedBy(c *echo.Context) string {
	if user := c.Request().Header.Get("X-Remote-User"); user != "" {
		return user
	}
	return "api-client"
}
