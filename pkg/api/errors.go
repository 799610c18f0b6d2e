package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/kube"
	"github.com/Anomalous-Ventures/cluster-guardian/pkg/store"
)

// mapGatewayError maps action gateway errors to HTTP error responses.
// Policy refusals are client-visible conditions, not server faults.
func mapGatewayError(err error) *echo.HTTPError {
	var protected *kube.ProtectedNamespaceError
	if errors.As(err, &protected) {
		return echo.NewHTTPError(http.StatusForbidden, protected.Error())
	}
	var rateLimited *kube.RateLimitedError
	if errors.As(err, &rateLimited) {
		return echo.NewHTTPError(http.StatusTooManyRequests, rateLimited.Error())
	}
	var approval *kube.ApprovalRequiredError
	if errors.As(err, &approval) {
		return echo.NewHTTPError(http.StatusAccepted, approval.Error())
	}
	if store.IsUnavailable(err) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "durable store unavailable")
	}

	slog.Error("Unexpected gateway error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
