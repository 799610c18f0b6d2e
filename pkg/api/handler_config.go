package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// getConfigHandler handles GET /api/v1/config: every runtime option
// with its effective value.
func (s *Server) getConfigHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.runtime.All(c.Request().Context()))
}

// patchConfigHandler handles PATCH /api/v1/config. The body is a map
// of option names to values; unknown keys or wrong types return 400.
func (s *Server) patchConfigHandler(c *echo.Context) error {
	var req ConfigPatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no options provided")
	}
	ctx := c.Request().Context()
	for key, value := range req {
		if err := s.runtime.Set(ctx, key, value); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusOK, s.runtime.All(ctx))
}

// resetConfigHandler handles POST /api/v1/config/reset. With a key it
// clears that override, without one it clears them all.
func (s *Server) resetConfigHandler(c *echo.Context) error {
	var req ConfigResetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	var err error
	if req.Key == "" {
		err = s.runtime.ResetAll(ctx)
	} else {
		err = s.runtime.Reset(ctx, req.Key)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, s.runtime.All(ctx))
}
