package api

import (
	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"
)

// wsHandler upgrades HTTP connections to WebSocket and delegates to the
// ConnectionManager. Without a configured origin allowlist any origin
// is accepted, which suits in-cluster dashboards behind an ingress.
func (s *Server) wsHandler(c *echo.Context) error {
	if s.events == nil {
		return echo.NewHTTPError(503, "WebSocket not available")
	}

	opts := &websocket.AcceptOptions{}
	if len(s.cfg.AllowedWSOrigins) > 0 {
		opts.OriginPatterns = s.cfg.AllowedWSOrigins
	} else {
		opts.InsecureSkipVerify = true
	}
	conn, err := websocket.Accept(c.Response(), c.Request(), opts)
	if err != nil {
		return err
	}

	// HandleConnection blocks until the WebSocket closes.
	s.events.HandleConnection(c.Request().Context(), conn)
	return nil
}
