package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/Anomalous-Ventures/cluster-guardian/pkg/metrics"
)

// StatusFunc produces the payload for get_status requests.
type StatusFunc func() any

// ConnectionManager manages WebSocket connections. Each process has one
// instance; every event is fanned out to all connected clients.
type ConnectionManager struct {
	mu          sync.RWMutex
	connections map[string]*Connection

	statusMu sync.RWMutex
	statusFn StatusFunc

	// Write timeout for WebSocket sends.
	writeTimeout time.Duration
}

// Connection represents a single WebSocket client.
type Connection struct {
	ID     string
	Conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

// NewConnectionManager creates a new ConnectionManager.
func NewConnectionManager(writeTimeout time.Duration) *ConnectionManager {
	return &ConnectionManager{
		connections:  make(map[string]*Connection),
		writeTimeout: writeTimeout,
	}
}

// SetStatusFunc sets the callback answering get_status requests. Called
// once during startup after the API server is constructed.
func (m *ConnectionManager) SetStatusFunc(fn StatusFunc) {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	m.statusFn = fn
}

// HandleConnection manages the lifecycle of a single WebSocket
// connection. Called by the WebSocket HTTP handler after upgrade.
// Blocks until the connection closes.
func (m *ConnectionManager) HandleConnection(parentCtx context.Context, conn *websocket.Conn) {
	connID := uuid.New().String()
	ctx, cancel := context.WithCancel(parentCtx)

	c := &Connection{
		ID:     connID,
		Conn:   conn,
		ctx:    ctx,
		cancel: cancel,
	}

	m.registerConnection(c)
	defer m.unregisterConnection(c)

	m.sendJSON(c, map[string]string{
		"type":          "connection.established",
		"connection_id": connID,
	})

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			// Connection closed or errored.
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("Invalid WebSocket message",
				"connection_id", connID, "error", err)
			continue
		}

		m.handleClientMessage(c, &msg)
	}
}

// Broadcast marshals the payload and sends it to every connection.
func (m *ConnectionManager) Broadcast(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("Failed to marshal broadcast payload", "error", err)
		return
	}

	// Snapshot connection pointers under the lock, then release before
	// sending. Writes can take up to writeTimeout per connection and
	// must not stall register/unregister.
	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.connections))
	for _, conn := range m.connections {
		conns = append(conns, conn)
	}
	m.mu.RUnlock()

	for _, conn := range conns {
		if err := m.sendRaw(conn, data); err != nil {
			slog.Warn("Failed to send to WebSocket client",
				"connection_id", conn.ID, "error", err)
		}
	}
}

// ActiveConnections returns the count of active WebSocket connections.
func (m *ConnectionManager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// ConnectionIDs returns the ids of all active connections.
func (m *ConnectionManager) ConnectionIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.connections))
	for id := range m.connections {
		ids = append(ids, id)
	}
	return ids
}

func (m *ConnectionManager) handleClientMessage(c *Connection, msg *ClientMessage) {
	switch msg.Action {
	case ActionPing:
		m.sendJSON(c, map[string]string{"type": "pong"})

	case ActionGetStatus:
		m.statusMu.RLock()
		fn := m.statusFn
		m.statusMu.RUnlock()
		if fn == nil {
			m.sendJSON(c, map[string]string{"type": "error", "message": "status not available"})
			return
		}
		m.sendJSON(c, map[string]any{"type": "status", "data": fn()})

	default:
		m.sendJSON(c, map[string]string{"type": "error", "message": "unknown action"})
	}
}

func (m *ConnectionManager) registerConnection(c *Connection) {
	m.mu.Lock()
	m.connections[c.ID] = c
	count := len(m.connections)
	m.mu.Unlock()
	metrics.ActiveWebsockets.Set(float64(count))
}

func (m *ConnectionManager) unregisterConnection(c *Connection) {
	m.mu.Lock()
	delete(m.connections, c.ID)
	count := len(m.connections)
	m.mu.Unlock()
	metrics.ActiveWebsockets.Set(float64(count))

	c.cancel()
	_ = c.Conn.Close(websocket.StatusNormalClosure, "")
}

// sendJSON marshals and sends a JSON message to a single connection.
func (m *ConnectionManager) sendJSON(c *Connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Failed to marshal WebSocket message",
			"connection_id", c.ID, "error", err)
		return
	}
	if err := m.sendRaw(c, data); err != nil {
		slog.Warn("Failed to send WebSocket message",
			"connection_id", c.ID, "error", err)
	}
}

// sendRaw sends raw bytes to a single connection with a write timeout.
func (m *ConnectionManager) sendRaw(c *Connection, data []byte) error {
	writeCtx, cancel := context.WithTimeout(c.ctx, m.writeTimeout)
	defer cancel()
	return c.Conn.Write(writeCtx, websocket.MessageText, data)
}
