package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestManager(t *testing.T) (*ConnectionManager, *httptest.Server) {
	t.Helper()

	manager := NewConnectionManager(5 * time.Second)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			t.Logf("WebSocket accept error: %v", err)
			return
		}
		manager.HandleConnection(r.Context(), conn)
	}))

	t.Cleanup(func() { server.Close() })
	return manager, server
}

func connectWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + server.URL[len("http"):]
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func writeJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func TestConnectionEstablished(t *testing.T) {
	_, server := setupTestManager(t)
	conn := connectWS(t, server)

	msg := readJSON(t, conn)
	assert.Equal(t, "connection.established", msg["type"])
	assert.NotEmpty(t, msg["connection_id"])
}

func TestPingPong(t *testing.T) {
	_, server := setupTestManager(t)
	conn := connectWS(t, server)
	readJSON(t, conn)

	writeJSON(t, conn, ClientMessage{Action: ActionPing})
	msg := readJSON(t, conn)
	assert.Equal(t, "pong", msg["type"])
}

func TestGetStatus(t *testing.T) {
	manager, server := setupTestManager(t)
	manager.SetStatusFunc(func() any {
		return map[string]any{"healthy": true, "incidents": 0}
	})
	conn := connectWS(t, server)
	readJSON(t, conn)

	writeJSON(t, conn, ClientMessage{Action: ActionGetStatus})
	msg := readJSON(t, conn)
	require.Equal(t, "status", msg["type"])
	data, ok := msg["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["healthy"])
}

func TestGetStatusWithoutStatusFunc(t *testing.T) {
	_, server := setupTestManager(t)
	conn := connectWS(t, server)
	readJSON(t, conn)

	writeJSON(t, conn, ClientMessage{Action: ActionGetStatus})
	msg := readJSON(t, conn)
	assert.Equal(t, "error", msg["type"])
}

func TestBroadcastReachesAllConnections(t *testing.T) {
	manager, server := setupTestManager(t)
	connA := connectWS(t, server)
	connB := connectWS(t, server)
	readJSON(t, connA)
	readJSON(t, connB)

	require.Eventually(t, func() bool {
		return manager.ActiveConnections() == 2
	}, 2*time.Second, 10*time.Millisecond)

	manager.Broadcast(ScanCompletePayload{
		Type:      EventTypeScanComplete,
		Success:   true,
		Summary:   "all clear",
		Trigger:   "manual",
		Timestamp: Timestamp(),
	})

	for _, conn := range []*websocket.Conn{connA, connB} {
		msg := readJSON(t, conn)
		assert.Equal(t, EventTypeScanComplete, msg["type"])
		assert.Equal(t, "all clear", msg["summary"])
	}
}

func TestInvalidMessageIgnored(t *testing.T) {
	_, server := setupTestManager(t)
	conn := connectWS(t, server)
	readJSON(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("not json")))

	// The connection survives; ping still answers.
	writeJSON(t, conn, ClientMessage{Action: ActionPing})
	msg := readJSON(t, conn)
	assert.Equal(t, "pong", msg["type"])
}

func TestUnregisterOnClose(t *testing.T) {
	manager, server := setupTestManager(t)
	conn := connectWS(t, server)
	readJSON(t, conn)

	require.Eventually(t, func() bool {
		return manager.ActiveConnections() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))

	require.Eventually(t, func() bool {
		return manager.ActiveConnections() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
