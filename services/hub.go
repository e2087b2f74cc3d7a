package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/gofiber/contrib/websocket"

	"poselink/models"
)

// Hub errors
var (
	ErrConnectionNotFound   = errors.New("connection not found")
	ErrConnectionBufferFull = errors.New("connection buffer full")
)

// ConnectionHub tracks live WebSocket connections by their opaque
// connection ID so the registry and relay can address peers without
// holding socket handles themselves.
type ConnectionHub struct {
	connections map[string]*Connection
	mu          sync.RWMutex
}

// Connection represents a single WebSocket connection
type Connection struct {
	Conn *websocket.Conn
	ID   string
	Send chan []byte
}

func NewConnectionHub() *ConnectionHub {
	return &ConnectionHub{
		connections: make(map[string]*Connection),
	}
}

// Register adds a new connection to the hub
func (h *ConnectionHub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[conn.ID] = conn

	slog.Info("Connection registered",
		"connID", conn.ID,
		"totalConnections", len(h.connections))
}

// Unregister removes a connection and closes its send channel
func (h *ConnectionHub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, exists := h.connections[connID]; exists {
		close(conn.Send)
		delete(h.connections, connID)

		slog.Info("Connection unregistered",
			"connID", connID,
			"remainingConnections", len(h.connections))
	}
}

// Send queues raw data for a specific connection. A full buffer drops the
// message rather than blocking the caller.
func (h *ConnectionHub) Send(connID string, data []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conn, exists := h.connections[connID]
	if !exists {
		return ErrConnectionNotFound
	}

	select {
	case conn.Send <- data:
		return nil
	default:
		slog.Warn("Connection buffer full, dropping message", "connID", connID)
		return ErrConnectionBufferFull
	}
}

// SendEvent marshals an envelope and queues it for a connection
func (h *ConnectionHub) SendEvent(connID string, env models.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return h.Send(connID, data)
}

// Count returns the number of live connections
func (h *ConnectionHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}
