package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"poselink/models"
	"poselink/services"
)

// joinSettleDelay is the deliberate settle time between confirming a
// subject's join and signaling operator-readiness, so the subject side can
// finish interface setup before telemetry starts.
const joinSettleDelay = 500 * time.Millisecond

// RealtimeHandler owns the WebSocket endpoint: connection lifecycle,
// envelope decoding, and dispatch into the registry, relay, log buffer and
// notifier.
type RealtimeHandler struct {
	hub      *services.ConnectionHub
	registry *services.SessionRegistry
	relay    *services.SignalRelay
	logs     *services.LogIngestionBuffer
	notifier *services.NotificationDispatcher
	metrics  *services.ConnectionMetrics
}

func NewRealtimeHandler(
	hub *services.ConnectionHub,
	registry *services.SessionRegistry,
	relay *services.SignalRelay,
	logs *services.LogIngestionBuffer,
	notifier *services.NotificationDispatcher,
	metrics *services.ConnectionMetrics,
) *RealtimeHandler {
	return &RealtimeHandler{
		hub:      hub,
		registry: registry,
		relay:    relay,
		logs:     logs,
		notifier: notifier,
		metrics:  metrics,
	}
}

// WebSocketUpgrade upgrades HTTP connection to WebSocket
func WebSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handle runs one WebSocket connection until it closes
func (h *RealtimeHandler) Handle(c *websocket.Conn) {
	connID := uuid.New().String()
	conn := &services.Connection{
		Conn: c,
		ID:   connID,
		Send: make(chan []byte, 256),
	}

	h.hub.Register(conn)
	h.metrics.ConnectionsOpened.Add(1)

	defer func() {
		h.handleDisconnect(connID)
		h.hub.Unregister(connID)
		h.metrics.ConnectionsClosed.Add(1)
	}()

	slog.Info("WebSocket connection established", "connID", connID)

	go h.writePump(conn)
	h.readPump(conn)
}

// writePump sends queued messages to the client and keeps the connection
// alive with periodic pings
func (h *RealtimeHandler) writePump(conn *services.Connection) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Error("Failed to write WebSocket message", "error", err)
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump receives messages from the client and dispatches them
func (h *RealtimeHandler) readPump(conn *services.Connection) {
	defer func() {
		conn.Conn.Close()
	}()

	conn.Conn.SetReadLimit(512 * 1024) // 512KB max message size
	conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, messageBytes, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket read error", "error", err)
			}
			break
		}

		conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var env models.Envelope
		if err := json.Unmarshal(messageBytes, &env); err != nil {
			slog.Error("Failed to parse WebSocket message", "error", err)
			continue
		}

		h.Dispatch(conn.ID, env)
	}
}

// Dispatch routes one decoded envelope to the component that handles it
func (h *RealtimeHandler) Dispatch(connID string, env models.Envelope) {
	switch env.Event {
	case models.EventRegisterOperator:
		h.handleRegisterOperator(connID, env)

	case models.EventJoinSubject:
		h.handleJoinSubject(connID, env)

	case models.EventPoseStreamPrimary,
		models.EventPoseStreamFallback,
		models.EventOperatorCommand,
		models.EventNegotiationOffer,
		models.EventNegotiationAnswer,
		models.EventNegotiationCandidate,
		models.EventSnapshotCapture:
		h.relay.Forward(connID, env)

	case models.EventClientLog:
		h.handleClientLog(connID, env)

	case models.EventHeartbeat:
		h.handleHeartbeat(connID, env)

	default:
		slog.Warn("Unknown WebSocket event", "event", env.Event, "connID", connID)
	}
}

func (h *RealtimeHandler) handleRegisterOperator(connID string, env models.Envelope) {
	code, err := h.registry.CreateSession(connID, env.Payload)
	if err != nil {
		slog.Error("Failed to create session", "connID", connID, "error", err)
		h.sendError(connID, "failed to create session")
		return
	}

	h.hub.SendEvent(connID, models.Envelope{
		Event: models.EventSessionCreated,
		Code:  code,
	})
}

func (h *RealtimeHandler) handleJoinSubject(connID string, env models.Envelope) {
	info, err := h.registry.JoinSession(env.Code, connID, env.Payload)
	if err != nil {
		h.sendError(connID, err.Error())
		return
	}

	h.hub.SendEvent(connID, models.Envelope{
		Event:   models.EventSessionJoined,
		Code:    info.Code,
		Payload: info.OperatorProfile,
	})

	// Give the subject interface time to settle before telling the
	// operator the pair is ready. The session is re-validated when the
	// timer fires since it may have been torn down in the meantime.
	code := env.Code
	time.AfterFunc(joinSettleDelay, func() {
		session, ok := h.registry.Lookup(code)
		if !ok || !session.Active || session.SubjectConn != connID {
			return
		}
		h.hub.SendEvent(session.OperatorConn, models.Envelope{
			Event:   models.EventOperatorConnected,
			Code:    code,
			Payload: session.SubjectProfile,
		})
	})
}

func (h *RealtimeHandler) handleClientLog(connID string, env models.Envelope) {
	var batch models.ClientLogBatch
	if err := json.Unmarshal(env.Payload, &batch); err != nil {
		slog.Error("Failed to parse client log batch", "connID", connID, "error", err)
		return
	}

	h.logs.Append(batch.Logs)

	for _, entry := range batch.Logs {
		if entry.Level != models.LevelError && entry.Level != models.LevelCritical {
			continue
		}

		if entry.Level == models.LevelCritical && entry.Category == "video" {
			// Loss of the external video connection gets the immediate
			// path, bypassing the batch queue and rate limiter.
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			h.notifier.SendCriticalAlert(ctx, entry.SessionCode, entry.UserType, entry.Message, string(entry.Data))
			cancel()
			continue
		}

		h.notifier.Enqueue(models.NotificationEvent{
			Level:       entry.Level,
			UserType:    entry.UserType,
			SessionCode: entry.SessionCode,
			Message:     entry.Message,
			Details:     string(entry.Data),
			OccurredAt:  entry.Timestamp,
		})
	}
}

func (h *RealtimeHandler) handleHeartbeat(connID string, env models.Envelope) {
	session, ok := h.registry.Lookup(env.Code)
	active := ok && session.Active

	payload, err := json.Marshal(models.HeartbeatResponse{
		Timestamp: time.Now().UnixMilli(),
		Active:    active,
	})
	if err != nil {
		return
	}

	h.hub.SendEvent(connID, models.Envelope{
		Event:   models.EventHeartbeatResponse,
		Code:    env.Code,
		Payload: payload,
	})
}

// handleDisconnect updates the registry and notifies the surviving peer
func (h *RealtimeHandler) handleDisconnect(connID string) {
	result, found := h.registry.HandleDisconnect(connID)
	if !found {
		return
	}

	switch result.Role {
	case models.RoleOperator:
		if result.Session.SubjectConn != "" {
			h.hub.SendEvent(result.Session.SubjectConn, models.Envelope{
				Event: models.EventOperatorDisconnected,
				Code:  result.Session.Code,
			})
		}
	case models.RoleSubject:
		h.hub.SendEvent(result.Session.OperatorConn, models.Envelope{
			Event: models.EventSubjectDisconnected,
			Code:  result.Session.Code,
		})
	}
}

// sendError reports a user-facing failure back to the originating
// connection as a session-error message
func (h *RealtimeHandler) sendError(connID, message string) {
	payload, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return
	}
	h.hub.SendEvent(connID, models.Envelope{
		Event:   models.EventSessionError,
		Payload: payload,
	})
}
