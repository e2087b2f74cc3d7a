package services

import (
	"log/slog"
	"time"

	"poselink/models"
)

// PeerSender delivers an envelope to a connection by ID. Implemented by
// ConnectionHub; injected so the relay can be tested without sockets.
type PeerSender interface {
	SendEvent(connID string, env models.Envelope) error
}

type relayTarget int

const (
	targetOperator relayTarget = iota
	targetSubject
	targetOther // whichever party the sender is not
	targetBoth
)

type relayRoute struct {
	sender models.Role // required sender role; empty means either party
	target relayTarget
}

// relayRoutes maps each forwardable event to its authorization and routing
// rule. Events absent from this table are never relayed.
var relayRoutes = map[string]relayRoute{
	models.EventPoseStreamPrimary:    {models.RoleSubject, targetOperator},
	models.EventPoseStreamFallback:   {models.RoleSubject, targetOperator},
	models.EventOperatorCommand:      {models.RoleOperator, targetSubject},
	models.EventNegotiationOffer:     {models.RoleSubject, targetOperator},
	models.EventNegotiationAnswer:    {models.RoleOperator, targetSubject},
	models.EventNegotiationCandidate: {"", targetOther},
	models.EventSnapshotCapture:      {models.RoleOperator, targetBoth},
}

// SignalRelay forwards messages between the two connections of a session
// after verifying the sender owns the claimed role. It holds no state of
// its own; every message consults the registry synchronously.
type SignalRelay struct {
	registry *SessionRegistry
	peers    PeerSender
	metrics  *ConnectionMetrics
}

func NewSignalRelay(registry *SessionRegistry, peers PeerSender, metrics *ConnectionMetrics) *SignalRelay {
	return &SignalRelay{
		registry: registry,
		peers:    peers,
		metrics:  metrics,
	}
}

// Forward routes env to the paired connection(s) of its session. Messages
// failing the role check or referencing an unknown or inactive session are
// dropped silently; the drop is counted and logged, never surfaced to the
// sender. Returns whether the message was forwarded.
func (r *SignalRelay) Forward(senderConn string, env models.Envelope) bool {
	route, ok := relayRoutes[env.Event]
	if !ok {
		slog.Warn("Unroutable event kind", "event", env.Event, "connID", senderConn)
		return false
	}

	session, ok := r.registry.Lookup(env.Code)
	if !ok || !session.Active {
		r.metrics.UnknownSessionDrops.Add(1)
		slog.Debug("Dropped message for unknown or inactive session",
			"event", env.Event, "code", env.Code)
		return false
	}

	var senderRole models.Role
	switch senderConn {
	case session.OperatorConn:
		senderRole = models.RoleOperator
	case session.SubjectConn:
		senderRole = models.RoleSubject
	default:
		r.metrics.UnauthorizedDrops.Add(1)
		slog.Warn("Dropped message from connection outside session",
			"event", env.Event, "code", env.Code, "connID", senderConn)
		return false
	}

	if route.sender != "" && senderRole != route.sender {
		r.metrics.UnauthorizedDrops.Add(1)
		slog.Warn("Dropped message failing role check",
			"event", env.Event, "code", env.Code, "role", senderRole)
		return false
	}

	if env.Event == models.EventPoseStreamFallback {
		// Log only every 100th frame to avoid flooding on fallback streams
		if n := r.metrics.FallbackFrames.Add(1); n%100 == 0 {
			slog.Info("Fallback pose stream in use", "code", env.Code, "frames", n)
		}
	}

	out := models.Envelope{
		Event:   env.Event,
		Code:    env.Code,
		Payload: env.Payload,
	}
	if env.Event == models.EventSnapshotCapture {
		out.ServerTimestamp = time.Now().UnixMilli()
	}

	switch route.target {
	case targetOperator:
		r.deliver(session.OperatorConn, out)
	case targetSubject:
		r.deliver(session.SubjectConn, out)
	case targetOther:
		if senderRole == models.RoleOperator {
			r.deliver(session.SubjectConn, out)
		} else {
			r.deliver(session.OperatorConn, out)
		}
	case targetBoth:
		r.deliver(session.OperatorConn, out)
		r.deliver(session.SubjectConn, out)
	}

	r.metrics.MessagesRelayed.Add(1)
	return true
}

func (r *SignalRelay) deliver(connID string, env models.Envelope) {
	if connID == "" {
		return
	}
	if err := r.peers.SendEvent(connID, env); err != nil {
		slog.Warn("Failed to deliver relayed message",
			"event", env.Event, "connID", connID, "error", err)
	}
}
