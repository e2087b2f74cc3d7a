package services

import "sync/atomic"

// ConnectionMetrics holds passive counters consumed by the /metrics endpoint.
// All fields are updated atomically; there is no reset.
type ConnectionMetrics struct {
	ConnectionsOpened   atomic.Int64
	ConnectionsClosed   atomic.Int64
	MessagesRelayed     atomic.Int64
	FallbackFrames      atomic.Int64
	UnauthorizedDrops   atomic.Int64
	UnknownSessionDrops atomic.Int64
	SessionsCreated     atomic.Int64
	SessionsDestroyed   atomic.Int64
	SessionsSwept       atomic.Int64
	AlertBatchesSent    atomic.Int64
	AlertBatchesFailed  atomic.Int64
}

// MetricsSnapshot is the JSON shape served by GET /metrics
type MetricsSnapshot struct {
	ConnectionsOpened   int64 `json:"connections_opened"`
	ConnectionsClosed   int64 `json:"connections_closed"`
	MessagesRelayed     int64 `json:"messages_relayed"`
	FallbackFrames      int64 `json:"fallback_frames"`
	UnauthorizedDrops   int64 `json:"unauthorized_drops"`
	UnknownSessionDrops int64 `json:"unknown_session_drops"`
	SessionsCreated     int64 `json:"sessions_created"`
	SessionsDestroyed   int64 `json:"sessions_destroyed"`
	SessionsSwept       int64 `json:"sessions_swept"`
	AlertBatchesSent    int64 `json:"alert_batches_sent"`
	AlertBatchesFailed  int64 `json:"alert_batches_failed"`
}

func NewConnectionMetrics() *ConnectionMetrics {
	return &ConnectionMetrics{}
}

// Snapshot returns a point-in-time copy of all counters
func (m *ConnectionMetrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		ConnectionsOpened:   m.ConnectionsOpened.Load(),
		ConnectionsClosed:   m.ConnectionsClosed.Load(),
		MessagesRelayed:     m.MessagesRelayed.Load(),
		FallbackFrames:      m.FallbackFrames.Load(),
		UnauthorizedDrops:   m.UnauthorizedDrops.Load(),
		UnknownSessionDrops: m.UnknownSessionDrops.Load(),
		SessionsCreated:     m.SessionsCreated.Load(),
		SessionsDestroyed:   m.SessionsDestroyed.Load(),
		SessionsSwept:       m.SessionsSwept.Load(),
		AlertBatchesSent:    m.AlertBatchesSent.Load(),
		AlertBatchesFailed:  m.AlertBatchesFailed.Load(),
	}
}
