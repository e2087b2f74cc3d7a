package models

import "encoding/json"

// WebSocket event names. Every frame on the realtime channel is a JSON
// envelope carrying one of these in its "event" field.
const (
	EventRegisterOperator     = "register-operator"
	EventSessionCreated       = "session-created"
	EventJoinSubject          = "join-subject"
	EventSessionJoined        = "session-joined"
	EventSessionError         = "session-error"
	EventOperatorConnected    = "operator-connected"
	EventOperatorDisconnected = "operator-disconnected"
	EventSubjectDisconnected  = "subject-disconnected"
	EventPoseStreamPrimary    = "pose-stream-primary"
	EventPoseStreamFallback   = "pose-stream-fallback"
	EventOperatorCommand      = "operator-command"
	EventNegotiationOffer     = "negotiation-offer"
	EventNegotiationAnswer    = "negotiation-answer"
	EventNegotiationCandidate = "negotiation-candidate"
	EventSnapshotCapture      = "snapshot-capture"
	EventClientLog            = "client-log"
	EventHeartbeat            = "heartbeat"
	EventHeartbeatResponse    = "heartbeat-response"
)

// Envelope is the wire format for all realtime messages. Payload is opaque
// to the server for relayed kinds and decoded only for control events.
type Envelope struct {
	Event           string          `json:"event"`
	Code            string          `json:"code,omitempty"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	ServerTimestamp int64           `json:"server_timestamp,omitempty"`
}

// ClientLogBatch is the payload of a client-log event
type ClientLogBatch struct {
	Logs           []LogEntry `json:"logs"`
	BatchTimestamp int64      `json:"batch_timestamp"`
}

// HeartbeatResponse is the payload returned for a heartbeat event
type HeartbeatResponse struct {
	Timestamp int64 `json:"timestamp"`
	Active    bool  `json:"active"`
}
