package models

import (
	"encoding/json"
	"time"
)

// Log severity levels reported by clients
const (
	LevelInfo     = "info"
	LevelSuccess  = "success"
	LevelWarning  = "warning"
	LevelError    = "error"
	LevelDebug    = "debug"
	LevelCritical = "critical"
)

// LogEntry is a client-reported observability event. Entries are immutable
// once stored; ServerReceivedAt is stamped on ingestion.
type LogEntry struct {
	Timestamp        time.Time       `json:"timestamp"`
	ServerReceivedAt time.Time       `json:"server_received_at"`
	Level            string          `json:"level"`
	Category         string          `json:"category"`
	Message          string          `json:"message"`
	UserType         Role            `json:"user_type"`
	SessionCode      string          `json:"session_code"`
	Data             json.RawMessage `json:"data,omitempty"`
}

// LogFilter selects entries matching all provided fields; empty fields match
// everything.
type LogFilter struct {
	SessionCode string
	UserType    string
	Category    string
	Level       string
}

// Matches reports whether the entry satisfies every set filter field
func (f LogFilter) Matches(e LogEntry) bool {
	if f.SessionCode != "" && e.SessionCode != f.SessionCode {
		return false
	}
	if f.UserType != "" && string(e.UserType) != f.UserType {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Level != "" && e.Level != f.Level {
		return false
	}
	return true
}

// LogSummary is the aggregate view served alongside queries
type LogSummary struct {
	Total        int `json:"total"`
	ErrorCount   int `json:"error_count"`
	WarningCount int `json:"warning_count"`
}

// NotificationEvent is derived from an error or critical LogEntry and queued
// for batched alert delivery. Never mutated after creation.
type NotificationEvent struct {
	Level       string    `json:"level"`
	UserType    Role      `json:"user_type"`
	SessionCode string    `json:"session_code"`
	Message     string    `json:"message"`
	Details     string    `json:"details,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
