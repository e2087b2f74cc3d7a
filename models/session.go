package models

import (
	"encoding/json"
	"time"
)

// Role identifies which side of a session a connection belongs to
type Role string

const (
	RoleOperator Role = "operator"
	RoleSubject  Role = "subject"
)

// Session pairs one operator connection with up to one subject connection
// under a short human-typed code. A session is waiting until a subject
// joins, and returns to waiting whenever the subject drops.
type Session struct {
	Code            string          `json:"code"`
	OperatorConn    string          `json:"operator_conn"`
	SubjectConn     string          `json:"subject_conn,omitempty"`
	OperatorProfile json.RawMessage `json:"operator_profile,omitempty"`
	SubjectProfile  json.RawMessage `json:"subject_profile,omitempty"`
	Active          bool            `json:"active"`
	CreatedAt       time.Time       `json:"created_at"`
}

// SessionInfo is the snapshot handed to a subject on a successful join
type SessionInfo struct {
	Code            string          `json:"code"`
	OperatorProfile json.RawMessage `json:"operator_profile,omitempty"`
}
