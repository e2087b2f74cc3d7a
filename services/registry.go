package services

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"poselink/models"
)

const (
	codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength      = 6
	maxCodeAttempts = 10
)

// Registry errors. ErrUnknownSession and ErrSlotOccupied are user-facing
// and surface to the originating connection as a session-error message.
var (
	ErrUnknownSession = errors.New("unknown session code")
	ErrSlotOccupied   = errors.New("session already has a subject")
	ErrCodeExhausted  = errors.New("session code generation exhausted retries")
)

// SessionRegistry owns session lifecycle and the mapping between codes and
// participant connections. All access goes through the mutex; sessions are
// never handed out by pointer.
type SessionRegistry struct {
	sessions  map[string]*models.Session
	mu        sync.RWMutex
	retention time.Duration
	metrics   *ConnectionMetrics
}

// DisconnectResult describes what a disconnect did to a session, so the
// caller can notify the surviving peer.
type DisconnectResult struct {
	Role    models.Role
	Session models.Session // snapshot taken before the slot was cleared
}

func NewSessionRegistry(retention time.Duration, metrics *ConnectionMetrics) *SessionRegistry {
	return &SessionRegistry{
		sessions:  make(map[string]*models.Session),
		retention: retention,
		metrics:   metrics,
	}
}

// CreateSession generates a unique code and inserts a new waiting session
// with the operator slot filled.
func (r *SessionRegistry) CreateSession(operatorConn string, operatorProfile json.RawMessage) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, err := r.generateCodeLocked()
	if err != nil {
		return "", err
	}

	r.sessions[code] = &models.Session{
		Code:            code,
		OperatorConn:    operatorConn,
		OperatorProfile: operatorProfile,
		Active:          false,
		CreatedAt:       time.Now(),
	}
	r.metrics.SessionsCreated.Add(1)

	slog.Info("Session created", "code", code, "connID", operatorConn)
	return code, nil
}

// generateCodeLocked produces a random code not currently in use, retrying
// a bounded number of times on collision. Caller must hold the lock.
func (r *SessionRegistry) generateCodeLocked() (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", fmt.Errorf("failed to generate session code: %w", err)
		}
		if _, taken := r.sessions[code]; !taken {
			return code, nil
		}
		slog.Warn("Session code collision, retrying", "attempt", attempt+1)
	}
	return "", ErrCodeExhausted
}

func randomCode() (string, error) {
	bytes := make([]byte, codeLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	code := make([]byte, codeLength)
	for i, b := range bytes {
		code[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(code), nil
}

// JoinSession fills the subject slot of a waiting session and flips it
// active. Fails with ErrUnknownSession or ErrSlotOccupied without mutating
// any state.
func (r *SessionRegistry) JoinSession(code, subjectConn string, subjectProfile json.RawMessage) (*models.SessionInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[code]
	if !exists {
		return nil, ErrUnknownSession
	}
	if session.SubjectConn != "" {
		return nil, ErrSlotOccupied
	}

	session.SubjectConn = subjectConn
	session.SubjectProfile = subjectProfile
	session.Active = true

	slog.Info("Subject joined session", "code", code, "connID", subjectConn)
	return &models.SessionInfo{
		Code:            code,
		OperatorProfile: session.OperatorProfile,
	}, nil
}

// Lookup returns a snapshot of the session for a code
func (r *SessionRegistry) Lookup(code string) (models.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[code]
	if !exists {
		return models.Session{}, false
	}
	return *session, true
}

// HandleDisconnect scans for the session holding connID in either slot.
// An operator disconnect destroys the session; a subject disconnect clears
// the subject slot and returns the session to waiting.
func (r *SessionRegistry) HandleDisconnect(connID string) (DisconnectResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for code, session := range r.sessions {
		switch connID {
		case session.OperatorConn:
			snapshot := *session
			delete(r.sessions, code)
			r.metrics.SessionsDestroyed.Add(1)
			slog.Info("Operator disconnected, session destroyed", "code", code)
			return DisconnectResult{Role: models.RoleOperator, Session: snapshot}, true

		case session.SubjectConn:
			snapshot := *session
			session.SubjectConn = ""
			session.SubjectProfile = nil
			session.Active = false
			slog.Info("Subject disconnected, session waiting", "code", code)
			return DisconnectResult{Role: models.RoleSubject, Session: snapshot}, true
		}
	}
	return DisconnectResult{}, false
}

// SweepExpired destroys every inactive session older than the retention
// window. Active sessions are never swept regardless of age. Idempotent.
func (r *SessionRegistry) SweepExpired(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	swept := 0
	for code, session := range r.sessions {
		if !session.Active && now.Sub(session.CreatedAt) > r.retention {
			delete(r.sessions, code)
			swept++
		}
	}
	if swept > 0 {
		r.metrics.SessionsSwept.Add(int64(swept))
		r.metrics.SessionsDestroyed.Add(int64(swept))
	}
	return swept
}

// StartSweep starts a background goroutine that periodically removes
// expired waiting sessions until ctx is cancelled.
func (r *SessionRegistry) StartSweep(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Session sweep stopped")
				return
			case <-ticker.C:
				if count := r.SweepExpired(time.Now()); count > 0 {
					slog.Info("Swept expired sessions", "count", count)
				}
			}
		}
	}()

	slog.Info("Session sweep started", "interval", interval, "retention", r.retention)
}

// Snapshot returns copies of all tracked sessions, for /health and /metrics
func (r *SessionRegistry) Snapshot() []models.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]models.Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, *session)
	}
	return sessions
}

// Counts returns the total and active session counts
func (r *SessionRegistry) Counts() (total, active int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, session := range r.sessions {
		if session.Active {
			active++
		}
	}
	return len(r.sessions), active
}
