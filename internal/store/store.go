package store

import (
	"context"
	"time"
)

// LeaveReason records how a session ended.
type LeaveReason string

const (
	// LeaveReasonExit means the client asked to leave.
	LeaveReasonExit LeaveReason = "exit"
	// LeaveReasonDisconnect means the connection failed or reached EOF.
	LeaveReasonDisconnect LeaveReason = "disconnect"
	// LeaveReasonShutdown means the server closed the session while stopping.
	LeaveReasonShutdown LeaveReason = "shutdown"
)

// Session is one journaled chat session. Message bodies are never stored.
type Session struct {
	ID         string
	Username   string
	RemoteAddr string
	JoinedAt   time.Time
	LeftAt     *time.Time
	Reason     *LeaveReason
}

// SessionStore records session lifecycles.
type SessionStore interface {
	// CreateSession records a session that just completed registration.
	CreateSession(ctx context.Context, s *Session) error

	// EndSession stamps the end time and reason of a session.
	EndSession(ctx context.Context, id string, reason LeaveReason, at time.Time) error

	// ListSessions returns the most recent sessions, newest first.
	ListSessions(ctx context.Context, limit int) ([]Session, error)
}

// Store is the persistence layer of the server.
type Store interface {
	SessionStore
	Close() error
}
