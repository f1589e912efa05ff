package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/wirechat-tcp/internal/store"
)

// Schema creates the session journal table.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	username    TEXT NOT NULL,
	remote_addr TEXT NOT NULL DEFAULT '',
	joined_at   DATETIME NOT NULL,
	left_at     DATETIME,
	reason      TEXT
);

CREATE INDEX IF NOT EXISTS idx_sessions_joined ON sessions(joined_at DESC);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the SQLite database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup opens a SQLite store and runs a setup function.
// Useful for tests to apply schema against ":memory:".
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps ":memory:" shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession inserts a new session row.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess *store.Session) error {
	query := `
		INSERT INTO sessions (id, username, remote_addr, joined_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, sess.ID, sess.Username, sess.RemoteAddr, sess.JoinedAt.UTC()); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// EndSession stamps left_at and reason on an open session.
func (s *SQLiteStore) EndSession(ctx context.Context, id string, reason store.LeaveReason, at time.Time) error {
	query := `
		UPDATE sessions
		SET left_at = ?, reason = ?
		WHERE id = ? AND left_at IS NULL
	`
	result, err := s.db.ExecContext(ctx, query, at.UTC(), string(reason), id)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %s not found or already ended", id)
	}
	return nil
}

// ListSessions returns up to limit sessions, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]store.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, username, remote_addr, joined_at, left_at, reason
		FROM sessions
		ORDER BY joined_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]store.Session, 0)
	for rows.Next() {
		var (
			sess   store.Session
			leftAt sql.NullTime
			reason sql.NullString
		)
		if err := rows.Scan(&sess.ID, &sess.Username, &sess.RemoteAddr, &sess.JoinedAt, &leftAt, &reason); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if leftAt.Valid {
			t := leftAt.Time
			sess.LeftAt = &t
		}
		if reason.Valid {
			r := store.LeaveReason(reason.String)
			sess.Reason = &r
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}
