package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/helpdesk/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		stage TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		issue TEXT NOT NULL DEFAULT '',
		issue_summary TEXT NOT NULL DEFAULT '',
		ticket_created INTEGER NOT NULL DEFAULT 0,
		history_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	query := `
		SELECT session_id, stage, name, email, issue, issue_summary,
		       ticket_created, history_json, created_at, updated_at
		FROM sessions WHERE session_id = ?`

	row := s.db.QueryRowContext(ctx, query, sessionID)

	var session domain.Session
	var stage, historyJSON string
	var ticketCreated int
	var createdAt, updatedAt int64

	err := row.Scan(
		&session.ID, &stage,
		&session.User.Name, &session.User.Email,
		&session.User.Issue, &session.User.IssueSummary,
		&ticketCreated, &historyJSON, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	session.Stage = domain.Stage(stage)
	session.TicketCreated = ticketCreated != 0
	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updatedAt, 0)

	if err := json.Unmarshal([]byte(historyJSON), &session.History); err != nil {
		return nil, fmt.Errorf("decode session history: %w", err)
	}

	return &session, nil
}

// SaveSession creates or replaces a session record.
func (s *SQLiteStore) SaveSession(ctx context.Context, session *domain.Session) error {
	historyJSON, err := json.Marshal(session.History)
	if err != nil {
		return fmt.Errorf("encode session history: %w", err)
	}

	query := `
	INSERT INTO sessions (
		session_id, stage, name, email, issue, issue_summary,
		ticket_created, history_json, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		stage = excluded.stage,
		name = excluded.name,
		email = excluded.email,
		issue = excluded.issue,
		issue_summary = excluded.issue_summary,
		ticket_created = excluded.ticket_created,
		history_json = excluded.history_json,
		updated_at = excluded.updated_at`

	ticketCreated := 0
	if session.TicketCreated {
		ticketCreated = 1
	}

	_, err = s.db.ExecContext(ctx, query,
		session.ID, string(session.Stage),
		session.User.Name, session.User.Email,
		session.User.Issue, session.User.IssueSummary,
		ticketCreated, string(historyJSON),
		session.CreatedAt.Unix(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// DeleteSession removes a session.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions idle for longer than ttl.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
