package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/helpdesk/internal/domain"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "helpdesk.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return s
}

func TestSQLiteStoreRoundtrip(t *testing.T) {
	t.Parallel()

	s := newTestSQLite(t)
	ctx := context.Background()

	session := domain.NewSession("s1")
	session.Stage = domain.StageConfirmSolution
	session.User = domain.Profile{
		Name:         "Alice",
		Email:        "alice@example.com",
		Issue:        "Outlook won't sync",
		IssueSummary: "Outlook sync failure",
	}
	session.TicketCreated = true
	session.AppendUser("Outlook won't sync")
	session.AppendAssistant("try restarting")

	if err := s.SaveSession(ctx, session); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	got, err := s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected session, got nil")
	}
	if got.Stage != domain.StageConfirmSolution {
		t.Errorf("Expected stage %s, got %s", domain.StageConfirmSolution, got.Stage)
	}
	if got.User != session.User {
		t.Errorf("Profile mismatch: got %+v, want %+v", got.User, session.User)
	}
	if !got.TicketCreated {
		t.Error("Expected TicketCreated to round-trip")
	}
	if len(got.History) != 3 {
		t.Errorf("Expected 3 history entries, got %d", len(got.History))
	}
	if got.History[1].Role != domain.RoleUser || got.History[1].Content != "Outlook won't sync" {
		t.Errorf("Unexpected history entry: %+v", got.History[1])
	}
}

func TestSQLiteStoreUpsertReplacesExisting(t *testing.T) {
	t.Parallel()

	s := newTestSQLite(t)
	ctx := context.Background()

	session := domain.NewSession("s1")
	if err := s.SaveSession(ctx, session); err != nil {
		t.Fatalf("first SaveSession failed: %v", err)
	}

	session.Stage = domain.StageAskEmail
	session.User.Name = "Alice"
	session.AppendUser("Alice")
	if err := s.SaveSession(ctx, session); err != nil {
		t.Fatalf("second SaveSession failed: %v", err)
	}

	got, err := s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Stage != domain.StageAskEmail {
		t.Errorf("Expected updated stage, got %s", got.Stage)
	}
	if len(got.History) != 2 {
		t.Errorf("Expected 2 history entries, got %d", len(got.History))
	}
}

func TestSQLiteStoreGetMissReturnsNil(t *testing.T) {
	t.Parallel()

	s := newTestSQLite(t)
	got, err := s.GetSession(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for unknown session, got %+v", got)
	}
}

func TestSQLiteStoreDeleteExpiredSessions(t *testing.T) {
	t.Parallel()

	s := newTestSQLite(t)
	ctx := context.Background()

	if err := s.SaveSession(ctx, domain.NewSession("stale")); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	// Backdate the row past the TTL.
	if _, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE session_id = ?`,
		time.Now().Add(-2*time.Hour).Unix(), "stale",
	); err != nil {
		t.Fatalf("backdate failed: %v", err)
	}
	if err := s.SaveSession(ctx, domain.NewSession("fresh")); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	deleted, err := s.DeleteExpiredSessions(ctx, time.Hour)
	if err != nil {
		t.Fatalf("DeleteExpiredSessions failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted session, got %d", deleted)
	}
	if got, _ := s.GetSession(ctx, "fresh"); got == nil {
		t.Error("Expected fresh session to survive the sweep")
	}
}

func TestSQLiteStorePing(t *testing.T) {
	t.Parallel()

	s := newTestSQLite(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
