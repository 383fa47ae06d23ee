package store

import (
	"context"
	"testing"
	"time"

	"github.com/ashureev/helpdesk/internal/domain"
)

func TestMemoryStoreRoundtrip(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()

	session := domain.NewSession("s1")
	session.Stage = domain.StageAskIssue
	session.User.Name = "Alice"
	session.AppendUser("hello")

	if err := m.SaveSession(ctx, session); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	got, err := m.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected session, got nil")
	}
	if got.Stage != domain.StageAskIssue {
		t.Errorf("Expected stage %s, got %s", domain.StageAskIssue, got.Stage)
	}
	if got.User.Name != "Alice" {
		t.Errorf("Expected name Alice, got %q", got.User.Name)
	}
	if len(got.History) != 2 {
		t.Errorf("Expected 2 history entries, got %d", len(got.History))
	}
}

func TestMemoryStoreGetMissReturnsNil(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	got, err := m.GetSession(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for unknown session, got %+v", got)
	}
}

func TestMemoryStoreDoesNotAliasCallerState(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()

	session := domain.NewSession("s1")
	if err := m.SaveSession(ctx, session); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	// Mutating the caller's copy after save must not leak into the store.
	session.AppendUser("late append")

	got, err := m.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if len(got.History) != 1 {
		t.Errorf("Expected stored history of 1 entry, got %d", len(got.History))
	}
}

func TestMemoryStoreDeleteExpiredSessions(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()

	stale := domain.NewSession("stale")
	if err := m.SaveSession(ctx, stale); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	// Backdate the stored record past the TTL.
	m.mu.Lock()
	m.sessions["stale"].UpdatedAt = time.Now().Add(-2 * time.Hour)
	m.mu.Unlock()

	fresh := domain.NewSession("fresh")
	if err := m.SaveSession(ctx, fresh); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	deleted, err := m.DeleteExpiredSessions(ctx, time.Hour)
	if err != nil {
		t.Fatalf("DeleteExpiredSessions failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted session, got %d", deleted)
	}

	if got, _ := m.GetSession(ctx, "stale"); got != nil {
		t.Error("Expected stale session to be deleted")
	}
	if got, _ := m.GetSession(ctx, "fresh"); got == nil {
		t.Error("Expected fresh session to survive")
	}
}

func TestMemoryStoreDeleteSession(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()

	if err := m.SaveSession(ctx, domain.NewSession("s1")); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if err := m.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if got, _ := m.GetSession(ctx, "s1"); got != nil {
		t.Error("Expected session to be deleted")
	}
}
