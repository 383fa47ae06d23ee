package store

import (
	"context"
	"sync"
	"time"

	"github.com/ashureev/helpdesk/internal/domain"
)

// MemoryStore implements Repository with an in-process map. Sessions do not
// survive a restart; intended for tests and single-node development setups.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*domain.Session)}
}

// GetSession retrieves a session by ID.
func (m *MemoryStore) GetSession(_ context.Context, sessionID string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return session.Clone(), nil
}

// SaveSession creates or replaces a session record.
func (m *MemoryStore) SaveSession(_ context.Context, session *domain.Session) error {
	cp := session.Clone()
	cp.UpdatedAt = time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = cp
	return nil
}

// DeleteSession removes a session.
func (m *MemoryStore) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

// DeleteExpiredSessions removes sessions idle for longer than ttl.
func (m *MemoryStore) DeleteExpiredSessions(_ context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, session := range m.sessions {
		if session.UpdatedAt.Before(threshold) {
			delete(m.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
