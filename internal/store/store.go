// Package store provides session persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/helpdesk/internal/domain"
)

// Repository defines the interface for persisting conversation sessions.
type Repository interface {
	// GetSession retrieves a session by ID. Returns (nil, nil) when unknown.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// SaveSession creates or replaces a session record.
	SaveSession(ctx context.Context, session *domain.Session) error

	// DeleteSession removes a session.
	DeleteSession(ctx context.Context, sessionID string) error

	// DeleteExpiredSessions removes sessions idle for longer than ttl and
	// reports how many were deleted.
	DeleteExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases store resources.
	Close() error
}
