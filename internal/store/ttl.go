package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/helpdesk/internal/shared"
)

const ttlWorkerInterval = 5 * time.Minute

// StartTTLWorker runs a background goroutine that periodically sweeps idle
// sessions out of the repository. It stops when ctx is cancelled.
func StartTTLWorker(ctx context.Context, repo Repository, ttl time.Duration) {
	ticker := time.NewTicker(ttlWorkerInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session TTL worker started", "interval", ttlWorkerInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweepExpiredSessions(ctx, repo, ttl)
			case <-ctx.Done():
				slog.Info("Session TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepExpiredSessions(ctx context.Context, repo Repository, ttl time.Duration) {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		deleted, err := repo.DeleteExpiredSessions(ctx, ttl)
		if err == nil {
			if deleted > 0 {
				slog.Info("Session TTL worker removed idle sessions", "count", deleted)
			}
			return
		}

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("Session sweep hit a locked database, retrying",
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}

		slog.Error("Session TTL worker sweep failed", "error", err)
		return
	}
}
