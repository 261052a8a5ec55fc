// Package coordinator defines the port interface for the cache/lock
// coordinator: distributed mutual exclusion, per-session Q&A storage, and
// append-only usage logging.
package coordinator

import (
	"context"
	"time"

	"github.com/cognee-core/engine/internal/domain/qa"
	"github.com/cognee-core/engine/internal/domain/usage"
)

// LockOptions configures a single AcquireLock call.
type LockOptions struct {
	// Timeout is the server-side auto-release duration once the lock is held.
	Timeout time.Duration
	// BlockingTimeout bounds how long AcquireLock waits for the lock to free up.
	BlockingTimeout time.Duration
}

// Lock is a held, scoped mutual-exclusion handle. Release is idempotent.
type Lock interface {
	Release(ctx context.Context) error
}

// Coordinator is the port interface for distributed locking, session Q&A
// persistence, and usage logging.
type Coordinator interface {
	// IsAvailable reports whether a backend is actually configured. When
	// false, writes are no-ops and reads return empty results.
	IsAvailable() bool

	// AcquireLock blocks up to opts.BlockingTimeout waiting for key to free
	// up, returning errs.LockAcquisitionTimeout on failure. The returned
	// Lock auto-expires server-side after opts.Timeout.
	AcquireLock(ctx context.Context, key string, opts LockOptions) (Lock, error)

	CreateQAEntry(ctx context.Context, userID, sessionID string, entry qa.Entry, ttl time.Duration) error
	GetLatestQAEntries(ctx context.Context, userID, sessionID string, lastN int) ([]qa.Entry, error)
	GetAllQAEntries(ctx context.Context, userID, sessionID string) ([]qa.Entry, error)
	UpdateQAEntry(ctx context.Context, userID, sessionID, qaID string, update qa.Update) (bool, error)
	DeleteQAEntries(ctx context.Context, userID, sessionID, qaID string) (bool, error)
	DeleteSession(ctx context.Context, userID, sessionID string) (bool, error)

	LogUsage(ctx context.Context, userID string, entry usage.LogEntry, ttl time.Duration) error
	GetUsageLogs(ctx context.Context, userID string, limit int) ([]usage.LogEntry, error)
}
