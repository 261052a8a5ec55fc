// Package pgsession provides a Postgres-backed coordinator.Coordinator:
// the same Q&A/usage-log relational shape as internal/adapter/fscache, but
// with true cross-process locking via Postgres session-level advisory
// locks (pg_try_advisory_lock) held on a dedicated pooled connection for
// the lifetime of the lock.
package pgsession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cognee-core/engine/internal/adapter/postgres"
	"github.com/cognee-core/engine/internal/domain"
	"github.com/cognee-core/engine/internal/domain/qa"
	"github.com/cognee-core/engine/internal/domain/usage"
	"github.com/cognee-core/engine/internal/errs"
	"github.com/cognee-core/engine/internal/port/coordinator"
)

// Coordinator implements the coordinator port on a shared Postgres
// database, suitable for multi-instance deployments that need the
// cross-process locking the fs backend cannot provide.
type Coordinator struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool. The schema in
// migrations/0002_session_coordinator.sql must already be applied.
func New(pool *pgxpool.Pool) *Coordinator {
	return &Coordinator{pool: pool}
}

func (c *Coordinator) IsAvailable() bool { return c.pool != nil }

func lockKey(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64()) //nolint:gosec // deterministic hash, sign bit irrelevant to pg_advisory_lock
}

type pgLock struct {
	conn  *pgxpool.Conn
	key   int64
	timer *time.Timer
	once  sync.Once
}

// Release unlocks and returns the connection to the pool. Idempotent: a
// second call is a no-op.
func (l *pgLock) Release(ctx context.Context) error {
	var err error
	l.once.Do(func() {
		if l.timer != nil {
			l.timer.Stop()
		}
		_, err = l.conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, l.key)
		l.conn.Release()
	})
	return err
}

// AcquireLock polls pg_try_advisory_lock every 100ms until it succeeds or
// opts.BlockingTimeout elapses. The lock auto-releases after opts.Timeout
// via a background timer on the holder's side; the NATS KV backend
// instead records an expiry in the lock entry and lets the next acquirer
// take over once it has passed.
func (c *Coordinator) AcquireLock(ctx context.Context, key string, opts coordinator.LockOptions) (coordinator.Lock, error) {
	k := lockKey(key)
	deadline := time.Now().Add(opts.BlockingTimeout)

	for {
		conn, err := c.pool.Acquire(ctx)
		if err != nil {
			return nil, errs.CacheConnectionError(err)
		}

		var ok bool
		if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, k).Scan(&ok); err != nil {
			conn.Release()
			return nil, errs.CacheConnectionError(err)
		}
		if ok {
			lock := &pgLock{conn: conn, key: k}
			if opts.Timeout > 0 {
				lock.timer = time.AfterFunc(opts.Timeout, func() {
					_ = lock.Release(context.Background())
				})
			}
			return lock, nil
		}
		conn.Release()

		if time.Now().After(deadline) {
			return nil, errs.LockAcquisitionTimeout(key)
		}
		select {
		case <-ctx.Done():
			return nil, errs.LockAcquisitionTimeout(key)
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (c *Coordinator) CreateQAEntry(ctx context.Context, userID, sessionID string, entry qa.Entry, ttl time.Duration) error {
	if entry.QAID == "" {
		entry.QAID = uuid.NewString()
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	_, err := c.pool.Exec(ctx, `
INSERT INTO qa_entries (user_id, session_id, qa_id, time, question, context, answer, feedback_text, feedback_score, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		userID, sessionID, entry.QAID, entry.Time, entry.Question, entry.Context, entry.Answer,
		entry.FeedbackText, entry.FeedbackScore, postgres.NullTime(expiresAt))
	if err != nil {
		return errs.CacheConnectionError(err)
	}
	return nil
}

func (c *Coordinator) queryQA(ctx context.Context, userID, sessionID, order string, limit int) ([]qa.Entry, error) {
	q := fmt.Sprintf(`
SELECT qa_id, time, question, context, answer, feedback_text, feedback_score
FROM qa_entries
WHERE user_id = $1 AND session_id = $2 AND (expires_at IS NULL OR expires_at > now())
ORDER BY id %s`, order)
	args := []any{userID, sessionID}
	if limit > 0 {
		q += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}

	rows, err := c.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, errs.CacheConnectionError(err)
	}
	defer rows.Close()

	var out []qa.Entry
	for rows.Next() {
		var e qa.Entry
		if err := rows.Scan(&e.QAID, &e.Time, &e.Question, &e.Context, &e.Answer, &e.FeedbackText, &e.FeedbackScore); err != nil {
			return nil, errs.CacheConnectionError(err)
		}
		out = append(out, e)
	}
	return postgres.OrEmpty(out), rows.Err()
}

func (c *Coordinator) GetLatestQAEntries(ctx context.Context, userID, sessionID string, lastN int) ([]qa.Entry, error) {
	return c.queryQA(ctx, userID, sessionID, "DESC", lastN)
}

func (c *Coordinator) GetAllQAEntries(ctx context.Context, userID, sessionID string) ([]qa.Entry, error) {
	return c.queryQA(ctx, userID, sessionID, "ASC", 0)
}

// getQAEntry fetches a single non-expired entry by qa_id, wrapping a
// missing row as domain.ErrNotFound via postgres.ScanOneOrNotFound.
func (c *Coordinator) getQAEntry(ctx context.Context, userID, sessionID, qaID string) (*qa.Entry, error) {
	row := c.pool.QueryRow(ctx, `
SELECT qa_id, time, question, context, answer, feedback_text, feedback_score
FROM qa_entries
WHERE user_id = $1 AND session_id = $2 AND qa_id = $3 AND (expires_at IS NULL OR expires_at > now())`,
		userID, sessionID, qaID)

	var e qa.Entry
	args := []any{userID, sessionID, qaID}
	if err := postgres.ScanOneOrNotFound(row, "qa entry %s/%s/%s", args,
		&e.QAID, &e.Time, &e.Question, &e.Context, &e.Answer, &e.FeedbackText, &e.FeedbackScore); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Coordinator) UpdateQAEntry(ctx context.Context, userID, sessionID, qaID string, update qa.Update) (bool, error) {
	target, err := c.getQAEntry(ctx, userID, sessionID, qaID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, errs.CacheConnectionError(err)
	}
	update.Apply(target)

	tag, err := c.pool.Exec(ctx, `
UPDATE qa_entries SET question = $1, context = $2, answer = $3, feedback_text = $4, feedback_score = $5
WHERE user_id = $6 AND session_id = $7 AND qa_id = $8`,
		target.Question, target.Context, target.Answer, target.FeedbackText, target.FeedbackScore,
		userID, sessionID, qaID)
	if werr := postgres.ExecExpectOne(tag, err, "update qa entry %s/%s/%s", userID, sessionID, qaID); werr != nil {
		if errors.Is(werr, domain.ErrNotFound) {
			return false, nil
		}
		return false, errs.CacheConnectionError(werr)
	}
	return true, nil
}

func (c *Coordinator) DeleteQAEntries(ctx context.Context, userID, sessionID, qaID string) (bool, error) {
	tag, err := c.pool.Exec(ctx, `DELETE FROM qa_entries WHERE user_id = $1 AND session_id = $2 AND qa_id = $3`,
		userID, sessionID, qaID)
	if werr := postgres.ExecExpectOne(tag, err, "delete qa entry %s/%s/%s", userID, sessionID, qaID); werr != nil {
		if errors.Is(werr, domain.ErrNotFound) {
			return false, nil
		}
		return false, errs.CacheConnectionError(werr)
	}
	return true, nil
}

func (c *Coordinator) DeleteSession(ctx context.Context, userID, sessionID string) (bool, error) {
	tag, err := c.pool.Exec(ctx, `DELETE FROM qa_entries WHERE user_id = $1 AND session_id = $2`, userID, sessionID)
	if werr := postgres.ExecExpectOne(tag, err, "delete session %s/%s", userID, sessionID); werr != nil {
		if errors.Is(werr, domain.ErrNotFound) {
			return false, nil
		}
		return false, errs.CacheConnectionError(werr)
	}
	return true, nil
}

func (c *Coordinator) LogUsage(ctx context.Context, userID string, entry usage.LogEntry, ttl time.Duration) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	_, err = c.pool.Exec(ctx, `INSERT INTO usage_logs (user_id, payload, time, expires_at) VALUES ($1, $2, $3, $4)`,
		userID, payload, entry.Timestamp, postgres.NullTime(expiresAt))
	if err != nil {
		return errs.CacheConnectionError(err)
	}
	return nil
}

func (c *Coordinator) GetUsageLogs(ctx context.Context, userID string, limit int) ([]usage.LogEntry, error) {
	q := `
SELECT payload FROM usage_logs
WHERE user_id = $1 AND (expires_at IS NULL OR expires_at > now())
ORDER BY id DESC`
	args := []any{userID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := c.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, errs.CacheConnectionError(err)
	}
	defer rows.Close()

	var out []usage.LogEntry
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, errs.CacheConnectionError(err)
		}
		var e usage.LogEntry
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return postgres.OrEmpty(out), rows.Err()
}

var _ coordinator.Coordinator = (*Coordinator)(nil)
