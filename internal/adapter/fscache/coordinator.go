package fscache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cognee-core/engine/internal/domain/qa"
	"github.com/cognee-core/engine/internal/domain/usage"
	"github.com/cognee-core/engine/internal/errs"
	"github.com/cognee-core/engine/internal/port/coordinator"
)

// Coordinator implements the coordinator port on the same SQLite file the
// Cache uses. Unlike the remote backends, it cannot lock across
// processes: locks here are a single-process in-memory mutex table, good
// enough for one-instance deployments.
type Coordinator struct {
	db *sql.DB

	locksMu sync.Mutex
	locks   map[string]time.Time // key -> expiry
}

// OpenCoordinator creates (or reuses) the SQLite file at path and ensures
// its session/usage tables exist.
func OpenCoordinator(path string) (*Coordinator, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite coordinator %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	const schema = `
CREATE TABLE IF NOT EXISTS qa_entries (
	user_id        TEXT NOT NULL,
	session_id     TEXT NOT NULL,
	qa_id          TEXT NOT NULL,
	seq            INTEGER NOT NULL,
	time           INTEGER NOT NULL,
	question       TEXT NOT NULL,
	context        TEXT NOT NULL,
	answer         TEXT NOT NULL,
	feedback_text  TEXT,
	feedback_score INTEGER,
	expires_at     INTEGER,
	PRIMARY KEY (user_id, session_id, qa_id)
);
CREATE TABLE IF NOT EXISTS usage_logs (
	user_id    TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	payload    TEXT NOT NULL,
	time       INTEGER NOT NULL,
	expires_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_usage_logs_user ON usage_logs(user_id, seq DESC);
`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create coordinator schema: %w", err)
	}

	return &Coordinator{db: db, locks: make(map[string]time.Time)}, nil
}

func (c *Coordinator) Close() error { return c.db.Close() }

func (c *Coordinator) IsAvailable() bool { return c.db != nil }

type inProcessLock struct {
	c   *Coordinator
	key string
}

// AcquireLock serializes holders of key within this process, polling every
// 100ms until the blocking timeout elapses.
func (c *Coordinator) AcquireLock(ctx context.Context, key string, opts coordinator.LockOptions) (coordinator.Lock, error) {
	deadline := time.Now().Add(opts.BlockingTimeout)
	for {
		c.locksMu.Lock()
		expiry, held := c.locks[key]
		if held && time.Now().Before(expiry) {
			c.locksMu.Unlock()
		} else {
			c.locks[key] = time.Now().Add(opts.Timeout)
			c.locksMu.Unlock()
			return &inProcessLock{c: c, key: key}, nil
		}

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

func (l *inProcessLock) Release(_ context.Context) error {
	l.c.locksMu.Lock()
	delete(l.c.locks, l.key)
	l.c.locksMu.Unlock()
	return nil
}

func (c *Coordinator) nextQASeq(ctx context.Context, userID, sessionID string) (int64, error) {
	var max sql.NullInt64
	row := c.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM qa_entries WHERE user_id = ? AND session_id = ?`, userID, sessionID)
	if err := row.Scan(&max); err != nil {
		return 0, err
	}
	return max.Int64 + 1, nil
}

func (c *Coordinator) nextUsageSeq(ctx context.Context, userID string) (int64, error) {
	var max sql.NullInt64
	row := c.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM usage_logs WHERE user_id = ?`, userID)
	if err := row.Scan(&max); err != nil {
		return 0, err
	}
	return max.Int64 + 1, nil
}

func (c *Coordinator) CreateQAEntry(ctx context.Context, userID, sessionID string, entry qa.Entry, ttl time.Duration) error {
	if entry.QAID == "" {
		entry.QAID = uuid.NewString()
	}
	seq, err := c.nextQASeq(ctx, userID, sessionID)
	if err != nil {
		return errs.CacheConnectionError(err)
	}
	var expiresAt any
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl).Unix()
	}
	_, err = c.db.ExecContext(ctx, `
INSERT INTO qa_entries (user_id, session_id, qa_id, seq, time, question, context, answer, feedback_text, feedback_score, expires_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, sessionID, entry.QAID, seq, entry.Time.Unix(), entry.Question, entry.Context, entry.Answer,
		entry.FeedbackText, entry.FeedbackScore, expiresAt)
	if err != nil {
		return errs.CacheConnectionError(err)
	}
	return nil
}

func (c *Coordinator) queryQA(ctx context.Context, userID, sessionID, order string, limit int) ([]qa.Entry, error) {
	q := fmt.Sprintf(`
SELECT qa_id, time, question, context, answer, feedback_text, feedback_score
FROM qa_entries
WHERE user_id = ? AND session_id = ? AND (expires_at IS NULL OR expires_at > ?)
ORDER BY seq %s`, order)
	args := []any{userID, sessionID, time.Now().Unix()}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errs.CacheConnectionError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []qa.Entry
	for rows.Next() {
		var e qa.Entry
		var ts int64
		var feedbackText sql.NullString
		var feedbackScore sql.NullInt64
		if err := rows.Scan(&e.QAID, &ts, &e.Question, &e.Context, &e.Answer, &feedbackText, &feedbackScore); err != nil {
			return nil, errs.CacheConnectionError(err)
		}
		e.Time = time.Unix(ts, 0).UTC()
		if feedbackText.Valid {
			e.FeedbackText = &feedbackText.String
		}
		if feedbackScore.Valid {
			v := int(feedbackScore.Int64)
			e.FeedbackScore = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (c *Coordinator) GetLatestQAEntries(ctx context.Context, userID, sessionID string, lastN int) ([]qa.Entry, error) {
	return c.queryQA(ctx, userID, sessionID, "DESC", lastN)
}

func (c *Coordinator) GetAllQAEntries(ctx context.Context, userID, sessionID string) ([]qa.Entry, error) {
	return c.queryQA(ctx, userID, sessionID, "ASC", 0)
}

func (c *Coordinator) UpdateQAEntry(ctx context.Context, userID, sessionID, qaID string, update qa.Update) (bool, error) {
	entries, err := c.queryQA(ctx, userID, sessionID, "ASC", 0)
	if err != nil {
		return false, err
	}
	var target *qa.Entry
	for i := range entries {
		if entries[i].QAID == qaID {
			target = &entries[i]
			break
		}
	}
	if target == nil {
		return false, nil
	}
	update.Apply(target)

	_, err = c.db.ExecContext(ctx, `
UPDATE qa_entries SET question = ?, context = ?, answer = ?, feedback_text = ?, feedback_score = ?
WHERE user_id = ? AND session_id = ? AND qa_id = ?`,
		target.Question, target.Context, target.Answer, target.FeedbackText, target.FeedbackScore,
		userID, sessionID, qaID)
	if err != nil {
		return false, errs.CacheConnectionError(err)
	}
	return true, nil
}

func (c *Coordinator) DeleteQAEntries(ctx context.Context, userID, sessionID, qaID string) (bool, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM qa_entries WHERE user_id = ? AND session_id = ? AND qa_id = ?`,
		userID, sessionID, qaID)
	if err != nil {
		return false, errs.CacheConnectionError(err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (c *Coordinator) DeleteSession(ctx context.Context, userID, sessionID string) (bool, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM qa_entries WHERE user_id = ? AND session_id = ?`, userID, sessionID)
	if err != nil {
		return false, errs.CacheConnectionError(err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (c *Coordinator) LogUsage(ctx context.Context, userID string, entry usage.LogEntry, ttl time.Duration) error {
	seq, err := c.nextUsageSeq(ctx, userID)
	if err != nil {
		return errs.CacheConnectionError(err)
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	var expiresAt any
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl).Unix()
	}
	_, err = c.db.ExecContext(ctx, `INSERT INTO usage_logs (user_id, seq, payload, time, expires_at) VALUES (?, ?, ?, ?, ?)`,
		userID, seq, payload, entry.Timestamp.Unix(), expiresAt)
	if err != nil {
		return errs.CacheConnectionError(err)
	}
	return nil
}

func (c *Coordinator) GetUsageLogs(ctx context.Context, userID string, limit int) ([]usage.LogEntry, error) {
	q := `
SELECT payload FROM usage_logs
WHERE user_id = ? AND (expires_at IS NULL OR expires_at > ?)
ORDER BY seq DESC`
	args := []any{userID, time.Now().Unix()}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errs.CacheConnectionError(err)
	}
	defer func() { _ = rows.Close() }()

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
	return out, rows.Err()
}
