package natskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/cognee-core/engine/internal/domain/qa"
	"github.com/cognee-core/engine/internal/domain/usage"
	"github.com/cognee-core/engine/internal/errs"
	"github.com/cognee-core/engine/internal/port/coordinator"
)

// Coordinator implements the coordinator port on NATS JetStream KV,
// the same remote backend the Cache adapter in this package uses for L2
// caching. Locks use Create (NATS' key-not-exists CAS) to gain mutual
// exclusion across processes; Q&A/usage lists use revision-checked Update
// loops to append without losing concurrent writes.
type Coordinator struct {
	kv jetstream.KeyValue
}

// NewCoordinator wraps a JetStream KeyValue bucket as a Coordinator.
func NewCoordinator(kv jetstream.KeyValue) *Coordinator {
	return &Coordinator{kv: kv}
}

func (c *Coordinator) IsAvailable() bool { return c.kv != nil }

type natsLock struct {
	kv       jetstream.KeyValue
	key      string
	revision uint64
}

func lockKey(key string) string { return "lock:" + key }

// AcquireLock polls Create on the lock key until it succeeds, the
// blocking timeout elapses, or ctx is cancelled. A stale lock (past its
// own timeout) is detected by its embedded expiry and purged before
// retrying, so a crashed holder cannot wedge the key forever.
func (c *Coordinator) AcquireLock(ctx context.Context, key string, opts coordinator.LockOptions) (coordinator.Lock, error) {
	deadline := time.Now().Add(opts.BlockingTimeout)
	k := lockKey(key)

	for {
		expiresAt := time.Now().Add(opts.Timeout).Unix()
		payload, _ := json.Marshal(map[string]int64{"expires_at": expiresAt})

		rev, err := c.kv.Create(ctx, k, payload)
		if err == nil {
			return &natsLock{kv: c.kv, key: k, revision: rev}, nil
		}
		if !errors.Is(err, jetstream.ErrKeyExists) {
			return nil, errs.CacheConnectionError(err)
		}

		c.expireIfStale(ctx, k)

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

// expireIfStale deletes the lock entry if its embedded expiry has passed.
func (c *Coordinator) expireIfStale(ctx context.Context, k string) {
	entry, err := c.kv.Get(ctx, k)
	if err != nil {
		return
	}
	var payload struct {
		ExpiresAt int64 `json:"expires_at"`
	}
	if json.Unmarshal(entry.Value(), &payload) != nil {
		return
	}
	if time.Now().Unix() > payload.ExpiresAt {
		_ = c.kv.Delete(ctx, k, jetstream.LastRevision(entry.Revision()))
	}
}

func (l *natsLock) Release(ctx context.Context) error {
	err := l.kv.Delete(ctx, l.key, jetstream.LastRevision(l.revision))
	if err == nil || errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	// Someone else already reclaimed a stale lock; releasing is still a no-op success.
	if errors.Is(err, jetstream.ErrKeyDeleted) {
		return nil
	}
	return nil
}

func qaListKey(userID, sessionID string) string {
	return fmt.Sprintf("session:%s:%s", userID, sessionID)
}

func usageListKey(userID string) string {
	return fmt.Sprintf("usage:%s", userID)
}

// qaList is the JSON envelope stored at a single KV key for one session.
type qaList struct {
	Entries []qa.Entry `json:"entries"`
}

// updateWithRetry performs a read-modify-write loop against key, retrying
// on revision conflicts until it succeeds or attempts are exhausted.
func updateWithRetry(ctx context.Context, kv jetstream.KeyValue, key string, mutate func(raw []byte) ([]byte, error)) error {
	const maxAttempts = 20
	for attempt := 0; attempt < maxAttempts; attempt++ {
		entry, err := kv.Get(ctx, key)
		var rev uint64
		var raw []byte
		if err != nil {
			if !errors.Is(err, jetstream.ErrKeyNotFound) {
				return errs.CacheConnectionError(err)
			}
		} else {
			rev = entry.Revision()
			raw = entry.Value()
		}

		newRaw, mutErr := mutate(raw)
		if mutErr != nil {
			return mutErr
		}

		if rev == 0 {
			if _, err := kv.Create(ctx, key, newRaw); err != nil {
				if errors.Is(err, jetstream.ErrKeyExists) {
					continue
				}
				return errs.CacheConnectionError(err)
			}
			return nil
		}
		if _, err := kv.Update(ctx, key, newRaw, rev); err != nil {
			continue
		}
		return nil
	}
	return errs.CacheConnectionError(fmt.Errorf("too many conflicting writes on %q", key))
}

func (c *Coordinator) CreateQAEntry(ctx context.Context, userID, sessionID string, entry qa.Entry, _ time.Duration) error {
	if entry.QAID == "" {
		entry.QAID = uuid.NewString()
	}
	key := qaListKey(userID, sessionID)
	return updateWithRetry(ctx, c.kv, key, func(raw []byte) ([]byte, error) {
		var list qaList
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &list); err != nil {
				return nil, err
			}
		}
		list.Entries = append(list.Entries, entry)
		return json.Marshal(list)
	})
}

func (c *Coordinator) readQAList(ctx context.Context, userID, sessionID string) (qaList, error) {
	entry, err := c.kv.Get(ctx, qaListKey(userID, sessionID))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return qaList{}, nil
		}
		return qaList{}, errs.CacheConnectionError(err)
	}
	var list qaList
	if err := json.Unmarshal(entry.Value(), &list); err != nil {
		return qaList{}, err
	}
	return list, nil
}

func (c *Coordinator) GetLatestQAEntries(ctx context.Context, userID, sessionID string, lastN int) ([]qa.Entry, error) {
	list, err := c.readQAList(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	n := lastN
	if n > len(list.Entries) {
		n = len(list.Entries)
	}
	out := make([]qa.Entry, n)
	for i := range n {
		out[i] = list.Entries[len(list.Entries)-1-i]
	}
	return out, nil
}

func (c *Coordinator) GetAllQAEntries(ctx context.Context, userID, sessionID string) ([]qa.Entry, error) {
	list, err := c.readQAList(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return list.Entries, nil
}

func (c *Coordinator) UpdateQAEntry(ctx context.Context, userID, sessionID, qaID string, update qa.Update) (bool, error) {
	found := false
	key := qaListKey(userID, sessionID)
	err := updateWithRetry(ctx, c.kv, key, func(raw []byte) ([]byte, error) {
		var list qaList
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &list); err != nil {
				return nil, err
			}
		}
		for i := range list.Entries {
			if list.Entries[i].QAID == qaID {
				update.Apply(&list.Entries[i])
				found = true
				break
			}
		}
		return json.Marshal(list)
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

func (c *Coordinator) DeleteQAEntries(ctx context.Context, userID, sessionID, qaID string) (bool, error) {
	removed := false
	key := qaListKey(userID, sessionID)
	err := updateWithRetry(ctx, c.kv, key, func(raw []byte) ([]byte, error) {
		var list qaList
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &list); err != nil {
				return nil, err
			}
		}
		kept := list.Entries[:0]
		for _, e := range list.Entries {
			if e.QAID == qaID {
				removed = true
				continue
			}
			kept = append(kept, e)
		}
		list.Entries = kept
		return json.Marshal(list)
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

func (c *Coordinator) DeleteSession(ctx context.Context, userID, sessionID string) (bool, error) {
	key := qaListKey(userID, sessionID)
	_, err := c.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errs.CacheConnectionError(err)
	}
	if err := c.kv.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return false, errs.CacheConnectionError(err)
	}
	return true, nil
}

type usageList struct {
	Entries []usage.LogEntry `json:"entries"`
}

func (c *Coordinator) LogUsage(ctx context.Context, userID string, entry usage.LogEntry, _ time.Duration) error {
	key := usageListKey(userID)
	return updateWithRetry(ctx, c.kv, key, func(raw []byte) ([]byte, error) {
		var list usageList
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &list); err != nil {
				return nil, err
			}
		}
		list.Entries = append(list.Entries, entry)
		return json.Marshal(list)
	})
}

func (c *Coordinator) GetUsageLogs(ctx context.Context, userID string, limit int) ([]usage.LogEntry, error) {
	entry, err := c.kv.Get(ctx, usageListKey(userID))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, errs.CacheConnectionError(err)
	}
	var list usageList
	if err := json.Unmarshal(entry.Value(), &list); err != nil {
		return nil, err
	}
	sort.SliceStable(list.Entries, func(i, j int) bool {
		return list.Entries[i].Timestamp.After(list.Entries[j].Timestamp)
	})
	if limit > 0 && limit < len(list.Entries) {
		return list.Entries[:limit], nil
	}
	return list.Entries, nil
}
