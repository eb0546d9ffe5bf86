package conversation

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"plant-advisor/internal/common/errors"
	"plant-advisor/internal/common/logger"
	"plant-advisor/internal/common/metrics"
)

// ErrStateNotFound is returned by a StateStore with no state for the user.
var ErrStateNotFound = stderrors.New("conversation state not found")

// StateStore keeps one State per user. Implementations return copies, so
// callers may mutate what Load returns.
//
// Save is a compare-and-set: it writes only when the stored revision equals
// state.Revision (zero meaning no stored state), then increments
// state.Revision. A lost race returns a retryable SESSION_STORE_FAILED error
// and leaves the stored state untouched.
type StateStore interface {
	Load(ctx context.Context, userID string) (*State, error)
	Save(ctx context.Context, state *State) error
	Delete(ctx context.Context, userID string) error
}

type memoryEntry struct {
	state   *State
	touched time.Time
}

// MemoryStore keeps states in process. States idle for longer than the TTL
// are dropped by Sweep; a zero TTL keeps them forever.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.RWMutex
	states map[string]memoryEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:    ttl,
		now:    time.Now,
		states: make(map[string]memoryEntry),
	}
}

func (m *MemoryStore) Load(_ context.Context, userID string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.states[userID]
	if !ok || m.expired(entry, m.now()) {
		return nil, ErrStateNotFound
	}
	return entry.state.clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, state *State) error {
	now := m.now()

	m.mu.Lock()
	var stored int64
	if entry, ok := m.states[state.UserID]; ok && !m.expired(entry, now) {
		stored = entry.state.Revision
	}
	if stored != state.Revision {
		m.mu.Unlock()
		return errors.NewSessionConflictError(state.UserID)
	}
	state.Revision++
	m.states[state.UserID] = memoryEntry{state: state.clone(), touched: now}
	n := len(m.states)
	m.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	delete(m.states, userID)
	n := len(m.states)
	m.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	return nil
}

func (m *MemoryStore) expired(entry memoryEntry, now time.Time) bool {
	return m.ttl > 0 && now.Sub(entry.touched) > m.ttl
}

// Sweep drops every state idle past the TTL at now and returns how many went.
func (m *MemoryStore) Sweep(now time.Time) int {
	m.mu.Lock()
	removed := 0
	for id, entry := range m.states {
		if m.expired(entry, now) {
			delete(m.states, id)
			removed++
		}
	}
	n := len(m.states)
	m.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	return removed
}

// Len reports how many states are held, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}

// RunJanitor sweeps every interval until ctx is done.
func (m *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration, log logger.Logger) {
	if interval <= 0 || m.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if removed := m.Sweep(now); removed > 0 {
				log.Debug("Expired conversations swept", map[string]interface{}{"removed": removed})
			}
		}
	}
}

// RedisStore keeps each state as a JSON string that expires after the TTL.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisStore) key(userID string) string {
	return r.prefix + userID
}

func (r *RedisStore) Load(ctx context.Context, userID string) (*State, error) {
	data, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, errors.NewSessionStoreFailedError("load", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.NewSessionStoreFailedError("decode", err)
	}
	return &state, nil
}

var errRevisionChanged = stderrors.New("stored revision changed")

// Save watches the user's key so that a write from another process between
// the revision check and the SET aborts the transaction.
func (r *RedisStore) Save(ctx context.Context, state *State) error {
	key := r.key(state.UserID)
	next := *state
	next.Revision = state.Revision + 1
	data, err := json.Marshal(&next)
	if err != nil {
		return errors.NewSessionStoreFailedError("encode", err)
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := storedRevision(ctx, tx, key)
		if err != nil {
			return err
		}
		if stored != state.Revision {
			return errRevisionChanged
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		state.Revision = next.Revision
		return nil
	case stderrors.Is(err, errRevisionChanged), stderrors.Is(err, redis.TxFailedErr):
		return errors.NewSessionConflictError(state.UserID)
	default:
		return errors.NewSessionStoreFailedError("save", err)
	}
}

// storedRevision is zero when the key is missing.
func storedRevision(ctx context.Context, tx *redis.Tx, key string) (int64, error) {
	data, err := tx.Get(ctx, key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var head struct {
		Revision int64 `json:"revision"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return 0, err
	}
	return head.Revision, nil
}

func (r *RedisStore) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return errors.NewSessionStoreFailedError("delete", err)
	}
	return nil
}
