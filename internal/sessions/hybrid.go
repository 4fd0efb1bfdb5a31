package sessions

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

// DurableRepository is the narrow interface a durable backend (Cockroach,
// Postgres, sqlite, ...) must satisfy to back a HybridStore. It mirrors
// Store but without the memory-tier statistics and fallback behavior,
// which HybridStore layers on top.
type DurableRepository interface {
	GetOrCreate(ctx context.Context, sessionID, userID string) (*models.Session, error)
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	Update(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, sessionID string) error
	AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error
	GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error)
	ListUserSessions(ctx context.Context, userID string, opts ListOptions) ([]*models.Session, error)
}

// HybridStore is the full Hybrid Session Store:
// a bounded memory cache in front of a durable repository, with a sticky
// fallback mode that goes memory-only after a durable-tier error and
// clears itself once a probe read succeeds again.
type HybridStore struct {
	memory  *MemoryStore
	durable DurableRepository

	writeMu  sync.Mutex // serializes durable writes, per session store
	fallback atomic.Bool

	durableReads     int64
	durableWrites    int64
	durableErrors    int64
	fallbackTriggers int64
}

// NewHybridStore wraps durable behind a memory cache. durable may be nil,
// in which case the store behaves exactly like a bare MemoryStore.
func NewHybridStore(durable DurableRepository) *HybridStore {
	return &HybridStore{
		memory:  NewMemoryStore(),
		durable: durable,
	}
}

func (h *HybridStore) inFallback() bool {
	return h.durable == nil || h.fallback.Load()
}

// tripFallback enters fallback mode after a durable-tier failure.
func (h *HybridStore) tripFallback() {
	if h.fallback.CompareAndSwap(false, true) {
		atomic.AddInt64(&h.fallbackTriggers, 1)
	}
}

// ResetFallback issues a light probe read against the durable tier and
// clears fallback mode on success.
func (h *HybridStore) ResetFallback(ctx context.Context, probeSessionID string) bool {
	if h.durable == nil || !h.fallback.Load() {
		return !h.fallback.Load()
	}
	if _, err := h.durable.Get(ctx, probeSessionID); err != nil && err != errSessionNotFound {
		atomic.AddInt64(&h.durableErrors, 1)
		return false
	}
	h.fallback.Store(false)
	return true
}

func (h *HybridStore) GetOrCreate(ctx context.Context, sessionID, userID string) (*models.Session, error) {
	if session, err := h.memory.Get(ctx, sessionID); err == nil {
		return session, nil
	}

	if !h.inFallback() {
		if session, err := h.durable.Get(ctx, sessionID); err == nil {
			atomic.AddInt64(&h.durableReads, 1)
			h.memory.adopt(session, nil)
			return session, nil
		} else if err != errSessionNotFound {
			atomic.AddInt64(&h.durableErrors, 1)
			h.tripFallback()
		}
	}

	if !h.inFallback() {
		session, err := h.durable.GetOrCreate(ctx, sessionID, userID)
		if err != nil {
			atomic.AddInt64(&h.durableErrors, 1)
			h.tripFallback()
		} else {
			atomic.AddInt64(&h.durableWrites, 1)
			h.memory.adopt(session, nil)
			return session, nil
		}
	}

	return h.memory.GetOrCreate(ctx, sessionID, userID)
}

func (h *HybridStore) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	if session, err := h.memory.Get(ctx, sessionID); err == nil {
		return session, nil
	}

	if h.inFallback() {
		return nil, errSessionNotFound
	}

	session, err := h.durable.Get(ctx, sessionID)
	if err != nil {
		if err != errSessionNotFound {
			atomic.AddInt64(&h.durableErrors, 1)
			h.tripFallback()
		}
		return nil, err
	}
	atomic.AddInt64(&h.durableReads, 1)

	history, _ := h.durable.GetHistory(ctx, sessionID, memoryHistoryLimit)
	h.memory.adopt(session, history)
	return session, nil
}

func (h *HybridStore) Update(ctx context.Context, session *models.Session) error {
	if err := h.memory.Update(ctx, session); err != nil {
		return err
	}
	h.persistAsync(func(ctx context.Context) error {
		return h.durable.Update(ctx, session)
	})
	return nil
}

func (h *HybridStore) Delete(ctx context.Context, sessionID string) error {
	_ = h.memory.Delete(ctx, sessionID)
	if h.inFallback() {
		return nil
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	if err := h.durable.Delete(ctx, sessionID); err != nil && err != errSessionNotFound {
		atomic.AddInt64(&h.durableErrors, 1)
		h.tripFallback()
	}
	return nil
}

// AppendMessage writes through to memory synchronously, then persists to
// the durable tier under the write mutex. Durable-write failures trip
// fallback mode but never fail the call: the memory tier is always
// authoritative for the caller's turn.
func (h *HybridStore) AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error {
	if err := h.memory.AppendMessage(ctx, sessionID, msg); err != nil {
		return err
	}
	h.persistAsync(func(ctx context.Context) error {
		return h.durable.AppendMessage(ctx, sessionID, msg)
	})
	return nil
}

func (h *HybridStore) GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	if messages, err := h.memory.GetHistory(ctx, sessionID, limit); err == nil && len(messages) > 0 {
		return messages, nil
	}

	if h.inFallback() {
		return h.memory.GetHistory(ctx, sessionID, limit)
	}

	messages, err := h.durable.GetHistory(ctx, sessionID, limit)
	if err != nil {
		atomic.AddInt64(&h.durableErrors, 1)
		h.tripFallback()
		return h.memory.GetHistory(ctx, sessionID, limit)
	}
	atomic.AddInt64(&h.durableReads, 1)
	h.memory.adopt(nil, messages)
	return messages, nil
}

func (h *HybridStore) ListUserSessions(ctx context.Context, userID string, opts ListOptions) ([]*models.Session, error) {
	if h.inFallback() {
		return h.memory.ListUserSessions(ctx, userID, opts)
	}
	sessions, err := h.durable.ListUserSessions(ctx, userID, opts)
	if err != nil {
		atomic.AddInt64(&h.durableErrors, 1)
		h.tripFallback()
		return h.memory.ListUserSessions(ctx, userID, opts)
	}
	atomic.AddInt64(&h.durableReads, 1)
	return sessions, nil
}

func (h *HybridStore) CleanupExpired(ctx context.Context, ttl time.Duration) (int, error) {
	return h.memory.CleanupExpired(ctx, ttl)
}

func (h *HybridStore) Stats() Stats {
	stats := h.memory.Stats()
	stats.DurableReads = atomic.LoadInt64(&h.durableReads)
	stats.DurableWrites = atomic.LoadInt64(&h.durableWrites)
	stats.DurableErrors = atomic.LoadInt64(&h.durableErrors)
	stats.FallbackTriggers = atomic.LoadInt64(&h.fallbackTriggers)
	stats.FallbackActive = h.fallback.Load()
	return stats
}

// persistAsync runs fn in its own goroutine serialized by the write mutex,
// so durable writes for a session never race each other. Skipped entirely
// while in fallback mode.
func (h *HybridStore) persistAsync(fn func(ctx context.Context) error) {
	if h.inFallback() {
		return
	}
	go func() {
		h.writeMu.Lock()
		defer h.writeMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := fn(ctx); err != nil {
			atomic.AddInt64(&h.durableErrors, 1)
			h.tripFallback()
			return
		}
		atomic.AddInt64(&h.durableWrites, 1)
	}()
}

// adopt populates the memory tier from a durable-tier read (read-through).
// session may be nil when only history is being primed.
func (m *MemoryStore) adopt(session *models.Session, history []*models.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[sessionFor(session, history)]
	if !ok {
		id := sessionFor(session, history)
		if id == "" {
			return
		}
		entry = &sessionEntry{lastActivity: time.Now()}
		m.entries[id] = entry
	}
	if session != nil {
		entry.session = cloneSession(session)
	}
	if len(history) > 0 && entry.session != nil {
		out := make([]*models.Message, 0, len(history))
		for _, msg := range history {
			out = append(out, cloneMessage(msg))
		}
		if len(out) > memoryHistoryLimit {
			out = out[len(out)-memoryHistoryLimit:]
		}
		entry.messages = out
	}
}

func sessionFor(session *models.Session, history []*models.Message) string {
	if session != nil {
		return session.ID
	}
	if len(history) > 0 {
		return history[0].SessionID
	}
	return ""
}
