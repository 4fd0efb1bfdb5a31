package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

// memoryHistoryLimit bounds how many recent messages the memory tier keeps
// per session. Older messages are evicted silently; a
// durable tier, when configured, is the system of record beyond this.
const memoryHistoryLimit = 20

// sessionEntry is the memory tier's per-session record: the session value
// plus a bounded FIFO of recent messages and a last-activity stamp.
type sessionEntry struct {
	session      *models.Session
	messages     []*models.Message
	lastActivity time.Time
}

// MemoryStore is the memory tier of the Hybrid Session Store: a bounded,
// mutex-protected cache with no durable backing. Used standalone for tests
// and local runs, and wrapped by HybridStore to add a durable tier.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*sessionEntry

	hits   int64
	misses int64
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]*sessionEntry{}}
}

func (m *MemoryStore) GetOrCreate(ctx context.Context, sessionID, userID string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.entries[sessionID]; ok {
		m.hits++
		return cloneSession(entry.session), nil
	}

	m.misses++
	now := time.Now()
	session := &models.Session{
		ID:           sessionID,
		UserID:       userID,
		Status:       models.SessionActive,
		CreatedAt:    now,
		LastActivity: now,
	}
	m.entries[sessionID] = &sessionEntry{session: session, lastActivity: now}
	return cloneSession(session), nil
}

func (m *MemoryStore) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[sessionID]
	if !ok {
		m.misses++
		return nil, errSessionNotFound
	}
	m.hits++
	return cloneSession(entry.session), nil
}

func (m *MemoryStore) Update(ctx context.Context, session *models.Session) error {
	if session == nil {
		return errors.New("session is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[session.ID]
	if !ok {
		return errSessionNotFound
	}
	clone := cloneSession(session)
	clone.CreatedAt = entry.session.CreatedAt
	entry.session = clone
	entry.lastActivity = time.Now()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, sessionID)
	return nil
}

func (m *MemoryStore) AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error {
	if msg == nil {
		return errors.New("message is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[sessionID]
	if !ok {
		now := time.Now()
		entry = &sessionEntry{
			session:      &models.Session{ID: sessionID, Status: models.SessionActive, CreatedAt: now, LastActivity: now},
			lastActivity: now,
		}
		m.entries[sessionID] = entry
	}

	clone := cloneMessage(msg)
	entry.messages = append(entry.messages, clone)
	if len(entry.messages) > memoryHistoryLimit {
		excess := len(entry.messages) - memoryHistoryLimit
		entry.messages = entry.messages[excess:]
	}
	entry.lastActivity = time.Now()
	entry.session.LastActivity = entry.lastActivity
	return nil
}

func (m *MemoryStore) GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[sessionID]
	if !ok {
		m.misses++
		return nil, nil
	}
	m.hits++

	messages := entry.messages
	start := 0
	if limit > 0 && len(messages) > limit {
		start = len(messages) - limit
	}
	out := make([]*models.Message, 0, len(messages)-start)
	for _, msg := range messages[start:] {
		out = append(out, cloneMessage(msg))
	}
	return out, nil
}

func (m *MemoryStore) ListUserSessions(ctx context.Context, userID string, opts ListOptions) ([]*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Session
	for _, entry := range m.entries {
		if userID != "" && entry.session.UserID != userID {
			continue
		}
		out = append(out, cloneSession(entry.session))
	}

	start := opts.Offset
	if start < 0 {
		start = 0
	}
	end := len(out)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	if start > len(out) {
		return []*models.Session{}, nil
	}
	return out[start:end], nil
}

// CleanupExpired removes sessions whose last activity predates ttl.
func (m *MemoryStore) CleanupExpired(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, entry := range m.entries {
		if entry.lastActivity.Before(cutoff) {
			delete(m.entries, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		CacheHits:      m.hits,
		CacheMisses:    m.misses,
		ActiveSessions: int64(len(m.entries)),
	}
}

var errSessionNotFound = errors.New("session not found")

// deepCloneMap creates a deep copy of a map[string]any to prevent shared references.
func deepCloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	clone := make(map[string]any, len(m))
	for k, v := range m {
		clone[k] = deepCloneValue(v)
	}
	return clone
}

// deepCloneValue recursively clones a value, handling nested maps and slices.
func deepCloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCloneMap(val)
	case []any:
		cloned := make([]any, len(val))
		for i, item := range val {
			cloned[i] = deepCloneValue(item)
		}
		return cloned
	default:
		return v
	}
}

func cloneSession(session *models.Session) *models.Session {
	if session == nil {
		return nil
	}
	clone := *session
	if session.Metadata != nil {
		clone.Metadata = deepCloneMap(session.Metadata)
	}
	return &clone
}

func cloneMessage(msg *models.Message) *models.Message {
	if msg == nil {
		return nil
	}
	clone := *msg
	if msg.Metadata != nil {
		clone.Metadata = deepCloneMap(msg.Metadata)
	}
	if len(msg.Attachments) > 0 {
		clone.Attachments = append([]models.Attachment{}, msg.Attachments...)
	}
	if len(msg.ToolCalls) > 0 {
		clone.ToolCalls = append([]models.ToolCall{}, msg.ToolCalls...)
	}
	if len(msg.ToolResults) > 0 {
		clone.ToolResults = append([]models.ToolResult{}, msg.ToolResults...)
	}
	return &clone
}
