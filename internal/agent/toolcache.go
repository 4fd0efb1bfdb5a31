package agent

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

const (
	defaultToolCacheCapacity = 256
	defaultToolCacheTTL      = 300 * time.Second
)

// toolCacheEntry is one cached tool result plus its expiry.
type toolCacheEntry struct {
	result    *models.ToolResult
	expiresAt time.Time
	touchedAt time.Time
}

// toolCache is a bounded, TTL-evicting cache of tool results keyed by tool
// name plus canonicalized arguments. Entries beyond capacity are evicted by
// least-recently-touched order; entries past their TTL are pruned lazily on
// access and opportunistically on insert.
type toolCache struct {
	mu       sync.Mutex
	entries  map[string]*toolCacheEntry
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

func newToolCache(capacity int, ttl time.Duration) *toolCache {
	if capacity <= 0 {
		capacity = defaultToolCacheCapacity
	}
	if ttl <= 0 {
		ttl = defaultToolCacheTTL
	}
	return &toolCache{
		entries:  make(map[string]*toolCacheEntry),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// get returns a cached result if present and unexpired.
func (c *toolCache) get(key string) (*models.ToolResult, bool) {
	return c.getAt(key, c.now())
}

func (c *toolCache) getAt(key string, at time.Time) (*models.ToolResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if at.After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	entry.touchedAt = at
	return entry.result, true
}

// set stores a result under key, using ttlOverride when positive, otherwise
// the cache's default TTL.
func (c *toolCache) set(key string, result *models.ToolResult, ttlOverride time.Duration) {
	c.setAt(key, result, ttlOverride, c.now())
}

func (c *toolCache) setAt(key string, result *models.ToolResult, ttlOverride time.Duration, at time.Time) {
	ttl := c.ttl
	if ttlOverride > 0 {
		ttl = ttlOverride
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.prune(at)
	if len(c.entries) >= c.capacity {
		c.evictOldest()
	}
	c.entries[key] = &toolCacheEntry{
		result:    result,
		expiresAt: at.Add(ttl),
		touchedAt: at,
	}
}

// prune removes all expired entries. Caller must hold c.mu.
func (c *toolCache) prune(at time.Time) {
	for key, entry := range c.entries {
		if at.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// evictOldest removes the least-recently-touched entry. Caller must hold
// c.mu.
func (c *toolCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.touchedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.touchedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// size reports the current entry count, for tests.
func (c *toolCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// canonicalCacheKey builds a stable cache key from a tool name and its
// arguments by re-encoding the arguments with sorted object keys, so that
// argument order in the original JSON (which carries no semantic meaning)
// does not produce distinct cache entries.
func canonicalCacheKey(toolName string, params json.RawMessage) string {
	var builder strings.Builder
	builder.WriteString(toolName)
	builder.WriteByte(':')
	builder.WriteString(canonicalizeJSON(params))
	return builder.String()
}

// canonicalizeJSON decodes arbitrary JSON into generic Go values and
// re-encodes it through encoding/json, which sorts map keys, producing a
// byte-stable representation for equivalent-but-differently-ordered input.
func canonicalizeJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return string(raw)
	}
	normalized := normalizeJSONValue(decoded)
	out, err := json.Marshal(normalized)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

// normalizeJSONValue recursively sorts map keys so json.Marshal's natural
// alphabetical map-key ordering is reached regardless of input type shape.
func normalizeJSONValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(val))
		for _, k := range keys {
			out[k] = normalizeJSONValue(val[k])
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeJSONValue(item)
		}
		return out
	default:
		return val
	}
}
