package agent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

func TestToolCache_GetSetRoundTrip(t *testing.T) {
	c := newToolCache(10, time.Minute)
	result := okResult("cached")

	if _, ok := c.get("missing"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.set("key1", result, 0)
	got, ok := c.get("key1")
	if !ok {
		t.Fatal("expected hit after set")
	}
	if got.Content() != result.Content() {
		t.Errorf("content = %q, want %q", got.Content(), result.Content())
	}
}

func TestToolCache_TTLExpiry(t *testing.T) {
	c := newToolCache(10, time.Minute)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	c.setAt("key1", okResult("v"), time.Second, base)

	if _, ok := c.getAt("key1", base.Add(500*time.Millisecond)); !ok {
		t.Fatal("expected hit before TTL elapses")
	}
	if _, ok := c.getAt("key1", base.Add(2*time.Second)); ok {
		t.Fatal("expected miss after TTL elapses")
	}
}

func TestToolCache_CapacityEviction(t *testing.T) {
	c := newToolCache(2, time.Minute)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	c.setAt("key1", okResult("v1"), 0, base)
	c.setAt("key2", okResult("v2"), 0, base.Add(time.Second))
	if c.size() != 2 {
		t.Fatalf("size = %d, want 2", c.size())
	}

	c.setAt("key3", okResult("v3"), 0, base.Add(2*time.Second))
	if c.size() != 2 {
		t.Fatalf("size after eviction = %d, want 2", c.size())
	}
	if _, ok := c.getAt("key1", base.Add(2*time.Second)); ok {
		t.Error("expected key1 (least recently touched) to be evicted")
	}
	if _, ok := c.getAt("key3", base.Add(2*time.Second)); !ok {
		t.Error("expected key3 to survive eviction")
	}
}

func TestToolCache_TouchResetsEvictionOrder(t *testing.T) {
	c := newToolCache(2, time.Minute)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	c.setAt("key1", okResult("v1"), 0, base)
	c.setAt("key2", okResult("v2"), 0, base.Add(time.Second))

	// Touch key1 so it's no longer the oldest.
	c.getAt("key1", base.Add(2*time.Second))

	c.setAt("key3", okResult("v3"), 0, base.Add(3*time.Second))

	if _, ok := c.getAt("key2", base.Add(3*time.Second)); ok {
		t.Error("expected key2 to be evicted after key1 was touched")
	}
	if _, ok := c.getAt("key1", base.Add(3*time.Second)); !ok {
		t.Error("expected key1 to survive since it was touched more recently")
	}
}

func TestToolCache_DefaultTTLUsedWhenOverrideZero(t *testing.T) {
	c := newToolCache(10, time.Second)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	c.setAt("key1", okResult("v"), 0, base)

	if _, ok := c.getAt("key1", base.Add(500*time.Millisecond)); !ok {
		t.Fatal("expected hit within default TTL")
	}
	if _, ok := c.getAt("key1", base.Add(2*time.Second)); ok {
		t.Fatal("expected miss past default TTL")
	}
}

func TestCanonicalCacheKey_OrderIndependent(t *testing.T) {
	a := canonicalCacheKey("search", json.RawMessage(`{"b":2,"a":1}`))
	b := canonicalCacheKey("search", json.RawMessage(`{"a":1,"b":2}`))
	if a != b {
		t.Errorf("keys differ for equivalent argument order: %q vs %q", a, b)
	}
}

func TestCanonicalCacheKey_NestedObjectsSorted(t *testing.T) {
	a := canonicalCacheKey("search", json.RawMessage(`{"outer":{"z":1,"a":2}}`))
	b := canonicalCacheKey("search", json.RawMessage(`{"outer":{"a":2,"z":1}}`))
	if a != b {
		t.Errorf("keys differ for equivalent nested order: %q vs %q", a, b)
	}
}

func TestCanonicalCacheKey_DifferentToolNamesDiffer(t *testing.T) {
	a := canonicalCacheKey("tool_a", json.RawMessage(`{}`))
	b := canonicalCacheKey("tool_b", json.RawMessage(`{}`))
	if a == b {
		t.Error("expected different tool names to produce different keys")
	}
}

func TestCanonicalCacheKey_EmptyParams(t *testing.T) {
	key := canonicalCacheKey("tool_a", nil)
	if key != "tool_a:null" {
		t.Errorf("key = %q, want %q", key, "tool_a:null")
	}
}

func TestCanonicalizeJSON_ArraysPreserveOrder(t *testing.T) {
	out := canonicalizeJSON(json.RawMessage(`[3,1,2]`))
	if out != "[3,1,2]" {
		t.Errorf("canonicalizeJSON() = %q, want array order preserved", out)
	}
}

func TestCanonicalizeJSON_InvalidFallsBackToRaw(t *testing.T) {
	raw := json.RawMessage(`not json`)
	out := canonicalizeJSON(raw)
	if out != string(raw) {
		t.Errorf("canonicalizeJSON() = %q, want raw passthrough %q", out, raw)
	}
}

type cacheableMockTool struct {
	mockTool
	ttl time.Duration
}

func (c *cacheableMockTool) CacheTTL() time.Duration { return c.ttl }

func TestToolRegistry_CachesCacheableToolResults(t *testing.T) {
	registry := NewToolRegistry()
	calls := 0
	registry.Register(&cacheableMockTool{
		mockTool: mockTool{
			name: "weather",
			execFunc: func(ctx context.Context, params json.RawMessage) (*models.ToolResult, error) {
				calls++
				return okResult("sunny"), nil
			},
		},
		ttl: time.Minute,
	})

	ctx := context.Background()
	if _, err := registry.Execute(ctx, "weather", json.RawMessage(`{"city":"nyc"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := registry.Execute(ctx, "weather", json.RawMessage(`{"city":"nyc"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("underlying tool called %d times, want 1 (second call should hit cache)", calls)
	}
}

func TestToolRegistry_NonCacheableToolsAlwaysExecute(t *testing.T) {
	registry := NewToolRegistry()
	calls := 0
	registry.Register(&mockTool{
		name: "no_cache",
		execFunc: func(ctx context.Context, params json.RawMessage) (*models.ToolResult, error) {
			calls++
			return okResult("v"), nil
		},
	})

	ctx := context.Background()
	registry.Execute(ctx, "no_cache", json.RawMessage(`{}`))
	registry.Execute(ctx, "no_cache", json.RawMessage(`{}`))
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (non-cacheable tool must execute every time)", calls)
	}
}
