package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

func TestToolRegistry_RegisterAndGet(t *testing.T) {
	r := NewToolRegistry()
	tool := &mockTool{name: "echo"}
	r.Register(tool)

	got, ok := r.Get("echo")
	if !ok {
		t.Fatal("expected tool to be found")
	}
	if got.Name() != "echo" {
		t.Errorf("Name() = %q, want %q", got.Name(), "echo")
	}
}

func TestToolRegistry_GetMissing(t *testing.T) {
	r := NewToolRegistry()
	if _, ok := r.Get("missing"); ok {
		t.Error("expected miss for unregistered tool")
	}
}

func TestToolRegistry_Unregister(t *testing.T) {
	r := NewToolRegistry()
	r.Register(&mockTool{name: "echo"})
	r.Unregister("echo")

	if _, ok := r.Get("echo"); ok {
		t.Error("expected tool to be gone after unregister")
	}
}

func TestToolRegistry_RegisterReplacesExisting(t *testing.T) {
	r := NewToolRegistry()
	r.Register(&mockTool{name: "echo", description: "first"})
	r.Register(&mockTool{name: "echo", description: "second"})

	got, _ := r.Get("echo")
	if got.Description() != "second" {
		t.Errorf("Description() = %q, want %q", got.Description(), "second")
	}
}

func TestToolRegistry_Execute_Success(t *testing.T) {
	r := NewToolRegistry()
	r.Register(&mockTool{
		name: "echo",
		execFunc: func(ctx context.Context, params json.RawMessage) (*models.ToolResult, error) {
			return okResult("hi"), nil
		},
	})

	result, err := r.Execute(context.Background(), "echo", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content() != `"hi"` {
		t.Errorf("content = %q, want %q", result.Content(), `"hi"`)
	}
}

func TestToolRegistry_Execute_NotFound(t *testing.T) {
	r := NewToolRegistry()
	_, err := r.Execute(context.Background(), "missing", json.RawMessage(`{}`))
	if !errors.Is(err, ErrToolNotFound) {
		t.Errorf("expected ErrToolNotFound, got %v", err)
	}
}

func TestToolRegistry_Execute_NameTooLong(t *testing.T) {
	r := NewToolRegistry()
	longName := strings.Repeat("a", MaxToolNameLength+1)
	_, err := r.Execute(context.Background(), longName, json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("expected error for oversized tool name")
	}
}

func TestToolRegistry_Execute_ParamsTooLarge(t *testing.T) {
	r := NewToolRegistry()
	r.Register(&mockTool{name: "echo"})
	huge := make([]byte, MaxToolParamsSize+1)
	for i := range huge {
		huge[i] = 'a'
	}
	_, err := r.Execute(context.Background(), "echo", json.RawMessage(huge))
	if err == nil {
		t.Fatal("expected error for oversized params")
	}
}

func TestToolRegistry_Execute_SchemaValidationRejectsBadArguments(t *testing.T) {
	r := NewToolRegistry()
	r.Register(&mockTool{
		name:   "search",
		schema: json.RawMessage(`{"type":"object","required":["query"]}`),
		execFunc: func(ctx context.Context, params json.RawMessage) (*models.ToolResult, error) {
			return okResult("ok"), nil
		},
	})

	_, err := r.Execute(context.Background(), "search", json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("expected schema validation error for missing required field")
	}
}

func TestToolRegistry_Execute_PropagatesToolError(t *testing.T) {
	r := NewToolRegistry()
	boom := errors.New("boom")
	r.Register(&mockTool{
		name: "failing",
		execFunc: func(ctx context.Context, params json.RawMessage) (*models.ToolResult, error) {
			return nil, boom
		},
	})

	_, err := r.Execute(context.Background(), "failing", json.RawMessage(`{}`))
	if !errors.Is(err, boom) {
		t.Errorf("expected underlying error to propagate, got %v", err)
	}
}

func TestToolRegistry_Execute_DoesNotCacheFailedResults(t *testing.T) {
	r := NewToolRegistry()
	calls := 0
	r.Register(&cacheableMockTool{
		mockTool: mockTool{
			name: "flaky",
			execFunc: func(ctx context.Context, params json.RawMessage) (*models.ToolResult, error) {
				calls++
				return &models.ToolResult{Success: false, Error: "nope"}, nil
			},
		},
		ttl: time.Minute,
	})

	r.Execute(context.Background(), "flaky", json.RawMessage(`{}`))
	r.Execute(context.Background(), "flaky", json.RawMessage(`{}`))
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (failed results must not be cached)", calls)
	}
}

func TestToolRegistry_AsLLMTools(t *testing.T) {
	r := NewToolRegistry()
	r.Register(&mockTool{name: "a"})
	r.Register(&mockTool{name: "b"})

	tools := r.AsLLMTools()
	if len(tools) != 2 {
		t.Errorf("got %d tools, want 2", len(tools))
	}
}

func TestToolRegistry_Names(t *testing.T) {
	r := NewToolRegistry()
	r.Register(&mockTool{name: "a"})
	r.Register(&mockTool{name: "b"})

	names := r.Names()
	if len(names) != 2 {
		t.Errorf("got %d names, want 2", len(names))
	}
}
