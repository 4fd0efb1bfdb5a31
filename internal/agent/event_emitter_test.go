package agent

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

func TestEventEmitter_IDsAreUniqueAndPrefixed(t *testing.T) {
	emitter := NewEventEmitter("session-1", nil)

	e1 := emitter.Start(context.Background(), "gpt-4")
	e2 := emitter.Delta(context.Background(), "hello")

	if e1.ID == e2.ID {
		t.Errorf("event ids should be unique, got %q twice", e1.ID)
	}
	for _, e := range []models.Event{e1, e2} {
		if len(e.ID) != len("evt_")+16 || e.ID[:4] != "evt_" {
			t.Errorf("event id %q does not match evt_<16 hex> shape", e.ID)
		}
	}
}

func TestEventEmitter_SessionID(t *testing.T) {
	emitter := NewEventEmitter("my-session", nil)

	event := emitter.Start(context.Background(), "gpt-4")

	if event.SessionID != "my-session" {
		t.Errorf("SessionID = %q, want %q", event.SessionID, "my-session")
	}
}

func TestEventEmitter_Version(t *testing.T) {
	emitter := NewEventEmitter("test", nil)

	event := emitter.Start(context.Background(), "gpt-4")

	if event.Version != models.EventProtocolVersion {
		t.Errorf("Version = %q, want %q", event.Version, models.EventProtocolVersion)
	}
}

func TestEventEmitter_DispatchesToSink(t *testing.T) {
	var received []models.Event
	sink := NewCallbackSink(func(ctx context.Context, e models.Event) {
		received = append(received, e)
	})

	emitter := NewEventEmitter("test", sink)

	emitter.Start(context.Background(), "gpt-4")
	emitter.Delta(context.Background(), "hi")
	emitter.End(context.Background(), "hi")

	if len(received) != 3 {
		t.Errorf("expected 3 events dispatched, got %d", len(received))
	}
}

func TestEventEmitter_Delta(t *testing.T) {
	emitter := NewEventEmitter("test", nil)

	event := emitter.Delta(context.Background(), "hello world")

	if event.Type != models.EventDelta {
		t.Errorf("Type = %s, want delta", event.Type)
	}
	if event.Content != "hello world" {
		t.Errorf("Content = %q, want %q", event.Content, "hello world")
	}
}

func TestEventEmitter_ToolCalls(t *testing.T) {
	emitter := NewEventEmitter("test", nil)

	calls := []models.ToolCall{
		{ID: "call-1", Name: "search", Arguments: []byte(`{"q":"test"}`)},
	}
	event := emitter.ToolCalls(context.Background(), calls)

	if event.Type != models.EventToolCalls {
		t.Errorf("Type = %s, want tool_calls", event.Type)
	}
	if len(event.ToolCalls) != 1 || event.ToolCalls[0].Function.Name != "search" {
		t.Errorf("ToolCalls mismatch: %+v", event.ToolCalls)
	}
}

func TestEventEmitter_Error(t *testing.T) {
	emitter := NewEventEmitter("test", nil)

	event := emitter.Error(context.Background(), NewUpstreamError("provider unavailable", nil))

	if event.Type != models.EventError {
		t.Errorf("Type = %s, want error", event.Type)
	}
	if event.ErrorCode != string(ErrCodeUpstream) {
		t.Errorf("ErrorCode = %q, want %q", event.ErrorCode, ErrCodeUpstream)
	}
	if event.Error != "provider unavailable" {
		t.Errorf("Error = %q", event.Error)
	}
}

func TestEventEmitter_Cancelled(t *testing.T) {
	emitter := NewEventEmitter("test", nil)

	event := emitter.Cancelled(context.Background(), "client requested stop")

	if event.Type != models.EventCancelled {
		t.Errorf("Type = %s, want cancelled", event.Type)
	}
	if event.Reason != "client requested stop" {
		t.Errorf("Reason = %q", event.Reason)
	}
}

func TestEventEmitter_TraceEventsCarryData(t *testing.T) {
	emitter := NewEventEmitter("test", nil)

	event := emitter.NodeStarted(context.Background(), PhaseCallLLM, 2)

	if event.Type != models.EventNodeStarted {
		t.Errorf("Type = %s, want node_started", event.Type)
	}
	if event.Data["node"] != string(PhaseCallLLM) {
		t.Errorf("Data[node] = %v, want %q", event.Data["node"], PhaseCallLLM)
	}
	if event.Data["iteration"] != 2 {
		t.Errorf("Data[iteration] = %v, want 2", event.Data["iteration"])
	}
}

func TestStatsCollector_Basic(t *testing.T) {
	collector := NewStatsCollector("test-session")
	ctx := context.Background()

	collector.OnEvent(ctx, models.Event{Type: models.EventStart, Timestamp: time.Now()})
	collector.OnEvent(ctx, models.Event{
		Type:      models.EventNodeStarted,
		Timestamp: time.Now(),
		Data:      map[string]any{"node": string(PhaseCallLLM)},
	})
	collector.OnEvent(ctx, models.Event{
		Type:      models.EventTokenUsage,
		Timestamp: time.Now(),
		Data:      map[string]any{"input_tokens": 100, "output_tokens": 50},
	})
	collector.OnEvent(ctx, models.Event{
		Type:      models.EventToolCallPending,
		Timestamp: time.Now(),
		Data:      map[string]any{"call_id": "tc-1", "name": "search"},
	})
	collector.OnEvent(ctx, models.Event{
		Type:      models.EventToolResult,
		Timestamp: time.Now().Add(50 * time.Millisecond),
		Data:      map[string]any{"call_id": "tc-1", "name": "search", "success": true},
	})
	collector.OnEvent(ctx, models.Event{Type: models.EventEnd, Timestamp: time.Now()})

	stats := collector.Stats()

	if stats.SessionID != "test-session" {
		t.Errorf("SessionID = %q, want %q", stats.SessionID, "test-session")
	}
	if stats.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", stats.Iterations)
	}
	if stats.ToolCalls != 1 {
		t.Errorf("ToolCalls = %d, want 1", stats.ToolCalls)
	}
	if stats.InputTokens != 100 {
		t.Errorf("InputTokens = %d, want 100", stats.InputTokens)
	}
	if stats.OutputTokens != 50 {
		t.Errorf("OutputTokens = %d, want 50", stats.OutputTokens)
	}
}

func TestStatsCollector_ErrorAndCancellation(t *testing.T) {
	collector := NewStatsCollector("test")
	ctx := context.Background()

	collector.OnEvent(ctx, models.Event{Type: models.EventError, ErrorCode: string(ErrCodeUpstream)})
	collector.OnEvent(ctx, models.Event{Type: models.EventCancelled})

	stats := collector.Stats()

	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}
	if !stats.Cancelled {
		t.Error("Cancelled should be true")
	}
}

func TestStatsCollector_MultipleIterations(t *testing.T) {
	collector := NewStatsCollector("test")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		collector.OnEvent(ctx, models.Event{
			Type:      models.EventNodeStarted,
			Timestamp: time.Now(),
			Data:      map[string]any{"node": string(PhaseCallLLM)},
		})
	}

	stats := collector.Stats()

	if stats.Iterations != 3 {
		t.Errorf("Iterations = %d, want 3", stats.Iterations)
	}
}
