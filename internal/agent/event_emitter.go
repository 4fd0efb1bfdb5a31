package agent

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

// EventEmitter generates and dispatches wire Events with proper sequencing
// for a single session/turn. It is the bridge between the orchestrator and
// whatever transport (SSE, WebSocket) is relaying the turn to a client.
type EventEmitter struct {
	sessionID string
	sequence  uint64 // atomic counter, used only to order advisory trace events

	sink EventSink
}

// NewEventEmitter creates a new event emitter for a session with the given
// sink. If sink is nil, a NopSink is used.
func NewEventEmitter(sessionID string, sink EventSink) *EventEmitter {
	if sink == nil {
		sink = NopSink{}
	}
	return &EventEmitter{
		sessionID: sessionID,
		sink:      sink,
	}
}

func (e *EventEmitter) nextSeq() uint64 {
	return atomic.AddUint64(&e.sequence, 1)
}

// newEventID produces an "evt_" prefixed 16 hex character id.
func newEventID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return "evt_" + hex.EncodeToString(buf)
}

// base creates the base event with the common envelope fields populated.
func (e *EventEmitter) base(eventType models.EventType) models.Event {
	return models.Event{
		Version:   models.EventProtocolVersion,
		ID:        newEventID(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		SessionID: e.sessionID,
	}
}

// emit dispatches the event to the configured sink.
func (e *EventEmitter) emit(ctx context.Context, event models.Event) models.Event {
	if e.sink != nil {
		e.sink.Emit(ctx, event)
	}
	return event
}

// Start emits the "start" event opening a turn's response stream.
func (e *EventEmitter) Start(ctx context.Context, model string) models.Event {
	event := e.base(models.EventStart)
	event.Model = model
	return e.emit(ctx, event)
}

// Delta emits a "delta" event carrying one chunk of streamed assistant text.
func (e *EventEmitter) Delta(ctx context.Context, content string) models.Event {
	event := e.base(models.EventDelta)
	event.Content = content
	return e.emit(ctx, event)
}

// End emits the "end" event closing a turn's response stream. Content, when
// non-empty, is the final assistant message in full (not just the last
// delta), per the wire contract.
func (e *EventEmitter) End(ctx context.Context, content string) models.Event {
	event := e.base(models.EventEnd)
	event.Content = content
	return e.emit(ctx, event)
}

// ToolCalls emits a "tool_calls" event announcing the tool calls the model
// requested, before they execute.
func (e *EventEmitter) ToolCalls(ctx context.Context, calls []models.ToolCall) models.Event {
	event := e.base(models.EventToolCalls)
	event.ToolCalls = make([]models.WireToolCall, 0, len(calls))
	for _, c := range calls {
		event.ToolCalls = append(event.ToolCalls, models.WireToolCall{
			ID:   c.ID,
			Type: "function",
			Function: models.WireToolFunction{
				Name:      c.Name,
				Arguments: string(c.Arguments),
			},
		})
	}
	return e.emit(ctx, event)
}

// Error emits an "error" event. kind/code should come from one of the
// NewXError constructors in errors.go.
func (e *EventEmitter) Error(ctx context.Context, apiErr *APIError) models.Event {
	event := e.base(models.EventError)
	if apiErr != nil {
		event.Error = apiErr.Message
		event.ErrorCode = string(apiErr.Code)
	}
	return e.emit(ctx, event)
}

// Cancelled emits a "cancelled" event when a turn is stopped mid-stream by
// explicit client request or cooperative context cancellation.
func (e *EventEmitter) Cancelled(ctx context.Context, reason string) models.Event {
	event := e.base(models.EventCancelled)
	event.Reason = reason
	return e.emit(ctx, event)
}

// trace emits an advisory trace-level event. Clients MAY ignore these
// entirely without any loss of correctness.
func (e *EventEmitter) trace(ctx context.Context, eventType models.EventType, level models.TraceLevel, data map[string]any) models.Event {
	event := e.base(eventType)
	event.Level = level
	event.Data = data
	return e.emit(ctx, event)
}

func (e *EventEmitter) WorkflowStarted(ctx context.Context) models.Event {
	return e.trace(ctx, models.EventWorkflowStarted, models.TraceLevelGraph, nil)
}

func (e *EventEmitter) WorkflowComplete(ctx context.Context, stats *models.RunStats) models.Event {
	data := map[string]any{}
	if stats != nil {
		if b, err := json.Marshal(stats); err == nil {
			var decoded map[string]any
			if json.Unmarshal(b, &decoded) == nil {
				data = decoded
			}
		}
	}
	return e.trace(ctx, models.EventWorkflowComplete, models.TraceLevelGraph, data)
}

func (e *EventEmitter) NodeStarted(ctx context.Context, node LoopPhase, iteration int) models.Event {
	return e.trace(ctx, models.EventNodeStarted, models.TraceLevelNode, map[string]any{
		"node":      string(node),
		"iteration": iteration,
	})
}

func (e *EventEmitter) NodeFinished(ctx context.Context, node LoopPhase, iteration int, elapsed time.Duration) models.Event {
	return e.trace(ctx, models.EventNodeFinished, models.TraceLevelNode, map[string]any{
		"node":       string(node),
		"iteration":  iteration,
		"elapsed_ms": elapsed.Milliseconds(),
	})
}

func (e *EventEmitter) RouteDecision(ctx context.Context, from LoopPhase, to LoopPhase, reason string) models.Event {
	return e.trace(ctx, models.EventRouteDecision, models.TraceLevelGraph, map[string]any{
		"from":   string(from),
		"to":     string(to),
		"reason": reason,
	})
}

func (e *EventEmitter) ThinkingPhase(ctx context.Context, label string) models.Event {
	return e.trace(ctx, models.EventThinkingPhase, models.TraceLevelNode, map[string]any{"label": label})
}

func (e *EventEmitter) ToolCallPending(ctx context.Context, callID, name string) models.Event {
	return e.trace(ctx, models.EventToolCallPending, models.TraceLevelNode, map[string]any{
		"call_id": callID,
		"name":    name,
	})
}

func (e *EventEmitter) ToolExecuting(ctx context.Context, callID, name string) models.Event {
	return e.trace(ctx, models.EventToolExecuting, models.TraceLevelNode, map[string]any{
		"call_id": callID,
		"name":    name,
	})
}

func (e *EventEmitter) ToolResult(ctx context.Context, callID, name string, success bool, elapsed time.Duration) models.Event {
	return e.trace(ctx, models.EventToolResult, models.TraceLevelNode, map[string]any{
		"call_id":    callID,
		"name":       name,
		"success":    success,
		"elapsed_ms": elapsed.Milliseconds(),
	})
}

func (e *EventEmitter) LLMStreaming(ctx context.Context, provider, model string) models.Event {
	return e.trace(ctx, models.EventLLMStreaming, models.TraceLevelNode, map[string]any{
		"provider": provider,
		"model":    model,
	})
}

func (e *EventEmitter) TokenUsage(ctx context.Context, inputTokens, outputTokens int) models.Event {
	return e.trace(ctx, models.EventTokenUsage, models.TraceLevelGraph, map[string]any{
		"input_tokens":  inputTokens,
		"output_tokens": outputTokens,
	})
}

// StatsCollector folds an event stream into a RunStats, mirroring the
// teacher's accumulation pattern but keyed to the spec's flatter Event shape.
type StatsCollector struct {
	stats      models.RunStats
	nodeStarts map[string]time.Time
	toolStarts map[string]time.Time
}

// NewStatsCollector creates a new stats collector for the given session.
func NewStatsCollector(sessionID string) *StatsCollector {
	return &StatsCollector{
		stats:      models.RunStats{SessionID: sessionID, StartedAt: time.Now()},
		nodeStarts: make(map[string]time.Time),
		toolStarts: make(map[string]time.Time),
	}
}

// OnEvent processes one event and updates the accumulated statistics.
func (c *StatsCollector) OnEvent(ctx context.Context, e models.Event) {
	switch e.Type {
	case models.EventStart:
		c.stats.StartedAt = e.Timestamp

	case models.EventNodeStarted:
		if node, _ := e.Data["node"].(string); node != "" {
			c.nodeStarts[node] = e.Timestamp
			if node == string(PhaseCallLLM) {
				c.stats.Iterations++
			}
		}

	case models.EventTokenUsage:
		if v, ok := e.Data["input_tokens"].(int); ok {
			c.stats.InputTokens += v
		} else if v, ok := e.Data["input_tokens"].(float64); ok {
			c.stats.InputTokens += int(v)
		}
		if v, ok := e.Data["output_tokens"].(int); ok {
			c.stats.OutputTokens += v
		} else if v, ok := e.Data["output_tokens"].(float64); ok {
			c.stats.OutputTokens += int(v)
		}

	case models.EventToolCallPending:
		c.stats.ToolCalls++
		if id, _ := e.Data["call_id"].(string); id != "" {
			c.toolStarts[id] = e.Timestamp
		}

	case models.EventToolResult:
		id, _ := e.Data["call_id"].(string)
		if start, ok := c.toolStarts[id]; ok {
			c.stats.ToolWallTime += e.Timestamp.Sub(start)
			delete(c.toolStarts, id)
		}
		if success, ok := e.Data["success"].(bool); ok && !success {
			c.stats.ToolErrors++
		}

	case models.EventError:
		c.stats.Errors++
		if e.ErrorCode == "" && e.Error != "" {
			c.stats.ToolTimeouts++
		}

	case models.EventCancelled:
		c.stats.Cancelled = true

	case models.EventEnd:
		c.stats.FinishedAt = e.Timestamp
		c.stats.WallTime = e.Timestamp.Sub(c.stats.StartedAt)
	}
}

// Stats returns a copy of the accumulated statistics, finalizing FinishedAt
// if the run has not yet emitted an "end" event.
func (c *StatsCollector) Stats() *models.RunStats {
	stats := c.stats
	if stats.FinishedAt.IsZero() {
		stats.FinishedAt = time.Now()
		stats.WallTime = stats.FinishedAt.Sub(stats.StartedAt)
	}
	return &stats
}
