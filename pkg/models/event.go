package models

import "time"

// EventType is the closed set of wire-level event types a client may
// receive. Clients MUST ignore unknown fields on any event for forward
// compatibility; additive changes bump EventProtocolVersion's minor
// component, semantic changes bump the major component.
type EventType string

const (
	EventStart     EventType = "start"
	EventDelta     EventType = "delta"
	EventEnd       EventType = "end"
	EventError     EventType = "error"
	EventToolCalls EventType = "tool_calls"
	EventCancelled EventType = "cancelled"

	// Trace-level events. Advisory: clients may ignore them entirely
	// without loss of correctness.
	EventWorkflowStarted  EventType = "workflow_started"
	EventWorkflowComplete EventType = "workflow_complete"
	EventNodeStarted      EventType = "node_started"
	EventNodeFinished     EventType = "node_finished"
	EventRouteDecision    EventType = "route_decision"
	EventThinkingPhase    EventType = "thinking_phase"
	EventToolCallPending  EventType = "tool_call_pending"
	EventToolExecuting    EventType = "tool_executing"
	EventToolResult       EventType = "tool_result"
	EventLLMStreaming     EventType = "llm_streaming"
	EventTokenUsage       EventType = "token_usage"
)

// EventProtocolVersion is the current wire protocol version string, per
// spec §4.A / §6.
const EventProtocolVersion = "1.0"

// TraceLevel distinguishes graph-wide trace events from per-node ones.
type TraceLevel string

const (
	TraceLevelGraph TraceLevel = "graph"
	TraceLevelNode  TraceLevel = "node"
)

// Event is the single wire-level event envelope emitted during a turn.
// Exactly the fields relevant to Type are populated; the rest are the zero
// value and omitted from JSON.
type Event struct {
	Version   string    `json:"version"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`

	// start
	Model string `json:"model,omitempty"`

	// delta / end
	Content string `json:"content,omitempty"`

	// tool_calls
	ToolCalls []WireToolCall `json:"tool_calls,omitempty"`

	// error
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`

	// cancelled
	Reason string `json:"reason,omitempty"`

	// trace events
	Level TraceLevel     `json:"level,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// WireToolCall is the OpenAI-function-calling-shaped tool call entry carried
// on a tool_calls event, per spec §6.
type WireToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function WireToolFunction `json:"function"`
}

// WireToolFunction is the {name, arguments} pair inside a WireToolCall.
type WireToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// MarshalTimestamp formats t the way the wire protocol requires: ISO-8601
// UTC with a trailing "Z".
func MarshalTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// RunStats aggregates statistics folded from an event stream for one turn
// or run.
type RunStats struct {
	SessionID string `json:"session_id,omitempty"`

	StartedAt  time.Time     `json:"started_at,omitempty"`
	FinishedAt time.Time     `json:"finished_at,omitempty"`
	WallTime   time.Duration `json:"wall_time,omitempty"`

	Iterations int `json:"iterations,omitempty"`

	ToolCalls    int           `json:"tool_calls,omitempty"`
	ToolTimeouts int           `json:"tool_timeouts,omitempty"`
	ToolErrors   int           `json:"tool_errors,omitempty"`
	ToolWallTime time.Duration `json:"tool_wall_time,omitempty"`

	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`

	Cancelled bool `json:"cancelled,omitempty"`
	Errors    int  `json:"errors,omitempty"`
}
