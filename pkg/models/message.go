// Package models provides the core data types shared across the agent
// orchestration engine, transport adapters, and session store.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ChannelType identifies the surface a message arrived or departed on.
type ChannelType string

const (
	ChannelAPI       ChannelType = "api"
	ChannelHTTP      ChannelType = "http"
	ChannelWebSocket ChannelType = "websocket"
)

// Direction indicates whether a message flowed into or out of the agent.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Role indicates the message author type, matching the OpenAI-compatible
// chat-completion role vocabulary.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is a turn-level conversational unit. Within a session, timestamps
// are monotonically non-decreasing in insertion order; callers append-only.
type Message struct {
	ID        string      `json:"id"`
	SessionID string      `json:"session_id"`
	Channel   ChannelType `json:"channel,omitempty"`
	Direction Direction   `json:"direction,omitempty"`
	Role      Role        `json:"role"`
	Content   string      `json:"content"`

	// ToolCallID links a tool-role message back to the ToolCall that
	// produced it.
	ToolCallID  string         `json:"tool_call_id,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	ToolCalls   []ToolCall     `json:"tool_calls,omitempty"`
	ToolResults []ToolResult   `json:"tool_results,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Attachment represents a file or media attachment on a Message.
type Attachment struct {
	ID       string `json:"id"`
	Type     string `json:"type"` // image, audio, video, document
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// ToolCall is an LLM request to invoke a named tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	CreatedAt time.Time       `json:"created_at"`
}

// ToolResult is the outcome of executing a ToolCall.
//
// Invariant: Success=false implies Error is non-empty; Success=true implies
// Result is present (possibly an empty JSON value, but never nil).
type ToolResult struct {
	ToolCallID string          `json:"tool_call_id"`
	Success    bool            `json:"success"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Content renders the result payload as a string for message embedding.
func (r ToolResult) Content() string {
	if r.Error != "" {
		return r.Error
	}
	return string(r.Result)
}

// IsError reports whether the result represents a tool failure.
func (r ToolResult) IsError() bool { return !r.Success }

// Validate enforces the ToolResult invariant from spec §3.
func (r ToolResult) Validate() error {
	if !r.Success && r.Error == "" {
		return fmt.Errorf("models: tool result %q has success=false but empty error", r.ToolCallID)
	}
	if r.Success && r.Result == nil {
		return fmt.Errorf("models: tool result %q has success=true but no result payload", r.ToolCallID)
	}
	return nil
}

// SessionStatus is the lifecycle state of a Session.
type SessionStatus string

const (
	SessionActive     SessionStatus = "active"
	SessionPaused     SessionStatus = "paused"
	SessionTerminated SessionStatus = "terminated"
)

// CanTransitionTo reports whether a Session may move from the receiver's
// status to next. Terminated is absorbing: once reached, no further
// transition is permitted. A transition to the same status is always a
// no-op success.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	if s == next {
		return true
	}
	if s == SessionTerminated {
		return false
	}
	switch next {
	case SessionActive, SessionPaused, SessionTerminated:
		return true
	default:
		return false
	}
}

// Session is a conversation container.
//
// Invariant: LastActivity >= CreatedAt. Status transitions are monotonic
// toward Terminated; see CanTransitionTo.
type Session struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id,omitempty"`
	Status       SessionStatus  `json:"status"`
	Summary      string         `json:"summary,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActivity time.Time      `json:"last_activity"`
}

// Transition moves the session to next, returning an error if the
// transition violates the monotonic-toward-terminated invariant.
func (s *Session) Transition(next SessionStatus) error {
	if !s.Status.CanTransitionTo(next) {
		return fmt.Errorf("models: session %q cannot transition from %q to %q", s.ID, s.Status, next)
	}
	s.Status = next
	return nil
}

// User is an authenticated principal, opaque to the core beyond identity.
type User struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// TurnState is the in-memory record threaded through orchestrator nodes for
// one turn. It is owned by a single turn's orchestration and discarded
// after format_response or a terminal error.
type TurnState struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`

	// UserInput is the current user input for this turn, after normalization.
	UserInput string `json:"user_input"`

	// Messages accumulates the turn-local message list produced so far.
	Messages []Message `json:"messages"`

	PendingToolCalls  []ToolCall   `json:"pending_tool_calls,omitempty"`
	ExecutedToolCalls []ToolCall   `json:"executed_tool_calls,omitempty"`
	ToolResults       []ToolResult `json:"tool_results,omitempty"`

	CurrentIntent  string `json:"current_intent,omitempty"`
	NextAction     string `json:"next_action,omitempty"`
	ShouldContinue bool   `json:"should_continue"`

	// ErrorState, when non-empty, is a tag describing why the turn failed;
	// it routes the orchestrator to format_response with an apology.
	ErrorState string `json:"error_state,omitempty"`

	// AgentResponse accumulates the content format_response will emit.
	AgentResponse string `json:"agent_response,omitempty"`

	ModelParams map[string]any `json:"model_params,omitempty"`

	ToolIterationCount int `json:"tool_iteration_count"`

	// Cancelled marks that this turn was cooperatively cancelled mid-stream.
	Cancelled bool `json:"cancelled,omitempty"`
}

// Clone returns a deep-enough copy of the TurnState suitable for
// checkpointing: slices and maps are copied so later turn mutation does not
// retroactively alter a stored snapshot.
func (t *TurnState) Clone() *TurnState {
	if t == nil {
		return nil
	}
	clone := *t
	clone.Messages = append([]Message(nil), t.Messages...)
	clone.PendingToolCalls = append([]ToolCall(nil), t.PendingToolCalls...)
	clone.ExecutedToolCalls = append([]ToolCall(nil), t.ExecutedToolCalls...)
	clone.ToolResults = append([]ToolResult(nil), t.ToolResults...)
	if t.ModelParams != nil {
		clone.ModelParams = make(map[string]any, len(t.ModelParams))
		for k, v := range t.ModelParams {
			clone.ModelParams[k] = v
		}
	}
	return &clone
}
