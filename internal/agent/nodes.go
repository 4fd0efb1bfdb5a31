package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haasonsaas/nexus/internal/checkpoint"
	"github.com/haasonsaas/nexus/internal/sessions"
	"github.com/haasonsaas/nexus/pkg/models"
)

// MaxToolIterations bounds the number of handle_tools rounds a single turn
// may take before the orchestrator forces format_response with a truncation
// notice.
const MaxToolIterations = 7

// maxHistoryMessages caps how much prior conversation is sent to the LLM on
// each call_llm invocation.
const maxHistoryMessages = 10

const (
	emptyInputApology = "I didn't receive any input — please say something."
	llmErrorApology   = "Sorry, I ran into a problem handling your request. Please try again in a moment."
	toolErrorApology  = "Sorry, I had trouble using a tool just now — let me try a different approach."
	noResponseFallback = "I'm not sure how to answer that — could you rephrase?"
	truncationNotice  = "I used several tools but wasn't able to wrap up within the iteration limit. Here's what I have so far."
)

const baseSystemPrompt = `You are a professional, friendly assistant focused on giving accurate, useful answers.

You can answer questions directly, search the web for current information, run calculations, and check the time, using the tools available to you.

Keep replies concise. Prefer short paragraphs and lists over dense prose, and cite sources when you use search results.`

var intentHints = map[string]string{
	IntentSearch:      "The user wants information search; prefer the web_search tool.",
	IntentCalculation: "The user wants a calculation; prefer the calculator tool.",
	IntentTimeQuery:   "The user is asking about the time or date; prefer the get_time tool.",
}

// OrchestratorConfig configures the Orchestrator's LLM defaults and
// iteration limits.
type OrchestratorConfig struct {
	DefaultModel      string
	MaxTokens         int
	Temperature       float64
	MaxToolIterations int // defaults to MaxToolIterations when <= 0
}

func (c *OrchestratorConfig) sanitized() OrchestratorConfig {
	cfg := OrchestratorConfig{}
	if c != nil {
		cfg = *c
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.MaxToolIterations <= 0 {
		cfg.MaxToolIterations = MaxToolIterations
	}
	return cfg
}

// Orchestrator drives one turn at a time through the process_input →
// call_llm → handle_tools → format_response node graph. Nodes are pure
// transformers of a models.TurnState; all communication with a transport
// happens through the EventEmitter passed to RunTurn.
type Orchestrator struct {
	provider LLMProvider
	executor *Executor
	registry *ToolRegistry
	sessions sessions.Store
	config   OrchestratorConfig

	systemPrompt string

	checkpoints checkpoint.Store
	checkpointN int
}

// NewOrchestrator creates an Orchestrator. If registry is nil, an empty
// ToolRegistry is created. store may be nil, in which case turns run
// statelessly (no history load, no persistence).
func NewOrchestrator(provider LLMProvider, registry *ToolRegistry, store sessions.Store, config *OrchestratorConfig) *Orchestrator {
	if registry == nil {
		registry = NewToolRegistry()
	}
	return &Orchestrator{
		provider:     provider,
		executor:     NewExecutor(registry, nil),
		registry:     registry,
		sessions:     store,
		config:       config.sanitized(),
		systemPrompt: baseSystemPrompt,
	}
}

// SetSystemPrompt overrides the base system prompt.
func (o *Orchestrator) SetSystemPrompt(prompt string) {
	if strings.TrimSpace(prompt) != "" {
		o.systemPrompt = prompt
	}
}

// SetCheckpointStore attaches a checkpoint store. When set, RunTurn writes
// a checkpoint of the turn state after each node transition, so a crashed
// or restarted turn can be inspected or resumed from its last checkpoint.
// store may be nil to disable checkpointing.
func (o *Orchestrator) SetCheckpointStore(store checkpoint.Store) {
	o.checkpoints = store
}

// writeCheckpoint serializes the current turn state and saves it keyed by
// the session id. Errors are logged via the emitter's Error event rather
// than failing the turn — a missed checkpoint does not invalidate an
// otherwise-successful turn.
func (o *Orchestrator) writeCheckpoint(ctx context.Context, state *models.TurnState, emitter *EventEmitter, phase LoopPhase) {
	if o.checkpoints == nil {
		return
	}
	o.checkpointN++

	envelope := models.CheckpointEnvelope{
		SchemaVersion: models.CheckpointSchemaVersion,
		TurnState:     state,
	}
	blob, err := json.Marshal(envelope)
	if err != nil {
		emitter.Error(ctx, NewInternalError("marshal turn state for checkpoint", err))
		return
	}

	cp := &models.Checkpoint{
		ThreadID:        state.SessionID,
		CheckpointID:    checkpoint.NewID(time.Now().UTC().Format(time.RFC3339Nano), o.checkpointN),
		SerializedState: blob,
		CreatedAt:       time.Now(),
	}
	meta := map[string]any{"phase": string(phase), "tool_iterations": state.ToolIterationCount}
	if err := o.checkpoints.Put(ctx, state.SessionID, cp, meta); err != nil {
		emitter.Error(ctx, NewInternalError("put checkpoint", err))
	}
}

// ConfigureTool sets per-tool timeout/retry/priority overrides on the
// underlying executor.
func (o *Orchestrator) ConfigureTool(name string, config *ToolConfig) {
	o.executor.ConfigureTool(name, config)
}

// RunTurn executes one full turn for session, emitting wire and trace
// events to sink, and returns the final TurnState plus the stats gathered
// from its own event stream. Node-level exceptions are caught and recorded
// into TurnState.ErrorState rather than propagated; the orchestrator always
// routes to format_response so the caller gets a user-safe apology instead
// of a raw error.
func (o *Orchestrator) RunTurn(ctx context.Context, session *models.Session, userInput string, sink EventSink) (*models.TurnState, *models.RunStats, error) {
	if o.provider == nil {
		return nil, nil, ErrNoProvider
	}
	if session == nil {
		return nil, nil, errors.New("session is nil")
	}

	stats := NewStatsCollector(session.ID)
	statsSink := NewCallbackSink(stats.OnEvent)
	emitter := NewEventEmitter(session.ID, NewMultiSink(sink, statsSink))

	state := &models.TurnState{
		SessionID:      session.ID,
		UserID:         session.UserID,
		UserInput:      userInput,
		ShouldContinue: true,
	}

	historyCount := 0
	if o.sessions != nil {
		if history, err := o.sessions.GetHistory(ctx, session.ID, maxHistoryMessages); err == nil {
			for _, m := range history {
				state.Messages = append(state.Messages, *m)
			}
			historyCount = len(history)
		}
	}

	emitter.WorkflowStarted(ctx)
	emitter.Start(ctx, o.config.DefaultModel)

	phase := PhaseProcessInput
	for {
		select {
		case <-ctx.Done():
			o.cancelTurn(ctx, session, state, historyCount, emitter, "", "context cancelled")
			return state, stats.Stats(), nil
		default:
		}

		started := time.Now()
		emitter.NodeStarted(ctx, phase, state.ToolIterationCount)

		if phase == PhaseFormatResponse {
			o.formatResponse(ctx, state, emitter)
			emitter.NodeFinished(ctx, phase, state.ToolIterationCount, time.Since(started))
			o.writeCheckpoint(ctx, state, emitter, phase)
			emitter.End(ctx, state.AgentResponse)
			o.persistNewMessages(ctx, session, state, historyCount)
			emitter.WorkflowComplete(ctx, stats.Stats())
			return state, stats.Stats(), nil
		}

		switch phase {
		case PhaseProcessInput:
			o.processInput(ctx, state, emitter)
		case PhaseCallLLM:
			o.callLLM(ctx, state, emitter)
		case PhaseHandleTools:
			o.handleTools(ctx, state, emitter)
		}

		if state.Cancelled {
			o.cancelTurn(ctx, session, state, historyCount, emitter, state.AgentResponse, "context cancelled")
			return state, stats.Stats(), nil
		}

		emitter.NodeFinished(ctx, phase, state.ToolIterationCount, time.Since(started))
		o.writeCheckpoint(ctx, state, emitter, phase)
		next := o.route(phase, state)
		emitter.RouteDecision(ctx, phase, next, state.NextAction)
		phase = next
	}
}

// cancelTurn flushes whatever partial content the turn produced (if any) to
// session history as a [Cancelled]-tagged assistant message, emits the
// cancelled event, and persists everything accumulated so far. partial is
// the text streamed before cancellation was observed; it may be empty when
// cancellation lands between node transitions rather than mid-stream.
func (o *Orchestrator) cancelTurn(ctx context.Context, session *models.Session, state *models.TurnState, historyCount int, emitter *EventEmitter, partial, reason string) {
	state.Cancelled = true
	state.ShouldContinue = false

	content := "[Cancelled]"
	if partial != "" {
		content = "[Cancelled] " + partial
	}
	state.AgentResponse = content
	state.Messages = append(state.Messages, models.Message{
		ID:        uuid.NewString(),
		SessionID: state.SessionID,
		Role:      models.RoleAssistant,
		Content:   content,
		Metadata:  map[string]any{"cancelled": true},
		CreatedAt: time.Now(),
	})

	emitter.Cancelled(ctx, reason)
	o.persistNewMessages(ctx, session, state, historyCount)
}

// route decides the next node given the node just run and the state it
// produced, applying the configured tool-iteration cap.
func (o *Orchestrator) route(phase LoopPhase, state *models.TurnState) LoopPhase {
	switch phase {
	case PhaseProcessInput:
		if state.NextAction == "format_response" {
			return PhaseFormatResponse
		}
		return PhaseCallLLM

	case PhaseCallLLM:
		if state.ErrorState != "" {
			return PhaseFormatResponse
		}
		if state.NextAction != "handle_tools" {
			return PhaseFormatResponse
		}
		if state.ToolIterationCount >= o.config.MaxToolIterations {
			state.PendingToolCalls = nil
			state.AgentResponse = truncationNotice
			if state.ModelParams == nil {
				state.ModelParams = map[string]any{}
			}
			state.ModelParams["truncated"] = true
			return PhaseFormatResponse
		}
		return PhaseHandleTools

	case PhaseHandleTools:
		return PhaseCallLLM

	default:
		return PhaseFormatResponse
	}
}

// processInput normalizes user input and decides whether the turn needs the
// LLM at all. Empty input and simple greetings are handled entirely within
// this node as a fast-path optimization, grounded on
// original_source/src/agent/nodes.py's _is_simple_greeting/_analyze_intent.
func (o *Orchestrator) processInput(_ context.Context, state *models.TurnState, _ *EventEmitter) {
	input := strings.TrimSpace(state.UserInput)
	if input == "" {
		state.ErrorState = "empty_input"
		state.AgentResponse = emptyInputApology
		state.NextAction = "format_response"
		state.ShouldContinue = false
		return
	}
	state.UserInput = input

	if isSimpleGreeting(input) {
		state.Messages = append(state.Messages, models.Message{
			ID:        uuid.NewString(),
			SessionID: state.SessionID,
			Role:      models.RoleUser,
			Content:   input,
			Metadata:  map[string]any{"fast_path": true},
			CreatedAt: time.Now(),
		})
		state.CurrentIntent = "greeting"
		state.AgentResponse = greetingResponse()
		state.NextAction = "format_response"
		return
	}

	state.Messages = append(state.Messages, models.Message{
		ID:        uuid.NewString(),
		SessionID: state.SessionID,
		Role:      models.RoleUser,
		Content:   input,
		CreatedAt: time.Now(),
	})
	state.CurrentIntent = classifyIntent(input)
	state.NextAction = "call_llm"
}

// callLLM constructs the completion request (system prompt + recent
// history + tool schemas) and streams the response, translating text
// deltas into Delta events and accumulating any tool calls the model
// requested.
func (o *Orchestrator) callLLM(ctx context.Context, state *models.TurnState, emitter *EventEmitter) {
	model := o.config.DefaultModel
	req := &CompletionRequest{
		Model:       model,
		System:      o.buildSystemPrompt(state),
		Messages:    o.buildCompletionMessages(state),
		Tools:       o.registry.AsLLMTools(),
		MaxTokens:   o.config.MaxTokens,
		Temperature: o.config.Temperature,
	}

	emitter.LLMStreaming(ctx, o.provider.Name(), model)

	chunks, err := o.provider.Complete(ctx, req)
	if err != nil {
		o.failLLM(state, err)
		return
	}

	var text strings.Builder
	var toolCalls []models.ToolCall
	var streamErr error

streamLoop:
	for {
		select {
		case <-ctx.Done():
			// Cancellation observed mid-stream: stop reading further chunks
			// and let RunTurn flush whatever text accumulated so far as a
			// [Cancelled]-tagged message instead of discarding it.
			state.Cancelled = true
			state.AgentResponse = text.String()
			return
		case chunk, ok := <-chunks:
			if !ok {
				break streamLoop
			}
			if chunk.Error != nil {
				streamErr = chunk.Error
				continue
			}
			if chunk.Text != "" {
				text.WriteString(chunk.Text)
				emitter.Delta(ctx, chunk.Text)
			}
			if chunk.ToolCall != nil {
				tc := *chunk.ToolCall
				if tc.ID == "" {
					tc.ID = uuid.NewString()
				}
				if tc.CreatedAt.IsZero() {
					tc.CreatedAt = time.Now()
				}
				toolCalls = append(toolCalls, tc)
			}
			if chunk.Done {
				break streamLoop
			}
		}
	}

	if streamErr != nil {
		o.failLLM(state, streamErr)
		return
	}

	if len(toolCalls) > 0 {
		emitter.ToolCalls(ctx, toolCalls)
		state.PendingToolCalls = append(state.PendingToolCalls, toolCalls...)
		state.NextAction = "handle_tools"
		return
	}

	state.AgentResponse = text.String()
	state.NextAction = "format_response"
}

func (o *Orchestrator) failLLM(state *models.TurnState, err error) {
	state.ErrorState = fmt.Sprintf("llm_call_error: %v", err)
	state.AgentResponse = llmErrorApology
	state.NextAction = "format_response"
}

// handleTools executes all pending tool calls in parallel via the executor,
// appends a tool-role message per result to turn history, and always
// routes back to call_llm so the model can reassess with the new
// information — even when a tool failed.
func (o *Orchestrator) handleTools(ctx context.Context, state *models.TurnState, emitter *EventEmitter) {
	state.ToolIterationCount++

	pending := state.PendingToolCalls
	state.PendingToolCalls = nil
	if len(pending) == 0 {
		state.NextAction = "call_llm"
		return
	}

	for _, tc := range pending {
		emitter.ToolCallPending(ctx, tc.ID, tc.Name)
	}
	for _, tc := range pending {
		emitter.ToolExecuting(ctx, tc.ID, tc.Name)
	}

	execResults := o.executor.ExecuteAll(ctx, pending)
	toolResults := ResultsToToolResults(execResults)

	for i, tc := range pending {
		var elapsed time.Duration
		if execResults[i] != nil {
			elapsed = execResults[i].Duration
		}
		emitter.ToolResult(ctx, toolResults[i].ToolCallID, tc.Name, toolResults[i].Success, elapsed)

		state.Messages = append(state.Messages, models.Message{
			ID:          uuid.NewString(),
			SessionID:   state.SessionID,
			Role:        models.RoleTool,
			ToolCallID:  tc.ID,
			Content:     toolResults[i].Content(),
			ToolResults: []models.ToolResult{toolResults[i]},
			CreatedAt:   time.Now(),
		})
	}

	if AnyErrors(execResults) && state.ErrorState == "" {
		// Non-fatal: the model still gets a chance to recover via call_llm,
		// but a trailing apology is kept in reserve should format_response
		// be reached with no agent_response set some other way.
		state.AgentResponse = toolErrorApology
	}

	state.ExecutedToolCalls = append(state.ExecutedToolCalls, pending...)
	state.ToolResults = append(state.ToolResults, toolResults...)
	state.NextAction = "call_llm"
}

// formatResponse is the terminal node: it guarantees a non-empty response,
// appends the final assistant message to turn history, and marks the turn
// complete.
func (o *Orchestrator) formatResponse(_ context.Context, state *models.TurnState, _ *EventEmitter) {
	if state.AgentResponse == "" {
		if state.ErrorState != "" {
			state.AgentResponse = llmErrorApology
		} else {
			state.AgentResponse = noResponseFallback
		}
	}

	meta := map[string]any{
		"intent":           state.CurrentIntent,
		"tool_calls_count": len(state.ExecutedToolCalls),
	}
	if truncated, _ := state.ModelParams["truncated"].(bool); truncated {
		meta["truncated"] = true
	}

	state.Messages = append(state.Messages, models.Message{
		ID:        uuid.NewString(),
		SessionID: state.SessionID,
		Role:      models.RoleAssistant,
		Content:   state.AgentResponse,
		Metadata:  meta,
		CreatedAt: time.Now(),
	})

	state.ShouldContinue = false
	state.NextAction = ""
}

// buildSystemPrompt augments the base system prompt with per-turn context:
// how many tools have run so far and any intent-specific tool hint.
// Grounded on original_source/src/agent/nodes.py's
// _build_optimized_system_prompt (pre-built base + small dynamic addition,
// rather than rebuilding the whole prompt on every call).
func (o *Orchestrator) buildSystemPrompt(state *models.TurnState) string {
	prompt := o.systemPrompt
	if prompt == "" {
		prompt = baseSystemPrompt
	}

	var extra []string
	if n := len(state.ExecutedToolCalls); n > 0 {
		extra = append(extra, fmt.Sprintf("Context: %d tool call(s) already executed this turn.", n))
	}
	if hint, ok := intentHints[state.CurrentIntent]; ok {
		extra = append(extra, hint)
	}
	if len(extra) == 0 {
		return prompt
	}
	return prompt + "\n\n" + strings.Join(extra, "\n")
}

// buildCompletionMessages converts the last maxHistoryMessages turn-state
// messages into the provider's wire shape.
func (o *Orchestrator) buildCompletionMessages(state *models.TurnState) []CompletionMessage {
	history := state.Messages
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}

	out := make([]CompletionMessage, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case models.RoleUser, models.RoleAssistant:
			out = append(out, CompletionMessage{Role: string(m.Role), Content: m.Content, ToolCalls: m.ToolCalls})
		case models.RoleTool:
			out = append(out, CompletionMessage{Role: string(m.Role), ToolResults: m.ToolResults})
		}
	}
	return out
}

// persistNewMessages appends every message produced since the turn started
// (i.e. everything past the loaded history prefix) to the session store.
func (o *Orchestrator) persistNewMessages(ctx context.Context, session *models.Session, state *models.TurnState, historyCount int) {
	if o.sessions == nil || historyCount >= len(state.Messages) {
		return
	}
	for i := historyCount; i < len(state.Messages); i++ {
		msg := state.Messages[i]
		_ = o.sessions.AppendMessage(ctx, session.ID, &msg)
	}
}
