package agent

import (
	"context"

	"github.com/haasonsaas/nexus/pkg/models"
)

// Model describes a model an LLMProvider can serve.
type Model struct {
	ID             string
	Name           string
	ContextSize    int
	SupportsVision bool
}

// CompletionMessage is one entry in the messages array sent to the LLM
// client, generalized across user/assistant/tool roles.
type CompletionMessage struct {
	Role        string
	Content     string
	ToolCalls   []models.ToolCall
	ToolResults []models.ToolResult
	Attachments []models.Attachment
}

// CompletionRequest is a single call_llm request: model/system/message
// history plus the tool schemas the model may invoke.
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []CompletionMessage
	Tools     []Tool
	MaxTokens int
	// Temperature is only honored by model families whose compatibility
	// profile supports it; see ModelCompatFor.
	Temperature float64
}

// CompletionChunk is one frame of a streamed completion: a text delta, a
// fully-consolidated tool call, or a terminal error/done marker. Per
// a provider MUST accumulate fragmented tool-call deltas
// internally and emit only whole ToolCall values here.
type CompletionChunk struct {
	Text     string
	ToolCall *models.ToolCall
	Done     bool
	Error    error
}

// LLMProvider is the Go-native analog of an LLM Client: a
// single streaming completion operation plus static model metadata. The
// orchestrator never sees per-model wire-format differences; that is the
// provider's job (see ModelCompat).
type LLMProvider interface {
	Name() string
	Models() []Model
	SupportsTools() bool
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)
}
