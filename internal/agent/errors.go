package agent

import (
	"errors"
	"fmt"
	"strings"
)

// Common sentinel errors for agent operations.
var (
	// ErrMaxIterations indicates the agentic loop exceeded its iteration limit.
	ErrMaxIterations = errors.New("max tool iterations exceeded")

	// ErrContextCancelled indicates the context was cancelled.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrNoProvider indicates no LLM provider is configured.
	ErrNoProvider = errors.New("no provider configured")

	// ErrToolNotFound indicates a requested tool doesn't exist.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolTimeout indicates a tool execution timed out.
	ErrToolTimeout = errors.New("tool execution timed out")

	// ErrToolPanic indicates a tool panicked during execution.
	ErrToolPanic = errors.New("tool panicked")

	// ErrEmptyInput indicates the turn's user input was empty after
	// normalization.
	ErrEmptyInput = errors.New("empty input")
)

// ToolErrorType categorizes tool execution errors for retry logic and error
// handling.
type ToolErrorType string

const (
	ToolErrorNotFound     ToolErrorType = "not_found"
	ToolErrorInvalidInput ToolErrorType = "invalid_input"
	ToolErrorTimeout      ToolErrorType = "timeout"
	ToolErrorNetwork      ToolErrorType = "network"
	ToolErrorPermission   ToolErrorType = "permission"
	ToolErrorRateLimit    ToolErrorType = "rate_limit"
	ToolErrorExecution    ToolErrorType = "execution"
	ToolErrorPanic        ToolErrorType = "panic"
	ToolErrorUnknown      ToolErrorType = "unknown"
)

// IsRetryable returns true if this error type suggests retrying the
// operation may succeed. Timeout, network, and rate limit errors are
// considered retryable.
func (t ToolErrorType) IsRetryable() bool {
	switch t {
	case ToolErrorTimeout, ToolErrorNetwork, ToolErrorRateLimit:
		return true
	default:
		return false
	}
}

// ToolError represents a structured error from tool execution with
// categorization for retry logic and detailed context about the failure.
type ToolError struct {
	Type       ToolErrorType
	ToolName   string
	ToolCallID string
	Message    string
	Cause      error
	Retryable  bool
	Attempts   int
}

func (e *ToolError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[tool:%s]", e.Type))
	if e.ToolName != "" {
		parts = append(parts, e.ToolName)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	if e.Attempts > 1 {
		parts = append(parts, fmt.Sprintf("(attempts=%d)", e.Attempts))
	}
	return strings.Join(parts, " ")
}

func (e *ToolError) Unwrap() error { return e.Cause }

// NewToolError creates a new ToolError with automatic error classification.
func NewToolError(toolName string, cause error) *ToolError {
	err := &ToolError{
		ToolName: toolName,
		Cause:    cause,
		Type:     ToolErrorUnknown,
		Attempts: 1,
	}
	if cause != nil {
		err.Message = cause.Error()
		err.Type = classifyToolError(cause)
		err.Retryable = err.Type.IsRetryable()
	}
	return err
}

func (e *ToolError) WithType(t ToolErrorType) *ToolError {
	e.Type = t
	e.Retryable = t.IsRetryable()
	return e
}

func (e *ToolError) WithToolCallID(id string) *ToolError {
	e.ToolCallID = id
	return e
}

func (e *ToolError) WithMessage(msg string) *ToolError {
	e.Message = msg
	return e
}

func (e *ToolError) WithAttempts(n int) *ToolError {
	e.Attempts = n
	return e
}

// classifyToolError determines the error type from the error content.
func classifyToolError(err error) ToolErrorType {
	if err == nil {
		return ToolErrorUnknown
	}
	if errors.Is(err, ErrToolNotFound) {
		return ToolErrorNotFound
	}
	if errors.Is(err, ErrToolTimeout) {
		return ToolErrorTimeout
	}
	if errors.Is(err, ErrToolPanic) {
		return ToolErrorPanic
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout"),
		strings.Contains(errStr, "deadline exceeded"),
		strings.Contains(errStr, "context deadline"):
		return ToolErrorTimeout
	case strings.Contains(errStr, "connection"),
		strings.Contains(errStr, "network"),
		strings.Contains(errStr, "dns"),
		strings.Contains(errStr, "refused"),
		strings.Contains(errStr, "unreachable"):
		return ToolErrorNetwork
	case strings.Contains(errStr, "rate limit"),
		strings.Contains(errStr, "rate_limit"),
		strings.Contains(errStr, "too many requests"),
		strings.Contains(errStr, "429"):
		return ToolErrorRateLimit
	case strings.Contains(errStr, "permission"),
		strings.Contains(errStr, "forbidden"),
		strings.Contains(errStr, "unauthorized"),
		strings.Contains(errStr, "access denied"):
		return ToolErrorPermission
	case strings.Contains(errStr, "invalid"),
		strings.Contains(errStr, "validation"),
		strings.Contains(errStr, "required"),
		strings.Contains(errStr, "missing"):
		return ToolErrorInvalidInput
	default:
		return ToolErrorExecution
	}
}

// IsToolError checks if an error is or wraps a ToolError.
func IsToolError(err error) bool {
	var toolErr *ToolError
	return errors.As(err, &toolErr)
}

// GetToolError extracts a ToolError from an error chain using errors.As.
func GetToolError(err error) (*ToolError, bool) {
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr, true
	}
	return nil, false
}

// IsToolRetryable checks if a tool error should be retried based on its type.
func IsToolRetryable(err error) bool {
	if toolErr, ok := GetToolError(err); ok {
		return toolErr.Retryable
	}
	return classifyToolError(err).IsRetryable()
}

// LoopPhase names a distinct node in the orchestrator state machine.
type LoopPhase string

const (
	PhaseProcessInput   LoopPhase = "process_input"
	PhaseCallLLM        LoopPhase = "call_llm"
	PhaseHandleTools    LoopPhase = "handle_tools"
	PhaseFormatResponse LoopPhase = "format_response"
)

// LoopError represents an error that occurred during orchestration, with
// context about which node and iteration it occurred in.
type LoopError struct {
	Phase     LoopPhase
	Iteration int
	Message   string
	Cause     error
}

func (e *LoopError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("orchestrator error at %s (iteration %d): %s", e.Phase, e.Iteration, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("orchestrator error at %s (iteration %d): %v", e.Phase, e.Iteration, e.Cause)
	}
	return fmt.Sprintf("orchestrator error at %s (iteration %d)", e.Phase, e.Iteration)
}

func (e *LoopError) Unwrap() error { return e.Cause }

// ErrorCode is the closed set of wire-level error codes from spec §7.
type ErrorCode string

const (
	ErrCodeValidation ErrorCode = "VALIDATION"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"
	ErrCodeAuth       ErrorCode = "AUTH"
	ErrCodeUpstream   ErrorCode = "UPSTREAM"
	ErrCodeInternal   ErrorCode = "INTERNAL"
)

// APIError is the structured error taxonomy surfaced to HTTP/event
// transports. Each kind maps to an HTTP status and wire error_code per
// spec §7.
type APIError struct {
	Kind       string // validation | not_found | auth | upstream | transient | cancellation | internal
	Code       ErrorCode
	HTTPStatus int
	Message    string
	Cause      error
}

func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error { return e.Cause }

// NewValidationError builds a 400/VALIDATION error.
func NewValidationError(message string) *APIError {
	return &APIError{Kind: "validation", Code: ErrCodeValidation, HTTPStatus: 400, Message: message}
}

// NewNotFoundError builds a 404/NOT_FOUND error.
func NewNotFoundError(message string) *APIError {
	return &APIError{Kind: "not_found", Code: ErrCodeNotFound, HTTPStatus: 404, Message: message}
}

// NewAuthError builds a 401/AUTH error.
func NewAuthError(message string) *APIError {
	return &APIError{Kind: "auth", Code: ErrCodeAuth, HTTPStatus: 401, Message: message}
}

// NewUpstreamError builds a non-transient upstream failure, surfaced as an
// apology end event plus an UPSTREAM error event.
func NewUpstreamError(message string, cause error) *APIError {
	return &APIError{Kind: "upstream", Code: ErrCodeUpstream, HTTPStatus: 502, Message: message, Cause: cause}
}

// NewTransientError builds a network-blip/timeout failure. It is handled
// identically to an upstream error except that the LLM-client boundary may,
// if explicitly enabled, retry once before surfacing it.
func NewTransientError(message string, cause error) *APIError {
	return &APIError{Kind: "transient", Code: ErrCodeUpstream, HTTPStatus: 502, Message: message, Cause: cause}
}

// NewCancellationError marks cooperative cancellation; it is never surfaced
// as an error event, only as a cancelled event.
func NewCancellationError(message string) *APIError {
	return &APIError{Kind: "cancellation", HTTPStatus: 0, Message: message}
}

// NewInternalError builds a 500/INTERNAL error for unexpected failures.
func NewInternalError(message string, cause error) *APIError {
	return &APIError{Kind: "internal", Code: ErrCodeInternal, HTTPStatus: 500, Message: message, Cause: cause}
}

// IsCancellation reports whether err is a cancellation-kind APIError.
func IsCancellation(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind == "cancellation"
	}
	return errors.Is(err, ErrContextCancelled)
}
