package gateway

import "time"

// chatRequest is the wire shape for POST /api/v1/chat/ and /chat/stream.
type chatRequest struct {
	Message      string         `json:"message"`
	SessionID    string         `json:"session_id,omitempty"`
	UserID       string         `json:"user_id,omitempty"`
	Stream       bool           `json:"stream,omitempty"`
	ModelVariant string         `json:"model_variant,omitempty"`
	ModelParams  map[string]any `json:"model_params,omitempty"`
}

// chatResponse is the non-streaming response for POST /api/v1/chat/.
type chatResponse struct {
	Success          bool      `json:"success"`
	Response         string    `json:"response"`
	SessionID        string    `json:"session_id"`
	MessageID        string    `json:"message_id"`
	Timestamp        time.Time `json:"timestamp"`
	Intent           string    `json:"intent,omitempty"`
	ToolCalls        int       `json:"tool_calls,omitempty"`
	ProcessingTimeMS float64   `json:"processing_time_ms"`
	Error            string    `json:"error,omitempty"`
	ErrorCode        string    `json:"error_code,omitempty"`
}

// chatMessageWire is one message in a /chat/history/{id} response.
type chatMessageWire struct {
	ID        string         `json:"id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// chatHistoryResponse is the response for GET /chat/history/{session_id}.
type chatHistoryResponse struct {
	Success    bool              `json:"success"`
	SessionID  string            `json:"session_id"`
	Messages   []chatMessageWire `json:"messages"`
	TotalCount int               `json:"total_count"`
	HasMore    bool              `json:"has_more"`
	Error      string            `json:"error,omitempty"`
}

// sessionCreateRequest is the wire shape for POST /session/.
type sessionCreateRequest struct {
	UserID string `json:"user_id,omitempty"`
}

// sessionInfo describes one session in a session response.
type sessionInfo struct {
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// sessionResponse is the response envelope for the /session/* routes.
type sessionResponse struct {
	Success bool         `json:"success"`
	Session *sessionInfo `json:"session,omitempty"`
	Message string       `json:"message,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// healthStatus is the closed set of component/overall health states.
type healthStatus string

const (
	healthHealthy   healthStatus = "healthy"
	healthDegraded  healthStatus = "degraded"
	healthUnhealthy healthStatus = "unhealthy"
)

type componentHealth struct {
	Name           string       `json:"name"`
	Status         healthStatus `json:"status"`
	Message        string       `json:"message,omitempty"`
	ResponseTimeMS float64      `json:"response_time_ms,omitempty"`
}

// healthResponse is the response for GET /health/.
type healthResponse struct {
	Status        healthStatus      `json:"status"`
	Timestamp     time.Time         `json:"timestamp"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	Components    []componentHealth `json:"components"`
	Metrics       map[string]any    `json:"metrics"`
}

// toolInfo describes one registered tool for GET /tools/.
type toolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters"`
}

type toolsListResponse struct {
	Tools []toolInfo `json:"tools"`
}

type toolExecuteResponse struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// conversationRequest is the wire shape for POST /conversation/message and
// /conversation/message-stream (text input).
type conversationRequest struct {
	Text       string `json:"text"`
	OutputMode string `json:"output_mode,omitempty"`
	Voice      string `json:"voice,omitempty"`
	Speed      int    `json:"speed,omitempty"`
	Volume     int    `json:"volume,omitempty"`
	Pitch      int    `json:"pitch,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
}

// conversationResponse is the response envelope for every /conversation/*
// route except the two streaming-audio variants, which write raw bytes.
type conversationResponse struct {
	Success       bool           `json:"success"`
	SessionID     string         `json:"session_id"`
	UserInput     string         `json:"user_input"`
	AgentResponse string         `json:"agent_response"`
	OutputMode    string         `json:"output_mode"`
	InputMetadata map[string]any `json:"input_metadata,omitempty"`
	AgentMetadata map[string]any `json:"agent_metadata,omitempty"`
	AudioSize     int            `json:"audio_size,omitempty"`
	Voice         string         `json:"voice,omitempty"`
	Error         string         `json:"error,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// wsInboundFrame is the client->server WebSocket frame for /chat/ws:
// {"type":"message",...}, {"type":"cancel",...}, or {"type":"close"}.
type wsInboundFrame struct {
	Type         string `json:"type"`
	Message      string `json:"message,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	UserID       string `json:"user_id,omitempty"`
	ModelVariant string `json:"model_variant,omitempty"`
}
