package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/haasonsaas/nexus/internal/agent"
)

// handleChatMessage is POST /api/v1/chat/: the raw, session-scoped chat
// surface. With stream=true it behaves exactly like handleChatStream;
// otherwise it runs the turn to completion and returns one JSON response.
func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "invalid request body")
		return
	}

	if req.Stream {
		s.streamChatTurn(w, r, req)
		return
	}

	start := time.Now()
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = newSessionID()
	}

	session, err := s.sessions.GetOrCreate(r.Context(), sessionID, req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to load session")
		return
	}

	state, _, err := s.orchestrator.RunTurn(r.Context(), session, req.Message, agent.NopSink{})
	if err != nil {
		writeJSON(w, http.StatusOK, chatResponse{
			Success:          false,
			Response:         "I apologize, but I encountered an error processing your message.",
			SessionID:        sessionID,
			MessageID:        newMessageID(),
			Timestamp:        time.Now(),
			ProcessingTimeMS: float64(time.Since(start).Milliseconds()),
			Error:            err.Error(),
			ErrorCode:        "INTERNAL_ERROR",
		})
		return
	}

	resp := chatResponse{
		Success:          state.ErrorState == "",
		Response:         state.AgentResponse,
		SessionID:        sessionID,
		MessageID:        newMessageID(),
		Timestamp:        time.Now(),
		Intent:           state.CurrentIntent,
		ToolCalls:        state.ToolIterationCount,
		ProcessingTimeMS: float64(time.Since(start).Milliseconds()),
	}
	if state.ErrorState != "" {
		resp.Error = state.ErrorState
		resp.ErrorCode = "UPSTREAM_ERROR"
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleChatStream backs both POST and GET /chat/stream, streaming the
// turn's events as Server-Sent Events.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req = chatRequest{
			Message:      q.Get("message"),
			SessionID:    q.Get("session_id"),
			UserID:       q.Get("user_id"),
			ModelVariant: q.Get("model_variant"),
		}
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "invalid request body")
		return
	}

	s.streamChatTurn(w, r, req)
}

func (s *Server) streamChatTurn(w http.ResponseWriter, r *http.Request, req chatRequest) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = newSessionID()
	}

	session, err := s.sessions.GetOrCreate(r.Context(), sessionID, req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to load session")
		return
	}

	sse := newSSEWriter(w)
	sink := &sseSink{sse: sse}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	done := make(chan struct{})
	s.tasks.Register(sessionID, cancel, done)
	defer close(done)
	defer s.tasks.Unregister(sessionID)

	_, _, _ = s.orchestrator.RunTurn(ctx, session, req.Message, sink)
}

// handleChatHistory is GET /chat/history/{session_id}.
func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	messages, err := s.sessions.GetHistory(r.Context(), sessionID, limit+offset)
	if err != nil {
		writeJSON(w, http.StatusOK, chatHistoryResponse{
			Success:   false,
			SessionID: sessionID,
			Error:     err.Error(),
		})
		return
	}

	total := len(messages)
	end := offset + limit
	if end > total {
		end = total
	}
	start := offset
	if start > total {
		start = total
	}
	page := messages[start:end]

	wire := make([]chatMessageWire, 0, len(page))
	for _, m := range page {
		wire = append(wire, chatMessageWire{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: m.CreatedAt,
			Metadata:  m.Metadata,
		})
	}

	writeJSON(w, http.StatusOK, chatHistoryResponse{
		Success:    true,
		SessionID:  sessionID,
		Messages:   wire,
		TotalCount: total,
		HasMore:    end < total,
	})
}
