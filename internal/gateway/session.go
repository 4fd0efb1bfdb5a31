package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/haasonsaas/nexus/pkg/models"
)

// handleSessionCreate is POST /session/: creates a new, empty session and
// returns its identity. The request body is optional.
func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req sessionCreateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "invalid request body")
			return
		}
	}

	session, err := s.sessions.GetOrCreate(r.Context(), newSessionID(), req.UserID)
	if err != nil {
		writeJSON(w, http.StatusOK, sessionResponse{Success: false, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Success: true,
		Session: toSessionInfo(session),
		Message: "session " + session.ID + " created successfully",
	})
}

// handleSessionGet is GET /session/{session_id}.
func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	session, err := s.sessions.Get(r.Context(), sessionID)
	if err != nil || session == nil {
		writeJSON(w, http.StatusOK, sessionResponse{
			Success: false,
			Error:   "session " + sessionID + " not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Success: true,
		Session: toSessionInfo(session),
		Message: "session " + sessionID + " information retrieved",
	})
}

// handleSessionDelete is DELETE /session/{session_id}.
func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	if _, err := s.sessions.Get(r.Context(), sessionID); err != nil {
		writeJSON(w, http.StatusOK, sessionResponse{
			Success: false,
			Error:   "session " + sessionID + " not found",
		})
		return
	}

	if s.tasks != nil {
		s.tasks.Cancel(sessionID)
	}

	if err := s.sessions.Delete(r.Context(), sessionID); err != nil {
		writeJSON(w, http.StatusOK, sessionResponse{Success: false, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Success: true,
		Message: "session " + sessionID + " deleted successfully",
	})
}

func toSessionInfo(session *models.Session) *sessionInfo {
	return &sessionInfo{
		SessionID:    session.ID,
		UserID:       session.UserID,
		Status:       string(session.Status),
		CreatedAt:    session.CreatedAt,
		LastActivity: session.LastActivity,
	}
}
