package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

type errorBody struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: message, ErrorCode: code})
}

func newSessionID() string {
	return "session_" + uuid.NewString()
}

func newMessageID() string {
	return "msg_" + uuid.New().String()[:8]
}
