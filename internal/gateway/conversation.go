package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/haasonsaas/nexus/internal/facade"
)

var errEmptyAudio = errors.New("uploaded audio is empty")

const maxAudioUploadBytes = 25 << 20 // 25 MiB, matching a single spoken turn's upper bound.

// handleConversationMessage is POST /conversation/message: text input,
// text or audio output depending on output_mode.
func (s *Server) handleConversationMessage(w http.ResponseWriter, r *http.Request) {
	if s.facade == nil {
		writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "conversation service not initialized")
		return
	}

	var req conversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "invalid request body")
		return
	}

	out := conversationOutputSpec(req)
	if out.Mode != facade.OutputModeText {
		writeError(w, http.StatusBadRequest, "VALIDATION", "audio output requires the streaming endpoint: POST /conversation/message-stream")
		return
	}

	in := facade.InputSpec{Mode: facade.InputModeText, Text: req.Text}
	result, err := s.facade.ProcessTurn(r.Context(), in, out, req.SessionID, req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toConversationResponse(result))
}

// handleConversationMessageStream is POST /conversation/message-stream:
// text input, with audio output streamed as raw bytes when requested.
func (s *Server) handleConversationMessageStream(w http.ResponseWriter, r *http.Request) {
	if s.facade == nil {
		writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "conversation service not initialized")
		return
	}

	var req conversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "invalid request body")
		return
	}

	in := facade.InputSpec{Mode: facade.InputModeText, Text: req.Text}
	s.streamConversationTurn(w, r, in, conversationOutputSpec(req), req.SessionID, req.UserID)
}

// handleConversationMessageAudio is POST /conversation/message-audio:
// multipart audio input, text-only output.
func (s *Server) handleConversationMessageAudio(w http.ResponseWriter, r *http.Request) {
	if s.facade == nil {
		writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "conversation service not initialized")
		return
	}

	in, meta, err := readAudioUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}

	out := conversationOutputSpecForm(r)
	if out.Mode != facade.OutputModeText {
		writeError(w, http.StatusBadRequest, "VALIDATION", "audio output requires the streaming endpoint: POST /conversation/message-audio-stream")
		return
	}

	result, err := s.facade.ProcessTurn(r.Context(), in, out, meta.sessionID, meta.userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toConversationResponse(result))
}

// handleConversationMessageAudioStream is POST
// /conversation/message-audio-stream: multipart audio input, with audio
// output streamed as raw bytes.
func (s *Server) handleConversationMessageAudioStream(w http.ResponseWriter, r *http.Request) {
	if s.facade == nil {
		writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "conversation service not initialized")
		return
	}

	in, meta, err := readAudioUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}

	s.streamConversationTurn(w, r, in, conversationOutputSpecForm(r), meta.sessionID, meta.userID)
}

// streamConversationTurn runs a façade turn and, for audio output, drains
// the synthesized chunks straight onto the response body; for text output
// it writes the single JSON envelope once the turn completes.
func (s *Server) streamConversationTurn(w http.ResponseWriter, r *http.Request, in facade.InputSpec, out facade.OutputSpec, sessionID, userID string) {
	if out.Mode == facade.OutputModeText {
		result, err := s.facade.ProcessTurn(r.Context(), in, out, sessionID, userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, toConversationResponse(result))
		return
	}

	audioCh, result, err := s.facade.ProcessTurnStream(r.Context(), in, out, sessionID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	if result != nil && !result.Success {
		writeJSON(w, http.StatusOK, toConversationResponse(result))
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("X-Session-Id", result.SessionID)
	flusher, _ := w.(http.Flusher)
	for chunk := range audioCh {
		if _, err := w.Write(chunk); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func conversationOutputSpec(req conversationRequest) facade.OutputSpec {
	return facade.OutputSpec{
		Mode:   parseOutputMode(req.OutputMode),
		Voice:  req.Voice,
		Speed:  req.Speed,
		Volume: req.Volume,
		Pitch:  req.Pitch,
	}
}

func conversationOutputSpecForm(r *http.Request) facade.OutputSpec {
	return facade.OutputSpec{
		Mode:   parseOutputMode(r.FormValue("output_mode")),
		Voice:  r.FormValue("voice"),
		Speed:  atoiDefault(r.FormValue("speed"), 50),
		Volume: atoiDefault(r.FormValue("volume"), 50),
		Pitch:  atoiDefault(r.FormValue("pitch"), 50),
	}
}

func parseOutputMode(mode string) facade.OutputMode {
	switch mode {
	case "audio":
		return facade.OutputModeAudio
	case "both":
		return facade.OutputModeBoth
	default:
		return facade.OutputModeText
	}
}

type audioUploadMeta struct {
	sessionID string
	userID    string
}

// readAudioUpload parses the multipart form backing the two audio-input
// routes and reads the uploaded clip into memory.
func readAudioUpload(r *http.Request) (facade.InputSpec, audioUploadMeta, error) {
	if err := r.ParseMultipartForm(maxAudioUploadBytes); err != nil {
		return facade.InputSpec{}, audioUploadMeta{}, err
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		return facade.InputSpec{}, audioUploadMeta{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxAudioUploadBytes))
	if err != nil {
		return facade.InputSpec{}, audioUploadMeta{}, err
	}
	if len(data) == 0 {
		return facade.InputSpec{}, audioUploadMeta{}, errEmptyAudio
	}

	format := r.FormValue("format")
	if format == "" {
		format = audioFormatFromFilename(header.Filename)
	}

	meta := audioUploadMeta{
		sessionID: r.FormValue("session_id"),
		userID:    r.FormValue("user_id"),
	}
	return facade.InputSpec{Mode: facade.InputModeAudio, AudioPCM: data, AudioFormat: format}, meta, nil
}

func audioFormatFromFilename(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i+1:]
		}
	}
	return "wav"
}

func atoiDefault(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func toConversationResponse(r *facade.Result) conversationResponse {
	return conversationResponse{
		Success:       r.Success,
		SessionID:     r.SessionID,
		UserInput:     r.UserInput,
		AgentResponse: r.AgentResponse,
		OutputMode:    string(r.OutputMode),
		InputMetadata: r.InputMetadata,
		AgentMetadata: r.AgentMetadata,
		AudioSize:     r.AudioSize,
		Voice:         r.Voice,
		Error:         r.Error,
		Timestamp:     r.Timestamp,
	}
}

