package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/haasonsaas/nexus/pkg/models"
)

// sseWriter emits "data: <json>\n\n" frames and flushes after each one, per
// the streaming routes' one-event-per-write contract.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, _ := w.(http.Flusher)
	return &sseWriter{w: w, flusher: flusher}
}

func (s *sseWriter) writeEvent(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("\n\n")); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// sseSink adapts an sseWriter into an agent.EventSink so the orchestrator
// can stream directly to an HTTP response body.
type sseSink struct {
	sse *sseWriter
}

func (s *sseSink) Emit(_ context.Context, e models.Event) {
	_ = s.sse.writeEvent(e)
}
