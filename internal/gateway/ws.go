package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/haasonsaas/nexus/pkg/models"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsMaxMessage = 1 << 20
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsSink adapts a gorilla/websocket connection into an agent.EventSink,
// serializing every event onto a buffered write channel so the orchestrator
// never blocks on network I/O and a single writer goroutine owns the socket.
type wsSink struct {
	send chan models.Event
}

func newWSSink() *wsSink {
	return &wsSink{send: make(chan models.Event, 32)}
}

func (s *wsSink) Emit(_ context.Context, e models.Event) {
	select {
	case s.send <- e:
	default:
		// Slow reader: drop rather than block the orchestrator turn.
	}
}

// newWSHandler builds the /chat/ws upgrade handler. Connections stay open
// across multiple turns; each inbound frame either starts a new turn,
// cancels the active one for the connection's current session, or closes
// the socket.
func (s *Server) newWSHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn(r.Context(), "websocket upgrade failed", "error", err)
			}
			return
		}
		s.serveWS(conn)
	})
}

func (s *Server) serveWS(conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	writeDone := make(chan struct{})
	outbound := make(chan any, 8)
	go s.wsWriteLoop(conn, outbound, writeDone)
	defer func() {
		close(outbound)
		<-writeDone
	}()

	var currentSessionID string

	for {
		var frame wsInboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if currentSessionID != "" && s.tasks != nil {
				s.tasks.Cancel(currentSessionID)
			}
			return
		}

		switch frame.Type {
		case "close":
			return

		case "cancel":
			sessionID := frame.SessionID
			if sessionID == "" {
				sessionID = currentSessionID
			}
			if sessionID == "" {
				continue
			}
			if s.tasks != nil && s.tasks.Cancel(sessionID) {
				outbound <- wsCancelledEvent(sessionID, "user requested cancellation")
			} else {
				outbound <- wsNoActiveStreamEvent(sessionID)
			}

		default:
			sessionID := frame.SessionID
			if sessionID == "" {
				sessionID = newSessionID()
			}
			currentSessionID = sessionID
			s.runWSTurn(sessionID, frame.UserID, frame.Message, outbound)
		}
	}
}

// runWSTurn drives one orchestrator turn for frame.Message, registering it
// with the stream task manager so a later "cancel" frame (or a new turn
// superseding it) can unwind it cooperatively.
func (s *Server) runWSTurn(sessionID, userID, message string, outbound chan<- any) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := s.sessions.GetOrCreate(ctx, sessionID, userID)
	if err != nil {
		outbound <- map[string]any{"type": "error", "error": err.Error(), "session_id": sessionID}
		return
	}

	done := make(chan struct{})
	s.tasks.Register(sessionID, cancel, done)
	defer close(done)
	defer s.tasks.Unregister(sessionID)

	sink := newWSSink()
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		for event := range sink.send {
			outbound <- event
		}
	}()

	_, _, _ = s.orchestrator.RunTurn(ctx, session, message, sink)
	close(sink.send)
	<-relayDone
}

func (s *Server) wsWriteLoop(conn *websocket.Conn, outbound <-chan any, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-outbound:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(payload)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func wsCancelledEvent(sessionID, reason string) map[string]any {
	return map[string]any{
		"version":    models.EventProtocolVersion,
		"type":       string(models.EventCancelled),
		"session_id": sessionID,
		"reason":     reason,
		"timestamp":  time.Now().UTC(),
	}
}

func wsNoActiveStreamEvent(sessionID string) map[string]any {
	return map[string]any{
		"version":    models.EventProtocolVersion,
		"type":       string(models.EventError),
		"session_id": sessionID,
		"error":      "no active stream to cancel",
		"error_code": "NO_ACTIVE_STREAM",
		"timestamp":  time.Now().UTC(),
	}
}
