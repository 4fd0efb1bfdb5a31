// Package gateway implements the Transport Adapter: the HTTP/SSE/WebSocket
// surface a caller actually talks to. It translates wire requests into
// orchestrator turns and façade calls, and translates event-sink output
// back into SSE frames or WebSocket messages. It holds no conversation
// logic of its own.
//
// server.go contains the core Server struct and constructor. Related
// functionality is organized in separate files:
//   - middleware.go: API key auth and request logging/metrics middleware
//   - chat.go: the raw chat surface (/api/v1/chat, /chat/stream, /chat/history)
//   - session.go: session CRUD (/session)
//   - health.go: the health check endpoint
//   - tools.go: tool introspection and direct execution
//   - conversation.go: the conversation façade surface (/conversation/*)
//   - ws.go: the bidirectional /chat/ws WebSocket
//   - sse.go: Server-Sent Events helpers shared by the streaming handlers
//   - wire.go: request/response wire types
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/nexus/internal/agent"
	"github.com/haasonsaas/nexus/internal/agent/streamtask"
	"github.com/haasonsaas/nexus/internal/config"
	"github.com/haasonsaas/nexus/internal/facade"
	"github.com/haasonsaas/nexus/internal/observability"
	"github.com/haasonsaas/nexus/internal/sessions"
)

// Server is the Transport Adapter: an HTTP/WS listener bound to the
// orchestrator, the conversation façade, and session storage.
type Server struct {
	config       *config.Config
	orchestrator *agent.Orchestrator
	registry     *agent.ToolRegistry
	facade       *facade.Facade
	sessions     sessions.Store
	tasks        *streamtask.Manager
	logger       *observability.Logger
	metrics      *observability.Metrics

	httpServer   *http.Server
	httpListener net.Listener
	startTime    time.Time
}

// NewServer wires the Transport Adapter to its collaborators. facade may be
// nil, in which case the /conversation/* routes respond 503; this lets a
// deployment run the raw chat surface without STT/TTS configured.
func NewServer(
	cfg *config.Config,
	orchestrator *agent.Orchestrator,
	registry *agent.ToolRegistry,
	convFacade *facade.Facade,
	store sessions.Store,
	tasks *streamtask.Manager,
	logger *observability.Logger,
	metrics *observability.Metrics,
) *Server {
	return &Server{
		config:       cfg,
		orchestrator: orchestrator,
		registry:     registry,
		facade:       convFacade,
		sessions:     store,
		tasks:        tasks,
		logger:       logger,
		metrics:      metrics,
		startTime:    time.Now(),
	}
}

// Start builds the route table and begins serving HTTP on a background
// goroutine. It returns once the listener is bound; Serve errors after that
// point are logged, not returned.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.HTTPPort)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health/", s.handleHealth)

	mux.Handle("POST /api/v1/chat/", s.withMiddleware(http.HandlerFunc(s.handleChatMessage)))
	mux.Handle("POST /chat/stream", s.withMiddleware(http.HandlerFunc(s.handleChatStream)))
	mux.Handle("GET /chat/stream", s.withMiddleware(http.HandlerFunc(s.handleChatStream)))
	mux.Handle("GET /chat/history/{session_id}", s.withMiddleware(http.HandlerFunc(s.handleChatHistory)))
	mux.Handle("/chat/ws", s.withMiddleware(s.newWSHandler()))

	mux.Handle("POST /session/", s.withMiddleware(http.HandlerFunc(s.handleSessionCreate)))
	mux.Handle("GET /session/{session_id}", s.withMiddleware(http.HandlerFunc(s.handleSessionGet)))
	mux.Handle("DELETE /session/{session_id}", s.withMiddleware(http.HandlerFunc(s.handleSessionDelete)))

	mux.Handle("GET /tools/", s.withMiddleware(http.HandlerFunc(s.handleToolsList)))
	mux.Handle("POST /tools/execute/{name}", s.withMiddleware(http.HandlerFunc(s.handleToolsExecute)))

	mux.Handle("POST /conversation/message", s.withMiddleware(http.HandlerFunc(s.handleConversationMessage)))
	mux.Handle("POST /conversation/message-stream", s.withMiddleware(http.HandlerFunc(s.handleConversationMessageStream)))
	mux.Handle("POST /conversation/message-audio", s.withMiddleware(http.HandlerFunc(s.handleConversationMessageAudio)))
	mux.Handle("POST /conversation/message-audio-stream", s.withMiddleware(http.HandlerFunc(s.handleConversationMessageAudioStream)))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}

	s.httpServer = server
	s.httpListener = listener

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if s.logger != nil {
				s.logger.Error(ctx, "http server error", "error", err)
			}
		}
	}()

	if s.logger != nil {
		s.logger.Info(ctx, "starting gateway http server", "addr", addr)
	}

	return nil
}

// Shutdown drains in-flight requests and closes the listener. If ctx
// carries no deadline, a default 5s timeout is applied.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	err := s.httpServer.Shutdown(shutdownCtx)
	s.httpServer = nil
	s.httpListener = nil
	return err
}
