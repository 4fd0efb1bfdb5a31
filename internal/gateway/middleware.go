package gateway

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// withMiddleware wraps a handler with auth enforcement and request
// logging/metrics, the two cross-cutting concerns every non-health route
// needs.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return s.withLogging(s.withAuth(next))
}

// withAuth rejects requests missing a valid API key. Health and metrics
// endpoints never pass through this wrapper, matching the "health
// endpoints exempt" auth rule.
func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.config.Auth.APIKeys) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		header := s.config.Auth.Header
		if header == "" {
			header = "X-API-Key"
		}
		provided := r.Header.Get(header)
		for _, key := range s.config.Auth.APIKeys {
			if provided != "" && provided == key {
				next.ServeHTTP(w, r)
				return
			}
		}

		writeError(w, http.StatusUnauthorized, "AUTH", "missing or invalid API key")
	})
}

// withLogging records request duration and status through the teacher's
// Logger/Metrics collaborators.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(rec.status), elapsed.Seconds())
		}
		if s.logger != nil {
			s.logger.Info(r.Context(), "http request",
				"method", r.Method, "path", r.URL.Path, "status", rec.status, "duration_ms", elapsed.Milliseconds())
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack passes through to the underlying ResponseWriter so the WebSocket
// upgrader can take over the connection despite the logging wrapper.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("underlying ResponseWriter does not support hijacking")
	}
	return hj.Hijack()
}
