package gateway

import (
	"net/http"
	"time"
)

// handleHealth is GET /health/: a composite health check over the
// orchestrator, configuration, and session store, mirroring the
// three-component breakdown the caller's monitoring expects.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := []componentHealth{
		s.checkAgentHealth(),
		s.checkConfigHealth(),
		s.checkSessionHealth(),
	}

	overall := healthHealthy
	for _, c := range components {
		if c.Status == healthUnhealthy {
			overall = healthDegraded
		}
	}

	stats := s.sessions.Stats()

	writeJSON(w, http.StatusOK, healthResponse{
		Status:        overall,
		Timestamp:     time.Now(),
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		Components:    components,
		Metrics: map[string]any{
			"active_sessions": stats.ActiveSessions,
			"active_tasks":    s.tasks.ActiveCount(),
			"uptime_hours":    time.Since(s.startTime).Hours(),
		},
	})
}

func (s *Server) checkAgentHealth() componentHealth {
	start := time.Now()
	if s.orchestrator == nil {
		return componentHealth{Name: "agent_core", Status: healthUnhealthy, Message: "orchestrator not available"}
	}
	return componentHealth{
		Name:           "agent_core",
		Status:         healthHealthy,
		Message:        "orchestrator is operational",
		ResponseTimeMS: float64(time.Since(start).Milliseconds()),
	}
}

func (s *Server) checkConfigHealth() componentHealth {
	if s.config == nil {
		return componentHealth{Name: "configuration", Status: healthUnhealthy, Message: "configuration not loaded"}
	}
	return componentHealth{Name: "configuration", Status: healthHealthy, Message: "configuration loaded"}
}

func (s *Server) checkSessionHealth() componentHealth {
	return componentHealth{
		Name:    "session_store",
		Status:  healthHealthy,
		Message: "session store operational",
	}
}
