// Package streamtask tracks the single in-flight orchestrator turn per
// session so a transport can cancel an active stream when a caller asks
// for it (WS "cancel" frame, SSE client disconnect, a new turn superseding
// an old one).
package streamtask

import (
	"context"
	"sync"

	"github.com/haasonsaas/nexus/internal/observability"
)

// task pairs the cancel func for an in-flight turn with a done channel the
// manager can block on while waiting for the turn to unwind.
type task struct {
	cancel func()
	done   <-chan struct{}
}

func (t task) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Manager enforces at most one active orchestrator turn per session. A new
// registration cancels and awaits whatever turn previously occupied the
// session's slot before taking it over, matching the "new input supersedes
// the old stream" rule for a session.
type Manager struct {
	mu     sync.Mutex
	tasks  map[string]task
	logger *observability.Logger
}

// NewManager creates an empty Manager. logger may be nil, in which case
// registration/cancellation events are not logged.
func NewManager(logger *observability.Logger) *Manager {
	return &Manager{
		tasks:  make(map[string]task),
		logger: logger,
	}
}

// Register associates a cancel func and completion channel with sessionID,
// cancelling and waiting for any task already registered for that session.
// Callers run the turn in their own goroutine and pass the cancel/done pair
// up front; Register does not itself start anything.
func (m *Manager) Register(sessionID string, cancel func(), done <-chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.tasks[sessionID]; ok && !prev.finished() {
		m.logf("info", sessionID, "cancelling previous stream task for session")
		prev.cancel()
		<-prev.done
	}

	m.tasks[sessionID] = task{cancel: cancel, done: done}
}

// Cancel cancels the active task for sessionID, if any, and blocks until it
// has unwound. It reports whether a task was found.
func (m *Manager) Cancel(sessionID string) bool {
	m.mu.Lock()
	t, ok := m.tasks[sessionID]
	m.mu.Unlock()

	if !ok || t.finished() {
		return false
	}

	m.logf("info", sessionID, "cancelling stream task for session")
	t.cancel()
	<-t.done
	return true
}

// Unregister removes sessionID's task from tracking. Callers invoke this on
// normal turn completion so the slot is free for the next turn without
// waiting on cleanup.
func (m *Manager) Unregister(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, sessionID)
}

// ActiveCount returns the number of sessions with a task that has not yet
// finished.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, t := range m.tasks {
		if !t.finished() {
			count++
		}
	}
	return count
}

// CleanupCompleted drops finished tasks from the registry and returns how
// many were removed. Intended to be called periodically so long-idle
// sessions don't accumulate stale done channels.
func (m *Manager) CleanupCompleted() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for sessionID, t := range m.tasks {
		if t.finished() {
			delete(m.tasks, sessionID)
			removed++
		}
	}
	return removed
}

func (m *Manager) logf(level, sessionID, msg string) {
	if m.logger == nil {
		return
	}
	switch level {
	case "info":
		m.logger.Info(context.Background(), msg, "session_id", sessionID)
	default:
		m.logger.Debug(context.Background(), msg, "session_id", sessionID)
	}
}
