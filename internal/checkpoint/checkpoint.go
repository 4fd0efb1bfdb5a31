// Package checkpoint persists orchestrator turn state between node
// transitions so a turn can be resumed or inspected after a crash or a
// mid-turn restart. It mirrors a LangGraph-style checkpoint saver: each
// checkpoint is keyed by (thread_id, checkpoint_id), carries an opaque
// serialized blob plus a small metadata map, and the store is expected to
// return the most recent checkpoint for a thread on read.
package checkpoint

import (
	"context"
	"strconv"

	"github.com/haasonsaas/nexus/pkg/models"
)

// Store is the full Checkpointer contract: get the latest checkpoint for a
// thread, get it paired with its metadata, save a new one, list the
// history for a thread, and delete a thread's checkpoints entirely.
//
// Read operations (Get, GetTuple, List) are best-effort: a backend error
// degrades to a nil/empty result rather than failing the caller, since a
// missing checkpoint just means the orchestrator starts the turn fresh.
// Write operations (Put, Delete) propagate errors — a turn whose
// checkpoint silently failed to save is a real loss of durability.
type Store interface {
	Get(ctx context.Context, threadID string) (*models.Checkpoint, error)
	GetTuple(ctx context.Context, threadID string) (*models.Checkpoint, map[string]any, error)
	Put(ctx context.Context, threadID string, checkpoint *models.Checkpoint, metadata map[string]any) error
	List(ctx context.Context, threadID string, limit int, before string) ([]*models.Checkpoint, error)
	Delete(ctx context.Context, threadID string) error
}

// NewID builds a checkpoint id from a timestamp and a step counter,
// matching the "<iso8601>_<step>" scheme the orchestrator uses to order
// checkpoints for a thread without a separate sequence column.
func NewID(createdAt string, step int) string {
	return createdAt + "_" + strconv.Itoa(step)
}
