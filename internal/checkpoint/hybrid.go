package checkpoint

import (
	"context"

	"github.com/haasonsaas/nexus/internal/observability"
	"github.com/haasonsaas/nexus/pkg/models"
)

// HybridStore is the durable-backed Store the orchestrator actually uses:
// reads are best-effort (a durable-tier error degrades to nil/empty rather
// than failing the turn), writes are not (a failed Put/Delete is returned
// to the caller as a real error, since silently losing a checkpoint write
// defeats the point of checkpointing). durable may be nil, in which case
// every operation runs against the in-memory tier alone.
type HybridStore struct {
	memory  *MemoryStore
	durable Store
	logger  *observability.Logger
}

// NewHybridStore wraps durable behind an in-memory fallback. logger may be
// nil.
func NewHybridStore(durable Store, logger *observability.Logger) *HybridStore {
	return &HybridStore{memory: NewMemoryStore(), durable: durable, logger: logger}
}

func (h *HybridStore) warn(ctx context.Context, op string, err error) {
	if h.logger == nil {
		return
	}
	h.logger.Warn(ctx, "checkpoint store degraded to memory", "op", op, "error", err.Error())
}

func (h *HybridStore) Get(ctx context.Context, threadID string) (*models.Checkpoint, error) {
	if h.durable != nil {
		if cp, err := h.durable.Get(ctx, threadID); err == nil {
			return cp, nil
		} else {
			h.warn(ctx, "get", err)
		}
	}
	return h.memory.Get(ctx, threadID)
}

func (h *HybridStore) GetTuple(ctx context.Context, threadID string) (*models.Checkpoint, map[string]any, error) {
	if h.durable != nil {
		if cp, meta, err := h.durable.GetTuple(ctx, threadID); err == nil {
			return cp, meta, nil
		} else {
			h.warn(ctx, "get_tuple", err)
		}
	}
	return h.memory.GetTuple(ctx, threadID)
}

func (h *HybridStore) List(ctx context.Context, threadID string, limit int, before string) ([]*models.Checkpoint, error) {
	if h.durable != nil {
		if cps, err := h.durable.List(ctx, threadID, limit, before); err == nil {
			return cps, nil
		} else {
			h.warn(ctx, "list", err)
		}
	}
	return h.memory.List(ctx, threadID, limit, before)
}

// Put always writes through to the memory tier (so a read shortly after a
// durable outage still sees the checkpoint) and additionally writes
// through to the durable tier when one is configured, propagating any
// durable-tier error to the caller.
func (h *HybridStore) Put(ctx context.Context, threadID string, checkpoint *models.Checkpoint, metadata map[string]any) error {
	if err := h.memory.Put(ctx, threadID, checkpoint, metadata); err != nil {
		return err
	}
	if h.durable == nil {
		return nil
	}
	return h.durable.Put(ctx, threadID, checkpoint, metadata)
}

func (h *HybridStore) Delete(ctx context.Context, threadID string) error {
	if err := h.memory.Delete(ctx, threadID); err != nil {
		return err
	}
	if h.durable == nil {
		return nil
	}
	return h.durable.Delete(ctx, threadID)
}
