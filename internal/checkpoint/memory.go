package checkpoint

import (
	"context"
	"sort"
	"sync"

	"github.com/haasonsaas/nexus/pkg/models"
)

// MemoryStore is an in-process Store, used as the default when no durable
// backend is configured and as the fallback tier behind PostgresStore.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string][]*models.Checkpoint // thread_id -> checkpoints, oldest first
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string][]*models.Checkpoint)}
}

func (m *MemoryStore) Get(_ context.Context, threadID string) (*models.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	checkpoints := m.byID[threadID]
	if len(checkpoints) == 0 {
		return nil, nil
	}
	return cloneCheckpoint(checkpoints[len(checkpoints)-1]), nil
}

func (m *MemoryStore) GetTuple(ctx context.Context, threadID string) (*models.Checkpoint, map[string]any, error) {
	cp, err := m.Get(ctx, threadID)
	if err != nil || cp == nil {
		return cp, nil, err
	}
	return cp, cp.Metadata, nil
}

func (m *MemoryStore) Put(_ context.Context, threadID string, checkpoint *models.Checkpoint, metadata map[string]any) error {
	if checkpoint == nil {
		return nil
	}
	stored := cloneCheckpoint(checkpoint)
	stored.ThreadID = threadID
	stored.Metadata = metadata

	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[threadID] = append(m.byID[threadID], stored)
	return nil
}

func (m *MemoryStore) List(_ context.Context, threadID string, limit int, before string) ([]*models.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	checkpoints := m.byID[threadID]
	out := make([]*models.Checkpoint, 0, len(checkpoints))
	for i := len(checkpoints) - 1; i >= 0; i-- {
		cp := checkpoints[i]
		if before != "" && cp.CheckpointID >= before {
			continue
		}
		out = append(out, cloneCheckpoint(cp))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CheckpointID > out[j].CheckpointID })
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, threadID)
	return nil
}

func cloneCheckpoint(cp *models.Checkpoint) *models.Checkpoint {
	if cp == nil {
		return nil
	}
	clone := *cp
	if cp.SerializedState != nil {
		clone.SerializedState = append([]byte(nil), cp.SerializedState...)
	}
	if cp.Metadata != nil {
		clone.Metadata = make(map[string]any, len(cp.Metadata))
		for k, v := range cp.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}
