package models

import "time"

// CheckpointSchemaVersion is the current version of the serialized
// checkpoint envelope. Bump this whenever the envelope's shape changes in a
// way that is not purely additive.
const CheckpointSchemaVersion = 1

// Checkpoint is an orchestrator state snapshot keyed by (ThreadID,
// CheckpointID). The most recent checkpoint for a thread (by CreatedAt) is
// authoritative on resume.
type Checkpoint struct {
	ThreadID       string         `json:"thread_id"`
	CheckpointID   string         `json:"checkpoint_id"`
	SerializedState []byte        `json:"serialized_state"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// CheckpointEnvelope is the explicit, versioned serialization format used to
// encode a TurnState into Checkpoint.SerializedState. It MUST round-trip:
// deserializing an envelope produced by serializing s yields a TurnState
// equal to s.
type CheckpointEnvelope struct {
	SchemaVersion int        `json:"schema_version"`
	TurnState     *TurnState `json:"turn_state"`
}
