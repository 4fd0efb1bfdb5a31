package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEvent_JSONOmitsTypeSpecificFields(t *testing.T) {
	e := Event{
		Version:   EventProtocolVersion,
		ID:        "evt_0123456789abcdef",
		Timestamp: time.Now().UTC(),
		Type:      EventDelta,
		SessionID: "s1",
		Content:   "hello",
	}
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, absent := range []string{"error", "error_code", "reason", "tool_calls", "model", "data"} {
		if _, ok := raw[absent]; ok {
			t.Errorf("expected field %q to be omitted for a delta event, got present", absent)
		}
	}
}

func TestMarshalTimestamp_TrailingZ(t *testing.T) {
	ts := MarshalTimestamp(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	if ts[len(ts)-1] != 'Z' {
		t.Errorf("timestamp %q does not end in Z", ts)
	}
}

func TestCheckpointEnvelope_RoundTrip(t *testing.T) {
	state := &TurnState{SessionID: "s1", UserInput: "hi", ToolIterationCount: 3}
	env := CheckpointEnvelope{SchemaVersion: CheckpointSchemaVersion, TurnState: state}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded CheckpointEnvelope
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.SchemaVersion != CheckpointSchemaVersion {
		t.Errorf("schema version = %d, want %d", decoded.SchemaVersion, CheckpointSchemaVersion)
	}
	if decoded.TurnState.SessionID != state.SessionID || decoded.TurnState.ToolIterationCount != state.ToolIterationCount {
		t.Errorf("round-trip mismatch: got %+v, want %+v", decoded.TurnState, state)
	}
}
