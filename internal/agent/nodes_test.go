package agent

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/nexus/internal/checkpoint"
	"github.com/haasonsaas/nexus/internal/sessions"
	"github.com/haasonsaas/nexus/pkg/models"
)

// slowStreamProvider streams one chunk, then blocks until released so a
// test can cancel the context mid-stream.
type slowStreamProvider struct {
	release chan struct{}
}

func (p *slowStreamProvider) Name() string         { return "slow" }
func (p *slowStreamProvider) Models() []Model       { return nil }
func (p *slowStreamProvider) SupportsTools() bool   { return false }
func (p *slowStreamProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	ch := make(chan *CompletionChunk)
	go func() {
		defer close(ch)
		select {
		case ch <- &CompletionChunk{Text: "partial answer"}:
		case <-ctx.Done():
			return
		}
		select {
		case <-p.release:
			ch <- &CompletionChunk{Text: " more", Done: true}
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

func TestRunTurn_CancellationPersistsPartialContent(t *testing.T) {
	provider := &slowStreamProvider{release: make(chan struct{})}
	store := sessions.NewMemoryStore()
	orch := NewOrchestrator(provider, nil, store, nil)

	session, err := store.GetOrCreate(context.Background(), "sess-1", "user-1")
	if err != nil {
		t.Fatalf("get or create session: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		state, _, err := orch.RunTurn(ctx, session, "hello there", NopSink{})
		if err != nil {
			t.Errorf("RunTurn returned error: %v", err)
		}
		if !state.Cancelled {
			t.Error("expected state.Cancelled to be true")
		}
	}()

	// Give call_llm time to stream the first chunk, then cancel before the
	// provider emits its done chunk.
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	history, err := store.GetHistory(context.Background(), "sess-1", 10)
	if err != nil {
		t.Fatalf("get history: %v", err)
	}

	var found bool
	for _, msg := range history {
		if msg.Role == models.RoleAssistant && len(msg.Content) > 0 && msg.Content[0] == '[' {
			found = true
			if msg.Content != "[Cancelled] partial answer" {
				t.Errorf("unexpected cancelled message content: %q", msg.Content)
			}
		}
	}
	if !found {
		t.Fatal("expected a [Cancelled]-tagged assistant message in session history")
	}
}

func TestRunTurn_WritesCheckpointsBetweenNodeTransitions(t *testing.T) {
	provider := &echoProvider{reply: "hi"}
	store := sessions.NewMemoryStore()
	checkpoints := checkpoint.NewMemoryStore()

	orch := NewOrchestrator(provider, nil, store, nil)
	orch.SetCheckpointStore(checkpoints)

	session, err := store.GetOrCreate(context.Background(), "sess-2", "user-1")
	if err != nil {
		t.Fatalf("get or create session: %v", err)
	}

	if _, _, err := orch.RunTurn(context.Background(), session, "what time is it", NopSink{}); err != nil {
		t.Fatalf("run turn: %v", err)
	}

	cps, err := checkpoints.List(context.Background(), "sess-2", 0, "")
	if err != nil {
		t.Fatalf("list checkpoints: %v", err)
	}
	if len(cps) == 0 {
		t.Fatal("expected at least one checkpoint to have been written")
	}
}

// echoProvider completes a turn immediately with a fixed reply and no tool
// calls, for tests that don't care about streaming behavior.
type echoProvider struct{ reply string }

func (p *echoProvider) Name() string       { return "echo" }
func (p *echoProvider) Models() []Model    { return nil }
func (p *echoProvider) SupportsTools() bool { return false }
func (p *echoProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	ch := make(chan *CompletionChunk, 2)
	ch <- &CompletionChunk{Text: p.reply}
	ch <- &CompletionChunk{Done: true}
	close(ch)
	return ch, nil
}
