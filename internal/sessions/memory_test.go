package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

func TestMemoryStoreGetOrCreate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	session, err := store.GetOrCreate(ctx, "s1", "user-1")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if session.ID != "s1" || session.UserID != "user-1" {
		t.Fatalf("unexpected session: %+v", session)
	}

	again, err := store.GetOrCreate(ctx, "s1", "user-1")
	if err != nil {
		t.Fatalf("GetOrCreate() second call error = %v", err)
	}
	if again.CreatedAt != session.CreatedAt {
		t.Fatalf("expected existing session to be returned, got a new CreatedAt")
	}
}

func TestMemoryStoreAppendMessageBounded(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if _, err := store.GetOrCreate(ctx, "s1", "user-1"); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	for i := 0; i < memoryHistoryLimit+10; i++ {
		msg := &models.Message{ID: string(rune('a' + i%26)), Role: models.RoleUser, Content: "hi"}
		if err := store.AppendMessage(ctx, "s1", msg); err != nil {
			t.Fatalf("AppendMessage() error = %v", err)
		}
	}

	history, err := store.GetHistory(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(history) != memoryHistoryLimit {
		t.Fatalf("expected history capped at %d, got %d", memoryHistoryLimit, len(history))
	}
}

func TestMemoryStoreGetHistoryLimit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.GetOrCreate(ctx, "s1", "user-1")

	for i := 0; i < 5; i++ {
		store.AppendMessage(ctx, "s1", &models.Message{ID: string(rune('a' + i)), Role: models.RoleUser, Content: "hi"})
	}

	history, err := store.GetHistory(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.GetOrCreate(ctx, "s1", "user-1")

	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "s1"); err == nil {
		t.Fatalf("expected session to be gone after Delete")
	}
}

func TestMemoryStoreCleanupExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.GetOrCreate(ctx, "s1", "user-1")

	store.mu.Lock()
	store.entries["s1"].lastActivity = time.Now().Add(-48 * time.Hour)
	store.mu.Unlock()

	removed, err := store.CleanupExpired(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("CleanupExpired() error = %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 session removed, got %d", removed)
	}
}

func TestMemoryStoreListUserSessions(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.GetOrCreate(ctx, "s1", "user-1")
	store.GetOrCreate(ctx, "s2", "user-1")
	store.GetOrCreate(ctx, "s3", "user-2")

	sessions, err := store.ListUserSessions(ctx, "user-1", ListOptions{})
	if err != nil {
		t.Fatalf("ListUserSessions() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions for user-1, got %d", len(sessions))
	}
}
