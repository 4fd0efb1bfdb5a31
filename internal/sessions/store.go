package sessions

import (
	"context"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

// Store is the session store interface backing the Hybrid Session Store: a
// memory-tier cache in front of an optional durable repository, with
// fallback to memory-only operation when the durable tier is unhealthy.
type Store interface {
	// GetOrCreate returns the session identified by sessionID, creating one
	// bound to userID if it does not yet exist.
	GetOrCreate(ctx context.Context, sessionID, userID string) (*models.Session, error)

	// Get retrieves a session by ID.
	Get(ctx context.Context, sessionID string) (*models.Session, error)

	// Update persists changes to an existing session (status, summary,
	// metadata).
	Update(ctx context.Context, session *models.Session) error

	// Delete removes a session from both tiers. A missing session is not
	// an error.
	Delete(ctx context.Context, sessionID string) error

	// AppendMessage appends msg to sessionID's history, writing through to
	// memory immediately and to the durable tier asynchronously.
	AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error

	// GetHistory returns up to limit of the most recent messages for
	// sessionID, oldest first.
	GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error)

	// ListUserSessions lists sessions belonging to userID.
	ListUserSessions(ctx context.Context, userID string, opts ListOptions) ([]*models.Session, error)

	// CleanupExpired purges sessions whose last activity is older than ttl
	// from the memory tier, returning the number removed.
	CleanupExpired(ctx context.Context, ttl time.Duration) (int, error)

	// Stats reports the store's cache/durable/fallback counters.
	Stats() Stats
}

// ListOptions configures session listing.
type ListOptions struct {
	Limit  int
	Offset int
}

// Stats exposes the hybrid store's operational counters
// §4.D's statistics requirement.
type Stats struct {
	CacheHits        int64
	CacheMisses      int64
	DurableReads     int64
	DurableWrites    int64
	DurableErrors    int64
	FallbackTriggers int64
	ActiveSessions   int64
	FallbackActive   bool
}
