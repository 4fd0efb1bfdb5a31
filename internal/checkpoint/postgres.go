package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
	_ "github.com/lib/pq"
)

// PostgresStore implements Store against a Postgres-wire-compatible
// database (Postgres or CockroachDB) using the same prepared-statement
// idiom as the session store.
type PostgresStore struct {
	db *sql.DB

	stmtGetLatest *sql.Stmt
	stmtInsert    *sql.Stmt
	stmtList      *sql.Stmt
	stmtDelete    *sql.Stmt
}

// Schema is the DDL for the checkpoints table. Callers run this (or an
// equivalent migration) before handing a *sql.DB to NewPostgresStore.
const Schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	thread_id        TEXT NOT NULL,
	checkpoint_id    TEXT NOT NULL,
	serialized_state BYTEA NOT NULL,
	metadata         JSONB,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (thread_id, checkpoint_id)
)`

// NewPostgresStore prepares statements against an already-open, already-
// migrated database connection.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare checkpoint statements: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) prepareStatements() error {
	var err error

	s.stmtGetLatest, err = s.db.Prepare(`
		SELECT thread_id, checkpoint_id, serialized_state, metadata, created_at
		FROM checkpoints WHERE thread_id = $1
		ORDER BY created_at DESC, checkpoint_id DESC
		LIMIT 1
	`)
	if err != nil {
		return fmt.Errorf("prepare get latest: %w", err)
	}

	s.stmtInsert, err = s.db.Prepare(`
		INSERT INTO checkpoints (thread_id, checkpoint_id, serialized_state, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (thread_id, checkpoint_id) DO UPDATE
		SET serialized_state = EXCLUDED.serialized_state, metadata = EXCLUDED.metadata
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}

	s.stmtList, err = s.db.Prepare(`
		SELECT thread_id, checkpoint_id, serialized_state, metadata, created_at
		FROM checkpoints
		WHERE thread_id = $1 AND ($2 = '' OR checkpoint_id < $2)
		ORDER BY created_at DESC, checkpoint_id DESC
		LIMIT $3
	`)
	if err != nil {
		return fmt.Errorf("prepare list: %w", err)
	}

	s.stmtDelete, err = s.db.Prepare(`DELETE FROM checkpoints WHERE thread_id = $1`)
	if err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}

	return nil
}

// Close releases the prepared statements. The underlying *sql.DB is owned
// by the caller and is not closed here.
func (s *PostgresStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.stmtGetLatest, s.stmtInsert, s.stmtList, s.stmtDelete} {
		if stmt == nil {
			continue
		}
		if err := stmt.Close(); err != nil {
			return err
		}
	}
	return nil
}

func scanCheckpoint(row interface{ Scan(...any) error }) (*models.Checkpoint, error) {
	cp := &models.Checkpoint{}
	var metadataJSON []byte
	if err := row.Scan(&cp.ThreadID, &cp.CheckpointID, &cp.SerializedState, &metadataJSON, &cp.CreatedAt); err != nil {
		return nil, err
	}
	if len(metadataJSON) > 0 && string(metadataJSON) != "null" {
		if err := json.Unmarshal(metadataJSON, &cp.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return cp, nil
}

func (s *PostgresStore) Get(ctx context.Context, threadID string) (*models.Checkpoint, error) {
	cp, err := scanCheckpoint(s.stmtGetLatest.QueryRowContext(ctx, threadID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	return cp, nil
}

func (s *PostgresStore) GetTuple(ctx context.Context, threadID string) (*models.Checkpoint, map[string]any, error) {
	cp, err := s.Get(ctx, threadID)
	if err != nil || cp == nil {
		return cp, nil, err
	}
	return cp, cp.Metadata, nil
}

func (s *PostgresStore) Put(ctx context.Context, threadID string, checkpoint *models.Checkpoint, metadata map[string]any) error {
	if checkpoint == nil {
		return fmt.Errorf("checkpoint is required")
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	createdAt := checkpoint.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	if _, err := s.stmtInsert.ExecContext(ctx, threadID, checkpoint.CheckpointID, checkpoint.SerializedState, metadataJSON, createdAt); err != nil {
		return fmt.Errorf("put checkpoint: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, threadID string, limit int, before string) ([]*models.Checkpoint, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.stmtList.QueryContext(ctx, threadID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []*models.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, threadID string) error {
	if _, err := s.stmtDelete.ExecContext(ctx, threadID); err != nil {
		return fmt.Errorf("delete checkpoints: %w", err)
	}
	return nil
}
