package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
	_ "github.com/lib/pq"
)

// CockroachStore implements DurableRepository using CockroachDB (or any
// Postgres-wire-compatible database via lib/pq).
type CockroachStore struct {
	db *sql.DB

	stmtGetSession     *sql.Stmt
	stmtGetOrCreate    *sql.Stmt
	stmtUpdateSession  *sql.Stmt
	stmtDeleteSession  *sql.Stmt
	stmtAppendMessage  *sql.Stmt
	stmtGetHistory     *sql.Stmt
	stmtListBySession  *sql.Stmt
}

// DB exposes the underlying database connection for related stores.
func (s *CockroachStore) DB() *sql.DB {
	return s.db
}

// CockroachConfig holds configuration for CockroachDB connection.
type CockroachConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultCockroachConfig returns default configuration.
func DefaultCockroachConfig() *CockroachConfig {
	return &CockroachConfig{
		Host:            "localhost",
		Port:            26257,
		User:            "root",
		Password:        "",
		Database:        "nexus",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// NewCockroachStore creates a new CockroachDB store.
func NewCockroachStore(config *CockroachConfig) (*CockroachStore, error) {
	if config == nil {
		config = DefaultCockroachConfig()
	}
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		config.Host, config.Port, config.User, config.Password,
		config.Database, config.SSLMode, int(config.ConnectTimeout.Seconds()),
	)
	return newCockroachStoreWithDSN(dsn, config)
}

// NewCockroachStoreFromDSN creates a new CockroachDB store using a raw DSN/URL.
func NewCockroachStoreFromDSN(dsn string, config *CockroachConfig) (*CockroachStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	if config == nil {
		config = DefaultCockroachConfig()
	}
	return newCockroachStoreWithDSN(dsn, config)
}

func newCockroachStoreWithDSN(dsn string, config *CockroachConfig) (*CockroachStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &CockroachStore{db: db}
	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return store, nil
}

func (s *CockroachStore) prepareStatements() error {
	var err error

	s.stmtGetSession, err = s.db.Prepare(`
		SELECT id, user_id, status, summary, metadata, created_at, last_activity
		FROM sessions WHERE id = $1
	`)
	if err != nil {
		return fmt.Errorf("prepare get session: %w", err)
	}

	s.stmtGetOrCreate, err = s.db.Prepare(`
		INSERT INTO sessions (id, user_id, status, summary, metadata, created_at, last_activity)
		VALUES ($1, $2, $3, '', '{}', $4, $4)
		ON CONFLICT (id) DO UPDATE SET id = sessions.id
		RETURNING id, user_id, status, summary, metadata, created_at, last_activity
	`)
	if err != nil {
		return fmt.Errorf("prepare get-or-create: %w", err)
	}

	s.stmtUpdateSession, err = s.db.Prepare(`
		UPDATE sessions SET status = $1, summary = $2, metadata = $3, last_activity = $4
		WHERE id = $5
	`)
	if err != nil {
		return fmt.Errorf("prepare update session: %w", err)
	}

	s.stmtDeleteSession, err = s.db.Prepare(`DELETE FROM sessions WHERE id = $1`)
	if err != nil {
		return fmt.Errorf("prepare delete session: %w", err)
	}

	s.stmtAppendMessage, err = s.db.Prepare(`
		INSERT INTO messages (id, session_id, role, content, tool_call_id, attachments, tool_calls, tool_results, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`)
	if err != nil {
		return fmt.Errorf("prepare append message: %w", err)
	}

	s.stmtGetHistory, err = s.db.Prepare(`
		SELECT id, session_id, role, content, tool_call_id, attachments, tool_calls, tool_results, metadata, created_at
		FROM messages WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`)
	if err != nil {
		return fmt.Errorf("prepare get history: %w", err)
	}

	s.stmtListBySession, err = s.db.Prepare(`
		SELECT id, user_id, status, summary, metadata, created_at, last_activity
		FROM sessions WHERE user_id = $1
		ORDER BY last_activity DESC
		LIMIT $2 OFFSET $3
	`)
	if err != nil {
		return fmt.Errorf("prepare list sessions: %w", err)
	}

	return nil
}

// Close closes the database connection and prepared statements.
func (s *CockroachStore) Close() error {
	stmts := []*sql.Stmt{
		s.stmtGetSession, s.stmtGetOrCreate, s.stmtUpdateSession,
		s.stmtDeleteSession, s.stmtAppendMessage, s.stmtGetHistory, s.stmtListBySession,
	}
	var errs []error
	for _, stmt := range stmts {
		if stmt == nil {
			continue
		}
		if err := stmt.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing store: %v", errs)
	}
	return nil
}

func scanSession(row interface{ Scan(...any) error }) (*models.Session, error) {
	session := &models.Session{}
	var metadataJSON []byte
	if err := row.Scan(&session.ID, &session.UserID, &session.Status, &session.Summary, &metadataJSON, &session.CreatedAt, &session.LastActivity); err != nil {
		return nil, err
	}
	if len(metadataJSON) > 0 && string(metadataJSON) != "null" {
		if err := json.Unmarshal(metadataJSON, &session.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return session, nil
}

func (s *CockroachStore) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := scanSession(s.stmtGetSession.QueryRowContext(ctx, sessionID))
	if err == sql.ErrNoRows {
		return nil, errSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

func (s *CockroachStore) GetOrCreate(ctx context.Context, sessionID, userID string) (*models.Session, error) {
	session, err := scanSession(s.stmtGetOrCreate.QueryRowContext(ctx, sessionID, userID, models.SessionActive, time.Now()))
	if err != nil {
		return nil, fmt.Errorf("get-or-create session: %w", err)
	}
	return session, nil
}

func (s *CockroachStore) Update(ctx context.Context, session *models.Session) error {
	metadata, err := json.Marshal(session.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	session.LastActivity = time.Now()

	result, err := s.stmtUpdateSession.ExecContext(ctx, session.Status, session.Summary, metadata, session.LastActivity, session.ID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return errSessionNotFound
	}
	return nil
}

func (s *CockroachStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.stmtDeleteSession.ExecContext(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *CockroachStore) AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error {
	attachmentsJSON, err := json.Marshal(msg.Attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}
	toolCallsJSON, err := json.Marshal(msg.ToolCalls)
	if err != nil {
		return fmt.Errorf("marshal tool calls: %w", err)
	}
	toolResultsJSON, err := json.Marshal(msg.ToolResults)
	if err != nil {
		return fmt.Errorf("marshal tool results: %w", err)
	}
	metadataJSON, err := json.Marshal(msg.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.StmtContext(ctx, s.stmtAppendMessage).ExecContext(ctx,
		msg.ID, sessionID, msg.Role, msg.Content, msg.ToolCallID,
		attachmentsJSON, toolCallsJSON, toolResultsJSON, metadataJSON, msg.CreatedAt,
	); err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE sessions SET last_activity = $1 WHERE id = $2", time.Now(), sessionID); err != nil {
		return fmt.Errorf("update session activity: %w", err)
	}

	return tx.Commit()
}

func (s *CockroachStore) GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.stmtGetHistory.QueryContext(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{SessionID: sessionID}
		var attachmentsJSON, toolCallsJSON, toolResultsJSON, metadataJSON []byte

		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &msg.ToolCallID,
			&attachmentsJSON, &toolCallsJSON, &toolResultsJSON, &metadataJSON, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if len(attachmentsJSON) > 0 && string(attachmentsJSON) != "null" {
			_ = json.Unmarshal(attachmentsJSON, &msg.Attachments)
		}
		if len(toolCallsJSON) > 0 && string(toolCallsJSON) != "null" {
			_ = json.Unmarshal(toolCallsJSON, &msg.ToolCalls)
		}
		if len(toolResultsJSON) > 0 && string(toolResultsJSON) != "null" {
			_ = json.Unmarshal(toolResultsJSON, &msg.ToolResults)
		}
		if len(metadataJSON) > 0 && string(metadataJSON) != "null" {
			_ = json.Unmarshal(metadataJSON, &msg.Metadata)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *CockroachStore) ListUserSessions(ctx context.Context, userID string, opts ListOptions) ([]*models.Session, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.stmtListBySession.QueryContext(ctx, userID, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}
