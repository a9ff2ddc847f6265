package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/conversa/cli/internal/domain"
)

// PostgresStorage implements SessionStorage using PostgreSQL
type PostgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage creates a new Postgres storage instance
func NewPostgresStorage(config PostgresConfig) (*PostgresStorage, error) {
	sslMode := config.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		config.Host, config.Port, config.Database, config.Username, config.Password, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open Postgres connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	s := &PostgresStorage{db: db}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

func (s *PostgresStorage) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		key TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		session_id BIGINT,
		external_id TEXT,
		count INTEGER NOT NULL DEFAULT 0,
		entries JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveSession upserts a session's transcript and metadata
func (s *PostgresStorage) SaveSession(ctx context.Context, key string, entries []domain.ConversationEntry, metadata SessionMetadata) error {
	entriesJSON, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal entries: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (key, title, session_id, external_id, count, entries, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (key) DO UPDATE SET
			title = EXCLUDED.title,
			session_id = EXCLUDED.session_id,
			external_id = EXCLUDED.external_id,
			count = EXCLUDED.count,
			entries = EXCLUDED.entries,
			updated_at = EXCLUDED.updated_at
	`, key, metadata.Title, metadata.SessionID, metadata.ExternalID, len(entries), string(entriesJSON),
		metadata.CreatedAt, metadata.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// LoadSession loads a session by its key
func (s *PostgresStorage) LoadSession(ctx context.Context, key string) ([]domain.ConversationEntry, SessionMetadata, error) {
	var metadata SessionMetadata
	var entriesJSON string
	var sessionID sql.NullInt64
	var externalID sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT key, title, session_id, external_id, count, entries, created_at, updated_at
		FROM sessions WHERE key = $1
	`, key).Scan(&metadata.Key, &metadata.Title, &sessionID, &externalID,
		&metadata.MessageCount, &entriesJSON, &metadata.CreatedAt, &metadata.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, metadata, fmt.Errorf("session not found: %s", key)
		}
		return nil, metadata, fmt.Errorf("failed to load session: %w", err)
	}

	if sessionID.Valid {
		metadata.SessionID = &sessionID.Int64
	}
	if externalID.Valid {
		metadata.ExternalID = &externalID.String
	}

	var entries []domain.ConversationEntry
	if err := json.Unmarshal([]byte(entriesJSON), &entries); err != nil {
		return nil, metadata, fmt.Errorf("failed to unmarshal entries: %w", err)
	}

	return entries, metadata, nil
}

// ListSessions returns session summaries, most recently updated first
func (s *PostgresStorage) ListSessions(ctx context.Context, limit, offset int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, title, count, updated_at
		FROM sessions
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var summaries []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		if err := rows.Scan(&sum.Key, &sum.Title, &sum.MessageCount, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		summaries = append(summaries, sum)
	}

	return summaries, rows.Err()
}

// DeleteSession removes a session by its key
func (s *PostgresStorage) DeleteSession(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("session not found: %s", key)
	}

	return nil
}

// Close closes the storage connection
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

// Health checks if the storage is reachable
func (s *PostgresStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
