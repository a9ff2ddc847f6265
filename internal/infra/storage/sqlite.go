package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/conversa/cli/internal/domain"
)

// SQLiteStorage implements SessionStorage using SQLite
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(config SQLiteConfig) (*SQLiteStorage, error) {
	path := config.Path
	if path == "" {
		path = defaultSQLitePath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStorage{db: db, path: path}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".conversa/sessions.db"
	}
	return filepath.Join(home, ".conversa", "sessions.db")
}

func (s *SQLiteStorage) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		key TEXT PRIMARY KEY,             -- local session key
		title TEXT NOT NULL,
		session_id INTEGER,               -- backend-assigned numeric ID
		external_id TEXT,                 -- backend-assigned external ID
		count INTEGER NOT NULL DEFAULT 0,
		entries TEXT NOT NULL,            -- JSON array of transcript entries
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveSession upserts a session's transcript and metadata
func (s *SQLiteStorage) SaveSession(ctx context.Context, key string, entries []domain.ConversationEntry, metadata SessionMetadata) error {
	entriesJSON, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal entries: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (key, title, session_id, external_id, count, entries, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			title = excluded.title,
			session_id = excluded.session_id,
			external_id = excluded.external_id,
			count = excluded.count,
			entries = excluded.entries,
			updated_at = excluded.updated_at
	`, key, metadata.Title, metadata.SessionID, metadata.ExternalID, len(entries), string(entriesJSON),
		metadata.CreatedAt.Format(time.RFC3339), metadata.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// LoadSession loads a session by its key
func (s *SQLiteStorage) LoadSession(ctx context.Context, key string) ([]domain.ConversationEntry, SessionMetadata, error) {
	var metadata SessionMetadata
	var entriesJSON string
	var sessionID sql.NullInt64
	var externalID sql.NullString
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT key, title, session_id, external_id, count, entries, created_at, updated_at
		FROM sessions WHERE key = ?
	`, key).Scan(&metadata.Key, &metadata.Title, &sessionID, &externalID,
		&metadata.MessageCount, &entriesJSON, &createdAt, &updatedAt)
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
	metadata.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	metadata.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	var entries []domain.ConversationEntry
	if err := json.Unmarshal([]byte(entriesJSON), &entries); err != nil {
		return nil, metadata, fmt.Errorf("failed to unmarshal entries: %w", err)
	}

	return entries, metadata, nil
}

// ListSessions returns session summaries, most recently updated first
func (s *SQLiteStorage) ListSessions(ctx context.Context, limit, offset int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, title, count, updated_at
		FROM sessions
		ORDER BY updated_at DESC
		LIMIT ? OFFSET ?
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
		var updatedAt string
		if err := rows.Scan(&sum.Key, &sum.Title, &sum.MessageCount, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sum.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		summaries = append(summaries, sum)
	}

	return summaries, rows.Err()
}

// DeleteSession removes a session by its key
func (s *SQLiteStorage) DeleteSession(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE key = ?`, key)
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
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Health checks if the storage is reachable
func (s *SQLiteStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
