package storage

import (
	"context"
	"time"

	"github.com/conversa/cli/internal/domain"
)

// SessionStorage is the local mirror of committed sessions, so recent
// conversations can be listed and resumed without the backend.
type SessionStorage interface {
	// SaveSession upserts a session's transcript and metadata
	SaveSession(ctx context.Context, key string, entries []domain.ConversationEntry, metadata SessionMetadata) error

	// LoadSession loads a session by its key
	LoadSession(ctx context.Context, key string) ([]domain.ConversationEntry, SessionMetadata, error)

	// ListSessions returns session summaries, most recently updated first
	ListSessions(ctx context.Context, limit, offset int) ([]SessionSummary, error)

	// DeleteSession removes a session by its key
	DeleteSession(ctx context.Context, key string) error

	// Close closes the storage connection
	Close() error

	// Health checks if the storage is reachable
	Health(ctx context.Context) error
}

// SessionMetadata describes one cached session
type SessionMetadata struct {
	Key          string    `json:"key"`
	Title        string    `json:"title"`
	SessionID    *int64    `json:"session_id,omitempty"`
	ExternalID   *string   `json:"session_external_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// SessionSummary is the listing shape of a cached session
type SessionSummary struct {
	Key          string    `json:"key"`
	Title        string    `json:"title"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// Identity reconstructs the session identity carried in the metadata.
func (m SessionMetadata) Identity() domain.SessionIdentity {
	return domain.SessionIdentity{ID: m.SessionID, ExternalID: m.ExternalID}
}

// Config contains configuration for storage backends
type Config struct {
	// Type specifies the storage backend type (sqlite, postgres, redis, memory)
	Type string `json:"type" yaml:"type"`

	SQLite   SQLiteConfig   `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	Postgres PostgresConfig `json:"postgres,omitempty" yaml:"postgres,omitempty"`
	Redis    RedisConfig    `json:"redis,omitempty" yaml:"redis,omitempty"`
}

// SQLiteConfig contains SQLite-specific configuration
type SQLiteConfig struct {
	Path string `json:"path" yaml:"path"`
}

// PostgresConfig contains Postgres-specific configuration
type PostgresConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Database string `json:"database" yaml:"database"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	SSLMode  string `json:"ssl_mode" yaml:"ssl_mode"`
}

// RedisConfig contains Redis-specific configuration
type RedisConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Database int    `json:"database" yaml:"database"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	TTL      int    `json:"ttl,omitempty" yaml:"ttl,omitempty"` // seconds, 0 means no expiration
}
