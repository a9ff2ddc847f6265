package storage

import (
	"fmt"
)

// NewStorage creates a session storage instance for the configured
// backend.
func NewStorage(config Config) (SessionStorage, error) {
	switch config.Type {
	case "sqlite", "":
		return NewSQLiteStorage(config.SQLite)
	case "postgres":
		return NewPostgresStorage(config.Postgres)
	case "redis":
		return NewRedisStorage(config.Redis)
	case "memory":
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Type)
	}
}
