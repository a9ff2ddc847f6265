package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/conversa/cli/internal/domain"
)

// RedisStorage implements SessionStorage using Redis
type RedisStorage struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStorage creates a new Redis storage instance
func NewRedisStorage(config RedisConfig) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		DB:       config.Database,
		Password: config.Password,
		Username: config.Username,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	var ttl time.Duration
	if config.TTL > 0 {
		ttl = time.Duration(config.TTL) * time.Second
	}

	return &RedisStorage{client: client, ttl: ttl}, nil
}

func (s *RedisStorage) sessionKey(key string) string {
	return fmt.Sprintf("session:%s", key)
}

func (s *RedisStorage) entriesKey(key string) string {
	return fmt.Sprintf("session:%s:entries", key)
}

func (s *RedisStorage) indexKey() string {
	return "sessions:index"
}

// SaveSession upserts a session's transcript and metadata
func (s *RedisStorage) SaveSession(ctx context.Context, key string, entries []domain.ConversationEntry, metadata SessionMetadata) error {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	entriesJSON, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal entries: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.sessionKey(key), metadataJSON, s.ttl)
	pipe.Set(ctx, s.entriesKey(key), entriesJSON, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), &redis.Z{
		Score:  float64(metadata.UpdatedAt.Unix()),
		Member: key,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// LoadSession loads a session by its key
func (s *RedisStorage) LoadSession(ctx context.Context, key string) ([]domain.ConversationEntry, SessionMetadata, error) {
	var metadata SessionMetadata

	metadataJSON, err := s.client.Get(ctx, s.sessionKey(key)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, metadata, fmt.Errorf("session not found: %s", key)
		}
		return nil, metadata, fmt.Errorf("failed to load session metadata: %w", err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
		return nil, metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	entriesJSON, err := s.client.Get(ctx, s.entriesKey(key)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, metadata, nil
		}
		return nil, metadata, fmt.Errorf("failed to load session entries: %w", err)
	}

	var entries []domain.ConversationEntry
	if err := json.Unmarshal([]byte(entriesJSON), &entries); err != nil {
		return nil, metadata, fmt.Errorf("failed to unmarshal entries: %w", err)
	}

	return entries, metadata, nil
}

// ListSessions returns session summaries, most recently updated first
func (s *RedisStorage) ListSessions(ctx context.Context, limit, offset int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	keys, err := s.client.ZRevRange(ctx, s.indexKey(), int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	summaries := make([]SessionSummary, 0, len(keys))
	for _, key := range keys {
		metadataJSON, err := s.client.Get(ctx, s.sessionKey(key)).Result()
		if err != nil {
			if err == redis.Nil {
				// expired entry still in the index
				continue
			}
			return nil, fmt.Errorf("failed to load session %s: %w", key, err)
		}

		var metadata SessionMetadata
		if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
			continue
		}

		summaries = append(summaries, SessionSummary{
			Key:          key,
			Title:        metadata.Title,
			UpdatedAt:    metadata.UpdatedAt,
			MessageCount: metadata.MessageCount,
		})
	}

	return summaries, nil
}

// DeleteSession removes a session by its key
func (s *RedisStorage) DeleteSession(ctx context.Context, key string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.sessionKey(key), s.entriesKey(key))
	pipe.ZRem(ctx, s.indexKey(), key)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

// Close closes the storage connection
func (s *RedisStorage) Close() error {
	return s.client.Close()
}

// Health checks if the storage is reachable
func (s *RedisStorage) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
