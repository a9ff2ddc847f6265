package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/conversa/cli/internal/domain"
)

// MemoryStorage implements SessionStorage in memory, for tests and for
// running without persistence.
type MemoryStorage struct {
	sessions map[string]sessionData
	mutex    sync.RWMutex
}

type sessionData struct {
	entries  []domain.ConversationEntry
	metadata SessionMetadata
}

// NewMemoryStorage creates a new in-memory storage instance
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{sessions: make(map[string]sessionData)}
}

// SaveSession upserts a session's transcript and metadata
func (m *MemoryStorage) SaveSession(ctx context.Context, key string, entries []domain.ConversationEntry, metadata SessionMetadata) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	metadata.UpdatedAt = time.Now()
	metadata.MessageCount = len(entries)

	entriesCopy := make([]domain.ConversationEntry, len(entries))
	copy(entriesCopy, entries)

	m.sessions[key] = sessionData{entries: entriesCopy, metadata: metadata}
	return nil
}

// LoadSession loads a session by its key
func (m *MemoryStorage) LoadSession(ctx context.Context, key string) ([]domain.ConversationEntry, SessionMetadata, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	data, exists := m.sessions[key]
	if !exists {
		return nil, SessionMetadata{}, fmt.Errorf("session not found: %s", key)
	}

	entriesCopy := make([]domain.ConversationEntry, len(data.entries))
	copy(entriesCopy, data.entries)
	return entriesCopy, data.metadata, nil
}

// ListSessions returns session summaries, most recently updated first
func (m *MemoryStorage) ListSessions(ctx context.Context, limit, offset int) ([]SessionSummary, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	summaries := make([]SessionSummary, 0, len(m.sessions))
	for key, data := range m.sessions {
		summaries = append(summaries, SessionSummary{
			Key:          key,
			Title:        data.metadata.Title,
			UpdatedAt:    data.metadata.UpdatedAt,
			MessageCount: data.metadata.MessageCount,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})

	if offset >= len(summaries) {
		return nil, nil
	}
	summaries = summaries[offset:]
	if limit > 0 && limit < len(summaries) {
		summaries = summaries[:limit]
	}

	return summaries, nil
}

// DeleteSession removes a session by its key
func (m *MemoryStorage) DeleteSession(ctx context.Context, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.sessions[key]; !exists {
		return fmt.Errorf("session not found: %s", key)
	}

	delete(m.sessions, key)
	return nil
}

// Close closes the storage connection
func (m *MemoryStorage) Close() error {
	return nil
}

// Health checks if the storage is reachable
func (m *MemoryStorage) Health(ctx context.Context) error {
	return nil
}
