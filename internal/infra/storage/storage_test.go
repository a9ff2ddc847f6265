package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conversa/cli/internal/domain"
)

func newSQLiteForTest(t *testing.T) SessionStorage {
	t.Helper()
	store, err := NewSQLiteStorage(SQLiteConfig{Path: filepath.Join(t.TempDir(), "sessions.db")})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func backends(t *testing.T) map[string]SessionStorage {
	return map[string]SessionStorage{
		"memory": NewMemoryStorage(),
		"sqlite": newSQLiteForTest(t),
	}
}

func sampleEntries() []domain.ConversationEntry {
	return []domain.ConversationEntry{
		{Message: domain.Message{Role: domain.RoleUser, Content: "hello"}, Time: time.Now().UTC().Truncate(time.Second)},
		{Message: domain.Message{Role: domain.RoleAssistant, Content: "hi there"}, Time: time.Now().UTC().Truncate(time.Second)},
	}
}

func TestSessionStorage_SaveAndLoadRoundTrip(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sid := int64(42)
			ext := "ext-42"

			entries := sampleEntries()
			metadata := SessionMetadata{
				Key:        "key-1",
				Title:      "hello",
				SessionID:  &sid,
				ExternalID: &ext,
				CreatedAt:  time.Now().UTC().Truncate(time.Second),
				UpdatedAt:  time.Now().UTC().Truncate(time.Second),
			}
			require.NoError(t, store.SaveSession(ctx, "key-1", entries, metadata))

			gotEntries, gotMeta, err := store.LoadSession(ctx, "key-1")
			require.NoError(t, err)

			require.Len(t, gotEntries, 2)
			assert.Equal(t, "hello", gotEntries[0].Message.Content)
			assert.Equal(t, domain.RoleAssistant, gotEntries[1].Message.Role)

			assert.Equal(t, "key-1", gotMeta.Key)
			assert.Equal(t, "hello", gotMeta.Title)
			require.NotNil(t, gotMeta.SessionID)
			assert.Equal(t, int64(42), *gotMeta.SessionID)
			assert.Equal(t, "ext-42", gotMeta.Identity().RequestID())
		})
	}
}

func TestSessionStorage_SaveIsUpsert(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.SaveSession(ctx, "key-1", sampleEntries(), SessionMetadata{Key: "key-1", Title: "first"}))

			longer := append(sampleEntries(), domain.ConversationEntry{
				Message: domain.Message{Role: domain.RoleUser, Content: "more"},
			})
			require.NoError(t, store.SaveSession(ctx, "key-1", longer, SessionMetadata{Key: "key-1", Title: "updated"}))

			entries, metadata, err := store.LoadSession(ctx, "key-1")
			require.NoError(t, err)
			assert.Len(t, entries, 3)
			assert.Equal(t, "updated", metadata.Title)

			summaries, err := store.ListSessions(ctx, 10, 0)
			require.NoError(t, err)
			require.Len(t, summaries, 1)
		})
	}
}

func TestSessionStorage_LoadMissingSession(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, _, err := store.LoadSession(context.Background(), "missing")
			assert.ErrorContains(t, err, "session not found")
		})
	}
}

func TestSessionStorage_ListOrderedByRecency(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Now().UTC().Truncate(time.Second)

			for i, key := range []string{"oldest", "middle", "newest"} {
				err := store.SaveSession(ctx, key, sampleEntries(), SessionMetadata{
					Key:       key,
					Title:     key,
					CreatedAt: base,
					UpdatedAt: base.Add(time.Duration(i) * time.Minute),
				})
				require.NoError(t, err)
				// the memory backend stamps UpdatedAt itself
				time.Sleep(5 * time.Millisecond)
			}

			summaries, err := store.ListSessions(ctx, 10, 0)
			require.NoError(t, err)
			require.Len(t, summaries, 3)
			assert.Equal(t, "newest", summaries[0].Key)
			assert.Equal(t, "oldest", summaries[2].Key)

			limited, err := store.ListSessions(ctx, 2, 0)
			require.NoError(t, err)
			assert.Len(t, limited, 2)

			paged, err := store.ListSessions(ctx, 10, 2)
			require.NoError(t, err)
			require.Len(t, paged, 1)
			assert.Equal(t, "oldest", paged[0].Key)
		})
	}
}

func TestSessionStorage_DeleteSession(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.SaveSession(ctx, "key-1", sampleEntries(), SessionMetadata{Key: "key-1", Title: "t"}))
			require.NoError(t, store.DeleteSession(ctx, "key-1"))

			_, _, err := store.LoadSession(ctx, "key-1")
			assert.Error(t, err)

			assert.Error(t, store.DeleteSession(ctx, "key-1"))
		})
	}
}

func TestSessionStorage_Health(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, store.Health(context.Background()))
		})
	}
}

func TestSessionStorage_NilIdentifiersSurvive(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.SaveSession(ctx, "fresh", sampleEntries(), SessionMetadata{Key: "fresh", Title: "t"}))

			_, metadata, err := store.LoadSession(ctx, "fresh")
			require.NoError(t, err)
			assert.Nil(t, metadata.SessionID)
			assert.Nil(t, metadata.ExternalID)
			assert.Equal(t, "", metadata.Identity().RequestID())
		})
	}
}
