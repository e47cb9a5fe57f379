package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeBackends(t *testing.T) map[string]Store {
	t.Helper()

	tmpDir := t.TempDir()

	fileStore, err := NewFileStore(filepath.Join(tmpDir, "sessions"))
	require.NoError(t, err)

	sqliteStore, err := NewSQLiteStore(filepath.Join(tmpDir, "convo.db"))
	require.NoError(t, err)

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fileStore,
		"sqlite": sqliteStore,
	}

	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})

	return stores
}

func TestStoreAppendAndHistory(t *testing.T) {
	ctx := context.Background()

	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("should return empty history for unknown session", func(t *testing.T) {
				msgs, err := store.History(ctx, "nope")
				assert.NoError(t, err)
				assert.Empty(t, msgs)
			})

			t.Run("should preserve append order", func(t *testing.T) {
				err := store.Append(ctx, "s1", []Message{
					{Role: RoleUser, Content: "first"},
					{Role: RoleAssistant, Content: "second"},
				})
				require.NoError(t, err)

				err = store.Append(ctx, "s1", []Message{
					{Role: RoleUser, Content: "third"},
				})
				require.NoError(t, err)

				msgs, err := store.History(ctx, "s1")
				require.NoError(t, err)
				require.Len(t, msgs, 3)
				assert.Equal(t, "first", msgs[0].Content)
				assert.Equal(t, "second", msgs[1].Content)
				assert.Equal(t, "third", msgs[2].Content)
			})

			t.Run("should round-trip tool calls and metadata", func(t *testing.T) {
				err := store.Append(ctx, "s2", []Message{
					{
						Role:    RoleAssistant,
						Content: "calling",
						ToolCalls: []ToolCall{
							{ID: "call_1", Name: "calculator", Args: map[string]any{"expression": "1 + 2"}},
						},
					},
					{
						Role:       RoleTool,
						Content:    "3",
						ToolCallID: "call_1",
						Metadata:   map[string]any{"success": true},
					},
				})
				require.NoError(t, err)

				msgs, err := store.History(ctx, "s2")
				require.NoError(t, err)
				require.Len(t, msgs, 2)
				require.Len(t, msgs[0].ToolCalls, 1)
				assert.Equal(t, "calculator", msgs[0].ToolCalls[0].Name)
				assert.Equal(t, "1 + 2", msgs[0].ToolCalls[0].Args["expression"])
				assert.Equal(t, "call_1", msgs[1].ToolCallID)
				assert.Equal(t, true, msgs[1].Metadata["success"])
			})

			t.Run("should isolate sessions", func(t *testing.T) {
				err := store.Append(ctx, "other", []Message{{Role: RoleUser, Content: "hello"}})
				require.NoError(t, err)

				msgs, err := store.History(ctx, "other")
				require.NoError(t, err)
				assert.Len(t, msgs, 1)
			})

			t.Run("should set timestamps on append", func(t *testing.T) {
				err := store.Append(ctx, "stamped", []Message{{Role: RoleUser, Content: "hi"}})
				require.NoError(t, err)

				msgs, err := store.History(ctx, "stamped")
				require.NoError(t, err)
				require.Len(t, msgs, 1)
				assert.False(t, msgs[0].Timestamp.IsZero())
			})

			t.Run("should clear a session", func(t *testing.T) {
				err := store.Append(ctx, "gone", []Message{{Role: RoleUser, Content: "bye"}})
				require.NoError(t, err)

				require.NoError(t, store.Clear(ctx, "gone"))

				msgs, err := store.History(ctx, "gone")
				require.NoError(t, err)
				assert.Empty(t, msgs)
			})

			t.Run("should list sessions", func(t *testing.T) {
				ids, err := store.Sessions(ctx)
				require.NoError(t, err)
				assert.Contains(t, ids, "s1")
				assert.Contains(t, ids, "s2")
				assert.NotContains(t, ids, "gone")
			})
		})
	}
}

func TestFileStorePersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("should survive reopen", func(t *testing.T) {
		store, err := NewFileStore(dir)
		require.NoError(t, err)

		err = store.Append(ctx, "persist", []Message{{Role: RoleUser, Content: "remember 42"}})
		require.NoError(t, err)
		require.NoError(t, store.Close())

		reopened, err := NewFileStore(dir)
		require.NoError(t, err)
		defer reopened.Close()

		msgs, err := reopened.History(ctx, "persist")
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "remember 42", msgs[0].Content)
	})

	t.Run("should skip corrupt lines", func(t *testing.T) {
		store, err := NewFileStore(dir)
		require.NoError(t, err)
		defer store.Close()

		path := filepath.Join(dir, "corrupt.jsonl")
		content := `{"role":"user","content":"good"}` + "\nnot json\n" + `{"role":"assistant","content":"also good"}` + "\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))

		msgs, err := store.History(ctx, "corrupt")
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "good", msgs[0].Content)
	})

	t.Run("should repair corrupt files in place", func(t *testing.T) {
		store, err := NewFileStore(dir)
		require.NoError(t, err)
		defer store.Close()

		require.NoError(t, store.Repair(ctx, "corrupt"))

		data, err := os.ReadFile(filepath.Join(dir, "corrupt.jsonl"))
		require.NoError(t, err)
		assert.NotContains(t, string(data), "not json")
	})

	t.Run("should reject path traversal in session ids", func(t *testing.T) {
		store, err := NewFileStore(dir)
		require.NoError(t, err)
		defer store.Close()

		err = store.Append(ctx, "../evil", []Message{{Role: RoleUser, Content: "x"}})
		assert.Error(t, err)

		_, err = store.History(ctx, "a/b")
		assert.Error(t, err)
	})
}

func TestOpen(t *testing.T) {
	t.Run("should default to memory backend", func(t *testing.T) {
		store, err := Open(Options{})
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &MemoryStore{}, store)
	})

	t.Run("should open file backend", func(t *testing.T) {
		store, err := Open(Options{Backend: "file", Path: t.TempDir()})
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &FileStore{}, store)
	})

	t.Run("should open sqlite backend", func(t *testing.T) {
		store, err := Open(Options{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "h.db")})
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &SQLiteStore{}, store)
	})

	t.Run("should reject unknown backend", func(t *testing.T) {
		_, err := Open(Options{Backend: "redis"})
		assert.ErrorIs(t, err, ErrUnknownBackend)
	})
}
