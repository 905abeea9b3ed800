package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointHelpers(t *testing.T) {
	cp := Checkpoint{"2": true, "9": false}
	cp.Mark("1")

	assert.True(t, cp.Done("1"))
	assert.True(t, cp.Done("2"))
	assert.False(t, cp.Done("9"))
	assert.False(t, cp.Done("3"))
	assert.Equal(t, 2, cp.Completed())
	assert.Equal(t, []string{"1", "2"}, cp.IDs())

	clone := cp.Clone()
	clone.Mark("5")
	assert.False(t, cp.Done("5"))
}

func newStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	sqliteStore, err := NewSQLiteStore(context.Background(), filepath.Join(dir, "checkpoint.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]Store{
		"file":   NewFileStore(filepath.Join(dir, "checkpoint.json")),
		"sqlite": sqliteStore,
	}
}

func TestStores(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			cp, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, cp, "first run starts empty")

			cp.Mark("1")
			cp.Mark("3")
			require.NoError(t, store.Save(ctx, cp))

			loaded, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, Checkpoint{"1": true, "3": true}, loaded)

			// saves are full overwrites
			require.NoError(t, store.Save(ctx, Checkpoint{"3": true}))
			loaded, err = store.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, Checkpoint{"3": true}, loaded)
		})
	}
}

func TestFileStoreFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpt_processing_checkpoint.json")
	store := NewFileStore(path)

	require.NoError(t, store.Save(context.Background(), Checkpoint{"3": true}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"3": true}`, string(data))
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"3": tr`), 0o644))

	_, err := NewFileStore(path).Load(context.Background())
	require.Error(t, err)
}

func TestSQLiteStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checkpoint.db")

	store, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, Checkpoint{"42": true}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	cp, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.True(t, cp.Done("42"))
}
