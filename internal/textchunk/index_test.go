package textchunk

import (
	"context"
	"testing"

	"github.com/jackzampolin/wenshape/internal/storage"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.New(storage.Config{DataDir: t.TempDir(), ProjectID: "p1"})
	require.NoError(t, err)
	require.NoError(t, s.EnsureLayout())
	return s
}

func TestIndexerBuildAndSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.SaveFinal(ctx, "V1C1", "Alice walked into the tavern and drew her silver sword.\n\nBob watched from the corner, saying nothing.")
	require.NoError(t, err)

	ix := NewIndexer(store, DefaultConfig(), nil)
	meta, err := ix.Build(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 2, meta.ItemCount)

	hits, err := ix.Search(ctx, nil, SearchOptions{Queries: []string{"Alice sword"}, Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	require.Contains(t, hits[0].Item.Text, "Alice")
}

func TestIndexerIncrementalSkipsUnchanged(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, err := store.SaveFinal(ctx, "V1C1", "Some short prose that is long enough to keep.")
	require.NoError(t, err)

	ix := NewIndexer(store, DefaultConfig(), nil)
	meta1, err := ix.Build(ctx, false)
	require.NoError(t, err)

	meta2, err := ix.Build(ctx, false)
	require.NoError(t, err)
	require.Equal(t, meta1.BuiltAt, meta2.BuiltAt)
}
