package binding

import (
	"context"
	"testing"

	"github.com/jackzampolin/wenshape/internal/evidence"
	"github.com/jackzampolin/wenshape/internal/model"
	"github.com/jackzampolin/wenshape/internal/storage"
	"github.com/jackzampolin/wenshape/internal/textchunk"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*storage.Store, *Service) {
	t.Helper()
	store, err := storage.New(storage.Config{DataDir: t.TempDir(), ProjectID: "p1"})
	require.NoError(t, err)
	require.NoError(t, store.EnsureLayout())
	chunks := textchunk.NewIndexer(store, textchunk.DefaultConfig(), nil)
	idx := evidence.New(store, chunks, nil)
	return store, New(store, idx, nil)
}

func TestBindChapterLiteralOccurrence(t *testing.T) {
	store, svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCharacterCard(ctx, model.CharacterCard{Name: "Alice", Description: "A knight.", Stars: 2}))
	_, err := store.SaveFinal(ctx, "V1C1", "Alice walked into the tavern and drew her sword. Alice was determined.")
	require.NoError(t, err)

	binding, err := svc.Bind(ctx, "V1C1")
	require.NoError(t, err)
	require.Contains(t, binding.Characters, "Alice")
	require.Len(t, binding.Sources, 1)
	require.Equal(t, 2, binding.Sources[0].Count)
}

func TestBindChapterNoDraftPersistsEmpty(t *testing.T) {
	_, svc := newTestService(t)
	binding, err := svc.Bind(context.Background(), "V1C9")
	require.NoError(t, err)
	require.Empty(t, binding.Characters)
}

func TestSeedEntitiesCarryOver(t *testing.T) {
	store, svc := newTestService(t)
	ctx := context.Background()
	require.NoError(t, store.SaveCharacterCard(ctx, model.CharacterCard{Name: "Alice", Description: "A knight.", Stars: 1}))
	_, err := store.SaveFinal(ctx, "V1C1", "Alice trained hard every day in the yard.")
	require.NoError(t, err)
	_, err = store.SaveFinal(ctx, "V1C2", "Bob watched from a distance, saying nothing at all.")
	require.NoError(t, err)

	_, err = svc.Bind(ctx, "V1C1")
	require.NoError(t, err)
	_, err = svc.Bind(ctx, "V1C2")
	require.NoError(t, err)

	seeds := svc.GetSeedEntities("V1C2", 2, false)
	require.Contains(t, seeds, "Alice")
}

func TestExtractLooseMentionsNonAuthoritative(t *testing.T) {
	_, svc := newTestService(t)
	mentions := svc.ExtractLooseMentions("Alice and Bob walked to Town", 5)
	require.NotEmpty(t, mentions)
}
