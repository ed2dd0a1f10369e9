package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackzampolin/wenshape/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{DataDir: t.TempDir(), ProjectID: "demo"})
	require.NoError(t, err)
	require.NoError(t, s.EnsureLayout())
	return s
}

func TestStoreCharacterCardRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	card := model.CharacterCard{Name: "Alice", Description: "a protagonist"}
	require.NoError(t, s.SaveCharacterCard(ctx, card))

	got, err := s.LoadCharacterCard("Alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, 1, got.Stars) // Normalize default

	cards, err := s.ListCharacterCards()
	require.NoError(t, err)
	assert.Len(t, cards, 1)
}

func TestStoreMissingCardReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadCharacterCard("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreFactsAppendAndNormalize(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendFact(ctx, model.Fact{Statement: "The sky is red.", Source: "V1C1"}))
	require.NoError(t, s.AppendFact(ctx, model.Fact{Statement: "Magic requires blood.", Source: "V1C2"}))

	facts, err := s.LoadFacts()
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, "fact-1", facts[0].ID)
	assert.Equal(t, "fact-2", facts[1].ID)
	assert.Equal(t, "V1C1", facts[0].IntroducedIn)
	assert.Equal(t, 1.0, facts[0].Confidence)
}

func TestStoreDraftRotationKeepsHistoryBounded(t *testing.T) {
	s := newTestStore(t)
	s.history = 2
	ctx := context.Background()

	var path string
	var err error
	for i := 0; i < 5; i++ {
		path, err = s.SaveDraft(ctx, "c1", "v1", "content")
		require.NoError(t, err)
	}
	assert.FileExists(t, path)

	dir, err := s.chapterDir("c1")
	require.NoError(t, err)
	entries, err := os.ReadDir(dir + "/history")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(entries), 2)
}

func TestStoreLatestDraftPrefersFinal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveDraft(ctx, "c1", "v1", "draft one")
	require.NoError(t, err)
	_, err = s.SaveDraft(ctx, "c1", "v2", "draft two")
	require.NoError(t, err)

	got, err := s.LoadLatestDraft("c1")
	require.NoError(t, err)
	assert.Equal(t, "draft two", got)

	_, err = s.SaveFinal(ctx, "c1", "final content")
	require.NoError(t, err)

	got, err = s.LoadLatestDraft("c1")
	require.NoError(t, err)
	assert.Equal(t, "final content", got)
}

func TestStoreChapterDirCoercion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveDraft(ctx, "vol1c5", "v1", "hi")
	require.NoError(t, err)

	// A different loose spelling of the same chapter should resolve to the
	// already-created canonical directory, not create a duplicate.
	dir, err := s.chapterDir("V1C5")
	require.NoError(t, err)
	assert.Contains(t, dir, "V1C5")

	dir2, err := s.ensureChapterDir("V1C5")
	require.NoError(t, err)
	assert.Equal(t, dir, dir2)
}

func TestStoreMemoryPackRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pack := model.MemoryPack{Chapter: "C1", Source: "test"}
	require.NoError(t, s.SaveMemoryPack(ctx, pack))
	require.NoError(t, s.SaveMemoryPack(ctx, pack)) // exercises rotation on 2nd write

	got, err := s.LoadMemoryPack("C1")
	require.NoError(t, err)
	assert.Equal(t, "test", got.Source)
}

func TestStoreBindingRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := model.ChapterBinding{Chapter: "C2", Characters: []string{"Alice"}}
	require.NoError(t, s.SaveBinding(ctx, b))

	got, err := s.LoadBinding("c2")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, got.Characters)
}

func TestStoreRejectsPathEscape(t *testing.T) {
	_, err := New(Config{DataDir: t.TempDir(), ProjectID: "../../evil"})
	require.NoError(t, err) // sanitize strips ".." before resolution, so this is fine

	var verr *ValidationError
	_, err = New(Config{DataDir: t.TempDir(), ProjectID: ""})
	assert.ErrorAs(t, err, &verr)
}
