package evidence

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackzampolin/wenshape/internal/config"
	"github.com/jackzampolin/wenshape/internal/model"
	"github.com/jackzampolin/wenshape/internal/storage"
	"github.com/jackzampolin/wenshape/internal/textchunk"
	"github.com/stretchr/testify/require"
)

func newTestIndexer(t *testing.T) (*storage.Store, *Indexer) {
	t.Helper()
	store, err := storage.New(storage.Config{DataDir: t.TempDir(), ProjectID: "p1"})
	require.NoError(t, err)
	require.NoError(t, store.EnsureLayout())
	chunks := textchunk.NewIndexer(store, textchunk.DefaultConfig(), nil)
	return store, New(store, chunks, nil)
}

// spec.md §8 scenario 5: BM25 correctness.
func TestSearchBM25Ranking(t *testing.T) {
	store, ix := newTestIndexer(t)
	ctx := context.Background()

	require.NoError(t, store.AppendFact(ctx, model.Fact{ID: "F0001", Statement: "Alice is a knight", Source: "V1C1", IntroducedIn: "V1C1", Confidence: 1}))
	require.NoError(t, store.AppendFact(ctx, model.Fact{ID: "F0002", Statement: "Alice wears silver armor", Source: "V1C1", IntroducedIn: "V1C1", Confidence: 1}))
	require.NoError(t, store.AppendFact(ctx, model.Fact{ID: "F0003", Statement: "Bob runs a tavern", Source: "V1C1", IntroducedIn: "V1C1", Confidence: 1}))

	_, err := ix.BuildFacts(ctx, false)
	require.NoError(t, err)

	res, err := ix.Search(ctx, SearchRequest{Queries: []string{"Alice armor"}, Types: []model.EvidenceType{model.EvidenceFact}, Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	require.Contains(t, res.Items[0].Text, "armor")
}

// spec.md §8 scenario 6: quota enforcement.
func TestSearchQuotaEnforcement(t *testing.T) {
	store, ix := newTestIndexer(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, store.AppendFact(ctx, model.Fact{
			ID: factID(i), Statement: fmt.Sprintf("A knight named Alice trains every morning, day %d", i), Source: "V1C1", IntroducedIn: "V1C1", Confidence: 1,
		}))
	}
	sum := model.ChapterSummary{Chapter: "V1C1", BriefSummary: "Alice trains as a knight"}
	require.NoError(t, store.SaveChapterSummary(ctx, sum))
	for i := 1; i <= 10; i++ {
		sum2 := model.ChapterSummary{Chapter: chapterN(i), BriefSummary: "Alice trains as a knight in the morning"}
		require.NoError(t, store.SaveChapterSummary(ctx, sum2))
	}

	_, err := ix.BuildAll(ctx, true)
	require.NoError(t, err)

	quotas := map[string]config.Quota{
		"fact":       {Min: 3, Max: 8},
		"summary":    {Min: 1, Max: 6},
		"world_rule": {Min: 2, Max: 6},
	}
	res, err := ix.Search(ctx, SearchRequest{Queries: []string{"Alice knight morning"}, Limit: 10, Quotas: quotas})
	require.NoError(t, err)
	require.Len(t, res.Items, 10)
	require.GreaterOrEqual(t, res.Stats.Types["fact"], 3)
	require.LessOrEqual(t, res.Stats.Types["fact"], 8)
	require.Equal(t, 0, res.Stats.Types["world_rule"])
}

func factID(i int) string {
	return fmt.Sprintf("F%04d", i)
}

func chapterN(i int) string {
	return fmt.Sprintf("V1C%d", i+1)
}
