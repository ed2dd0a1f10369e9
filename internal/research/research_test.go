package research

import (
	"context"
	"testing"

	"github.com/jackzampolin/wenshape/internal/binding"
	"github.com/jackzampolin/wenshape/internal/evidence"
	"github.com/jackzampolin/wenshape/internal/model"
	"github.com/jackzampolin/wenshape/internal/storage"
	"github.com/jackzampolin/wenshape/internal/textchunk"
	"github.com/stretchr/testify/require"
)

func newTestLoop(t *testing.T, offline bool, maxRounds int) (*storage.Store, *Loop) {
	t.Helper()
	store, err := storage.New(storage.Config{DataDir: t.TempDir(), ProjectID: "p1"})
	require.NoError(t, err)
	require.NoError(t, store.EnsureLayout())

	chunks := textchunk.NewIndexer(store, textchunk.DefaultConfig(), nil)
	idx := evidence.New(store, chunks, nil)
	bindingSvc := binding.New(store, idx, nil)
	wm := NewWorkingMemoryService(store, idx, bindingSvc, nil)
	planner := NewLLMPlanner(nil)
	loop := NewLoop(wm, planner, maxRounds, offline, nil)
	return store, loop
}

func TestLoopStopsSufficientWithEnoughEvidence(t *testing.T) {
	store, loop := newTestLoop(t, true, DefaultMaxRounds)
	ctx := context.Background()

	require.NoError(t, store.AppendFact(ctx, model.Fact{ID: "F0001", Statement: "Alice is a knight", Source: "V1C1", IntroducedIn: "V1C1", Confidence: 1}))
	require.NoError(t, store.AppendFact(ctx, model.Fact{ID: "F0002", Statement: "Alice trains every morning", Source: "V1C1", IntroducedIn: "V1C1", Confidence: 1}))
	require.NoError(t, store.AppendFact(ctx, model.Fact{ID: "F0003", Statement: "Alice wears silver armor", Source: "V1C1", IntroducedIn: "V1C1", Confidence: 1}))
	require.NoError(t, store.SaveChapterSummary(ctx, model.ChapterSummary{Chapter: "V1C1", BriefSummary: "Alice trains as a knight"}))

	payload, err := loop.Run(ctx, "Alice trains as a knight", model.SceneBrief{}, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, payload.ResearchTrace)
	require.Equal(t, "sufficient", payload.ResearchStopReason)
}

func TestLoopTerminatesAtMaxRoundsWithoutSufficiency(t *testing.T) {
	_, loop := newTestLoop(t, false, 2)
	ctx := context.Background()

	payload, err := loop.Run(ctx, "an empty project with no facts at all", model.SceneBrief{}, nil, nil)
	require.NoError(t, err)
	require.LessOrEqual(t, len(payload.ResearchTrace), 2)
	require.Contains(t, []string{"max_rounds", "no_queries", "offline_stop"}, payload.ResearchStopReason)
}

func TestLoopAlwaysTerminatesWithinMaxRounds(t *testing.T) {
	// Regression guard for the termination guarantee: the loop must never
	// run more rounds than MaxRounds regardless of planner behavior.
	for _, offline := range []bool{true, false} {
		_, loop := newTestLoop(t, offline, 3)
		payload, err := loop.Run(context.Background(), "goal text", model.SceneBrief{}, nil, nil)
		require.NoError(t, err)
		require.LessOrEqual(t, len(payload.ResearchTrace), 3)
	}
}

func TestLoopOfflineModeStopsOffline(t *testing.T) {
	_, loop := newTestLoop(t, true, DefaultMaxRounds)
	payload, err := loop.Run(context.Background(), "unresolved goal with no matching evidence", model.SceneBrief{}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "offline_stop", payload.ResearchStopReason)
}
