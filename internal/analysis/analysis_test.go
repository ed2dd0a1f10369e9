package analysis

import (
	"context"
	"testing"

	"github.com/jackzampolin/wenshape/internal/model"
	"github.com/jackzampolin/wenshape/internal/storage"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.New(storage.Config{DataDir: t.TempDir(), ProjectID: "p1"})
	require.NoError(t, err)
	require.NoError(t, store.EnsureLayout())
	return store
}

type fakeArchivist struct {
	summary    model.ChapterSummary
	volSummary model.VolumeSummary
	extraction CanonExtraction
	summaryErr error
	volErr     error
	extractErr error
}

func (f *fakeArchivist) GenerateChapterSummary(ctx context.Context, chapter, draftContent string) (model.ChapterSummary, error) {
	if f.summaryErr != nil {
		return model.ChapterSummary{}, f.summaryErr
	}
	s := f.summary
	s.Chapter = chapter
	return s, nil
}

func (f *fakeArchivist) GenerateVolumeSummary(ctx context.Context, volumeID string, chapters []model.ChapterSummary) (model.VolumeSummary, error) {
	if f.volErr != nil {
		return model.VolumeSummary{}, f.volErr
	}
	return f.volSummary, nil
}

func (f *fakeArchivist) ExtractCanon(ctx context.Context, chapter, draftContent string) (CanonExtraction, error) {
	if f.extractErr != nil {
		return CanonExtraction{}, f.extractErr
	}
	return f.extraction, nil
}

func newPipeline(store *storage.Store, archivist Archivist) *Pipeline {
	return New(store, nil, archivist, nil, nil)
}

func TestGenerateSummaryFallsBackToHeuristicOnArchivistError(t *testing.T) {
	store := newTestStore(t)
	p := newPipeline(store, &fakeArchivist{summaryErr: require.AnError})

	sum := p.generateSummary(context.Background(), "V1C1", "some draft content here")
	require.Equal(t, "V1C1", sum.Chapter)
	require.Equal(t, "V1", sum.VolumeID)
	require.Contains(t, sum.BriefSummary, "some draft content")
}

func TestGenerateSummaryUsesArchivistWhenAvailable(t *testing.T) {
	store := newTestStore(t)
	p := newPipeline(store, &fakeArchivist{summary: model.ChapterSummary{BriefSummary: "an archivist summary", KeyEvents: []string{"e1"}}})

	sum := p.generateSummary(context.Background(), "V1C1", "draft text")
	require.Equal(t, "an archivist summary", sum.BriefSummary)
	require.Equal(t, []string{"e1"}, sum.KeyEvents)
	require.Equal(t, "V1", sum.VolumeID)
}

func TestPersistCanonAssignsSequentialFactIDs(t *testing.T) {
	store := newTestStore(t)
	p := newPipeline(store, nil)

	facts := make([]model.Fact, 0, 7)
	for i := 0; i < 7; i++ {
		facts = append(facts, model.Fact{Statement: "fact statement"})
	}
	capped := CanonExtraction{Facts: facts}
	if len(capped.Facts) > maxFactsPerChapter {
		capped.Facts = capped.Facts[:maxFactsPerChapter]
	}
	require.Len(t, capped.Facts, maxFactsPerChapter)

	require.NoError(t, p.persistCanon(context.Background(), "V1C1", capped))
	saved, err := store.LoadFacts()
	require.NoError(t, err)
	require.Len(t, saved, maxFactsPerChapter)
	require.Equal(t, "F0001", saved[0].ID)
	require.Equal(t, "F0005", saved[4].ID)
	for _, f := range saved {
		require.Equal(t, "V1C1", f.Source)
		require.Equal(t, "V1C1", f.IntroducedIn)
	}
}

func TestExtractCanonCapsFactsAt5(t *testing.T) {
	store := newTestStore(t)
	facts := make([]model.Fact, 0, 8)
	for i := 0; i < 8; i++ {
		facts = append(facts, model.Fact{Statement: "s"})
	}
	p := newPipeline(store, &fakeArchivist{extraction: CanonExtraction{Facts: facts}})

	extraction := p.extractCanon(context.Background(), "V1C1", "text")
	require.Len(t, extraction.Facts, maxFactsPerChapter)
}

func TestDetectFactConflictsRequiresOverlapAndNegationDisagreement(t *testing.T) {
	existing := []model.Fact{{ID: "F0001", Statement: "Lin Feng 没有 left the village before the war started"}}
	newFacts := []model.Fact{{ID: "F0002", Statement: "Lin Feng did leave the village before the war started"}}

	conflicts := detectFactConflicts("V1C2", newFacts, existing)
	require.Len(t, conflicts, 1)
	require.Equal(t, model.ConflictFact, conflicts[0].Kind)
}

func TestDetectFactConflictsSkipsWhenNoNegationDisagreement(t *testing.T) {
	existing := []model.Fact{{ID: "F0001", Statement: "Lin Feng left the village before the war started"}}
	newFacts := []model.Fact{{ID: "F0002", Statement: "Lin Feng left the village before the war started again"}}

	conflicts := detectFactConflicts("V1C2", newFacts, existing)
	require.Empty(t, conflicts)
}

func TestDetectTimelineConflictsRequiresSameTimeOverlappingParticipantsDifferentEvent(t *testing.T) {
	existing := []model.TimelineEvent{{Time: "day 3", Event: "ambush at the bridge", Location: "east bridge", Participants: []string{"Lin Feng", "Mei"}, Source: "V1C1"}}
	newEvents := []model.TimelineEvent{{Time: "Day 3", Event: "feast at the palace", Location: "palace", Participants: []string{"mei"}}}

	conflicts := detectTimelineConflicts("V1C2", newEvents, existing)
	require.Len(t, conflicts, 1)
	require.Equal(t, model.ConflictTimeline, conflicts[0].Kind)
}

func TestDetectTimelineConflictsSkipsWithoutParticipantOverlap(t *testing.T) {
	existing := []model.TimelineEvent{{Time: "day 3", Event: "ambush", Location: "bridge", Participants: []string{"Lin Feng"}}}
	newEvents := []model.TimelineEvent{{Time: "day 3", Event: "feast", Location: "palace", Participants: []string{"Wei"}}}

	conflicts := detectTimelineConflicts("V1C2", newEvents, existing)
	require.Empty(t, conflicts)
}

func TestDetectStateConflictsFlagsCloseImplausibleJumps(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.AppendCharacterState(context.Background(), model.CharacterState{Character: "Lin Feng", Location: "the capital", LastSeen: "V1C1"}))

	p := newPipeline(store, nil)
	conflicts, err := p.detectStateConflicts("V1C2", []model.CharacterState{{Character: "Lin Feng", Location: "the northern border"}})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.Equal(t, model.ConflictState, conflicts[0].Kind)
}

func TestDetectStateConflictsIgnoresDistantChapters(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.AppendCharacterState(context.Background(), model.CharacterState{Character: "Lin Feng", Location: "the capital", LastSeen: "V1C1"}))

	p := newPipeline(store, nil)
	conflicts, err := p.detectStateConflicts("V1C40", []model.CharacterState{{Character: "Lin Feng", Location: "the northern border"}})
	require.NoError(t, err)
	require.Empty(t, conflicts)
}

func TestApplyProposalsSkipsExistingCardsWithoutOverwrite(t *testing.T) {
	store := newTestStore(t)
	p := newPipeline(store, nil)
	require.NoError(t, store.SaveCharacterCard(context.Background(), model.CharacterCard{Name: "Mei", Description: "original"}))

	proposals := []model.CardProposal{{Type: "character", Name: "Mei", Description: "overwritten"}, {Type: "world", Name: "Jade Peak", Description: "a mountain"}}
	require.NoError(t, p.applyProposals(context.Background(), proposals, false))

	card, err := store.LoadCharacterCard("Mei")
	require.NoError(t, err)
	require.Equal(t, "original", card.Description)

	world, err := store.LoadWorldCard("Jade Peak")
	require.NoError(t, err)
	require.Equal(t, "a mountain", world.Description)
}

func TestApplyProposalsOverwritesWhenRequested(t *testing.T) {
	store := newTestStore(t)
	p := newPipeline(store, nil)
	require.NoError(t, store.SaveCharacterCard(context.Background(), model.CharacterCard{Name: "Mei", Description: "original"}))

	proposals := []model.CardProposal{{Type: "character", Name: "Mei", Description: "overwritten"}}
	require.NoError(t, p.applyProposals(context.Background(), proposals, true))

	card, err := store.LoadCharacterCard("Mei")
	require.NoError(t, err)
	require.Equal(t, "overwritten", card.Description)
}

func TestAnalyzeChapterRunsFullPipeline(t *testing.T) {
	store := newTestStore(t)
	_, err := store.SaveDraft(context.Background(), "V1C1", "v1", "a short draft about Lin Feng arriving at the capital")
	require.NoError(t, err)

	var events []model.ProgressEvent
	p := New(store, nil, &fakeArchivist{
		summary:    model.ChapterSummary{BriefSummary: "Lin Feng arrives"},
		extraction: CanonExtraction{Facts: []model.Fact{{Statement: "Lin Feng arrived at the capital"}}},
	}, func(e model.ProgressEvent) { events = append(events, e) }, nil)

	require.NoError(t, p.AnalyzeChapter(context.Background(), "V1C1"))

	summary, err := store.LoadChapterSummary("V1C1")
	require.NoError(t, err)
	require.Equal(t, "Lin Feng arrives", summary.BriefSummary)

	facts, err := store.LoadFacts()
	require.NoError(t, err)
	require.Len(t, facts, 1)

	require.NotEmpty(t, events)
}

func TestBatchSyncOrdersChaptersAndRefreshesVolumesOnce(t *testing.T) {
	store := newTestStore(t)
	for _, ch := range []string{"V1C2", "V1C1", "V2C1"} {
		_, err := store.SaveDraft(context.Background(), ch, "v1", "draft content for "+ch)
		require.NoError(t, err)
	}

	var volumeRefreshes int
	p := New(store, nil, &fakeArchivist{summary: model.ChapterSummary{BriefSummary: "s"}}, func(e model.ProgressEvent) {
		if e.Stage == "volume_summary" {
			volumeRefreshes++
		}
	}, nil)

	report, err := p.BatchSync(context.Background(), []string{"V1C2", "V1C1", "V2C1"})
	require.NoError(t, err)
	require.Equal(t, []string{"V1C1", "V1C2", "V2C1"}, report.ChaptersAnalyzed)
	require.ElementsMatch(t, []string{"V1", "V2"}, report.VolumesRefreshed)
	require.Equal(t, 2, volumeRefreshes)
}

func TestMergeNamesDedupesAndPreservesExisting(t *testing.T) {
	merged := mergeNames([]string{"Mei"}, []string{"Mei", "Lin Feng", ""})
	require.Equal(t, []string{"Mei", "Lin Feng"}, merged)
}
