package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackzampolin/wenshape/internal/apperr"
	"github.com/jackzampolin/wenshape/internal/memorypack"
	"github.com/jackzampolin/wenshape/internal/model"
	"github.com/jackzampolin/wenshape/internal/storage"
	"github.com/stretchr/testify/require"
)

type fakeArchivist struct {
	brief          model.SceneBrief
	questions      []string
	needsUserInput bool
	proposals      []model.CardProposal
	err            error
}

func (f *fakeArchivist) GenerateBrief(ctx context.Context, req BriefRequest) (BriefResult, error) {
	if f.err != nil {
		return BriefResult{}, f.err
	}
	b := f.brief
	b.Chapter = req.Chapter
	return BriefResult{Brief: b, Questions: f.questions, NeedsUserInput: f.needsUserInput}, nil
}

func (f *fakeArchivist) DetectProposals(ctx context.Context, chapter, content string) ([]model.CardProposal, error) {
	return f.proposals, nil
}

type fakeWriter struct {
	content       string
	confirmations []string
	err           error
	tokens        []string
}

func (f *fakeWriter) StreamDraft(ctx context.Context, req DraftRequest, onToken TokenFunc) (DraftResult, error) {
	if f.err != nil {
		return DraftResult{}, f.err
	}
	for _, t := range f.tokens {
		onToken(t)
	}
	return DraftResult{Content: f.content, Confirmations: f.confirmations}, nil
}

func (f *fakeWriter) WriteDraft(ctx context.Context, req DraftRequest) (DraftResult, error) {
	if f.err != nil {
		return DraftResult{}, f.err
	}
	return DraftResult{Content: f.content, Confirmations: f.confirmations}, nil
}

type fakeEditor struct {
	revised string
	err     error
}

func (f *fakeEditor) Revise(ctx context.Context, req ReviseRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.revised, nil
}

func (f *fakeEditor) SuggestRevision(ctx context.Context, req ReviseRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.revised, nil
}

type fakeAnalyzer struct {
	called bool
	err    error
}

func (f *fakeAnalyzer) AnalyzeChapter(ctx context.Context, chapter string) error {
	f.called = true
	return f.err
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.New(storage.Config{DataDir: t.TempDir(), ProjectID: "p1"})
	require.NoError(t, err)
	require.NoError(t, store.EnsureLayout())
	return store
}

func noopResearch(ctx context.Context, chapter, goalText string, brief model.SceneBrief, force bool) (model.MemoryPackPayload, error) {
	return model.MemoryPackPayload{WorkingMemory: "memory for " + chapter}, nil
}

func collectEvents() (ProgressFunc, func() []model.ProgressEvent) {
	var events []model.ProgressEvent
	return func(e model.ProgressEvent) { events = append(events, e) }, func() []model.ProgressEvent { return events }
}

func TestStartMovesThroughBriefToWaitingFeedback(t *testing.T) {
	store := newTestStore(t)
	packs := memorypack.New(store, noopResearch, nil, nil)
	progress, events := collectEvents()

	o := New(store, packs, &fakeArchivist{brief: model.SceneBrief{Goal: "g"}}, &fakeWriter{content: "hello world", tokens: []string{"hel", "lo world"}}, &fakeEditor{}, nil, progress, nil, Config{})

	o.Start("p1", "V1C1", "write the confrontation")
	o.Wait()

	require.Equal(t, model.StatusWaitingFeedback, o.State().Status)

	content, err := store.LoadLatestDraft("V1C1")
	require.NoError(t, err)
	require.Equal(t, "hello world", content)

	var sawTokens, sawStreamEnd bool
	for _, e := range events() {
		if e.Type == "token" {
			sawTokens = true
		}
		if e.Type == "stream_end" {
			sawStreamEnd = true
		}
	}
	require.True(t, sawTokens)
	require.True(t, sawStreamEnd)
}

func TestStartWithQuestionsWaitsForUserInput(t *testing.T) {
	store := newTestStore(t)
	research := func(ctx context.Context, chapter, goalText string, brief model.SceneBrief, force bool) (model.MemoryPackPayload, error) {
		return model.MemoryPackPayload{
			Questions:          []string{"who else is present?"},
			ResearchStopReason: "max_rounds",
		}, nil
	}
	packs := memorypack.New(store, research, nil, nil)

	o := New(store, packs, &fakeArchivist{needsUserInput: true}, &fakeWriter{content: "draft"}, &fakeEditor{}, nil, nil, nil, Config{})
	o.Start("p1", "V1C1", "goal")
	o.Wait()

	require.Equal(t, model.StatusWaitingUserInput, o.State().Status)
	require.Equal(t, 1, o.State().QuestionRound)

	require.NoError(t, o.AnswerQuestions([]string{"Alice and Bob"}))
	o.Wait()

	require.Equal(t, model.StatusWaitingFeedback, o.State().Status)
}

func TestProcessFeedbackConfirmFinalizes(t *testing.T) {
	store := newTestStore(t)
	packs := memorypack.New(store, noopResearch, nil, nil)
	analyzer := &fakeAnalyzer{}

	o := New(store, packs, &fakeArchivist{}, &fakeWriter{content: "hello world"}, &fakeEditor{}, analyzer, nil, nil, Config{})
	o.Start("p1", "V1C1", "goal")
	o.Wait()
	require.Equal(t, model.StatusWaitingFeedback, o.State().Status)

	require.NoError(t, o.ProcessFeedback(context.Background(), "confirm", "", nil))
	require.Equal(t, model.StatusCompleted, o.State().Status)
	require.True(t, analyzer.called)
}

func TestProcessFeedbackRewritesShortDrafts(t *testing.T) {
	store := newTestStore(t)
	packs := memorypack.New(store, noopResearch, nil, nil)

	o := New(store, packs, &fakeArchivist{}, &fakeWriter{content: "short draft"}, &fakeEditor{}, nil, nil, nil, Config{})
	o.Start("p1", "V1C1", "goal")
	o.Wait()

	require.NoError(t, o.ProcessFeedback(context.Background(), "revise", "make it longer", nil))
	require.Equal(t, model.StatusWaitingFeedback, o.State().Status)

	content, err := store.LoadLatestDraft("V1C1")
	require.NoError(t, err)
	require.Equal(t, "short draft", content)
}

func TestProcessFeedbackRevisesLongDraftsAndIncrementsVersion(t *testing.T) {
	store := newTestStore(t)
	packs := memorypack.New(store, noopResearch, nil, nil)

	longDraft := ""
	for i := 0; i < 600; i++ {
		longDraft += "x"
	}
	o := New(store, packs, &fakeArchivist{}, &fakeWriter{content: longDraft}, &fakeEditor{revised: longDraft + " revised"}, nil, nil, nil, Config{})
	o.Start("p1", "V1C1", "goal")
	o.Wait()

	require.NoError(t, o.ProcessFeedback(context.Background(), "revise", "tighten pacing", []string{"ghost"}))
	require.Equal(t, model.StatusWaitingFeedback, o.State().Status)

	path, err := store.LatestDraftPath("V1C1")
	require.NoError(t, err)
	require.Contains(t, path, "draft_v2.md")
}

func TestProcessFeedbackMaxIterationsErrors(t *testing.T) {
	store := newTestStore(t)
	packs := memorypack.New(store, noopResearch, nil, nil)

	longDraft := ""
	for i := 0; i < 600; i++ {
		longDraft += "x"
	}
	o := New(store, packs, &fakeArchivist{}, &fakeWriter{content: longDraft}, &fakeEditor{revised: longDraft}, nil, nil, nil, Config{MaxIterations: 1})
	o.Start("p1", "V1C1", "goal")
	o.Wait()

	require.NoError(t, o.ProcessFeedback(context.Background(), "revise", "tighten", nil))
	err := o.ProcessFeedback(context.Background(), "revise", "tighten again", nil)
	require.Error(t, err)
	var agentErr *apperr.AgentError
	require.ErrorAs(t, err, &agentErr)
	require.Equal(t, apperr.AgentErrMaxIterations, agentErr.Kind)
	require.Equal(t, model.StatusError, o.State().Status)
}

func TestCancelResetsToIdleWithoutRollback(t *testing.T) {
	store := newTestStore(t)
	packs := memorypack.New(store, noopResearch, nil, nil)

	o := New(store, packs, &fakeArchivist{}, &fakeWriter{content: "hello"}, &fakeEditor{}, nil, nil, nil, Config{})
	o.Start("p1", "V1C1", "goal")
	o.Wait()
	require.Equal(t, model.StatusWaitingFeedback, o.State().Status)

	o.Cancel()
	require.Equal(t, model.StatusIdle, o.State().Status)

	content, err := store.LoadLatestDraft("V1C1")
	require.NoError(t, err)
	require.Equal(t, "hello", content)
}

func TestSuggestEditDoesNotPersist(t *testing.T) {
	store := newTestStore(t)
	packs := memorypack.New(store, noopResearch, nil, nil)

	o := New(store, packs, &fakeArchivist{}, &fakeWriter{content: "hello"}, &fakeEditor{revised: "revised text here"}, nil, nil, nil, Config{})
	o.Start("p1", "V1C1", "goal")
	o.Wait()

	revised, words, err := o.SuggestEdit(context.Background(), "original text", "polish it", "quick", nil)
	require.NoError(t, err)
	require.Equal(t, "revised text here", revised)
	require.Equal(t, 3, words)

	path, err := store.LatestDraftPath("V1C1")
	require.NoError(t, err)
	require.Contains(t, path, "draft_v1.md") // unchanged: suggest_edit never persists
}

func TestIncrementVersion(t *testing.T) {
	require.Equal(t, "v2", incrementVersion("v1"))
	require.Equal(t, "v11", incrementVersion("v10"))
	require.Equal(t, "v2", incrementVersion("garbage"))
}

func TestGenerateBriefFailureSetsErrorStatus(t *testing.T) {
	store := newTestStore(t)
	packs := memorypack.New(store, noopResearch, nil, nil)
	progress, events := collectEvents()

	o := New(store, packs, &fakeArchivist{err: errors.New("boom")}, &fakeWriter{}, &fakeEditor{}, nil, progress, nil, Config{})
	o.Start("p1", "V1C1", "goal")
	o.Wait()

	require.Equal(t, model.StatusError, o.State().Status)
	var sawErr bool
	for _, e := range events() {
		if e.Type == "error" {
			sawErr = true
		}
	}
	require.True(t, sawErr)
}

func TestWaitTimesOutNeverHangs(t *testing.T) {
	done := make(chan struct{})
	store := newTestStore(t)
	packs := memorypack.New(store, noopResearch, nil, nil)
	o := New(store, packs, &fakeArchivist{}, &fakeWriter{content: "hello"}, &fakeEditor{}, nil, nil, nil, Config{})

	go func() {
		o.Start("p1", "V1C1", "goal")
		o.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session never reached waiting_feedback")
	}
}
