package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jackzampolin/wenshape/internal/analysis"
	"github.com/jackzampolin/wenshape/internal/model"
	"github.com/jackzampolin/wenshape/internal/providers"
	"github.com/jackzampolin/wenshape/internal/session"
)

// fakeLLM is a deterministic stand-in for a real provider: unlike
// providers.MockClient (whose Name() always reports "mock" and therefore
// always trips agents' rule-based fallback path), fakeLLM reports a
// distinct name so tests can exercise the LLM-call path and schema
// validation.
type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Chat(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &providers.ChatResult{Content: f.response, Success: true}, nil
}

func (f *fakeLLM) ChatWithTools(ctx context.Context, req *providers.ChatRequest, tools []providers.Tool) (*providers.ChatResult, error) {
	return f.Chat(ctx, req)
}

func TestArchivistGenerateBriefUsesLLMAndValidatesSchema(t *testing.T) {
	llm := &fakeLLM{response: `{"title":"Ashes at Dawn","goal":"confront the general","characters":[{"name":"Lin Feng","relevant_traits":["stoic"]}],"needs_user_input":false}`}
	a := NewArchivist(Config{LLM: llm})

	result, err := a.GenerateBrief(context.Background(), session.BriefRequest{Chapter: "V1C1", GoalHint: "confront the general"})
	require.NoError(t, err)
	require.False(t, result.NeedsUserInput)
	require.Equal(t, "Ashes at Dawn", result.Brief.Title)
	require.Equal(t, "V1C1", result.Brief.Chapter)
	require.Len(t, result.Brief.Characters, 1)
	require.Equal(t, "Lin Feng", result.Brief.Characters[0].Name)
}

func TestArchivistGenerateBriefFallsBackToMockWhenNoLLMConfigured(t *testing.T) {
	a := NewArchivist(Config{LLM: providers.NewMockClient()})

	result, err := a.GenerateBrief(context.Background(), session.BriefRequest{Chapter: "V1C2", GoalHint: "reach the harbor"})
	require.NoError(t, err)
	require.False(t, result.NeedsUserInput)
	require.Equal(t, "reach the harbor", result.Brief.Goal)
	require.Equal(t, "V1C2", result.Brief.Chapter)
}

func TestArchivistGenerateBriefRejectsMalformedSchema(t *testing.T) {
	llm := &fakeLLM{response: `{"title":"missing goal field"}`}
	a := NewArchivist(Config{LLM: llm})

	_, err := a.GenerateBrief(context.Background(), session.BriefRequest{Chapter: "V1C1"})
	require.Error(t, err)
}

func TestArchivistDetectProposalsReturnsCharacterProposalsUnfiltered(t *testing.T) {
	llm := &fakeLLM{response: `{"proposals":[{"type":"character","name":"Mei"},{"type":"world","name":"Jade Gate"}]}`}
	a := NewArchivist(Config{LLM: llm})

	proposals, err := a.DetectProposals(context.Background(), "V1C1", "Mei stood before the Jade Gate.")
	require.NoError(t, err)
	require.Len(t, proposals, 2)
	require.Equal(t, "character", proposals[0].Type)
	require.Equal(t, "V1C1", proposals[0].SourceChapter)
}

func TestArchivistDetectProposalsReturnsNilOnMock(t *testing.T) {
	a := NewArchivist(Config{LLM: providers.NewMockClient()})

	proposals, err := a.DetectProposals(context.Background(), "V1C1", "some content")
	require.NoError(t, err)
	require.Nil(t, proposals)
}

func TestArchivistGenerateChapterSummaryParsesResponse(t *testing.T) {
	llm := &fakeLLM{response: `{"brief_summary":"Lin Feng crosses the river.","key_events":["crossed the river"],"open_loops":["who is waiting on the far bank"]}`}
	a := NewArchivist(Config{LLM: llm})

	summary, err := a.GenerateChapterSummary(context.Background(), "V1C1", "draft content")
	require.NoError(t, err)
	require.Equal(t, "V1C1", summary.Chapter)
	require.Equal(t, "Lin Feng crosses the river.", summary.BriefSummary)
	require.Len(t, summary.KeyEvents, 1)
}

func TestArchivistGenerateChapterSummaryErrorsOnMock(t *testing.T) {
	a := NewArchivist(Config{LLM: providers.NewMockClient()})

	_, err := a.GenerateChapterSummary(context.Background(), "V1C1", "draft content")
	require.Error(t, err)
}

func TestArchivistGenerateVolumeSummaryParsesResponse(t *testing.T) {
	llm := &fakeLLM{response: `{"brief_summary":"The war begins.","key_events":["mobilization","first battle"]}`}
	a := NewArchivist(Config{LLM: llm})

	summary, err := a.GenerateVolumeSummary(context.Background(), "V1", []model.ChapterSummary{{Chapter: "V1C1", BriefSummary: "intro"}})
	require.NoError(t, err)
	require.Equal(t, "V1", summary.VolumeID)
	require.Equal(t, "The war begins.", summary.BriefSummary)
	require.Len(t, summary.MajorEvents, 2)
}

func TestArchivistExtractCanonDelegatesToExtractor(t *testing.T) {
	llm := &fakeLLM{response: `{"facts":[{"statement":"Lin Feng lost his sword"}],"focus_names":["Lin Feng"]}`}
	a := NewArchivist(Config{LLM: llm})

	extraction, err := a.ExtractCanon(context.Background(), "V1C1", "draft content")
	require.NoError(t, err)
	require.Len(t, extraction.Facts, 1)
	require.Equal(t, []string{"Lin Feng"}, extraction.FocusNames)
}

func TestExtractorReturnsEmptyExtractionOnMock(t *testing.T) {
	e := NewExtractor(Config{LLM: providers.NewMockClient()})

	extraction, err := e.Extract(context.Background(), "V1C1", "draft content")
	require.NoError(t, err)
	require.Equal(t, analysis.CanonExtraction{}, extraction)
}

func TestExtractorStampsSourceChapterOnProposals(t *testing.T) {
	llm := &fakeLLM{response: `{"proposals":[{"type":"world","name":"Jade Gate","description":"a border crossing"}]}`}
	e := NewExtractor(Config{LLM: llm})

	extraction, err := e.Extract(context.Background(), "V2C3", "draft content")
	require.NoError(t, err)
	require.Len(t, extraction.Proposals, 1)
	require.Equal(t, "V2C3", extraction.Proposals[0].SourceChapter)
}

func TestWriterWriteDraftUsesLLM(t *testing.T) {
	llm := &fakeLLM{response: "Lin Feng crossed the river at dawn."}
	w := NewWriter(Config{LLM: llm})

	result, err := w.WriteDraft(context.Background(), session.DraftRequest{
		Chapter: "V1C1",
		Brief:   model.SceneBrief{Title: "Crossing", Goal: "cross the river"},
	})
	require.NoError(t, err)
	require.Equal(t, "Lin Feng crossed the river at dawn.", result.Content)
}

func TestWriterWriteDraftFallsBackToMock(t *testing.T) {
	w := NewWriter(Config{LLM: providers.NewMockClient()})

	result, err := w.WriteDraft(context.Background(), session.DraftRequest{
		Chapter: "V1C1",
		Brief:   model.SceneBrief{Title: "Crossing", Goal: "cross the river"},
	})
	require.NoError(t, err)
	require.Contains(t, result.Content, "cross the river")
}

func TestWriterStreamDraftEmitsChunksCoveringFullContent(t *testing.T) {
	llm := &fakeLLM{response: "a rather long sentence describing the crossing of the river at dawn"}
	w := NewWriter(Config{LLM: llm})
	w.chunkRunes = 10

	var chunks []string
	result, err := w.StreamDraft(context.Background(), session.DraftRequest{Brief: model.SceneBrief{Goal: "cross"}}, func(chunk string) {
		chunks = append(chunks, chunk)
	})
	require.NoError(t, err)
	require.True(t, len(chunks) > 1)

	var rebuilt string
	for _, c := range chunks {
		rebuilt += c
	}
	require.Equal(t, result.Content, rebuilt)
}

func TestWriterStreamDraftStopsOnCancelledContext(t *testing.T) {
	llm := &fakeLLM{response: "a fairly long draft that would take several chunks to stream out fully"}
	w := NewWriter(Config{LLM: llm})
	w.chunkRunes = 5

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := w.StreamDraft(ctx, session.DraftRequest{Brief: model.SceneBrief{Goal: "go"}}, func(chunk string) {
		calls++
	})
	require.Error(t, err)
	require.Equal(t, 0, calls)
}

func TestEditorReviseUsesLLM(t *testing.T) {
	llm := &fakeLLM{response: "Lin Feng crossed the river, sword drawn."}
	e := NewEditor(Config{LLM: llm})

	revised, err := e.Revise(context.Background(), session.ReviseRequest{Chapter: "V1C1", Content: "Lin Feng crossed the river.", UserFeedback: "add that his sword is drawn"})
	require.NoError(t, err)
	require.Equal(t, "Lin Feng crossed the river, sword drawn.", revised)
}

func TestEditorSuggestRevisionDoesNotPersistButReturnsSameShape(t *testing.T) {
	llm := &fakeLLM{response: "a suggested rewrite"}
	e := NewEditor(Config{LLM: llm})

	suggestion, err := e.SuggestRevision(context.Background(), session.ReviseRequest{Chapter: "V1C1", Content: "original"})
	require.NoError(t, err)
	require.Equal(t, "a suggested rewrite", suggestion)
}

func TestEditorReviseFallsBackToMockAppendingFeedback(t *testing.T) {
	e := NewEditor(Config{LLM: providers.NewMockClient()})

	revised, err := e.Revise(context.Background(), session.ReviseRequest{Content: "Original draft.", UserFeedback: "make it darker"})
	require.NoError(t, err)
	require.Contains(t, revised, "Original draft.")
	require.Contains(t, revised, "make it darker")
}

func TestEditorReviseWithRejectedEntitiesStillCallsLLM(t *testing.T) {
	llm := &fakeLLM{response: "revised without the rejected character"}
	e := NewEditor(Config{LLM: llm})

	revised, err := e.Revise(context.Background(), session.ReviseRequest{
		Content:          "Original draft mentioning someone.",
		RejectedEntities: []string{"Someone"},
	})
	require.NoError(t, err)
	require.Equal(t, "revised without the rejected character", revised)
}

func TestChunkRunesCoversCJKAndASCII(t *testing.T) {
	chunks := chunkRunes("林峰crossed the river", 3)
	var rebuilt []rune
	for _, c := range chunks {
		rebuilt = append(rebuilt, []rune(c)...)
	}
	require.Equal(t, "林峰crossed the river", string(rebuilt))
}

func TestExtractJSONObjectStripsFencesAndProse(t *testing.T) {
	raw := "Sure, here you go:\n```json\n{\"a\":1}\n```"
	require.Equal(t, `{"a":1}`, extractJSONObject(raw))
}

func TestBaseIsMockDetectsNilAndMockClient(t *testing.T) {
	b := newBase(KindWriter, Config{})
	require.True(t, b.isMock())

	b2 := newBase(KindWriter, Config{LLM: providers.NewMockClient()})
	require.True(t, b2.isMock())

	b3 := newBase(KindWriter, Config{LLM: &fakeLLM{}})
	require.False(t, b3.isMock())
}

func TestBaseTruncateBoundsRuneLength(t *testing.T) {
	b := newBase(KindArchivist, Config{MaxChars: 5})
	require.Equal(t, "hello", b.truncate("hello"))
	require.Equal(t, "hello...", b.truncate("hello world"))
}
