package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackzampolin/wenshape/internal/analysis"
	"github.com/jackzampolin/wenshape/internal/model"
	"github.com/jackzampolin/wenshape/internal/schema"
	"github.com/jackzampolin/wenshape/internal/session"
)

// Archivist satisfies session.Archivist and analysis.Archivist: it
// generates scene briefs, detects card proposals, summarizes chapters and
// volumes, and extracts canon, delegating the last of those to a composed
// Extractor (REDESIGN FLAGS' four-agent dispatch table keeps Extractor a
// distinct capability even though analysis.Archivist bundles it onto the
// same interface as summary generation).
type Archivist struct {
	base
	extractor *Extractor
}

var (
	_ session.Archivist  = (*Archivist)(nil)
	_ analysis.Archivist = (*Archivist)(nil)
)

// NewArchivist builds an Archivist and its composed Extractor from one LLM
// configuration.
func NewArchivist(cfg Config) *Archivist {
	return &Archivist{base: newBase(KindArchivist, cfg), extractor: NewExtractor(cfg)}
}

const archivistBriefSystemPrompt = `You are the archivist for a long-form serialized novel. Given a chapter's
goal, the prior scene's timeline context, and the research memory pack below, produce a scene brief as a JSON
object matching this shape: {"title","goal","characters":[{"name","relevant_traits"}],"world_constraints":
["..."],"style_reminder","forbidden":["..."],"questions":["..."],"needs_user_input":bool}. Set
needs_user_input true and populate questions only when the memory pack's sufficiency_report says more
information is required to proceed safely; otherwise leave questions empty.`

// GenerateBrief implements session.Archivist.
func (a *Archivist) GenerateBrief(ctx context.Context, req session.BriefRequest) (session.BriefResult, error) {
	if a.isMock() {
		return a.mockBrief(req), nil
	}

	user := fmt.Sprintf(
		"Chapter: %s\nGoal hint: %s\nQuestion round: %d\nPrior answers: %s\n",
		req.Chapter, req.GoalHint, req.QuestionRound, strings.Join(req.UserAnswers, "; "),
	)

	obj, err := a.chatJSON(ctx, archivistBriefSystemPrompt, user, schema.SceneBrief)
	if err != nil {
		return session.BriefResult{}, err
	}

	var parsed struct {
		Title            string                      `json:"title"`
		Goal             string                      `json:"goal"`
		Characters       []model.SceneBriefCharacter `json:"characters"`
		WorldConstraints []string                    `json:"world_constraints"`
		StyleReminder    string                      `json:"style_reminder"`
		Forbidden        []string                    `json:"forbidden"`
		Questions        []string                    `json:"questions"`
		NeedsUserInput   bool                        `json:"needs_user_input"`
	}
	if err := decodeInto(obj, &parsed); err != nil {
		return session.BriefResult{}, invalidOutput(a.base, err)
	}

	brief := model.SceneBrief{
		Chapter:          req.Chapter,
		Title:            parsed.Title,
		Goal:             parsed.Goal,
		Characters:       parsed.Characters,
		WorldConstraints: parsed.WorldConstraints,
		StyleReminder:    parsed.StyleReminder,
		Forbidden:        parsed.Forbidden,
	}
	return session.BriefResult{Brief: brief, Questions: parsed.Questions, NeedsUserInput: parsed.NeedsUserInput}, nil
}

// mockBrief is the rule-based fallback used when no LLM profile is
// configured (spec.md §6.5): a minimal brief built straight from the
// request, with no questions, so the orchestrator proceeds unattended.
func (a *Archivist) mockBrief(req session.BriefRequest) session.BriefResult {
	goal := req.GoalHint
	if goal == "" {
		goal = "continue the story"
	}
	return session.BriefResult{
		Brief: model.SceneBrief{
			Chapter: req.Chapter,
			Title:   req.Chapter,
			Goal:    goal,
		},
	}
}

const archivistProposalSystemPrompt = `You read one chapter's prose and identify characters or world elements
that are not yet tracked as cards. Respond as a JSON object: {"proposals":[{"type":"character"|"world","name",
"description","aliases":["..."],"category","rules":["..."],"confidence"}]}. Only propose entities with a
proper name that recur or matter to the plot; skip incidental mentions.`

// DetectProposals implements session.Archivist. It returns every proposal
// the archivist finds, including Character-type ones: the product policy
// that drops Character proposals during live drafting belongs to
// internal/session's wrapper, not this agent (spec.md §4.9 vs §4.11 step 5
// apply that filter at different layers).
func (a *Archivist) DetectProposals(ctx context.Context, chapter, content string) ([]model.CardProposal, error) {
	if a.isMock() {
		return nil, nil
	}

	obj, err := a.chatJSON(ctx, archivistProposalSystemPrompt, a.truncate(content), schema.CardProposals)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Proposals []model.CardProposal `json:"proposals"`
	}
	if err := decodeInto(obj, &parsed); err != nil {
		return nil, invalidOutput(a.base, err)
	}
	for i := range parsed.Proposals {
		parsed.Proposals[i].SourceChapter = chapter
	}
	return parsed.Proposals, nil
}

const archivistChapterSummarySystemPrompt = `Summarize one finalized chapter for the series bible. Respond as a
JSON object: {"title","brief_summary","key_events":["..."],"new_facts":["..."],
"character_state_changes":["..."],"open_loops":["..."]}.`

// GenerateChapterSummary implements analysis.Archivist.
func (a *Archivist) GenerateChapterSummary(ctx context.Context, chapter, draftContent string) (model.ChapterSummary, error) {
	if a.isMock() {
		return model.ChapterSummary{}, fmt.Errorf("agents: mock provider has no chapter-summary fallback, caller must use its own heuristic")
	}

	obj, err := a.chatJSON(ctx, archivistChapterSummarySystemPrompt, a.truncate(draftContent), schema.ChapterSummary)
	if err != nil {
		return model.ChapterSummary{}, err
	}
	var parsed struct {
		Title                 string   `json:"title"`
		BriefSummary          string   `json:"brief_summary"`
		KeyEvents             []string `json:"key_events"`
		NewFacts              []string `json:"new_facts"`
		CharacterStateChanges []string `json:"character_state_changes"`
		OpenLoops             []string `json:"open_loops"`
	}
	if err := decodeInto(obj, &parsed); err != nil {
		return model.ChapterSummary{}, invalidOutput(a.base, err)
	}
	return model.ChapterSummary{
		Chapter:               chapter,
		Title:                 parsed.Title,
		BriefSummary:          parsed.BriefSummary,
		KeyEvents:             parsed.KeyEvents,
		NewFacts:              parsed.NewFacts,
		CharacterStateChanges: parsed.CharacterStateChanges,
		OpenLoops:             parsed.OpenLoops,
	}, nil
}

const archivistVolumeSummarySystemPrompt = `Aggregate the chapter summaries below into one volume-level
synopsis. Respond as a JSON object: {"title","brief_summary","key_events":["..."]} where key_events doubles as
the volume's major_events list.`

// GenerateVolumeSummary implements analysis.Archivist.
func (a *Archivist) GenerateVolumeSummary(ctx context.Context, volumeID string, chapters []model.ChapterSummary) (model.VolumeSummary, error) {
	if a.isMock() {
		return model.VolumeSummary{}, fmt.Errorf("agents: mock provider has no volume-summary fallback, caller must use its own heuristic")
	}

	var b strings.Builder
	for _, c := range chapters {
		fmt.Fprintf(&b, "- %s: %s\n", c.Chapter, c.BriefSummary)
	}

	obj, err := a.chatJSON(ctx, archivistVolumeSummarySystemPrompt, b.String(), schema.VolumeSummary)
	if err != nil {
		return model.VolumeSummary{}, err
	}
	var parsed struct {
		BriefSummary string   `json:"brief_summary"`
		KeyEvents    []string `json:"key_events"`
	}
	if err := decodeInto(obj, &parsed); err != nil {
		return model.VolumeSummary{}, invalidOutput(a.base, err)
	}
	return model.VolumeSummary{VolumeID: volumeID, BriefSummary: parsed.BriefSummary, MajorEvents: parsed.KeyEvents}, nil
}

// ExtractCanon implements analysis.Archivist by delegating to the composed
// Extractor agent.
func (a *Archivist) ExtractCanon(ctx context.Context, chapter, draftContent string) (analysis.CanonExtraction, error) {
	return a.extractor.Extract(ctx, chapter, draftContent)
}
