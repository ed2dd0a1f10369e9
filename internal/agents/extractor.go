package agents

import (
	"context"

	"github.com/jackzampolin/wenshape/internal/analysis"
	"github.com/jackzampolin/wenshape/internal/model"
	"github.com/jackzampolin/wenshape/internal/schema"
)

// Extractor is the canon-extraction agent: given a finalized chapter's
// prose, it identifies new facts, timeline events, character-state
// changes, card proposals, and which characters were central to the
// chapter (spec.md §4.11 step 3). Kept as its own REDESIGN-FLAGS agent
// type even though it's only reachable through Archivist.ExtractCanon.
type Extractor struct {
	base
}

// NewExtractor builds an Extractor from one LLM configuration.
func NewExtractor(cfg Config) *Extractor {
	return &Extractor{base: newBase(KindExtractor, cfg)}
}

const extractorSystemPrompt = `You extract structured canon from one finalized chapter of a serialized
novel. Respond as a JSON object: {"facts":[{"statement","confidence"}],"timeline":[{"time","event","location",
"participants":["..."]}],"states":[{"character","location","emotional_state","goals":["..."],
"injuries":["..."],"inventory":["..."]}],"proposals":[{"type":"character"|"world","name","description"}],
"focus_names":["..."]}. List at most 5 facts, the most important first. focus_names should name every
character whose actions or state meaningfully advanced in this chapter.`

// Extract runs one chapter's canon extraction. It satisfies the
// Archivist-delegation path for analysis.Archivist.ExtractCanon: on a
// mock client it returns an empty extraction and no error; an LLM or
// decode failure is returned as an error, which
// internal/analysis.extractCanon treats as non-fatal and logs itself.
func (e *Extractor) Extract(ctx context.Context, chapter, draftContent string) (analysis.CanonExtraction, error) {
	if e.isMock() {
		return analysis.CanonExtraction{}, nil
	}

	obj, err := e.chatJSON(ctx, extractorSystemPrompt, e.truncate(draftContent), schema.CanonExtraction)
	if err != nil {
		return analysis.CanonExtraction{}, err
	}

	var parsed struct {
		Facts      []model.Fact           `json:"facts"`
		Timeline   []model.TimelineEvent  `json:"timeline"`
		States     []model.CharacterState `json:"states"`
		Proposals  []model.CardProposal   `json:"proposals"`
		FocusNames []string               `json:"focus_names"`
	}
	if err := decodeInto(obj, &parsed); err != nil {
		return analysis.CanonExtraction{}, invalidOutput(e.base, err)
	}

	for i := range parsed.Proposals {
		parsed.Proposals[i].SourceChapter = chapter
	}

	return analysis.CanonExtraction{
		Facts:      parsed.Facts,
		Timeline:   parsed.Timeline,
		States:     parsed.States,
		Proposals:  parsed.Proposals,
		FocusNames: parsed.FocusNames,
	}, nil
}
