package research

import (
	"context"
	"fmt"

	"github.com/jackzampolin/wenshape/internal/binding"
	"github.com/jackzampolin/wenshape/internal/config"
	"github.com/jackzampolin/wenshape/internal/evidence"
	"github.com/jackzampolin/wenshape/internal/model"
	"github.com/jackzampolin/wenshape/internal/providers"
)

// mentionCandidateCap is spec.md §4.8 step 3's cap on deduped mention
// candidates considered for the card-hit/missing-card split.
const mentionCandidateCap = 12

// WorkingMemoryService builds one round's retrieval payload: it resolves
// mention candidates to existing cards (for retrieval-seed bias, never as
// asserted fact), runs the evidence search, and packages the result into
// the MemoryPack payload shape.
type WorkingMemoryService struct {
	store   CharacterWorldProbe
	index   *evidence.Indexer
	binding *binding.Service
	quotas  map[string]config.Quota
}

// CharacterWorldProbe is the narrow storage capability WorkingMemoryService
// needs: checking whether a character or world card exists by name.
type CharacterWorldProbe interface {
	LoadCharacterCard(name string) (model.CharacterCard, error)
	LoadWorldCard(name string) (model.WorldCard, error)
}

// NewWorkingMemoryService constructs a WorkingMemoryService.
func NewWorkingMemoryService(store CharacterWorldProbe, index *evidence.Indexer, bindingSvc *binding.Service, quotas map[string]config.Quota) *WorkingMemoryService {
	return &WorkingMemoryService{store: store, index: index, binding: bindingSvc, quotas: quotas}
}

// BuildGapItems produces round-1 gap entries from the scene brief and
// goal (spec.md §4.8 step 1): one gap per brief character (queried by
// name and relevant traits), one per world constraint, and one for the
// goal itself when it is non-empty. Forbidden items produce no gaps, and
// no overlap with the goal is checked.
func (w *WorkingMemoryService) BuildGapItems(goal string, brief model.SceneBrief) []GapItem {
	var gaps []GapItem
	for _, c := range brief.Characters {
		gaps = append(gaps, GapItem{
			Text:    fmt.Sprintf("character motivation/state: %s", c.Name),
			Queries: append([]string{c.Name}, c.RelevantTraits...),
		})
	}
	for _, wc := range brief.WorldConstraints {
		gaps = append(gaps, GapItem{Text: "world constraint: " + wc, Queries: []string{wc}})
	}
	if goal != "" {
		gaps = append(gaps, GapItem{Text: "goal context", Queries: []string{goal}})
	}
	return gaps
}

// MentionSplit is spec.md §4.8 step 3's card_hits/missing_cards split.
type MentionSplit struct {
	CardHits     []string
	MissingCards []string
}

// ResolveMentions dedupes extract_entities_from_text(goal).characters,
// the scene brief's first 3 characters, and extract_loose_mentions(goal)
// into up to mentionCandidateCap candidates, then splits them into
// card_hits (an existing character or world card) and missing_cards.
// These feed retrieval as seeds only, never as asserted entities.
func (w *WorkingMemoryService) ResolveMentions(goal string, brief model.SceneBrief) MentionSplit {
	seen := make(map[string]bool)
	var candidates []string
	add := func(name string) {
		if name == "" || seen[name] || len(candidates) >= mentionCandidateCap {
			return
		}
		seen[name] = true
		candidates = append(candidates, name)
	}

	if w.binding != nil {
		for _, c := range w.binding.ExtractEntitiesFromText(goal).Characters {
			add(c)
		}
	}
	for i, c := range brief.Characters {
		if i >= 3 {
			break
		}
		add(c.Name)
	}
	if w.binding != nil {
		for _, m := range w.binding.ExtractLooseMentions(goal, mentionCandidateCap) {
			add(m)
		}
	}

	var split MentionSplit
	for _, name := range candidates {
		if w.store == nil {
			split.MissingCards = append(split.MissingCards, name)
			continue
		}
		if _, err := w.store.LoadCharacterCard(name); err == nil {
			split.CardHits = append(split.CardHits, name)
			continue
		}
		if _, err := w.store.LoadWorldCard(name); err == nil {
			split.CardHits = append(split.CardHits, name)
			continue
		}
		split.MissingCards = append(split.MissingCards, name)
	}
	return split
}

// PrepareResult is WorkingMemoryService.Prepare's output: the queries it
// actually ran, their evidence hits, and the derived sufficiency report.
type PrepareResult struct {
	Queries     []string
	Hits        []model.EvidenceItem
	TopSources  []evidence.TopSource
	Sufficiency model.SufficiencyReport
	Offline     bool
}

// Prepare runs spec.md §4.8 step 4: it merges goal/extraQueries/user
// answers into one query set, biases retrieval with the mention-split
// seeds, searches the Evidence Indexer, and evaluates sufficiency.
func (w *WorkingMemoryService) Prepare(ctx context.Context, goal string, brief model.SceneBrief, userAnswers, extraQueries []string, semanticRerank bool, llm providers.LLMClient) (PrepareResult, error) {
	seeds := w.ResolveMentions(goal, brief)
	allSeeds := append(append([]string{}, seeds.CardHits...), seeds.MissingCards...)

	queries := dedupStrings(append(append([]string{goal}, extraQueries...), userAnswers...))
	if len(queries) == 0 {
		return PrepareResult{Offline: true, Sufficiency: model.SufficiencyReport{Sufficient: true, Reasoning: "no queries to run"}}, nil
	}

	if w.index == nil {
		return PrepareResult{Queries: queries, Offline: true, Sufficiency: model.SufficiencyReport{Sufficient: true, Reasoning: "no evidence indexer configured"}}, nil
	}

	result, err := w.index.Search(ctx, evidence.SearchRequest{
		Queries:        queries,
		Seeds:          allSeeds,
		Limit:          30,
		Quotas:         w.quotas,
		LLM:            llm,
		SemanticRerank: semanticRerank,
	})
	if err != nil {
		return PrepareResult{}, fmt.Errorf("research: working memory search failed: %w", err)
	}

	report := evaluateSufficiency(goal, result)
	return PrepareResult{
		Queries:     queries,
		Hits:        result.Items,
		TopSources:  result.Stats.TopSources,
		Sufficiency: report,
	}, nil
}
