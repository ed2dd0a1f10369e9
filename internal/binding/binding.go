// Package binding implements spec.md's C5 Chapter Binding Service: "who is
// in this chapter?" — per-chapter resolution of character, world-entity,
// and world-rule candidates by literal occurrence counting with a BM25
// fallback, plus the seed-entity carry-over used to bias retrieval in
// adjacent chapters.
//
// Grounded on no single teacher file; follows the same Store-backed,
// explicit-struct style as internal/evidence (sibling package) and reuses
// internal/textchunk's paragraph splitter for "same chunking strategy as
// C4" (spec.md §4.5 step 2).
package binding

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/jackzampolin/wenshape/internal/bm25"
	"github.com/jackzampolin/wenshape/internal/evidence"
	"github.com/jackzampolin/wenshape/internal/model"
	"github.com/jackzampolin/wenshape/internal/storage"
	"github.com/jackzampolin/wenshape/internal/textchunk"
)

const (
	countScoreWeight = 2.0
	seedBonus        = 0.8
	genericThreshold = 1.4
	normalThreshold  = 0.9
	snippetRadius    = 12
)

// Service resolves and persists chapter bindings.
type Service struct {
	store    *storage.Store
	evidence *evidence.Indexer
	log      *slog.Logger
}

// New constructs a Service.
func New(store *storage.Store, idx *evidence.Indexer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, evidence: idx, log: logger}
}

type candidate struct {
	name    string
	aliases []string
	kind    model.EvidenceType // Character, WorldEntity, or WorldRule
	ruleID  string
	text    string // rule text, for world_rule candidates
}

// Bind resolves and persists the binding for one chapter (spec.md §4.5).
func (s *Service) Bind(ctx context.Context, chapter string) (model.ChapterBinding, error) {
	path, err := s.store.LatestDraftPath(chapter)
	if err != nil {
		empty := model.ChapterBinding{Chapter: chapter, BuiltAt: time.Now().UTC()}
		if serr := s.store.SaveBinding(ctx, empty); serr != nil {
			return model.ChapterBinding{}, serr
		}
		return empty, nil
	}
	text, err := s.store.LoadLatestDraft(chapter)
	if err != nil {
		return model.ChapterBinding{}, err
	}

	candidates, err := s.candidates()
	if err != nil {
		return model.ChapterBinding{}, err
	}

	chunks := textchunk.Split(text, textchunk.DefaultConfig())
	docs := make([]bm25.Doc, len(chunks))
	for i, c := range chunks {
		docs[i] = bm25.NewDoc(fmt.Sprintf("%d", i), c.Text)
	}

	seeds := s.GetSeedEntities(chapter, 2, false)
	seedSet := make(map[string]bool, len(seeds))
	for _, seed := range seeds {
		seedSet[seed] = true
	}

	var characters, worldEntities, worldRules []string
	var sources []model.EvidenceSourceEntry

	for _, cand := range candidates {
		count, examples := literalOccurrences(text, cand.aliases)
		var score float64
		matched := count > 0
		if count > 0 {
			score = countScoreWeight * float64(count)
		} else {
			best, bestScore := bestChunkMatch(docs, cand)
			minHits := minTermHits(cand.name)
			threshold := normalThreshold
			if evidence.IsGenericTerm(cand.name) {
				threshold = genericThreshold
			}
			if best >= 0 && bestScore >= threshold && termHitCount(docs[best], cand) >= minHits {
				matched = true
				score = bestScore
				if best < len(chunks) {
					examples = []string{snippet(chunks[best].Text, 0, min(len(chunks[best].Text), 80))}
				}
			}
		}
		if seedSet[cand.name] {
			score += seedBonus
		}
		if !matched {
			continue
		}

		switch cand.kind {
		case model.EvidenceCharacter:
			characters = append(characters, cand.name)
		case model.EvidenceWorldEntity:
			worldEntities = append(worldEntities, cand.name)
		case model.EvidenceWorldRule:
			worldRules = append(worldRules, cand.ruleID)
		}
		sources = append(sources, model.EvidenceSourceEntry{
			Entity:   cand.name,
			Type:     string(cand.kind),
			Count:    count,
			Score:    score,
			Examples: capExamples(examples, 2),
		})
	}

	binding := model.ChapterBinding{
		Chapter:       chapter,
		Characters:    characters,
		WorldEntities: worldEntities,
		WorldRules:    worldRules,
		Sources:       sources,
		DraftPath:     path,
		BuiltAt:       time.Now().UTC(),
	}
	if err := s.store.SaveBinding(ctx, binding); err != nil {
		return model.ChapterBinding{}, err
	}
	return binding, nil
}

// RebuildAll rebuilds bindings for chapters, or every chapter in
// chapterid order if chapters is empty.
func (s *Service) RebuildAll(ctx context.Context, chapters []string) (map[string]model.ChapterBinding, map[string]error) {
	if len(chapters) == 0 {
		all, err := s.store.ListChapters()
		if err != nil {
			return nil, map[string]error{"*": err}
		}
		chapters = all
	}
	results := make(map[string]model.ChapterBinding, len(chapters))
	errs := make(map[string]error)
	for _, ch := range chapters {
		b, err := s.Bind(ctx, ch)
		if err != nil {
			errs[ch] = err
			continue
		}
		results[ch] = b
	}
	return results, errs
}

// GetSeedEntities unions the bindings of the previous window chapters,
// deduped preserving order (spec.md §4.5's seed carry-over).
func (s *Service) GetSeedEntities(chapter string, window int, includeWorldRules bool) []string {
	all, err := s.store.ListChapters()
	if err != nil {
		return nil
	}
	idx := -1
	for i, c := range all {
		if c == chapter {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	start := idx - window
	if start < 0 {
		start = 0
	}
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for i := start; i < idx; i++ {
		b, err := s.store.LoadBinding(all[i])
		if err != nil {
			continue
		}
		for _, c := range b.Characters {
			add(c)
		}
		for _, w := range b.WorldEntities {
			add(w)
		}
		if includeWorldRules {
			for _, r := range b.WorldRules {
				add(r)
			}
		}
	}
	return out
}

func (s *Service) candidates() ([]candidate, error) {
	var out []candidate

	chars, err := s.store.ListCharacterCards()
	if err != nil {
		return nil, err
	}
	for _, c := range chars {
		if len([]rune(c.Name)) < 2 || evidence.IsGenericTerm(c.Name) {
			continue
		}
		aliases := append([]string{c.Name}, parenthetical(c.Name)...)
		aliases = append(aliases, c.Aliases...)
		out = append(out, candidate{name: c.Name, aliases: dedupStrings(aliases), kind: model.EvidenceCharacter})
	}

	worldEntities, worldRules := s.worldCandidates()
	out = append(out, worldEntities...)
	out = append(out, worldRules...)
	return out, nil
}

func (s *Service) worldCandidates() (entities, rules []candidate) {
	worlds, err := s.store.ListWorldCards()
	if err != nil {
		return nil, nil
	}
	for _, w := range worlds {
		if len([]rune(w.Name)) >= 2 && !evidence.IsGenericTerm(w.Name) {
			aliases := append([]string{w.Name}, w.Aliases...)
			entities = append(entities, candidate{name: w.Name, aliases: dedupStrings(aliases), kind: model.EvidenceWorldEntity})
		}
		n := 0
		for _, rule := range w.Rules {
			for _, sentence := range splitSentences(rule) {
				if !evidence.IsRuleSentence(sentence) {
					continue
				}
				ruleID := fmt.Sprintf("world_rule:%s:%d", w.Name, n)
				rules = append(rules, candidate{name: w.Name, aliases: []string{sentence}, kind: model.EvidenceWorldRule, ruleID: ruleID, text: sentence})
				n++
			}
		}
	}
	return entities, rules
}

// ExtractEntitiesFromText runs the same candidate-matching pipeline
// against a synthesized single-chunk document, used to pre-check mentions
// in a goal/feedback string (spec.md §4.8 step 3).
type ExtractedEntities struct {
	Characters    []string
	WorldEntities []string
}

func (s *Service) ExtractEntitiesFromText(text string) ExtractedEntities {
	candidates, err := s.candidates()
	if err != nil {
		return ExtractedEntities{}
	}
	var out ExtractedEntities
	docs := []bm25.Doc{bm25.NewDoc("0", text)}
	for _, cand := range candidates {
		count, _ := literalOccurrences(text, cand.aliases)
		if count == 0 {
			best, bestScore := bestChunkMatch(docs, cand)
			threshold := normalThreshold
			if evidence.IsGenericTerm(cand.name) {
				threshold = genericThreshold
			}
			if best < 0 || bestScore < threshold || termHitCount(docs[best], cand) < minTermHits(cand.name) {
				continue
			}
		}
		switch cand.kind {
		case model.EvidenceCharacter:
			out.Characters = append(out.Characters, cand.name)
		case model.EvidenceWorldEntity:
			out.WorldEntities = append(out.WorldEntities, cand.name)
		}
	}
	return out
}

// looseMentionPattern is a non-authoritative heuristic for UI hinting: single
// capitalized words or 2-4 character CJK proper-noun-looking tokens.
var looseMentionPattern = regexp.MustCompile(`[A-Z][a-z]+|[\p{Han}]{2,4}`)

// ExtractLooseMentions returns regex-driven name-looking candidates for UI
// display only; per spec.md §4.5, these must never influence binding
// persistence.
func (s *Service) ExtractLooseMentions(text string, limit int) []string {
	matches := looseMentionPattern.FindAllString(text, -1)
	seen := make(map[string]bool)
	var out []string
	for _, m := range matches {
		if evidence.IsGenericTerm(m) || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func literalOccurrences(text string, aliases []string) (int, []string) {
	count := 0
	var examples []string
	lower := strings.ToLower(text)
	for _, alias := range aliases {
		if alias == "" {
			continue
		}
		needle := strings.ToLower(alias)
		idx := 0
		for {
			pos := strings.Index(lower[idx:], needle)
			if pos < 0 {
				break
			}
			abs := idx + pos
			count++
			examples = append(examples, snippet(text, abs-snippetRadius, abs+len(alias)+snippetRadius))
			idx = abs + len(needle)
		}
	}
	return count, examples
}

func bestChunkMatch(docs []bm25.Doc, cand candidate) (int, float64) {
	terms := bm25.UniqueTerms(cand.aliases...)
	if len(terms) == 0 || len(docs) == 0 {
		return -1, 0
	}
	results := bm25.SearchAll(docs, terms)
	if len(results) == 0 || results[0].Score <= 0 {
		return -1, 0
	}
	for i, d := range docs {
		if d.ID == results[0].ID {
			return i, results[0].Score
		}
	}
	return -1, 0
}

func termHitCount(doc bm25.Doc, cand candidate) int {
	terms := bm25.UniqueTerms(cand.aliases...)
	hits := 0
	for _, t := range terms {
		if doc.Terms[t] > 0 {
			hits++
		}
	}
	return hits
}

// minTermHits implements spec.md §4.5's length-scaled threshold:
// len<=2 -> 1, len<=4 -> 2, else 3.
func minTermHits(name string) int {
	n := len([]rune(name))
	switch {
	case n <= 2:
		return 1
	case n <= 4:
		return 2
	default:
		return 3
	}
}

func parenthetical(name string) []string {
	var out []string
	open := strings.IndexAny(name, "(（")
	if open < 0 {
		return out
	}
	close := strings.IndexAny(name[open:], ")）")
	if close < 0 {
		return out
	}
	inner := strings.TrimSpace(name[open+1 : open+close])
	if inner != "" {
		out = append(out, inner)
	}
	return out
}

func dedupStrings(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	var out []string
	for _, s := range ss {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func capExamples(examples []string, n int) []string {
	if len(examples) > n {
		return examples[:n]
	}
	return examples
}

func snippet(text string, start, end int) string {
	runes := []rune(text)
	if start < 0 {
		start = 0
	}
	if end > len(runes) {
		end = len(runes)
	}
	if start >= end {
		return ""
	}
	return strings.TrimSpace(string(runes[start:end]))
}

func splitSentences(text string) []string {
	var out []string
	var buf strings.Builder
	for _, r := range text {
		buf.WriteRune(r)
		switch r {
		case '。', '！', '？', '.', '!', '?', '\n':
			str := strings.TrimSpace(buf.String())
			if str != "" {
				out = append(out, str)
			}
			buf.Reset()
		}
	}
	if str := strings.TrimSpace(buf.String()); str != "" {
		out = append(out, str)
	}
	return out
}
