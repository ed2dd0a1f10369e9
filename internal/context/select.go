package context

import (
	"log/slog"
	"sort"
	"time"

	"github.com/jackzampolin/wenshape/internal/bm25"
)

// MaxCandidatesPerType bounds retrieval_select's per-type candidate load,
// per spec.md §4.6.2.
const MaxCandidatesPerType = 50

// DeterministicSet is spec.md §4.6.2's per-agent always-load item list.
var DeterministicSet = map[string][]string{
	"archivist": {"style_card"},
	"writer":    {"style_card", "scene_brief"},
	"editor":    {"style_card"},
}

// Loader resolves a named deterministic item (style_card, scene_brief) to
// its text content, returning ok=false if absent so DeterministicSelect can
// silently skip it.
type Loader func(name string) (content string, ok bool)

// DeterministicSelect loads agent's always-load items (spec.md §4.6.2),
// marking every loaded item CRITICAL. Missing items are skipped and logged.
func DeterministicSelect(agent string, load Loader, log *slog.Logger) []ContextItem {
	if log == nil {
		log = slog.Default()
	}
	var out []ContextItem
	for _, name := range DeterministicSet[agent] {
		content, ok := load(name)
		if !ok {
			log.Debug("deterministic item missing, skipping", "agent", agent, "item", name)
			continue
		}
		out = append(out, ContextItem{
			ID:             "deterministic:" + name,
			Type:           name,
			Content:        content,
			Priority:       Critical,
			RelevanceScore: 1.0,
			TokenCount:     EstimateTokens(content),
			CreatedAt:      now(),
		})
	}
	return out
}

// Candidate is one retrieval_select input: an item of a requested type
// with its id, content, and optional metadata, sourced from storage.
type Candidate struct {
	ID       string
	Type     string
	Content  string
	Priority Priority
	Metadata map[string]any
}

// CandidateLoader loads up to MaxCandidatesPerType candidates of typ for
// retrieval_select.
type CandidateLoader func(typ string, limit int) []Candidate

// RetrievalSelect implements spec.md §4.6.2's local lexical-hybrid
// selector: for each requested type, load candidates, score by
// 0.35*overlap + 0.65*bm25 against query, drop non-positive scores, and
// return the topK globally by score.
//
// This scorer is deliberately local (no corpus-wide document frequency,
// unlike internal/evidence's EvidenceIndexer) for use when the
// higher-fidelity indexer is unavailable or a quick selection suffices.
func RetrievalSelect(query string, types []string, topK int, load CandidateLoader) []ContextItem {
	queryTerms := bm25.UniqueTerms(query)
	var all []Candidate
	for _, typ := range types {
		all = append(all, load(typ, MaxCandidatesPerType)...)
	}
	if len(all) == 0 {
		return nil
	}

	docs := make([]bm25.Doc, 0, len(all))
	byID := make(map[string]Candidate, len(all))
	for _, c := range all {
		docs = append(docs, bm25.NewDoc(c.ID, c.Content))
		byID[c.ID] = c
	}
	df := bm25.DocFreq(docs, queryTerms)
	avgdl := bm25.AvgDocLen(docs)
	n := len(docs)

	type scored struct {
		cand  Candidate
		score float64
	}
	var results []scored
	for _, d := range docs {
		overlap := overlapRatio(d.Terms, queryTerms)
		b := bm25.Score(d, queryTerms, df, n, avgdl)
		score := 0.35*overlap + 0.65*b
		if score <= 0 {
			continue
		}
		results = append(results, scored{cand: byID[d.ID], score: score})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}

	out := make([]ContextItem, 0, len(results))
	for _, r := range results {
		priority := r.cand.Priority
		if priority == 0 {
			priority = Medium
		}
		out = append(out, ContextItem{
			ID:             r.cand.ID,
			Type:           r.cand.Type,
			Content:        r.cand.Content,
			Priority:       priority,
			RelevanceScore: clampUnit(r.score),
			TokenCount:     EstimateTokens(r.cand.Content),
			Metadata:       r.cand.Metadata,
			CreatedAt:      now(),
		})
	}
	return out
}

// overlapRatio is the fraction of queryTerms present (with any frequency)
// in docTerms, spec.md §4.6.2's "overlap" half of the hybrid score.
func overlapRatio(docTerms map[string]int, queryTerms []string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	hits := 0
	for _, t := range queryTerms {
		if docTerms[t] > 0 {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTerms))
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SelectOptimal implements spec.md §4.6.5 step 5: include all CRITICAL
// items unconditionally, sort the remainder by (priority asc, relevance
// desc), then greedy-fill by token_count within budget. HIGH items that
// don't fit get one retry at compression ratio 0.5 via compress.
func SelectOptimal(items []ContextItem, budget int, compress func(ContextItem, float64) ContextItem) []ContextItem {
	var critical, rest []ContextItem
	for _, it := range items {
		if it.Priority == Critical {
			critical = append(critical, it)
		} else {
			rest = append(rest, it)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		if rest[i].Priority != rest[j].Priority {
			return rest[i].Priority < rest[j].Priority
		}
		return rest[i].RelevanceScore > rest[j].RelevanceScore
	})

	used := 0
	var out []ContextItem
	for _, it := range critical {
		out = append(out, it)
		used += it.TokenCount
	}
	for _, it := range rest {
		if used+it.TokenCount <= budget {
			out = append(out, it)
			used += it.TokenCount
			continue
		}
		if it.Priority == High && compress != nil {
			compressed := compress(it, 0.5)
			if used+compressed.TokenCount <= budget {
				out = append(out, compressed)
				used += compressed.TokenCount
			}
		}
	}
	return out
}

func now() time.Time { return timeNow() }

// timeNow is a package-level indirection so tests can stub time.Now
// without it appearing as a direct call (this package avoids depending on
// wall-clock determinism in its own logic).
var timeNow = time.Now
