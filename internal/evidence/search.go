package evidence

import (
	"context"
	"sort"
	"strings"

	"github.com/jackzampolin/wenshape/internal/bm25"
	"github.com/jackzampolin/wenshape/internal/config"
	"github.com/jackzampolin/wenshape/internal/model"
	"github.com/jackzampolin/wenshape/internal/providers"
	"github.com/jackzampolin/wenshape/internal/textchunk"
)

// starsBonusStep is spec.md §4.3's stars bonus coefficient: (stars-1)*0.35.
const starsBonusStep = 0.35

// SearchRequest configures one evidence search, per spec.md §4.3.
type SearchRequest struct {
	Queries []string
	Types   []model.EvidenceType // empty = all types
	Seeds   []string             // seed entity names for the seed bonus
	Limit   int
	Quotas  map[string]config.Quota

	// LLM, when non-nil, enables semantic rerank of the text-chunk hits
	// merged in below (delegated to internal/textchunk).
	LLM            providers.LLMClient
	SemanticRerank bool
}

// TopSource summarizes one evidence hit for MemoryPack/research-trace
// display, per spec.md §4.3's "top_sources" stat.
type TopSource struct {
	Type    string `json:"type"`
	Chapter string `json:"chapter,omitempty"`
	Path    string `json:"path,omitempty"`
	Field   string `json:"field,omitempty"`
}

// SearchStats mirrors spec.md §4.3's output stats shape.
type SearchStats struct {
	Total      int            `json:"total"`
	Types      map[string]int `json:"types"`
	Queries    []string       `json:"queries"`
	Hits       int            `json:"hits"`
	TopSources []TopSource    `json:"top_sources,omitempty"`
}

// SearchResult is the ranked selection plus its stats.
type SearchResult struct {
	Items []model.EvidenceItem
	Stats SearchStats
}

// Search runs the full spec.md §4.3 pipeline: union queries into a term
// set, score every candidate item with BM25 plus substring/seed/stars
// bonuses, drop non-positive scores, merge in text-chunk hits, and apply
// per-type quotas.
func (ix *Indexer) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	quotas := req.Quotas
	if quotas == nil {
		quotas = DefaultQuotas()
	}
	terms := bm25.UniqueTerms(req.Queries...)
	joinedQuery := strings.Join(req.Queries, " ")

	items, err := ix.allItems(req.Types)
	if err != nil {
		return SearchResult{}, err
	}

	docs := make([]bm25.Doc, len(items))
	for i, it := range items {
		docs[i] = bm25.NewDoc(it.ID, it.Text)
	}
	df := bm25.DocFreq(docs, terms)
	avgdl := bm25.AvgDocLen(docs)
	n := len(docs)

	var candidates []scored
	for i, it := range items {
		base := bm25.Score(docs[i], terms, df, n, avgdl)
		if base <= 0 {
			continue
		}
		score := base + bonuses(it, req.Queries, joinedQuery, req.Seeds)
		candidates = append(candidates, scored{item: it, score: score})
	}

	if chunkLimit := quotaMax(quotas, string(model.EvidenceTextChunk)); ix.textchunk != nil && wantsType(req.Types, model.EvidenceTextChunk) {
		hits, err := ix.textchunk.Search(ctx, req.LLM, textchunk.SearchOptions{
			Queries:        req.Queries,
			Limit:          chunkLimit,
			SemanticRerank: req.SemanticRerank,
			RerankQuery:    joinedQuery,
			RerankTopK:     chunkLimit * 2,
		})
		if err == nil {
			for _, h := range hits {
				candidates = append(candidates, scored{item: h.Item, score: h.Score})
			}
		}
	}

	selected := applyTypeQuotas(candidates, quotas, req.Limit)
	sort.SliceStable(selected, func(i, j int) bool { return selected[i].score > selected[j].score })

	result := SearchResult{
		Items: make([]model.EvidenceItem, len(selected)),
		Stats: SearchStats{
			Total:   len(selected),
			Types:   map[string]int{},
			Queries: req.Queries,
			Hits:    len(candidates),
		},
	}
	for i, s := range selected {
		result.Items[i] = s.item
		result.Stats.Types[string(s.item.Type)]++
	}
	result.Stats.TopSources = topSources(result.Items, 3)
	return result, nil
}

// bonuses implements spec.md §4.3 step 5: +0.8 substring match, seed bonus
// (+1.0 entity match, else +0.5 substring), stars bonus (stars-1)*0.35.
func bonuses(item model.EvidenceItem, queries []string, joined string, seeds []string) float64 {
	var total float64
	for _, q := range queries {
		if q != "" && strings.Contains(item.Text, q) {
			total += 0.8
			break
		}
	}

	seedMatched := false
	for _, seed := range seeds {
		for _, e := range item.Entities {
			if strings.EqualFold(e, seed) {
				seedMatched = true
				break
			}
		}
		if seedMatched {
			break
		}
	}
	if seedMatched {
		total += 1.0
	} else {
		for _, seed := range seeds {
			if seed != "" && strings.Contains(item.Text, seed) {
				total += 0.5
				break
			}
		}
	}

	if stars, ok := item.Meta["stars"]; ok {
		total += (toFloat(stars) - 1) * starsBonusStep
	}
	_ = joined
	return total
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func (ix *Indexer) allItems(types []model.EvidenceType) ([]model.EvidenceItem, error) {
	var all []model.EvidenceItem
	for _, name := range []string{IndexFacts, IndexSummaries, IndexCards, IndexMemory} {
		items, err := ix.items(name)
		if err != nil {
			continue
		}
		all = append(all, items...)
	}
	return filterTypes(all, types), nil
}

func filterTypes(items []model.EvidenceItem, types []model.EvidenceType) []model.EvidenceItem {
	if len(types) == 0 {
		return items
	}
	allow := make(map[model.EvidenceType]bool, len(types))
	for _, t := range types {
		allow[t] = true
	}
	out := make([]model.EvidenceItem, 0, len(items))
	for _, it := range items {
		if allow[it.Type] {
			out = append(out, it)
		}
	}
	return out
}

func wantsType(types []model.EvidenceType, t model.EvidenceType) bool {
	if len(types) == 0 {
		return true
	}
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

func quotaMax(quotas map[string]config.Quota, t string) int {
	if q, ok := quotas[t]; ok && q.Max > 0 {
		return q.Max
	}
	return 8
}

// topSources builds spec.md §4.3's "up to 3 {type,chapter,path,field}"
// stat, excluding the memory type, tie-broken by stable insertion order
// per spec.md §9's open question.
func topSources(items []model.EvidenceItem, limit int) []TopSource {
	var out []TopSource
	for _, it := range items {
		if it.Type == model.EvidenceMemory {
			continue
		}
		out = append(out, TopSource{
			Type:    string(it.Type),
			Chapter: it.Source.Chapter,
			Path:    it.Source.Path,
			Field:   it.Source.Field,
		})
		if len(out) >= limit {
			break
		}
	}
	return out
}
