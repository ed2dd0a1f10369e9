package textchunk

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jackzampolin/wenshape/internal/bm25"
	"github.com/jackzampolin/wenshape/internal/model"
	"github.com/jackzampolin/wenshape/internal/providers"
)

// SemanticRerankCombineWeight is the constant spec.md §4.4 and §9 fix for
// reproducibility: merged = bm25 + rerank*3.0.
const SemanticRerankCombineWeight = 3.0

// SearchOptions configures one text-chunk search call (spec.md §4.4).
type SearchOptions struct {
	Queries         []string
	Limit           int
	Chapters        []string // whitelist, empty = all
	ExcludeChapters []string
	Rebuild         bool
	SemanticRerank  bool
	RerankQuery     string
	RerankTopK      int
}

// Hit is one scored text chunk.
type Hit struct {
	Item        model.EvidenceItem
	BM25Score   float64
	RerankScore float64
	Score       float64
}

// Search runs the multi-query BM25 pass over at most the first 4 queries
// (per-query limit clamped to [4,12]), merges per-query scored sets by max
// score per item id, optionally re-ranks the top candidates with an LLM,
// and returns the top opts.Limit hits.
func (ix *Indexer) Search(ctx context.Context, llm providers.LLMClient, opts SearchOptions) ([]Hit, error) {
	if opts.Rebuild {
		if _, err := ix.Build(ctx, false); err != nil {
			return nil, err
		}
	}
	items, err := ix.Items()
	if err != nil {
		return nil, err
	}
	items = filterChapters(items, opts.Chapters, opts.ExcludeChapters)
	if len(items) == 0 {
		return nil, nil
	}

	docs := make([]bm25.Doc, len(items))
	byID := make(map[string]model.EvidenceItem, len(items))
	for i, it := range items {
		docs[i] = bm25.NewDoc(it.ID, it.Text)
		byID[it.ID] = it
	}

	queries := opts.Queries
	if len(queries) > 4 {
		queries = queries[:4]
	}
	perQueryLimit := clamp(opts.Limit, 4, 12)

	best := make(map[string]float64)
	for _, q := range queries {
		terms := bm25.UniqueTerms(q)
		results := bm25.SearchAll(docs, terms)
		n := perQueryLimit
		if n > len(results) {
			n = len(results)
		}
		for _, r := range results[:n] {
			if r.Score <= 0 {
				continue
			}
			if cur, ok := best[r.ID]; !ok || r.Score > cur {
				best[r.ID] = r.Score
			}
		}
	}

	hits := make([]Hit, 0, len(best))
	for id, score := range best {
		hits = append(hits, Hit{Item: byID[id], BM25Score: score, Score: score})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if opts.SemanticRerank && llm != nil {
		hits = ix.rerank(ctx, llm, hits, opts)
	}

	limit := opts.Limit
	if limit <= 0 || limit > len(hits) {
		limit = len(hits)
	}
	return hits[:limit], nil
}

func (ix *Indexer) rerank(ctx context.Context, llm providers.LLMClient, hits []Hit, opts SearchOptions) []Hit {
	topK := opts.RerankTopK
	if topK < 3 {
		topK = 3
	}
	if topK > len(hits) {
		topK = len(hits)
	}
	if topK == 0 {
		return hits
	}

	type compact struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	candidates := make([]compact, topK)
	for i, h := range hits[:topK] {
		text := h.Item.Text
		if len([]rune(text)) > 220 {
			text = string([]rune(text)[:220])
		}
		candidates[i] = compact{ID: h.Item.ID, Text: text}
	}
	payload, err := json.Marshal(candidates)
	if err != nil {
		return hits
	}
	query := opts.RerankQuery
	if query == "" && len(opts.Queries) > 0 {
		query = strings.Join(opts.Queries, " ")
	}
	prompt := fmt.Sprintf(rerankPrompt, query, string(payload))
	result, err := llm.Chat(ctx, &providers.ChatRequest{
		Messages: []providers.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		ix.log.Warn("textchunk: rerank failed, returning bm25 order", "error", err)
		return hits
	}
	var scores []struct {
		ID    string  `json:"id"`
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(extractJSON(result.Content)), &scores); err != nil {
		ix.log.Warn("textchunk: rerank parse failed, returning bm25 order", "error", err)
		return hits
	}
	scoreByID := make(map[string]float64, len(scores))
	for _, s := range scores {
		scoreByID[s.ID] = s.Score
	}
	for i := range hits {
		if rs, ok := scoreByID[hits[i].Item.ID]; ok {
			hits[i].RerankScore = rs
			hits[i].Score = hits[i].BM25Score + rs*SemanticRerankCombineWeight
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits
}

const rerankPrompt = `Given the query %q, score each of the following text chunks from 0.0 (irrelevant) to 1.0 (highly relevant).
Respond with a JSON array of {"id": string, "score": number}.

%s`

// extractJSON strips a fenced code block if present and returns the first
// balanced [...] or {...} substring, per spec.md §9's tolerant LLM-output
// parsing contract.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return s
	}
	open, close := s[start], byte(']')
	if open == '{' {
		close = '}'
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}

func filterChapters(items []model.EvidenceItem, allow, deny []string) []model.EvidenceItem {
	allowSet := toSet(allow)
	denySet := toSet(deny)
	if len(allowSet) == 0 && len(denySet) == 0 {
		return items
	}
	out := make([]model.EvidenceItem, 0, len(items))
	for _, it := range items {
		if len(allowSet) > 0 && !allowSet[it.Source.Chapter] {
			continue
		}
		if denySet[it.Source.Chapter] {
			continue
		}
		out = append(out, it)
	}
	return out
}

func toSet(ss []string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
