package context

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/jackzampolin/wenshape/internal/providers"
)

// PreserveType names what llm_compress should keep the meaning of, per
// spec.md §4.6.3.
type PreserveType string

const (
	PreserveFacts     PreserveType = "facts"
	PreserveNarrative PreserveType = "narrative"
	PreserveMixed     PreserveType = "mixed"
)

// CompressStats reports what smart_compress did, returned alongside text.
type CompressStats struct {
	OriginalSentences int
	KeptSentences     int
	OriginalTokens    int
	CompressedTokens  int
}

// Compressor implements spec.md §4.6.3's three compression strategies.
type Compressor struct {
	LLM providers.LLMClient
}

// NewCompressor constructs a Compressor; llm may be nil, in which case
// LLMCompress always falls back to rule-based compression.
func NewCompressor(llm providers.LLMClient) *Compressor {
	return &Compressor{LLM: llm}
}

// RuleBasedCompress drops blank lines, hard-truncates long lines to 200
// chars with an ellipsis, and keeps the first ceil(N*ratio) lines (min 3).
func RuleBasedCompress(text string, ratio float64) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len([]rune(line)) > 200 {
			runes := []rune(line)
			line = string(runes[:200]) + "..."
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return ""
	}
	keep := int(math.Ceil(float64(len(lines)) * ratio))
	if keep < 3 {
		keep = 3
	}
	if keep > len(lines) {
		keep = len(lines)
	}
	return strings.Join(lines[:keep], "\n")
}

// LLMCompress asks the LLM to compress text to approximately targetTokens
// while preserving preserve's content kind. On any failure, it falls back
// to RuleBasedCompress with ratio target/current.
func (c *Compressor) LLMCompress(ctx context.Context, text string, targetTokens int, preserve PreserveType) string {
	current := EstimateTokens(text)
	ratio := 1.0
	if current > 0 {
		ratio = float64(targetTokens) / float64(current)
	}
	if ratio <= 0 {
		ratio = 0.1
	}
	if ratio > 1 {
		ratio = 1
	}

	if c.LLM == nil {
		return RuleBasedCompress(text, ratio)
	}

	prompt := fmt.Sprintf(
		"Compress the following text to approximately %d tokens, preserving its %s. Return only the compressed text.\n\n%s",
		targetTokens, preserve, text,
	)
	result, err := c.LLM.Chat(ctx, &providers.ChatRequest{
		Messages: []providers.Message{{Role: "user", Content: prompt}},
	})
	if err != nil || result == nil || !result.Success || strings.TrimSpace(result.Content) == "" {
		return RuleBasedCompress(text, ratio)
	}
	return result.Content
}

// domainKeywordPatterns are the keyword markers smart_compress's sentence
// scorer rewards (spec.md §4.6.3 step a). Treated as configuration per
// spec.md's open question on heuristic keyword sets; grounded on
// internal/evidence's rule/negation marker lists.
var domainKeywordPatterns = []string{
	"必须", "禁止", "不得", "只能", "会导致", "因为", "所以", "决定", "发现",
	"must", "cannot", "because", "therefore", "decided", "discovered", "revealed",
}

type scoredSentence struct {
	text  string
	index int
	score float64
}

// SmartCompress sentence-splits content and scores each sentence per
// spec.md §4.6.3's smart_compress heuristic, then allocates the target
// length as 30% head / 40% middle / 30% tail, preserving original order
// with "\n[...]\n" gap markers when preserveStructure is set.
func SmartCompress(content string, targetRatio float64, query string, preserveStructure bool) (string, CompressStats) {
	sentences := splitSentences(content)
	stats := CompressStats{OriginalSentences: len(sentences), OriginalTokens: EstimateTokens(content)}
	if len(sentences) == 0 {
		return content, stats
	}

	queryTermSet := tokenizeSimple(query)

	scored := make([]scoredSentence, len(sentences))
	for i, s := range sentences {
		scored[i] = scoredSentence{text: s, index: i, score: scoreSentence(s, queryTermSet)}
	}

	targetLen := int(float64(len([]rune(content))) * targetRatio)
	headBudget := int(float64(targetLen) * 0.30)
	middleBudget := int(float64(targetLen) * 0.40)
	tailBudget := targetLen - headBudget - middleBudget

	kept := make(map[int]bool)
	used := 0
	for _, s := range scored {
		if used >= headBudget {
			break
		}
		kept[s.index] = true
		used += len([]rune(s.text))
	}

	usedTail := 0
	for i := len(scored) - 1; i >= 0; i-- {
		if usedTail >= tailBudget {
			break
		}
		if kept[scored[i].index] {
			continue
		}
		kept[scored[i].index] = true
		usedTail += len([]rune(scored[i].text))
	}

	var middleCandidates []scoredSentence
	for _, s := range scored {
		if !kept[s.index] {
			middleCandidates = append(middleCandidates, s)
		}
	}
	sortByScoreDesc(middleCandidates)
	usedMiddle := 0
	for _, s := range middleCandidates {
		if usedMiddle >= middleBudget {
			break
		}
		kept[s.index] = true
		usedMiddle += len([]rune(s.text))
	}

	var out []string
	gap := false
	for i, s := range sentences {
		if kept[i] {
			if gap && preserveStructure {
				out = append(out, "[...]")
			}
			out = append(out, s)
			gap = false
		} else {
			gap = true
		}
	}

	result := strings.Join(out, " ")
	result = strings.ReplaceAll(result, " [...] ", "\n[...]\n")
	stats.KeptSentences = len(kept)
	stats.CompressedTokens = EstimateTokens(result)
	return result, stats
}

func scoreSentence(s string, queryTerms map[string]bool) float64 {
	var score float64
	for _, kw := range domainKeywordPatterns {
		if strings.Contains(s, kw) {
			score += 0.15
			break
		}
	}
	if strings.HasPrefix(strings.TrimSpace(s), "第") || strings.Contains(s, "\n\n") {
		score += 0.10
	}
	n := len([]rune(s))
	switch {
	case n >= 20 && n <= 100:
		score += 0.10
	case n > 100 && n <= 200:
		score += 0.05
	}
	for _, r := range s {
		if unicode.IsDigit(r) {
			score += 0.05
			break
		}
	}
	if strings.ContainsAny(s, "\"“”‘’'") {
		score += 0.05
	}
	if len(queryTerms) > 0 {
		overlap := 0.0
		for _, t := range tokenizeSimple(s) {
			if queryTerms[t] {
				overlap += 0.1
				if overlap >= 0.3 {
					break
				}
			}
		}
		score += overlap
	}
	return score
}

func tokenizeSimple(s string) map[string]bool {
	out := make(map[string]bool)
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			out[strings.ToLower(string(cur))] = true
			cur = cur[:0]
		}
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur = append(cur, r)
		} else {
			flush()
		}
	}
	flush()
	return out
}

func sortByScoreDesc(s []scoredSentence) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].score > s[j-1].score; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func splitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	for _, r := range text {
		cur.WriteRune(r)
		switch r {
		case '.', '!', '?', '。', '！', '？':
			s := strings.TrimSpace(cur.String())
			if s != "" {
				out = append(out, s)
			}
			cur.Reset()
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}

// AutoCompact implements spec.md §4.6.3's auto_compact: if the sum of
// item token counts already fits budget, return items unchanged.
// Otherwise, iterating from lowest to highest priority, CRITICAL items are
// never compressed; LOW items are dropped if overflow_ratio > 1.5 else
// compressed to 0.30; MEDIUM items compress to max(0.40, 1/overflow_ratio);
// HIGH items compress to max(0.70, 1/overflow_ratio).
func AutoCompact(items []ContextItem, budget int, compress func(ContextItem, float64) ContextItem) []ContextItem {
	total := 0
	for _, it := range items {
		total += it.TokenCount
	}
	if total <= budget || budget <= 0 {
		return items
	}
	overflow := float64(total) / float64(budget)

	byPriority := map[Priority][]int{}
	for i, it := range items {
		byPriority[it.Priority] = append(byPriority[it.Priority], i)
	}

	out := make([]ContextItem, len(items))
	copy(out, items)
	dropped := make(map[int]bool)

	for _, idx := range byPriority[Low] {
		if overflow > 1.5 {
			dropped[idx] = true
			continue
		}
		out[idx] = compress(out[idx], 0.30)
	}
	for _, idx := range byPriority[Medium] {
		ratio := math.Max(0.40, 1/overflow)
		out[idx] = compress(out[idx], ratio)
	}
	for _, idx := range byPriority[High] {
		ratio := math.Max(0.70, 1/overflow)
		out[idx] = compress(out[idx], ratio)
	}

	var result []ContextItem
	for i, it := range out {
		if dropped[i] {
			continue
		}
		result = append(result, it)
	}
	return result
}
