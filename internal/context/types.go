// Package context implements spec.md's C6 Context Select/Compress/Assemble
// pipeline: token budgeting (§4.6.1), deterministic and retrieval
// selection (§4.6.2), rule-based/LLM/smart compression (§4.6.3), the
// degradation guard (§4.6.4), and final assembly into an AssembledContext
// (§4.6.5).
//
// Grounded on no single teacher file (shelf has no LLM-context-budgeting
// subsystem); built in the teacher's explicit-struct, no-framework style,
// reusing internal/bm25 for retrieval_select's local scoring and
// internal/evidence's stopword/negation lists for the degradation guard.
package context

import "time"

// Priority ranks a ContextItem's importance; lower numeric value sorts
// first (spec.md §4.6.1: "CRITICAL < HIGH < MEDIUM < LOW").
type Priority int

const (
	Critical Priority = 1
	High     Priority = 2
	Medium   Priority = 3
	Low      Priority = 4
)

func (p Priority) String() string {
	switch p {
	case Critical:
		return "critical"
	case High:
		return "high"
	case Medium:
		return "medium"
	case Low:
		return "low"
	default:
		return "unknown"
	}
}

// ContextItem is one atomic piece of candidate content, per spec.md §4.6.1.
type ContextItem struct {
	ID             string
	Type           string
	Content        string
	Priority       Priority
	RelevanceScore float64
	TokenCount     int
	Metadata       map[string]any
	CreatedAt      time.Time
}

// EstimateTokens approximates a token count for text. ASCII runs cost
// roughly 4 characters per token (the common English-text heuristic); CJK
// runs cost roughly 1.5 characters per token, since each ideograph is
// closer to its own token under BPE tokenizers. This is an estimate only,
// used for budget accounting, not an exact tokenizer.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	var ascii, cjk int
	for _, r := range text {
		if isCJKRune(r) {
			cjk++
		} else {
			ascii++
		}
	}
	tokens := float64(ascii)/4.0 + float64(cjk)/1.5
	if tokens < 1 && (ascii > 0 || cjk > 0) {
		tokens = 1
	}
	return int(tokens + 0.5)
}

func isCJKRune(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || // CJK unified ideographs
		(r >= 0x3040 && r <= 0x30FF) || // hiragana/katakana
		(r >= 0xAC00 && r <= 0xD7A3) // hangul
}
