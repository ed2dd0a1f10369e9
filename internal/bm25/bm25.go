// Package bm25 implements the tokenizer and ranking function shared by
// internal/evidence and internal/textchunk (spec.md §4.3 step 1-4): ASCII
// word tokenization plus CJK bigram/trigram shingling, document-frequency
// counting, and the Okapi BM25 score with k1=1.2, b=0.75.
//
// Grounded on no single teacher file (shelf has no retrieval component);
// written in the teacher's plain-function, no-framework style used by
// internal/jobs/common/ocr_quality.go for text-scoring heuristics.
package bm25

import (
	"math"
	"sort"
	"unicode"
)

const (
	// K1 and B are the classic Okapi BM25 tuning constants named in
	// spec.md §4.3.
	K1 = 1.2
	B  = 0.75
)

// Tokenize splits text into lowercase terms: ASCII alphanumeric runs are
// kept as whole words; runs of CJK ideographs are shingled into
// overlapping 2-grams and 3-grams, since CJK text has no word boundaries.
// The result preserves duplicates (term frequency matters to the caller)
// but is not deduplicated.
func Tokenize(text string) []string {
	runes := []rune(text)
	var terms []string
	var asciiRun []rune
	var cjkRun []rune

	flushASCII := func() {
		if len(asciiRun) > 0 {
			terms = append(terms, string(asciiRun))
			asciiRun = asciiRun[:0]
		}
	}
	flushCJK := func() {
		if len(cjkRun) >= 2 {
			for i := 0; i < len(cjkRun)-1; i++ {
				terms = append(terms, string(cjkRun[i:i+2]))
			}
		}
		if len(cjkRun) >= 3 {
			for i := 0; i < len(cjkRun)-2; i++ {
				terms = append(terms, string(cjkRun[i:i+3]))
			}
		}
		if len(cjkRun) == 1 {
			terms = append(terms, string(cjkRun))
		}
		cjkRun = cjkRun[:0]
	}

	for _, r := range runes {
		switch {
		case isCJK(r):
			flushASCII()
			cjkRun = append(cjkRun, unicode.ToLower(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			flushCJK()
			asciiRun = append(asciiRun, unicode.ToLower(r))
		default:
			flushASCII()
			flushCJK()
		}
	}
	flushASCII()
	flushCJK()
	return terms
}

// UniqueTerms tokenizes and deduplicates, used when building a query term
// set from one or more queries (spec.md §4.3 step 1: "union queries ->
// term set... deduplicate terms").
func UniqueTerms(queries ...string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, q := range queries {
		for _, t := range Tokenize(q) {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r)
}

// Doc is one scorable document: its tokenized term frequency table and
// total token count (doc_len).
type Doc struct {
	ID     string
	Terms  map[string]int
	DocLen int
}

// NewDoc tokenizes text into a Doc with the given id.
func NewDoc(id, text string) Doc {
	tf := make(map[string]int)
	toks := Tokenize(text)
	for _, t := range toks {
		tf[t]++
	}
	return Doc{ID: id, Terms: tf, DocLen: len(toks)}
}

// DocFreq computes document frequency for each of terms across docs.
func DocFreq(docs []Doc, terms []string) map[string]int {
	df := make(map[string]int, len(terms))
	termSet := make(map[string]bool, len(terms))
	for _, t := range terms {
		termSet[t] = true
	}
	for _, d := range docs {
		for t := range termSet {
			if d.Terms[t] > 0 {
				df[t]++
			}
		}
	}
	return df
}

// AvgDocLen computes the mean DocLen across docs (0 if docs is empty).
func AvgDocLen(docs []Doc) float64 {
	if len(docs) == 0 {
		return 0
	}
	total := 0
	for _, d := range docs {
		total += d.DocLen
	}
	return float64(total) / float64(len(docs))
}

// Score computes the Okapi BM25 score of doc against terms, given the
// corpus's document frequency table, document count N, and average
// document length. BM25 is non-decreasing in any term's frequency for
// freq >= 0 (spec.md §8 "BM25 monotonicity in tf"), holding df/N/avgdl
// constant.
func Score(doc Doc, terms []string, df map[string]int, n int, avgdl float64) float64 {
	if n == 0 || avgdl == 0 {
		return 0
	}
	var score float64
	for _, term := range terms {
		freq := float64(doc.Terms[term])
		if freq == 0 {
			continue
		}
		d := float64(df[term])
		idf := math.Log(1 + (float64(n)-d+0.5)/(d+0.5))
		if idf < 0 {
			idf = 0
		}
		numerator := freq * (K1 + 1)
		denominator := freq + K1*(1-B+B*float64(doc.DocLen)/avgdl)
		score += idf * numerator / denominator
	}
	return score
}

// Result is one scored document, used by SearchAll.
type Result struct {
	ID    string
	Score float64
}

// SearchAll scores every doc against terms and returns results sorted by
// score descending (ties broken by original doc order, stable).
func SearchAll(docs []Doc, terms []string) []Result {
	df := DocFreq(docs, terms)
	avgdl := AvgDocLen(docs)
	n := len(docs)
	results := make([]Result, 0, len(docs))
	for _, d := range docs {
		results = append(results, Result{ID: d.ID, Score: Score(d, terms, df, n, avgdl)})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}
