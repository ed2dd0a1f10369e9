package bm25

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeASCII(t *testing.T) {
	terms := Tokenize("Alice wears silver Armor")
	assert.Equal(t, []string{"alice", "wears", "silver", "armor"}, terms)
}

func TestTokenizeCJKShingles(t *testing.T) {
	terms := Tokenize("必须")
	assert.Contains(t, terms, "必须")
}

func TestUniqueTermsDedup(t *testing.T) {
	terms := UniqueTerms("alice armor", "alice knight")
	seen := map[string]int{}
	for _, t := range terms {
		seen[t]++
	}
	for term, count := range seen {
		assert.Equal(t, 1, count, "term %q duplicated", term)
	}
}

// spec.md §8: "BM25 correctness" seed scenario.
func TestBM25Ranking(t *testing.T) {
	docs := []Doc{
		NewDoc("f1", "Alice is a knight"),
		NewDoc("f2", "Alice wears silver armor"),
		NewDoc("f3", "Bob runs a tavern"),
	}
	terms := UniqueTerms("Alice armor")
	results := SearchAll(docs, terms)
	require.Len(t, results, 3)

	byID := map[string]float64{}
	for _, r := range results {
		byID[r.ID] = r.Score
	}
	assert.Greater(t, byID["f2"], byID["f1"])
	assert.Greater(t, byID["f1"], 0.0)
	assert.Equal(t, 0.0, byID["f3"])

	assert.Equal(t, "f2", results[0].ID)
	assert.Equal(t, "f1", results[1].ID)
}

// spec.md §8: "BM25 monotonicity in tf".
func TestBM25Monotonic(t *testing.T) {
	df := map[string]int{"alice": 2}
	low := Doc{ID: "a", Terms: map[string]int{"alice": 1}, DocLen: 10}
	high := Doc{ID: "b", Terms: map[string]int{"alice": 5}, DocLen: 10}
	terms := []string{"alice"}
	avgdl := 10.0
	n := 5
	assert.GreaterOrEqual(t, Score(high, terms, df, n, avgdl), Score(low, terms, df, n, avgdl))
}

func TestBM25ZeroCorpus(t *testing.T) {
	assert.Equal(t, 0.0, Score(NewDoc("x", "hi"), []string{"hi"}, map[string]int{}, 0, 0))
}
