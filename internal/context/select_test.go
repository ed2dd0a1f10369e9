package context

import "testing"

func TestDeterministicSelectSkipsMissing(t *testing.T) {
	load := func(name string) (string, bool) {
		if name == "style_card" {
			return "terse, present tense", true
		}
		return "", false
	}
	items := DeterministicSelect("writer", load, nil)
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1 (scene_brief missing)", len(items))
	}
	if items[0].Priority != Critical {
		t.Fatalf("Priority = %v, want Critical", items[0].Priority)
	}
}

func TestRetrievalSelectRanksByHybridScore(t *testing.T) {
	load := func(typ string, limit int) []Candidate {
		return []Candidate{
			{ID: "c1", Type: typ, Content: "Alice is a knight who wears silver armor"},
			{ID: "c2", Type: typ, Content: "Bob runs the tavern down the street"},
			{ID: "c3", Type: typ, Content: "The weather was calm that day"},
		}
	}
	items := RetrievalSelect("Alice armor", []string{"character"}, 5, load)
	if len(items) == 0 {
		t.Fatal("expected at least one result")
	}
	if items[0].ID != "c1" {
		t.Fatalf("top result ID = %s, want c1", items[0].ID)
	}
}

func TestRetrievalSelectRespectsTopK(t *testing.T) {
	load := func(typ string, limit int) []Candidate {
		return []Candidate{
			{ID: "c1", Type: typ, Content: "Alice trains every morning with her sword"},
			{ID: "c2", Type: typ, Content: "Alice walks to town in the morning"},
			{ID: "c3", Type: typ, Content: "Alice sleeps through the morning"},
		}
	}
	items := RetrievalSelect("Alice morning", []string{"fact"}, 2, load)
	if len(items) > 2 {
		t.Fatalf("len(items) = %d, want <= 2", len(items))
	}
}

func TestSelectOptimalKeepsAllCriticalAndFillsByScore(t *testing.T) {
	items := []ContextItem{
		{ID: "crit", Priority: Critical, TokenCount: 500},
		{ID: "high1", Priority: High, RelevanceScore: 0.9, TokenCount: 100},
		{ID: "high2", Priority: High, RelevanceScore: 0.1, TokenCount: 1000},
		{ID: "med1", Priority: Medium, RelevanceScore: 0.5, TokenCount: 100},
	}
	out := SelectOptimal(items, 700, nil)
	ids := map[string]bool{}
	for _, it := range out {
		ids[it.ID] = true
	}
	if !ids["crit"] {
		t.Fatal("critical item must always be kept")
	}
	if !ids["high1"] {
		t.Fatal("high1 fits within budget and should be kept")
	}
	if ids["high2"] {
		t.Fatal("high2 does not fit and has no compressor, should be dropped")
	}
}

func TestSelectOptimalRetriesHighWithCompression(t *testing.T) {
	items := []ContextItem{
		{ID: "crit", Priority: Critical, TokenCount: 500},
		{ID: "high1", Priority: High, RelevanceScore: 0.9, TokenCount: 300},
	}
	compress := func(it ContextItem, ratio float64) ContextItem {
		it.TokenCount = int(float64(it.TokenCount) * ratio)
		return it
	}
	out := SelectOptimal(items, 700, compress)
	found := false
	for _, it := range out {
		if it.ID == "high1" {
			found = true
			if it.TokenCount != 150 {
				t.Fatalf("compressed TokenCount = %d, want 150", it.TokenCount)
			}
		}
	}
	if !found {
		t.Fatal("high1 should survive via compression retry")
	}
}
