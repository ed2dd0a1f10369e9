package context

import (
	"context"
	"strings"
	"testing"
)

func TestRuleBasedCompressDropsBlankLinesAndTruncates(t *testing.T) {
	long := strings.Repeat("x", 250)
	text := "line one\n\nline two\n" + long + "\nline four\nline five"
	got := RuleBasedCompress(text, 1.0)
	if strings.Contains(got, "\n\n") {
		t.Fatal("blank lines should be dropped")
	}
	for _, line := range strings.Split(got, "\n") {
		if len([]rune(line)) > 203 { // 200 + "..."
			t.Fatalf("line not truncated: %d runes", len([]rune(line)))
		}
	}
}

func TestRuleBasedCompressKeepsMinimumThreeLines(t *testing.T) {
	text := "a\nb\nc\nd\ne\nf\ng\nh\ni\nj"
	got := RuleBasedCompress(text, 0.1)
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3 (minimum)", len(lines))
	}
}

func TestLLMCompressFallsBackWithoutClient(t *testing.T) {
	c := NewCompressor(nil)
	text := "alpha\nbeta\ngamma\ndelta\nepsilon\nzeta\neta\ntheta"
	got := c.LLMCompress(context.Background(), text, EstimateTokens(text)/2, PreserveMixed)
	if got == "" {
		t.Fatal("expected non-empty fallback output")
	}
}

func TestSmartCompressPreservesHeadAndTail(t *testing.T) {
	content := "First sentence sets the scene. Second sentence adds detail. " +
		"Third sentence is filler. Fourth sentence is also filler. " +
		"Fifth sentence reveals the twist at the end."
	compressed, stats := SmartCompress(content, 0.6, "twist", true)
	if stats.OriginalSentences == 0 {
		t.Fatal("expected sentences to be split")
	}
	if !strings.Contains(compressed, "First sentence") {
		t.Fatal("head sentence should be preserved")
	}
	if !strings.Contains(compressed, "Fifth sentence") {
		t.Fatal("tail sentence should be preserved")
	}
}

func TestAutoCompactNoopWhenUnderBudget(t *testing.T) {
	items := []ContextItem{{ID: "a", Priority: Medium, TokenCount: 10}}
	out := AutoCompact(items, 100, nil)
	if len(out) != 1 || out[0].TokenCount != 10 {
		t.Fatal("items under budget should be returned unchanged")
	}
}

func TestAutoCompactDropsLowPriorityOnSevereOverflow(t *testing.T) {
	items := []ContextItem{
		{ID: "crit", Priority: Critical, TokenCount: 900},
		{ID: "low", Priority: Low, TokenCount: 900},
	}
	compress := func(it ContextItem, ratio float64) ContextItem {
		it.TokenCount = int(float64(it.TokenCount) * ratio)
		return it
	}
	out := AutoCompact(items, 1000, compress)
	for _, it := range out {
		if it.ID == "low" {
			t.Fatal("low priority item should be dropped when overflow_ratio > 1.5")
		}
	}
	if len(out) != 1 || out[0].ID != "crit" {
		t.Fatal("critical item must survive untouched")
	}
}

func TestAutoCompactNeverCompressesCritical(t *testing.T) {
	items := []ContextItem{
		{ID: "crit", Priority: Critical, TokenCount: 2000},
		{ID: "med", Priority: Medium, TokenCount: 2000},
	}
	compress := func(it ContextItem, ratio float64) ContextItem {
		it.TokenCount = int(float64(it.TokenCount) * ratio)
		return it
	}
	out := AutoCompact(items, 1000, compress)
	for _, it := range out {
		if it.ID == "crit" && it.TokenCount != 2000 {
			t.Fatal("critical item token count must not change")
		}
	}
}
