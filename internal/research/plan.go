// Package research implements spec.md §4.8's Research Loop (C8): a
// multi-round planner that generates retrieval queries, runs them through
// the Evidence Indexer, checks sufficiency, and either plans another
// round or stops, attaching a research_trace and stop reason.
//
// Grounded on no single teacher file (shelf has no agentic research
// loop); built around internal/evidence's Search and internal/binding's
// entity extraction, in the teacher's narrow-interface style for the
// LLM-backed planning step (internal/providers.LLMClient).
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackzampolin/wenshape/internal/providers"
)

// GapItem is one unresolved information gap surfaced from the scene
// brief or goal, each carrying candidate retrieval queries.
type GapItem struct {
	Text    string   `json:"text"`
	Queries []string `json:"queries"`
}

// Plan is generate_research_plan's return value: the next round's extra
// queries plus a short human-readable reasoning note.
type Plan struct {
	Queries []string `json:"queries"`
	Note    string   `json:"note"`
}

// Planner asks the writer agent to propose the next round's queries.
// internal/research depends on this narrow interface rather than a
// concrete writer-agent type, matching internal/providers.LLMClient's
// "capability behind an interface" idiom.
type Planner interface {
	GenerateResearchPlan(ctx context.Context, goal string, gaps []GapItem, stats map[string]any, round int) (Plan, error)
}

// LLMPlanner is a Planner backed directly by an LLMClient, used when no
// richer writer-agent abstraction is wired in yet.
type LLMPlanner struct {
	LLM providers.LLMClient
}

// NewLLMPlanner constructs an LLMPlanner; llm may be nil, in which case
// GenerateResearchPlan always returns each gap's own queries verbatim
// (the "offline mode" fallback named in spec.md §4.8 step 1).
func NewLLMPlanner(llm providers.LLMClient) *LLMPlanner {
	return &LLMPlanner{LLM: llm}
}

// GenerateResearchPlan implements Planner. Without an LLM configured it
// folds every gap's queries into one plan (offline mode); with one, it
// asks for a JSON {queries, note} plan and falls back to the offline
// behavior on any parse or call failure.
func (p *LLMPlanner) GenerateResearchPlan(ctx context.Context, goal string, gaps []GapItem, stats map[string]any, round int) (Plan, error) {
	offline := offlinePlan(gaps)
	if p.LLM == nil {
		return offline, nil
	}

	var gapLines []string
	for _, g := range gaps {
		gapLines = append(gapLines, fmt.Sprintf("- %s (queries: %s)", g.Text, strings.Join(g.Queries, ", ")))
	}
	statsJSON, _ := json.Marshal(stats)
	prompt := fmt.Sprintf(
		"Goal: %s\nRound: %d\nUnresolved gaps:\n%s\nRetrieval stats so far: %s\n\n"+
			"Propose up to 4 additional search queries that would close the most important gaps. "+
			"Respond with JSON only: {\"queries\": [...], \"note\": \"...\"}. "+
			"If no further queries would help, return an empty queries array.",
		goal, round, strings.Join(gapLines, "\n"), string(statsJSON),
	)
	result, err := p.LLM.Chat(ctx, &providers.ChatRequest{Messages: []providers.Message{{Role: "user", Content: prompt}}})
	if err != nil || result == nil || !result.Success {
		return offline, nil
	}

	var plan Plan
	if err := json.Unmarshal([]byte(extractJSONObject(result.Content)), &plan); err != nil {
		return offline, nil
	}
	return plan, nil
}

func offlinePlan(gaps []GapItem) Plan {
	var queries []string
	for _, g := range gaps {
		queries = append(queries, g.Queries...)
	}
	return Plan{Queries: dedupStrings(queries), Note: "offline planning: folded gap queries directly"}
}

func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// extractJSONObject returns the first balanced {...} substring of s,
// stripping common markdown code fences first.
func extractJSONObject(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "{}"
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return "{}"
}
