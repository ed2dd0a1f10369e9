package research

import (
	"context"
	"fmt"

	"github.com/jackzampolin/wenshape/internal/evidence"
	"github.com/jackzampolin/wenshape/internal/model"
	"github.com/jackzampolin/wenshape/internal/providers"
)

// DefaultMaxRounds is spec.md §4.8's default round cap.
const DefaultMaxRounds = 5

// topSourceCapPerRound is spec.md §4.8 step 5's "up to 3" cap on
// per-round top_sources attached to the research trace.
const topSourceCapPerRound = 3

// ProgressFunc emits a structured progress event; nil is a valid no-op.
type ProgressFunc func(event model.ProgressEvent)

// Loop runs spec.md §4.8's Research Loop.
type Loop struct {
	WorkingMemory *WorkingMemoryService
	Planner       Planner
	MaxRounds     int
	Offline       bool
	Progress      ProgressFunc
}

// NewLoop constructs a Loop; maxRounds<=0 defaults to DefaultMaxRounds.
func NewLoop(wm *WorkingMemoryService, planner Planner, maxRounds int, offline bool, progress ProgressFunc) *Loop {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &Loop{WorkingMemory: wm, Planner: planner, MaxRounds: maxRounds, Offline: offline, Progress: progress}
}

// Run executes the loop for one chapter's goal/scene brief, returning a
// fully populated MemoryPackPayload with research_trace and
// research_stop_reason attached, per spec.md §4.8 step 8.
func (l *Loop) Run(ctx context.Context, goal string, brief model.SceneBrief, userAnswers []string, llm providers.LLMClient) (model.MemoryPackPayload, error) {
	gaps := l.WorkingMemory.BuildGapItems(goal, brief)

	var extraQueries []string
	var trace []model.ResearchTraceEntry
	var lastPayload PrepareResult
	stopReason := ""

	for round := 1; round <= l.MaxRounds; round++ {
		if round == 1 {
			plan, note := l.planRound1(ctx, goal, gaps)
			extraQueries = plan
			l.emit("generate_plan", round, extraQueries, note)
		}

		l.emit("prepare_retrieval", round, extraQueries, "resolving mention candidates and retrieval seeds")

		result, err := l.WorkingMemory.Prepare(ctx, goal, brief, userAnswers, extraQueries, !l.Offline, llm)
		if err != nil {
			return model.MemoryPackPayload{}, fmt.Errorf("research: round %d failed: %w", round, err)
		}
		lastPayload = result

		l.emit("execute_retrieval", round, result.Queries, "")

		entry := model.ResearchTraceEntry{
			Round:        round,
			Queries:      result.Queries,
			Count:        len(result.Hits),
			Hits:         len(result.Hits),
			TopSources:   topSourceStrings(result.TopSources, topSourceCapPerRound),
			ExtraQueries: extraQueries,
		}

		switch {
		case result.Sufficiency.Sufficient:
			stopReason = "sufficient"
			entry.StopReason = stopReason
			entry.Note = "证据充分，提前结束研究"
			trace = append(trace, entry)
		case round == l.MaxRounds:
			stopReason = "max_rounds"
			entry.StopReason = stopReason
			trace = append(trace, entry)
		case result.Offline || l.Offline:
			stopReason = "offline_stop"
			entry.StopReason = stopReason
			trace = append(trace, entry)
		default:
			l.emit("self_check", round, nil, "证据不足，继续检索")
			plan, err := l.Planner.GenerateResearchPlan(ctx, goal, gaps, statsFromEntry(entry), round+1)
			if err != nil || len(plan.Queries) == 0 {
				stopReason = "no_queries"
				entry.StopReason = stopReason
				trace = append(trace, entry)
			} else {
				trace = append(trace, entry)
				extraQueries = plan.Queries
				continue
			}
		}
		break
	}

	questions := []string{}
	if stopReason == "max_rounds" && lastPayload.Sufficiency.NeedsUserInput {
		questions = buildQuestions(lastPayload.Sufficiency)
	}

	return model.MemoryPackPayload{
		WorkingMemory:      renderWorkingMemory(lastPayload.Hits),
		EvidencePack:       lastPayload.Hits,
		UnresolvedGaps:     lastPayload.Sufficiency.MissingEntities,
		SeedEntities:       seedNamesFromGaps(gaps),
		SufficiencyReport:  lastPayload.Sufficiency,
		ResearchTrace:      trace,
		ResearchStopReason: stopReason,
		Questions:          questions,
	}, nil
}

func (l *Loop) planRound1(ctx context.Context, goal string, gaps []GapItem) ([]string, string) {
	if l.Offline {
		var queries []string
		for _, g := range gaps {
			queries = append(queries, g.Queries...)
		}
		return dedupStrings(queries), "offline mode: folded gap queries"
	}
	plan, err := l.Planner.GenerateResearchPlan(ctx, goal, gaps, nil, 1)
	if err != nil {
		return nil, "plan generation failed, proceeding with no extra queries"
	}
	return plan.Queries, plan.Note
}

func (l *Loop) emit(stage string, round int, queries []string, note string) {
	if l.Progress == nil {
		return
	}
	var payload map[string]any
	if note != "" {
		payload = map[string]any{"note": note}
	}
	l.Progress(model.ProgressEvent{Type: "research", Stage: stage, Round: round, Queries: queries, Payload: payload})
}

func topSourceStrings(sources []evidence.TopSource, limit int) []string {
	if limit > 0 && len(sources) > limit {
		sources = sources[:limit]
	}
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		if s.Type == string(model.EvidenceMemory) {
			continue
		}
		out = append(out, s.Type+":"+s.Chapter)
	}
	return out
}

func statsFromEntry(entry model.ResearchTraceEntry) map[string]any {
	return map[string]any{"count": entry.Count, "hits": entry.Hits, "round": entry.Round}
}

func seedNamesFromGaps(gaps []GapItem) []string {
	seen := make(map[string]bool)
	var out []string
	for _, g := range gaps {
		for _, q := range g.Queries {
			if q == "" || seen[q] {
				continue
			}
			seen[q] = true
			out = append(out, q)
		}
	}
	return out
}

// renderWorkingMemory concatenates each hit's text into one plain-text
// working-memory block, in descending relevance order as returned by the
// evidence search.
func renderWorkingMemory(hits []model.EvidenceItem) string {
	var b []byte
	for _, h := range hits {
		b = append(b, '[')
		b = append(b, h.Type...)
		b = append(b, "] "...)
		b = append(b, h.Text...)
		b = append(b, '\n')
	}
	return string(b)
}

func buildQuestions(report model.SufficiencyReport) []string {
	if len(report.MissingEntities) == 0 {
		return []string{"这一章还有哪些关键信息需要补充？"}
	}
	var qs []string
	for _, m := range report.MissingEntities {
		qs = append(qs, fmt.Sprintf("关于%s，还需要补充哪些设定？", m))
	}
	return qs
}
