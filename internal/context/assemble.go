package context

import (
	"context"
	"fmt"
	"log/slog"
)

// ToolSpec is one entry of an agent's available tool set, used to build
// the Actionable section (spec.md §4.6.5 step 2).
type ToolSpec struct {
	Name        string
	Description string
	Parameters  string
}

// ToolTrace is one past tool invocation, the last <=5 of which feed the
// Actionable section.
type ToolTrace struct {
	ToolName string
	Summary  string
}

// Task describes the unit of work an agent is being asked to perform.
type Task struct {
	Type         string // "write", "edit", "research", ...
	Instructions string
	OutputSchema string
}

// AssembledContext is ContextOrchestrator.assemble_context's output
// (spec.md §4.6.5 step 7): three rendered string sections plus the
// surviving items for downstream persistence.
type AssembledContext struct {
	System        string
	Informational string
	Actionable    string
	Items         []ContextItem
	Health        HealthReport
}

// AgentIdentity supplies the agent-specific prompt fragments used to
// build the Guiding context.
type AgentIdentity struct {
	Name        string
	Description string
}

// Sources bundles the callbacks ContextOrchestrator needs to resolve
// content without internal/context importing internal/storage directly
// (keeping this package storage-agnostic and independently testable).
type Sources struct {
	Load             Loader
	Candidates       CandidateLoader
	StyleCardText    string
	ToolTraces       []ToolTrace
	Tools            []ToolSpec
	EstablishedFacts []string
}

// ContextOrchestrator implements spec.md §4.6.5's assemble_context.
type ContextOrchestrator struct {
	Budget   *BudgetManager
	Compress *Compressor
	Guard    *DegradationGuard
	Log      *slog.Logger
}

// NewContextOrchestrator wires a BudgetManager, Compressor, and
// DegradationGuard into one assembler.
func NewContextOrchestrator(budget *BudgetManager, compressor *Compressor, guard *DegradationGuard, log *slog.Logger) *ContextOrchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &ContextOrchestrator{Budget: budget, Compress: compressor, Guard: guard, Log: log}
}

// AssembleContext runs spec.md §4.6.5 steps 1-7 for one agent invocation.
func (o *ContextOrchestrator) AssembleContext(ctx context.Context, agent AgentIdentity, task Task, query string, types []string, src Sources) AssembledContext {
	guiding := o.buildGuiding(agent, task, src)
	actionable := o.buildActionable(src)

	guidingTokens := EstimateTokens(guiding)
	actionableTokens := EstimateTokens(actionable)

	maxTokens := o.Budget.TotalAvailable()
	infoBudget := maxTokens - guidingTokens - actionableTokens - 2000
	if infoBudget < 0 {
		infoBudget = 0
	}

	var items []ContextItem
	if src.Load != nil {
		items = append(items, DeterministicSelect(agent.Name, src.Load, o.Log)...)
	}
	if src.Candidates != nil && len(types) > 0 {
		items = append(items, RetrievalSelect(query, types, MaxCandidatesPerType, src.Candidates)...)
	}

	compressFn := func(it ContextItem, ratio float64) ContextItem {
		compressed, _ := SmartCompress(it.Content, ratio, query, true)
		it.Content = compressed
		it.TokenCount = EstimateTokens(compressed)
		return it
	}

	selected := SelectOptimal(items, infoBudget, compressFn)

	health := o.Guard.HealthCheck(ctx, selected, infoBudget, src.EstablishedFacts)
	total := 0
	for _, it := range selected {
		total += it.TokenCount
	}
	if !health.Healthy || total > infoBudget {
		selected = AutoCompact(selected, infoBudget, compressFn)
		health = o.Guard.HealthCheck(ctx, selected, infoBudget, src.EstablishedFacts)
	}

	informational := renderInformational(selected)

	return AssembledContext{
		System:        guiding,
		Informational: informational,
		Actionable:    actionable,
		Items:         selected,
		Health:        health,
	}
}

func (o *ContextOrchestrator) buildGuiding(agent AgentIdentity, task Task, src Sources) string {
	s := fmt.Sprintf("You are %s. %s\n\nTask: %s\n%s\n", agent.Name, agent.Description, task.Type, task.Instructions)
	if task.OutputSchema != "" {
		s += "\nOutput schema:\n" + task.OutputSchema + "\n"
	}
	if (task.Type == "write" || task.Type == "edit") && src.StyleCardText != "" {
		s += "\nStyle guide:\n" + src.StyleCardText + "\n"
	}
	return s
}

func (o *ContextOrchestrator) buildActionable(src Sources) string {
	s := "Available tools:\n"
	for _, t := range src.Tools {
		s += fmt.Sprintf("- %s: %s (%s)\n", t.Name, t.Description, t.Parameters)
	}
	traces := src.ToolTraces
	if len(traces) > 5 {
		traces = traces[len(traces)-5:]
	}
	if len(traces) > 0 {
		s += "\nRecent tool activity:\n"
		for _, t := range traces {
			s += fmt.Sprintf("- %s: %s\n", t.ToolName, t.Summary)
		}
	}
	return s
}

func renderInformational(items []ContextItem) string {
	s := ""
	for _, it := range items {
		s += fmt.Sprintf("[%s:%s]\n%s\n\n", it.Type, it.ID, it.Content)
	}
	return s
}
