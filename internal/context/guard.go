package context

import (
	"context"
	"strings"

	"github.com/jackzampolin/wenshape/internal/evidence"
	"github.com/jackzampolin/wenshape/internal/providers"
)

// DegradationKind names one of spec.md §4.6.4's four degradation modes.
type DegradationKind string

const (
	DegradationPoisoning   DegradationKind = "poisoning"
	DegradationDistraction DegradationKind = "distraction"
	DegradationConfusion   DegradationKind = "confusion"
	DegradationClash       DegradationKind = "clash"
)

// Severity is an Issue's urgency.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Issue is one health_check finding.
type Issue struct {
	Type     DegradationKind
	Severity Severity
	Message  string
	ItemIDs  []string
}

// HealthReport is degradation_guard.health_check's return value.
type HealthReport struct {
	Healthy          bool
	Issues           []Issue
	Recommendations  []string
	TokenUsage       int
	DegradationRisks []DegradationKind
}

// DegradationGuard runs the four detectors of spec.md §4.6.4.
type DegradationGuard struct {
	LLM providers.LLMClient
}

// NewDegradationGuard constructs a guard; llm may be nil, in which case
// the clash and poisoning detectors fall back to their rule heuristics.
func NewDegradationGuard(llm providers.LLMClient) *DegradationGuard {
	return &DegradationGuard{LLM: llm}
}

// HealthCheck evaluates items against maxTokens and establishedFacts,
// returning a HealthReport per spec.md §4.6.4.
func (g *DegradationGuard) HealthCheck(ctx context.Context, items []ContextItem, maxTokens int, establishedFacts []string) HealthReport {
	var issues []Issue
	var risks []DegradationKind

	total := 0
	for _, it := range items {
		total += it.TokenCount
	}

	if maxTokens > 0 {
		ratio := float64(total) / float64(maxTokens)
		switch {
		case ratio >= 0.9:
			issues = append(issues, Issue{Type: DegradationDistraction, Severity: SeverityCritical, Message: "token usage exceeds 90% of budget"})
			risks = append(risks, DegradationDistraction)
		case ratio >= 0.7:
			issues = append(issues, Issue{Type: DegradationDistraction, Severity: SeverityWarning, Message: "token usage exceeds 70% of budget"})
			risks = append(risks, DegradationDistraction)
		}
	}

	if len(items) > 0 {
		low := 0
		var lowIDs []string
		for _, it := range items {
			if it.RelevanceScore < 0.3 {
				low++
				lowIDs = append(lowIDs, it.ID)
			}
		}
		if float64(low)/float64(len(items)) > 0.3 {
			issues = append(issues, Issue{Type: DegradationConfusion, Severity: SeverityWarning, Message: "more than 30% of items have low relevance", ItemIDs: lowIDs})
			risks = append(risks, DegradationConfusion)
		}
	}

	if clashIssues := g.detectClash(ctx, items); len(clashIssues) > 0 {
		issues = append(issues, clashIssues...)
		risks = append(risks, DegradationClash)
	}

	if poisonIssues := g.detectPoisoning(ctx, items, establishedFacts); len(poisonIssues) > 0 {
		issues = append(issues, poisonIssues...)
		risks = append(risks, DegradationPoisoning)
	}

	var recs []string
	for _, iss := range issues {
		switch iss.Type {
		case DegradationDistraction:
			recs = append(recs, "compress or drop low-priority items to fit the token budget")
		case DegradationConfusion:
			recs = append(recs, "raise the retrieval relevance threshold or drop low-relevance items")
		case DegradationClash:
			recs = append(recs, "resolve contradictory items before proceeding")
		case DegradationPoisoning:
			recs = append(recs, "review draft/scene_brief content against established facts")
		}
	}

	return HealthReport{
		Healthy:          len(issues) == 0,
		Issues:           issues,
		Recommendations:  recs,
		TokenUsage:       total,
		DegradationRisks: risks,
	}
}

// detectClash groups items by type and pairwise-checks for contradiction.
// With an LLM configured, each pair is asked "do these two contradict?";
// otherwise the trivial rule fallback flags pairs with identical content.
func (g *DegradationGuard) detectClash(ctx context.Context, items []ContextItem) []Issue {
	byType := map[string][]ContextItem{}
	for _, it := range items {
		byType[it.Type] = append(byType[it.Type], it)
	}

	var issues []Issue
	for _, group := range byType {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if g.contradicts(ctx, a.Content, b.Content) {
					issues = append(issues, Issue{
						Type: DegradationClash, Severity: SeverityWarning,
						Message: "contradictory items of type " + a.Type,
						ItemIDs: []string{a.ID, b.ID},
					})
				}
			}
		}
	}
	return issues
}

func (g *DegradationGuard) contradicts(ctx context.Context, a, b string) bool {
	if g.LLM == nil {
		return strings.TrimSpace(a) == strings.TrimSpace(b) && a != ""
	}
	prompt := "Do these two passages contradict each other? Answer yes or no only.\n\nA: " + a + "\n\nB: " + b
	result, err := g.LLM.Chat(ctx, &providers.ChatRequest{Messages: []providers.Message{{Role: "user", Content: prompt}}})
	if err != nil || result == nil || !result.Success {
		return strings.TrimSpace(a) == strings.TrimSpace(b) && a != ""
	}
	return strings.Contains(strings.ToLower(result.Content), "yes")
}

// detectPoisoning checks draft/scene_brief items against establishedFacts,
// via LLM when configured, else the negation-keyword heuristic.
func (g *DegradationGuard) detectPoisoning(ctx context.Context, items []ContextItem, establishedFacts []string) []Issue {
	if len(establishedFacts) == 0 {
		return nil
	}
	var issues []Issue
	for _, it := range items {
		if it.Type != "draft" && it.Type != "scene_brief" {
			continue
		}
		if g.LLM != nil {
			if g.contradictsFacts(ctx, it.Content, establishedFacts) {
				issues = append(issues, Issue{Type: DegradationPoisoning, Severity: SeverityCritical, Message: "content may contradict established facts", ItemIDs: []string{it.ID}})
			}
			continue
		}
		for _, fact := range establishedFacts {
			if evidence.HasNegation(it.Content) && overlapsTerms(it.Content, fact) {
				issues = append(issues, Issue{Type: DegradationPoisoning, Severity: SeverityWarning, Message: "possible negated contradiction with: " + fact, ItemIDs: []string{it.ID}})
				break
			}
		}
	}
	return issues
}

func (g *DegradationGuard) contradictsFacts(ctx context.Context, content string, facts []string) bool {
	prompt := "Established facts:\n" + strings.Join(facts, "\n") + "\n\nDoes this content contradict any established fact? Answer yes or no only.\n\n" + content
	result, err := g.LLM.Chat(ctx, &providers.ChatRequest{Messages: []providers.Message{{Role: "user", Content: prompt}}})
	if err != nil || result == nil || !result.Success {
		return false
	}
	return strings.Contains(strings.ToLower(result.Content), "yes")
}

func overlapsTerms(content, fact string) bool {
	contentTerms := tokenizeSimple(content)
	for term := range tokenizeSimple(fact) {
		if contentTerms[term] {
			return true
		}
	}
	return false
}
