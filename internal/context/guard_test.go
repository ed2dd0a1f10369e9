package context

import (
	"context"
	"testing"
)

func TestHealthCheckDistractionSeverity(t *testing.T) {
	g := NewDegradationGuard(nil)
	items := []ContextItem{{ID: "a", Priority: Medium, RelevanceScore: 0.8, TokenCount: 950}}
	report := g.HealthCheck(context.Background(), items, 1000, nil)
	if report.Healthy {
		t.Fatal("95% usage should be unhealthy")
	}
	found := false
	for _, iss := range report.Issues {
		if iss.Type == DegradationDistraction && iss.Severity == SeverityCritical {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a critical distraction issue at >=90% usage")
	}
}

func TestHealthCheckConfusionOnLowRelevance(t *testing.T) {
	g := NewDegradationGuard(nil)
	items := []ContextItem{
		{ID: "a", RelevanceScore: 0.1, TokenCount: 10},
		{ID: "b", RelevanceScore: 0.1, TokenCount: 10},
		{ID: "c", RelevanceScore: 0.9, TokenCount: 10},
	}
	report := g.HealthCheck(context.Background(), items, 1000, nil)
	found := false
	for _, iss := range report.Issues {
		if iss.Type == DegradationConfusion {
			found = true
		}
	}
	if !found {
		t.Fatal("2 of 3 low-relevance items should trip confusion detection")
	}
}

func TestHealthCheckClashTrivialRuleFallback(t *testing.T) {
	g := NewDegradationGuard(nil)
	items := []ContextItem{
		{ID: "a", Type: "fact", Content: "Alice has blue eyes", TokenCount: 5},
		{ID: "b", Type: "fact", Content: "Alice has blue eyes", TokenCount: 5},
	}
	report := g.HealthCheck(context.Background(), items, 1000, nil)
	found := false
	for _, iss := range report.Issues {
		if iss.Type == DegradationClash {
			found = true
		}
	}
	if !found {
		t.Fatal("identical-content items of the same type should trip the trivial clash fallback")
	}
}

func TestHealthCheckPoisoningNegationHeuristic(t *testing.T) {
	g := NewDegradationGuard(nil)
	items := []ContextItem{{ID: "a", Type: "draft", Content: "Alice is 不 a knight now", TokenCount: 5}}
	report := g.HealthCheck(context.Background(), items, 1000, []string{"Alice is a knight"})
	found := false
	for _, iss := range report.Issues {
		if iss.Type == DegradationPoisoning {
			found = true
		}
	}
	if !found {
		t.Fatal("negated overlap with an established fact should trip poisoning detection")
	}
}

func TestHealthCheckHealthyWhenNoIssues(t *testing.T) {
	g := NewDegradationGuard(nil)
	items := []ContextItem{{ID: "a", RelevanceScore: 0.9, TokenCount: 10}}
	report := g.HealthCheck(context.Background(), items, 1000, nil)
	if !report.Healthy {
		t.Fatalf("expected healthy report, got issues: %+v", report.Issues)
	}
}
