package trace

import (
	"testing"

	"github.com/jackzampolin/wenshape/internal/model"
)

func TestCollectorRollupLLMRequest(t *testing.T) {
	c := NewCollector()
	c.Record(model.TraceEvent{Type: model.TraceLLMRequest, Data: map[string]any{
		"total_tokens": 100, "prompt_tokens": 70, "completion_tokens": 30,
	}})
	c.Record(model.TraceEvent{Type: model.TraceLLMRequest, Data: map[string]any{
		"total_tokens": 50, "prompt_tokens": 20, "completion_tokens": 30,
	}})
	stats := c.Stats()
	if stats.TotalTokens != 150 {
		t.Fatalf("TotalTokens = %d, want 150", stats.TotalTokens)
	}
	if stats.PromptTokens != 90 || stats.CompletionTokens != 60 {
		t.Fatalf("unexpected prompt/completion split: %+v", stats)
	}
}

func TestCollectorRollupContextSelectAndCompress(t *testing.T) {
	c := NewCollector()
	c.Record(model.TraceEvent{Type: model.TraceContextSelect, Data: map[string]any{"selected_items": 5, "input_tokens": 1000}})
	c.Record(model.TraceEvent{Type: model.TraceContextCompress, Data: map[string]any{"saved_tokens": 200}})
	stats := c.Stats()
	if stats.SelectedItems != 5 || stats.InputTokens != 1000 {
		t.Fatalf("unexpected select rollup: %+v", stats)
	}
	if stats.SavedTokens != 200 {
		t.Fatalf("SavedTokens = %d, want 200", stats.SavedTokens)
	}
}

func TestCollectorAssignsIDWhenMissing(t *testing.T) {
	c := NewCollector()
	c.Record(model.TraceEvent{Type: model.TraceAgentStart})
	backlog := c.Backlog()
	if len(backlog) != 1 || backlog[0].ID == "" {
		t.Fatal("expected one backlog event with a generated ID")
	}
}

func TestCollectorRingBufferWraps(t *testing.T) {
	c := NewCollector()
	for i := 0; i < RingCapacity+5; i++ {
		c.Record(model.TraceEvent{Type: model.TraceToolCall})
	}
	backlog := c.Backlog()
	if len(backlog) != RingCapacity {
		t.Fatalf("len(backlog) = %d, want %d after wraparound", len(backlog), RingCapacity)
	}
}

func TestCollectorSubscribeReceivesEvents(t *testing.T) {
	c := NewCollector()
	ch, unsub := c.Subscribe()
	defer unsub()
	c.Record(model.TraceEvent{Type: model.TraceHandoff})
	ev := <-ch
	if ev.Type != model.TraceHandoff {
		t.Fatalf("Type = %v, want TraceHandoff", ev.Type)
	}
}
