package trace

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackzampolin/wenshape/internal/model"
)

// RingCapacity is the Global Trace buffer's fixed capacity (spec.md
// §4.10: "ring buffer of TraceEvent (cap 1000)").
const RingCapacity = 1000

// Rollup is the incrementally maintained summary over all recorded
// TraceEvents, per spec.md §4.10's three update rules.
type Rollup struct {
	TotalTokens      int64
	PromptTokens     int64
	CompletionTokens int64
	SelectedItems    int64
	InputTokens      int64
	SavedTokens      int64
}

// Collector is the process-wide Global Trace: a capped ring buffer of
// TraceEvents, a subscriber set, and an incrementally updated Rollup.
// It is the one piece of shared mutable state explicitly initialized at
// process start, per spec.md §10's "global mutable state" note.
type Collector struct {
	mu     sync.RWMutex
	buf    []model.TraceEvent
	next   int
	filled bool
	rollup Rollup
	subs   []chan model.TraceEvent
}

// NewCollector constructs an empty Collector with a fixed-capacity ring
// buffer.
func NewCollector() *Collector {
	return &Collector{buf: make([]model.TraceEvent, RingCapacity)}
}

// Record appends event to the ring buffer (overwriting the oldest entry
// once full), updates the rollup for the three tracked event types, and
// fans the event out to every global subscriber.
func (c *Collector) Record(event model.TraceEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	c.mu.Lock()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	c.buf[c.next] = event
	c.next = (c.next + 1) % RingCapacity
	if c.next == 0 {
		c.filled = true
	}
	c.applyRollup(event)
	subs := append([]chan model.TraceEvent(nil), c.subs...)
	c.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (c *Collector) applyRollup(event model.TraceEvent) {
	switch event.Type {
	case model.TraceLLMRequest:
		c.rollup.TotalTokens += toInt64(event.Data["total_tokens"])
		c.rollup.PromptTokens += toInt64(event.Data["prompt_tokens"])
		c.rollup.CompletionTokens += toInt64(event.Data["completion_tokens"])
	case model.TraceContextSelect:
		c.rollup.SelectedItems += toInt64(event.Data["selected_items"])
		c.rollup.InputTokens += toInt64(event.Data["input_tokens"])
	case model.TraceContextCompress:
		c.rollup.SavedTokens += toInt64(event.Data["saved_tokens"])
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// Stats returns the current rollup snapshot.
func (c *Collector) Stats() Rollup {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rollup
}

// Backlog returns all currently buffered events in recording order.
func (c *Collector) Backlog() []model.TraceEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.filled {
		out := make([]model.TraceEvent, c.next)
		copy(out, c.buf[:c.next])
		return out
	}
	out := make([]model.TraceEvent, RingCapacity)
	copy(out, c.buf[c.next:])
	copy(out[RingCapacity-c.next:], c.buf[:c.next])
	return out
}

// Subscribe registers a new global trace listener, returning its channel
// and an unsubscribe function. The initial backlog (spec.md §6.3's
// "/ws/trace": "Initial backlog = all active agent traces") should be
// sent to the caller via Backlog before relying on the channel.
func (c *Collector) Subscribe() (<-chan model.TraceEvent, func()) {
	ch := make(chan model.TraceEvent, subscriberQueueSize)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()

	unsubscribe := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s == ch {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				close(ch)
				break
			}
		}
	}
	return ch, unsubscribe
}
