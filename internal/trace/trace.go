// Package trace implements spec.md §4.10's two logical buses: a
// per-project Session Progress bus (callback-invoked on state
// transitions, round boundaries, retrieval, streaming tokens) and a
// single process-wide Global Trace ring buffer with incrementally
// maintained rollups.
//
// Grounded on no single teacher file (shelf has no pub/sub event bus);
// built around the mutex-protected subscriber list and buffered-channel
// dispatch idiom used by internal/jobs/scheduler.go's worker-result
// fan-in, generalized here to fan-out. Standard library only (`sync`,
// `container/ring`-style slice buffer) — no pack dependency implements a
// bounded in-process pub/sub bus.
package trace

import (
	"sync"
	"time"

	"github.com/jackzampolin/wenshape/internal/model"
)

// subscriberQueueSize bounds a per-subscriber progress channel; a slow
// subscriber that fills its queue has further sends dropped rather than
// blocking the emitting session, matching spec.md §4.10's "slow
// subscribers are dropped after a timeout rather than blocking producers"
// redesign note.
const subscriberQueueSize = 64

// ProgressBus is the per-project Session Progress bus: callback-invoked
// on each event, broadcast to every subscriber registered for that
// project.
type ProgressBus struct {
	mu   sync.RWMutex
	subs map[string][]chan model.ProgressEvent
}

// NewProgressBus constructs an empty ProgressBus.
func NewProgressBus() *ProgressBus {
	return &ProgressBus{subs: make(map[string][]chan model.ProgressEvent)}
}

// Subscribe registers a new listener for projectID's progress events,
// returning the channel to read from and an unsubscribe function.
func (b *ProgressBus) Subscribe(projectID string) (<-chan model.ProgressEvent, func()) {
	ch := make(chan model.ProgressEvent, subscriberQueueSize)
	b.mu.Lock()
	b.subs[projectID] = append(b.subs[projectID], ch)
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[projectID]
		for i, c := range list {
			if c == ch {
				b.subs[projectID] = append(list[:i], list[i+1:]...)
				close(ch)
				break
			}
		}
	}
	return ch, unsubscribe
}

// Publish broadcasts event to every subscriber of event.ProjectID.
// Subscribers whose queue is full have the event dropped for them rather
// than blocking the publisher.
func (b *ProgressBus) Publish(event model.ProgressEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[event.ProjectID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Emit is a convenience adapter matching internal/memorypack.ProgressFunc
// and similar callback signatures used by other components.
func (b *ProgressBus) Emit(event model.ProgressEvent) {
	b.Publish(event)
}
