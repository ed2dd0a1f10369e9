package trace

import (
	"testing"
	"time"

	"github.com/jackzampolin/wenshape/internal/model"
)

func TestProgressBusDeliversOnlyToMatchingProject(t *testing.T) {
	bus := NewProgressBus()
	chA, unsubA := bus.Subscribe("projA")
	defer unsubA()
	chB, unsubB := bus.Subscribe("projB")
	defer unsubB()

	bus.Publish(model.ProgressEvent{Type: "token", ProjectID: "projA"})

	select {
	case ev := <-chA:
		if ev.ProjectID != "projA" {
			t.Fatalf("got event for %s, want projA", ev.ProjectID)
		}
	case <-time.After(time.Second):
		t.Fatal("projA subscriber should have received the event")
	}

	select {
	case <-chB:
		t.Fatal("projB subscriber should not receive projA's event")
	default:
	}
}

func TestProgressBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewProgressBus()
	ch, unsub := bus.Subscribe("proj")
	unsub()
	_, ok := <-ch
	if ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
}

func TestProgressBusDropsWhenSubscriberQueueFull(t *testing.T) {
	bus := NewProgressBus()
	_, unsub := bus.Subscribe("proj")
	defer unsub()
	for i := 0; i < subscriberQueueSize+10; i++ {
		bus.Publish(model.ProgressEvent{ProjectID: "proj"})
	}
	// Should not block or panic; dropped events are simply lost.
}
