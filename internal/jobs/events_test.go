package jobs

import (
	"sync"
	"testing"
)

// TestEventBusSince verifies incremental event reads by sequence.
func TestEventBusSince(t *testing.T) {
	bus := NewEventBus(3)
	bus.Publish(Event{Type: EventTypeStatus, Message: "1"})
	bus.Publish(Event{Type: EventTypeLog, Message: "2"})
	bus.Publish(Event{Type: EventTypeLog, Message: "3"})

	events := bus.Since(1)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Seq != 2 || events[1].Seq != 3 {
		t.Fatalf("unexpected seqs: %+v", events)
	}
}

// TestEventBusCapsHistory verifies buffer limit trimming behavior.
func TestEventBusCapsHistory(t *testing.T) {
	bus := NewEventBus(2)
	bus.Publish(Event{Message: "1"})
	bus.Publish(Event{Message: "2"})
	bus.Publish(Event{Message: "3"})

	events := bus.Since(0)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Message != "2" || events[1].Message != "3" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

// TestEventBusSubscribeDeliversInOrder checks channel fan-out.
func TestEventBusSubscribeDeliversInOrder(t *testing.T) {
	bus := NewEventBus(10)
	ch, cancel := bus.Subscribe(4)

	bus.Publish(Event{Message: "a"})
	bus.Publish(Event{Message: "b"})
	cancel()
	cancel()

	var got []string
	for ev := range ch {
		got = append(got, ev.Message)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("received = %v", got)
	}

	bus.Publish(Event{Message: "after"})
}

// TestEventBusSlowSubscriberDoesNotBlock drops overflow for full subscribers.
func TestEventBusSlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewEventBus(100)
	_, cancel := bus.Subscribe(1)
	defer cancel()

	for i := 0; i < 10; i++ {
		bus.Publish(Event{Message: "x"})
	}
	if got := len(bus.Since(0)); got != 10 {
		t.Fatalf("history = %d, want 10", got)
	}
}

// TestEventBusConcurrentPublish keeps sequences unique under contention.
func TestEventBusConcurrentPublish(t *testing.T) {
	bus := NewEventBus(1000)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.Publish(Event{Type: EventTypeLog})
			}
		}()
	}
	wg.Wait()

	events := bus.Since(0)
	if len(events) != 400 {
		t.Fatalf("len = %d, want 400", len(events))
	}
	for i, ev := range events {
		if ev.Seq != int64(i+1) {
			t.Fatalf("events[%d].Seq = %d", i, ev.Seq)
		}
	}
}
