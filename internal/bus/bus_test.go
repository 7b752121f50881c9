package bus

import (
	"testing"
	"time"
)

func drain(t *testing.T, b *Bus, n int) []Event {
	t.Helper()
	var events []Event
	for i := 0; i < n; i++ {
		select {
		case ev, ok := <-b.Events():
			if !ok {
				t.Fatalf("channel closed early after %d events", len(events))
			}
			events = append(events, ev)
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for event %d", i)
		}
	}
	return events
}

func TestBus_PerVertexOrdering(t *testing.T) {
	b := New(16)
	b.Publish("v1", EventNodeStart, nil)
	b.Publish("v1", EventTokenStream, map[string]any{"delta": "a"})
	b.Publish("v1", EventTokenStream, map[string]any{"delta": "b"})
	b.Publish("v1", EventNodeFinish, nil)
	b.CloseVertex("v1")

	go b.Finish(EventExecutionComplete, nil)

	events := drain(t, b, 5)
	want := []EventType{EventNodeStart, EventTokenStream, EventTokenStream, EventNodeFinish, EventExecutionComplete}
	for i, ev := range events {
		if ev.Type != want[i] {
			t.Fatalf("event %d: got %s, want %s", i, ev.Type, want[i])
		}
	}
	if events[1].Payload["delta"] != "a" || events[2].Payload["delta"] != "b" {
		t.Fatalf("token order not preserved: %+v", events[1:3])
	}
}

func TestBus_ExecutionCompleteIsAlwaysLast(t *testing.T) {
	b := New(16)
	b.Publish("v1", EventNodeStart, nil)
	b.Publish("v2", EventNodeStart, nil)
	b.Publish("v1", EventNodeFinish, nil)
	b.Publish("v2", EventNodeFinish, nil)
	b.CloseVertex("v1")
	b.CloseVertex("v2")

	go b.Finish(EventExecutionComplete, nil)

	events := drain(t, b, 5)
	last := events[len(events)-1]
	if last.Type != EventExecutionComplete {
		t.Fatalf("last event: got %s, want execution_complete", last.Type)
	}
	for _, ev := range events[:len(events)-1] {
		if ev.Type == EventExecutionComplete {
			t.Fatal("execution_complete appeared before the final event")
		}
	}
}

func TestBus_SeqIsMonotonic(t *testing.T) {
	b := New(16)
	b.Publish("v1", EventNodeStart, nil)
	b.Publish("v1", EventNodeFinish, nil)
	b.CloseVertex("v1")
	go b.Finish(EventExecutionComplete, nil)

	events := drain(t, b, 3)
	for i := 1; i < len(events); i++ {
		if events[i].Seq <= events[i-1].Seq {
			t.Fatalf("seq not monotonic: %d then %d", events[i-1].Seq, events[i].Seq)
		}
	}
}
