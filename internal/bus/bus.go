// Package bus implements the Event Bus (C4): a typed, ordered stream of
// progress events from a running session toward its client connection.
package bus

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventType is one of the wire-protocol event kinds a session emits
// (spec §6).
type EventType string

const (
	EventNodeStart        EventType = "node_start"
	EventTokenStream      EventType = "token_stream"
	EventNodeUsage        EventType = "node_usage"
	EventNodeFinish       EventType = "node_finish"
	EventNodeFailed       EventType = "node_failed"
	EventNodeSkipped      EventType = "node_skipped"
	EventExecutionComplete EventType = "execution_complete"
	EventExecutionError   EventType = "execution_error"
)

// Event is one message the bus delivers to its subscriber.
type Event struct {
	Type      EventType
	VertexID  string // empty for execution_complete / execution_error
	Seq       int64
	Payload   map[string]any
	Timestamp time.Time
}

// Bus is a single session's event stream. It guarantees, per vertex: a
// node_start precedes any token_stream/node_usage for that vertex, and the
// vertex's terminal event (node_finish/node_failed/node_skipped) is the
// last event published for it. Across different vertices no ordering is
// guaranteed, except that execution_complete/execution_error is always the
// very last event on the stream overall.
//
// Grounded on Upal's internal/engine/eventbus.go Subscribe/Publish/Channel
// shape, but that bus has a single flat handler list with no per-vertex
// ordering guarantee at all — every vertex's goroutine published directly
// onto the shared channel/handlers with no serialization boundary between
// vertices. This bus adds the per-vertex serial queue spec §9's design note
// calls for: each vertex gets its own small FIFO queue drained by its own
// goroutine into the single shared output channel, so two vertices racing
// to publish can never interleave in a way that breaks a single vertex's
// own event order, while still offering no cross-vertex ordering promise.
type Bus struct {
	mu     sync.Mutex
	queues map[string]chan Event
	wg     sync.WaitGroup
	out    chan Event
	seq    int64
}

// New creates a Bus whose shared output channel has the given buffer size.
func New(bufSize int) *Bus {
	return &Bus{
		queues: make(map[string]chan Event),
		out:    make(chan Event, bufSize),
	}
}

// Events returns the bus's single shared output channel. The session
// controller reads from this to forward frames to the client connection.
func (b *Bus) Events() <-chan Event { return b.out }

// Publish enqueues an event for vertexID, assigning it the next global
// sequence number. It lazily starts that vertex's dispatcher goroutine on
// first use.
func (b *Bus) Publish(vertexID string, typ EventType, payload map[string]any) {
	ev := Event{
		Type:      typ,
		VertexID:  vertexID,
		Seq:       atomic.AddInt64(&b.seq, 1),
		Payload:   payload,
		Timestamp: time.Now(),
	}
	b.queueFor(vertexID) <- ev
}

func (b *Bus) queueFor(vertexID string) chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.queues[vertexID]; ok {
		return ch
	}
	ch := make(chan Event, 64)
	b.queues[vertexID] = ch
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for ev := range ch {
			b.out <- ev
		}
	}()
	return ch
}

// CloseVertex closes vertexID's queue. Call this once its terminal event
// (node_finish/node_failed/node_skipped) has been published. A later
// Publish for the same vertexID does not panic: it opens a fresh queue,
// which Finish then waits on until that queue is closed too.
func (b *Bus) CloseVertex(vertexID string) {
	b.mu.Lock()
	ch, ok := b.queues[vertexID]
	if ok {
		delete(b.queues, vertexID)
	}
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Finish waits for every vertex queue to fully drain, then publishes the
// run's single terminal event (execution_complete or execution_error) and
// closes the output channel. Because it waits on the per-vertex dispatcher
// WaitGroup first, this event is guaranteed to be the last one any
// subscriber ever observes.
func (b *Bus) Finish(typ EventType, payload map[string]any) {
	b.wg.Wait()
	b.out <- Event{
		Type:      typ,
		Seq:       atomic.AddInt64(&b.seq, 1),
		Payload:   payload,
		Timestamp: time.Now(),
	}
	close(b.out)
}
