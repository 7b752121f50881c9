// Package scheduler implements the data-driven ready-set scheduler (C6): a
// bounded worker pool dispatches vertices as their enabled inbound edges
// deliver, rather than walking a fixed topological order, so that `loop`
// back-edges can re-trigger part of the graph.
//
// Grounded on Upal's internal/engine/runner.go, which launches one
// goroutine per node and gates each on its parents' completion channels —
// a per-node-goroutine, topological-order design that has no notion of
// back-edges or disabled-port propagation. This scheduler replaces that
// topological walk with the admission/join bookkeeping spec.md §4.6
// describes, while keeping the same "one coordinator, independent workers"
// shape.
package scheduler

import (
	"context"
	"log/slog"
	"sort"

	"github.com/BTankut/neuralcanvas/internal/apperr"
	"github.com/BTankut/neuralcanvas/internal/bus"
	"github.com/BTankut/neuralcanvas/internal/graph"
	"github.com/BTankut/neuralcanvas/internal/operator"
)

// Scheduler executes one graph to completion against a shared Env.
type Scheduler struct {
	graph    *graph.Graph
	registry *operator.Registry
	workers  int
}

// New builds a Scheduler. workers <= 0 defaults to 5 (spec.md §4.6/§5).
func New(g *graph.Graph, registry *operator.Registry, workers int) *Scheduler {
	if workers <= 0 {
		workers = 5
	}
	return &Scheduler{graph: g, registry: registry, workers: workers}
}

type activation struct {
	vertexID string
	inputs   operator.Inputs
}

// joinState is a vertex's in-progress accumulation of forward-edge
// deliveries for its current admission round. Vertices that repeat (loop
// and its body) reset this after each admission so the next iteration's
// deliveries accumulate fresh.
type joinState struct {
	delivered operator.Inputs
	disabled  int
}

type actResult struct {
	act activation
	out operator.Output
	err error
}

// run holds one execution's mutable scheduling state. A fresh run is
// created per Scheduler.Run call so the Scheduler itself is reusable
// across sessions.
type run struct {
	s    *Scheduler
	env  *operator.Env
	topo *topology

	joins    map[string]*joinState
	admitted map[string]bool // vertices with zero forward-inbound edges, admitted once
	ready    []activation
	done     map[string]bool // bus queues already closed
}

// Run executes the graph to completion, publishing progress via env.Bus and
// returning only on an unrecoverable, run-aborting condition
// (scheduler-stuck or cancellation); individual vertex failures are
// reported as node_failed/node_skipped and do not abort the run.
func (s *Scheduler) Run(ctx context.Context, env *operator.Env) error {
	r := &run{
		s:        s,
		env:      env,
		topo:     buildTopology(s.graph),
		joins:    make(map[string]*joinState),
		admitted: make(map[string]bool),
		done:     make(map[string]bool),
	}
	r.seed()

	sem := make(chan struct{}, s.workers)
	doneCh := make(chan actResult, s.workers*2)
	pending := 0

	for len(r.ready) > 0 || pending > 0 {
		if ctx.Err() != nil {
			break
		}

	dispatch:
		for len(r.ready) > 0 {
			select {
			case sem <- struct{}{}:
				act := r.popReady()
				pending++
				go r.execute(ctx, act, sem, doneCh)
			default:
				break dispatch
			}
		}

		if pending == 0 {
			break
		}

		select {
		case res := <-doneCh:
			pending--
			r.handleCompletion(res)
		case <-ctx.Done():
		}
	}

	for pending > 0 {
		res := <-doneCh
		pending--
		if ctx.Err() == nil {
			r.handleCompletion(res)
		}
	}

	if ctx.Err() != nil {
		slog.Info("scheduler: run cancelled")
		env.Bus.Finish(bus.EventExecutionError, map[string]any{"error": string(apperr.Cancelled)})
		return apperr.Wrap(apperr.Cancelled, ctx.Err(), "run cancelled")
	}
	if !r.allSettled() {
		slog.Warn("scheduler: run stuck", "unsettled_joins", len(r.joins))
		env.Bus.Finish(bus.EventExecutionError, map[string]any{"error": string(apperr.SchedulerStuck)})
		return apperr.New(apperr.SchedulerStuck, "ready set and in-flight work both empty before every vertex reached a terminal state")
	}
	slog.Info("scheduler: run complete")
	env.Bus.Finish(bus.EventExecutionComplete, nil)
	return nil
}

// seed admits every vertex with no forward inbound edges (spec.md §4.6
// step 1): `input` vertices read their seed; any other zero-inbound vertex
// runs with an empty Inputs set.
func (r *run) seed() {
	ids := r.s.graph.Vertices()
	var roots []string
	for _, id := range ids {
		if len(r.topo.forwardIn[id]) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	for _, id := range roots {
		r.admitted[id] = true
		r.ready = append(r.ready, activation{vertexID: id, inputs: operator.Inputs{}})
	}
}

func (r *run) popReady() activation {
	act := r.ready[0]
	r.ready = r.ready[1:]
	return act
}

func (r *run) execute(ctx context.Context, act activation, sem <-chan struct{}, doneCh chan<- actResult) {
	defer func() { <-sem }()

	v := r.s.graph.Vertex(act.vertexID)
	slog.Debug("scheduler: dispatching vertex", "vertex", v.ID, "kind", v.Kind)
	r.env.Bus.Publish(v.ID, bus.EventNodeStart, nil)

	op, ok := r.s.registry.Get(v.Kind)
	if !ok {
		doneCh <- actResult{act: act, err: apperr.New(apperr.OperatorInvalidConf, "vertex %q: no operator registered for kind %q", v.ID, v.Kind)}
		return
	}

	out, err := op.Execute(ctx, r.env, v, act.inputs)
	doneCh <- actResult{act: act, out: out, err: err}
}

// handleCompletion applies one finished activation's outcome: publishing
// its terminal event, determining enabled/disabled outgoing ports, and
// admitting or skipping successors.
func (r *run) handleCompletion(res actResult) {
	v := r.s.graph.Vertex(res.act.vertexID)

	if res.err != nil {
		slog.Info("scheduler: vertex failed", "vertex", v.ID, "kind", string(apperr.KindOf(res.err)), "err", res.err)
		r.env.Bus.Publish(v.ID, bus.EventNodeFailed, map[string]any{
			"error": res.err.Error(),
			"kind":  string(apperr.KindOf(res.err)),
		})
		r.propagate(v.ID, nil) // no enabled ports
		if owner, inLoop := r.topo.loopOwner[v.ID]; inLoop {
			r.closeLoop(owner) // nothing re-activates the loop after a failure in it
		} else {
			r.closeIfFinal(v.ID)
		}
		return
	}

	slog.Debug("scheduler: vertex finished", "vertex", v.ID)
	r.env.Bus.Publish(v.ID, bus.EventNodeFinish, map[string]any{"result": soleValue(res.out)})
	if v.Kind != graph.KindLoop {
		r.closeIfFinal(v.ID)
	} else if _, exiting := res.out[graph.PortDone]; exiting {
		r.closeLoop(v.ID)
	}
	r.propagate(v.ID, res.out)
}

// soleValue returns an operator's single output value, since every kind
// populates exactly one port per activation; wire-protocol consumers want
// that value directly, not the port it arrived on.
func soleValue(out operator.Output) any {
	for _, v := range out {
		return v
	}
	return nil
}

// closeIfFinal closes vertexID's bus queue once, unless it is a vertex that
// repeats (a loop or loop-body member), which closes only via closeLoop.
func (r *run) closeIfFinal(vertexID string) {
	if r.topo.repeats(vertexID) || r.done[vertexID] {
		return
	}
	r.done[vertexID] = true
	r.env.Bus.CloseVertex(vertexID)
}

// closeLoop closes the bus queues of a loop vertex and every member of its
// body once the loop has taken its `done` exit.
func (r *run) closeLoop(loopID string) {
	for id, owner := range r.topo.loopOwner {
		if owner != loopID || r.done[id] {
			continue
		}
		r.done[id] = true
		r.env.Bus.CloseVertex(id)
	}
}

// propagate delivers v's output along its enabled outgoing edges, disables
// the rest (except a successful loop's idle port, see below), and admits or
// skips any successor whose inbound edges have all resolved (delivered or
// disabled) this round.
func (r *run) propagate(vertexID string, out operator.Output) {
	for _, e := range r.s.graph.Out(vertexID) {
		value, enabled := out[e.SourcePort]
		if g := r.s.graph; g.IsBackEdge(e) {
			if enabled {
				r.admitBackEdge(e, value)
			}
			continue
		}
		if enabled {
			r.deliver(e, value)
		} else if out != nil && r.s.graph.Vertex(vertexID).Kind == graph.KindLoop {
			// A successful loop does not disable the port it left idle: while
			// it iterates, its `done` successors wait for the exit; when it
			// exits, its body is not skipped (body vertices that never ran
			// emit no event).
			continue
		} else {
			r.disable(e)
		}
	}
}

func (r *run) joinFor(vertexID string) *joinState {
	j, ok := r.joins[vertexID]
	if !ok {
		j = &joinState{delivered: operator.Inputs{}}
		r.joins[vertexID] = j
	}
	return j
}

func (r *run) deliver(e *graph.Edge, value any) {
	j := r.joinFor(e.To)
	j.delivered[e.From] = value
	r.maybeAdmit(e.To)
}

func (r *run) disable(e *graph.Edge) {
	j := r.joinFor(e.To)
	j.disabled++
	r.maybeAdmit(e.To)
}

// maybeAdmit checks whether vertexID's forward inbound edges have all
// resolved this round, and if so admits it (with its delivered values) or
// marks it skipped (if none delivered), then resets the round for vertices
// that repeat.
func (r *run) maybeAdmit(vertexID string) {
	forwardTotal := len(r.topo.forwardIn[vertexID])
	j := r.joinFor(vertexID)
	if len(j.delivered)+j.disabled < forwardTotal {
		return
	}

	if len(j.delivered) == 0 {
		r.env.Bus.Publish(vertexID, bus.EventNodeSkipped, nil)
		r.closeIfFinal(vertexID)
		r.propagateSkip(vertexID)
	} else {
		inputs := make(operator.Inputs, len(j.delivered))
		for k, v := range j.delivered {
			inputs[k] = v
		}
		r.ready = append(r.ready, activation{vertexID: vertexID, inputs: inputs})
	}

	// Reset for the next round; only loop-body vertices will see another.
	delete(r.joins, vertexID)
}

// propagateSkip disables every outgoing edge of a skipped vertex and
// recurses into successors whose inbound edges are now all resolved,
// implementing spec.md §4.7's conservative transitive skip.
func (r *run) propagateSkip(vertexID string) {
	for _, e := range r.s.graph.Out(vertexID) {
		if r.s.graph.IsBackEdge(e) {
			continue
		}
		r.disable(e)
	}
}

// admitBackEdge re-activates a loop vertex immediately on a back-edge
// delivery, bypassing the forward-edge join (spec.md §4.6: "ready on each
// delivery, not ready once all edges delivered").
func (r *run) admitBackEdge(e *graph.Edge, value any) {
	r.ready = append(r.ready, activation{
		vertexID: e.To,
		inputs:   operator.Inputs{e.From: value},
	})
}

// allSettled reports whether every vertex has either been admitted at
// least once or been disabled into a skip — the invariant that must hold
// whenever the ready set and in-flight work are both empty.
func (r *run) allSettled() bool {
	for _, id := range r.s.graph.Vertices() {
		if len(r.topo.forwardIn[id]) == 0 {
			continue // roots always admitted in seed()
		}
		if _, stillJoining := r.joins[id]; stillJoining {
			return false
		}
	}
	return true
}
