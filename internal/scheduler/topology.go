package scheduler

import "github.com/BTankut/neuralcanvas/internal/graph"

// topology precomputes the static facts the scheduler needs about a
// validated graph: each vertex's forward (non-back-edge) inbound edge
// count, and which loop vertex, if any, owns a vertex's repeated
// activations.
type topology struct {
	forwardIn map[string][]*graph.Edge // vertexID -> its forward inbound edges
	loopOwner map[string]string        // vertexID -> owning loop vertex's id, for vertices re-activated per iteration
}

// buildTopology walks g once. A vertex belongs to a loop's body when it is
// forward-reachable from that loop's `loop` port without crossing a
// back-edge — the set of vertices the loop re-triggers every iteration.
func buildTopology(g *graph.Graph) *topology {
	t := &topology{
		forwardIn: make(map[string][]*graph.Edge),
		loopOwner: make(map[string]string),
	}

	for _, id := range g.Vertices() {
		for _, e := range g.In(id) {
			if !g.IsBackEdge(e) {
				t.forwardIn[id] = append(t.forwardIn[id], e)
			}
		}
	}

	for _, id := range g.Vertices() {
		v := g.Vertex(id)
		if v.Kind != graph.KindLoop {
			continue
		}
		t.loopOwner[id] = id
		visited := map[string]bool{id: true}
		var queue []string
		for _, e := range g.Out(id) {
			if e.SourcePort == graph.PortLoop && !visited[e.To] {
				visited[e.To] = true
				queue = append(queue, e.To)
			}
		}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			t.loopOwner[cur] = id
			for _, e := range g.Out(cur) {
				if g.IsBackEdge(e) {
					continue
				}
				if !visited[e.To] {
					visited[e.To] = true
					queue = append(queue, e.To)
				}
			}
		}
	}

	return t
}

// repeats reports whether vertexID may be activated more than once over
// the run (it is a loop vertex or sits in a loop's body).
func (t *topology) repeats(vertexID string) bool {
	_, ok := t.loopOwner[vertexID]
	return ok
}
