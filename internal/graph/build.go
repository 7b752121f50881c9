package graph

import (
	"encoding/json"
	"sort"

	"github.com/BTankut/neuralcanvas/internal/apperr"
)

// Build parses a submitted Document, validates it, and returns a queryable
// Graph. Grounded on Upal's internal/dag.Build: schema check, then reference
// integrity, then a topological pass — generalized here to the wider set of
// vertex kinds and to the graph's relaxed acyclicity rule: a cycle is legal
// only if every edge that closes it passes through a `loop` vertex.
func Build(doc *Document) (*Graph, error) {
	if doc == nil {
		return nil, apperr.New(apperr.InvalidGraph, "empty graph document")
	}
	if len(doc.Nodes) == 0 {
		return nil, apperr.New(apperr.InvalidGraph, "graph has no vertices")
	}

	g := &Graph{
		vertices:  make(map[string]*Vertex, len(doc.Nodes)),
		out:       make(map[string][]*Edge),
		in:        make(map[string][]*Edge),
		backEdges: make(map[string]bool),
	}

	for _, nd := range doc.Nodes {
		if nd.ID == "" {
			return nil, apperr.New(apperr.InvalidGraph, "vertex missing id")
		}
		if _, exists := g.vertices[nd.ID]; exists {
			return nil, apperr.New(apperr.InvalidGraph, "duplicate vertex id %q", nd.ID)
		}
		kind := Kind(nd.Type)
		if !validKinds[kind] {
			return nil, apperr.New(apperr.InvalidGraph, "vertex %q has unknown kind %q", nd.ID, nd.Type)
		}
		v := &Vertex{ID: nd.ID, Kind: kind, Config: nd.Data.NodeConfig}
		if nd.Data.InputValue != nil {
			v.Seed = *nd.Data.InputValue
		}
		g.vertices[nd.ID] = v
		g.order = append(g.order, nd.ID)
	}

	seenEdgeIDs := make(map[string]bool)
	for _, ed := range doc.Edges {
		if ed.ID == "" {
			return nil, apperr.New(apperr.InvalidGraph, "edge missing id")
		}
		if seenEdgeIDs[ed.ID] {
			return nil, apperr.New(apperr.InvalidGraph, "duplicate edge id %q", ed.ID)
		}
		seenEdgeIDs[ed.ID] = true

		if _, ok := g.vertices[ed.Source]; !ok {
			return nil, apperr.New(apperr.InvalidGraph, "edge %q references unknown source vertex %q", ed.ID, ed.Source)
		}
		if _, ok := g.vertices[ed.Target]; !ok {
			return nil, apperr.New(apperr.InvalidGraph, "edge %q references unknown target vertex %q", ed.ID, ed.Target)
		}

		e := &Edge{ID: ed.ID, From: ed.Source, To: ed.Target}
		if ed.SourceHandle != nil {
			e.SourcePort = *ed.SourceHandle
		}
		if ed.TargetHandle != nil {
			e.TargetPort = *ed.TargetHandle
		}

		if err := validatePort(g.vertices[ed.Source], e.SourcePort); err != nil {
			return nil, err
		}

		g.out[e.From] = append(g.out[e.From], e)
		g.in[e.To] = append(g.in[e.To], e)
	}

	if err := classifyAcyclicity(g); err != nil {
		return nil, err
	}

	if err := validateInputOutputShape(g); err != nil {
		return nil, err
	}

	return g, nil
}

// validatePort checks that an outgoing edge's source port is one the
// vertex's kind is allowed to emit (spec §4.8's port table).
func validatePort(v *Vertex, port string) error {
	switch v.Kind {
	case KindCondition:
		if port != PortTrue && port != PortFalse {
			return apperr.New(apperr.InvalidGraph, "condition vertex %q: edge port must be %q or %q, got %q", v.ID, PortTrue, PortFalse, port)
		}
	case KindLoop:
		if port != PortLoop && port != PortDone {
			return apperr.New(apperr.InvalidGraph, "loop vertex %q: edge port must be %q or %q, got %q", v.ID, PortLoop, PortDone, port)
		}
	default:
		if port != PortNone {
			return apperr.New(apperr.InvalidGraph, "vertex %q of kind %q does not support port %q", v.ID, v.Kind, port)
		}
	}
	return nil
}

// validateInputOutputShape enforces that at least one input and one output
// vertex exist, matching spec.md's data-model expectations for a runnable
// graph.
func validateInputOutputShape(g *Graph) error {
	var hasInput, hasOutput bool
	for _, id := range g.order {
		switch g.vertices[id].Kind {
		case KindInput:
			hasInput = true
		case KindOutput:
			hasOutput = true
		}
	}
	if !hasInput {
		return apperr.New(apperr.InvalidGraph, "graph has no input vertex")
	}
	if !hasOutput {
		return apperr.New(apperr.InvalidGraph, "graph has no output vertex")
	}
	return nil
}

// classifyAcyclicity runs a topological pass over all edges; if a cycle
// remains, it marks as back-edges the edges that enter a `loop` vertex from
// a source reachable from that loop (generalizing Upal's dag.Build
// treatment of e.Loop != nil edges), re-runs the pass without them, and
// fails if a cycle still remains. The marked edges are the back-edges the
// scheduler sees through IsBackEdge.
func classifyAcyclicity(g *Graph) error {
	// Kahn's algorithm over the full edge set first, to find the offending
	// edges when a cycle exists.
	inDegree := make(map[string]int, len(g.vertices))
	for id := range g.vertices {
		inDegree[id] = 0
	}
	for _, edges := range g.out {
		for _, e := range edges {
			inDegree[e.To]++
		}
	}

	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	visited := make(map[string]bool, len(g.vertices))
	remaining := make(map[string]int, len(inDegree))
	for k, v := range inDegree {
		remaining[k] = v
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited[id] = true
		children := g.out[id]
		nextIDs := make([]string, 0, len(children))
		for _, e := range children {
			nextIDs = append(nextIDs, e.To)
		}
		sort.Strings(nextIDs)
		for _, to := range nextIDs {
			remaining[to]--
			if remaining[to] == 0 {
				queue = append(queue, to)
			}
		}
		sort.Strings(queue)
	}

	if len(visited) == len(g.vertices) {
		// Fully acyclic; no back-edges at all.
		return nil
	}

	// Vertices left unvisited sit inside one or more cycles, or downstream
	// of one.
	unresolved := map[string]bool{}
	for id := range g.vertices {
		if !visited[id] {
			unresolved[id] = true
		}
	}

	reaches := func(from, to string) bool {
		seen := map[string]bool{from: true}
		stack := []string{from}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if id == to {
				return true
			}
			for _, e := range g.out[id] {
				if !seen[e.To] {
					seen[e.To], stack = true, append(stack, e.To)
				}
			}
		}
		return false
	}

	// Mark back-edges: an edge (u -> v) where v is an unresolved `loop`
	// vertex and u is reachable from v. An edge into the loop from an
	// upstream vertex stays a forward edge. Removing all marked edges must
	// make the remainder acyclic.
	for _, edges := range g.out {
		for _, e := range edges {
			if unresolved[e.To] && g.vertices[e.To].Kind == KindLoop && reaches(e.To, e.From) {
				g.backEdges[e.ID] = true
			}
		}
	}

	// Re-run Kahn's algorithm excluding marked back-edges.
	inDegree2 := make(map[string]int, len(g.vertices))
	for id := range g.vertices {
		inDegree2[id] = 0
	}
	for _, edges := range g.out {
		for _, e := range edges {
			if g.backEdges[e.ID] {
				continue
			}
			inDegree2[e.To]++
		}
	}
	var queue2 []string
	for id, deg := range inDegree2 {
		if deg == 0 {
			queue2 = append(queue2, id)
		}
	}
	sort.Strings(queue2)
	visited2 := make(map[string]bool, len(g.vertices))
	for len(queue2) > 0 {
		id := queue2[0]
		queue2 = queue2[1:]
		visited2[id] = true
		var nextIDs []string
		for _, e := range g.out[id] {
			if g.backEdges[e.ID] {
				continue
			}
			nextIDs = append(nextIDs, e.To)
		}
		sort.Strings(nextIDs)
		for _, to := range nextIDs {
			inDegree2[to]--
			if inDegree2[to] == 0 {
				queue2 = append(queue2, to)
			}
		}
		sort.Strings(queue2)
	}

	if len(visited2) != len(g.vertices) {
		return apperr.New(apperr.InvalidGraph, "graph contains a cycle not routed through a loop vertex")
	}
	return nil
}

// ParseDocument unmarshals the wire-format graph document from a session's
// opening frame (spec.md §6).
func ParseDocument(raw []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperr.Wrap(apperr.InvalidGraph, err, "parse graph document")
	}
	return &doc, nil
}
