// Package graph implements the Graph Model & Validator (C1): parsing a
// submitted graph document, rejecting invalid topologies, and classifying
// edges by port so the scheduler (internal/scheduler) never has to re-derive
// port legality itself.
package graph

// Kind is a vertex's behavior tag, drawn from the closed set the wire
// protocol accepts.
type Kind string

const (
	KindInput             Kind = "input"
	KindOutput            Kind = "output"
	KindLLM               Kind = "llm"
	KindSearch            Kind = "search"
	KindCondition         Kind = "condition"
	KindLoop              Kind = "loop"
	KindSplitter          Kind = "splitter"
	KindReducer           Kind = "reducer"
	KindSelfConsistency   Kind = "self-consistency"
	KindMoAProposer       Kind = "moa-proposer"
	KindMoAAggregator     Kind = "moa-aggregator"
	KindDebate            Kind = "debate"
	KindVoting            Kind = "voting"
)

// validKinds is the closed set of vertex kinds the validator accepts.
var validKinds = map[Kind]bool{
	KindInput: true, KindOutput: true, KindLLM: true, KindSearch: true,
	KindCondition: true, KindLoop: true, KindSplitter: true, KindReducer: true,
	KindSelfConsistency: true, KindMoAProposer: true, KindMoAAggregator: true,
	KindDebate: true, KindVoting: true,
}

// Port names outgoing edges may carry. The empty string means "unnamed",
// the single always-enabled port most vertex kinds use.
const (
	PortTrue  = "true"
	PortFalse = "false"
	PortLoop  = "loop"
	PortDone  = "done"
	PortNone  = ""
)

// Vertex is one node in the submitted computation graph. Immutable after
// submission — operators only ever read a *Vertex, never mutate it.
type Vertex struct {
	ID     string
	Kind   Kind
	Config map[string]any
	Seed   string // authoring-time seed value, used only by kind "input"
}

// Edge is one directed connection between two vertices, optionally tagged
// with a source port for multi-output vertices (condition, loop).
type Edge struct {
	ID         string
	From       string
	To         string
	SourcePort string // "", "true", "false", "loop", "done"
	TargetPort string // preserved, unused by scheduling semantics
}

// Document is the wire shape of a submitted graph, as received in the
// client's opening session frame (spec §6).
type Document struct {
	Nodes []VertexDoc `json:"nodes"`
	Edges []EdgeDoc   `json:"edges"`
}

// VertexDoc is the wire shape of one submitted vertex.
type VertexDoc struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		NodeConfig map[string]any `json:"node_config"`
		InputValue *string        `json:"inputValue"`
	} `json:"data"`
}

// EdgeDoc is the wire shape of one submitted edge.
type EdgeDoc struct {
	ID            string  `json:"id"`
	Source        string  `json:"source"`
	Target        string  `json:"target"`
	SourceHandle  *string `json:"sourceHandle"`
	TargetHandle  *string `json:"targetHandle"`
}

// Graph is a validated, queryable computation graph. Construct one only via
// Build; the zero value is not usable.
type Graph struct {
	vertices  map[string]*Vertex
	order     []string // submission order, for deterministic iteration
	out       map[string][]*Edge
	in        map[string][]*Edge
	backEdges map[string]bool // edge ID -> true if it is a loop back-edge
}

// Vertex returns the vertex with the given id, or nil if unknown.
func (g *Graph) Vertex(id string) *Vertex { return g.vertices[id] }

// Vertices returns all vertex ids in submission order.
func (g *Graph) Vertices() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Out returns the outgoing edges of a vertex, in submission order.
func (g *Graph) Out(id string) []*Edge { return g.out[id] }

// In returns the incoming edges of a vertex, in submission order.
func (g *Graph) In(id string) []*Edge { return g.in[id] }

// IsBackEdge reports whether e is a loop back-edge (spec §4.6): an edge
// targeting a `loop` vertex from a source forward-reachable from that loop.
func (g *Graph) IsBackEdge(e *Edge) bool { return g.backEdges[e.ID] }
