// Package operator implements the Operator Library (C5): one executor per
// vertex kind. Every operator receives the values delivered on its enabled
// input ports and returns the values it produces on its output ports; the
// scheduler (internal/scheduler) is the only caller and owns all routing,
// fan-out, and disabled-port propagation.
package operator

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/BTankut/neuralcanvas/internal/bus"
	"github.com/BTankut/neuralcanvas/internal/gateway"
	"github.com/BTankut/neuralcanvas/internal/graph"
	"github.com/BTankut/neuralcanvas/internal/search"
)

// Env bundles the collaborators every operator may need: the model
// gateway, the search client, and the session's event bus for streaming
// progress. Exactly one Env is shared by every vertex in a session.
//
// Env also carries mutable per-vertex state (State), grounded on Upal's
// internal/engine/session.go SessionManager.SetState/GetStateCopy pattern.
// Vertices are read-only after submission (see graph.Vertex); a kind whose
// behavior spans several activations of the same vertex, like loop's
// iteration counter, keeps that state here instead.
type Env struct {
	Gateway        *gateway.Gateway
	Search         search.Client
	Bus            *bus.Bus
	DefaultModel   string
	FallbackModels []string

	stateMu sync.Mutex
	state   map[string]map[string]any
}

// NewEnv builds an Env ready for a single session run.
func NewEnv(gw *gateway.Gateway, sc search.Client, b *bus.Bus, defaultModel string, fallbackModels []string) *Env {
	return &Env{
		Gateway:        gw,
		Search:         sc,
		Bus:            b,
		DefaultModel:   defaultModel,
		FallbackModels: fallbackModels,
		state:          make(map[string]map[string]any),
	}
}

// GetVertexState returns the value stored under key for vertexID, and
// whether it was present.
func (e *Env) GetVertexState(vertexID, key string) (any, bool) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	v, ok := e.state[vertexID]
	if !ok {
		return nil, false
	}
	val, ok := v[key]
	return val, ok
}

// SetVertexState records value under key for vertexID, for later
// activations of the same vertex to read back.
func (e *Env) SetVertexState(vertexID, key string, value any) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	v, ok := e.state[vertexID]
	if !ok {
		v = make(map[string]any)
		e.state[vertexID] = v
	}
	v[key] = value
}

// Inputs is the set of values delivered to a vertex on this activation,
// keyed by the ID of the upstream vertex that produced each value. Most
// operators that expect a single input just take the one entry; operators
// that fan in from several upstream vertices (reducer, moa-aggregator,
// voting) iterate the whole map.
type Inputs map[string]any

// Output is what a vertex produces on this activation, keyed by output
// port name. Kinds with a single unnamed port use the empty string key
// (graph.PortNone); condition uses "true"/"false"; loop uses "loop"/"done".
type Output map[string]any

// Operator executes one vertex kind's behavior for a single activation.
type Operator interface {
	Execute(ctx context.Context, env *Env, v *graph.Vertex, in Inputs) (Output, error)
}

// Registry dispatches a vertex kind to its Operator, grounded on Upal's
// internal/tools/registry.go Register/Get dispatch-table pattern (spec §9's
// design note: "a vertex kind registry is a dispatch table, not a switch").
type Registry struct {
	ops map[graph.Kind]Operator
}

// NewRegistry builds a Registry with every built-in vertex kind wired in.
func NewRegistry() *Registry {
	r := &Registry{ops: make(map[graph.Kind]Operator)}
	r.Register(graph.KindInput, &InputOp{})
	r.Register(graph.KindOutput, &OutputOp{})
	r.Register(graph.KindLLM, &LLMOp{})
	r.Register(graph.KindSearch, &SearchOp{})
	r.Register(graph.KindCondition, &ConditionOp{})
	r.Register(graph.KindLoop, &LoopOp{})
	r.Register(graph.KindSplitter, &SplitterOp{})
	r.Register(graph.KindReducer, &ReducerOp{})
	r.Register(graph.KindSelfConsistency, &SelfConsistencyOp{})
	r.Register(graph.KindMoAProposer, &MoAProposerOp{})
	r.Register(graph.KindMoAAggregator, &MoAAggregatorOp{})
	r.Register(graph.KindDebate, &DebateOp{})
	r.Register(graph.KindVoting, &VotingOp{})
	return r
}

// Register adds or replaces the operator for a vertex kind.
func (r *Registry) Register(kind graph.Kind, op Operator) { r.ops[kind] = op }

// Get looks up the operator for a vertex kind.
func (r *Registry) Get(kind graph.Kind) (Operator, bool) {
	op, ok := r.ops[kind]
	return op, ok
}

// templatePattern matches "{{key}}" placeholders, grounded on Upal's
// internal/nodes/agent.go resolveTemplate.
var templatePattern = regexp.MustCompile(`\{\{(\w+(?:\.\w+)*)\}\}`)

// resolveTemplate substitutes "{{vertexID}}" placeholders in tpl with the
// matching entry from in, leaving unmatched placeholders untouched.
func resolveTemplate(tpl string, in Inputs) string {
	return templatePattern.ReplaceAllStringFunc(tpl, func(match string) string {
		key := strings.Trim(match, "{}")
		parts := strings.SplitN(key, ".", 2)
		if val, ok := in[parts[0]]; ok {
			return toText(val)
		}
		return match
	})
}

// toText returns an input value as plain text for prompt/template use: a
// string is returned as is, and any other value renders as the empty string.
func toText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// singleInput returns the one value in a single-upstream Inputs set. When a
// vertex has more than one enabled upstream edge feeding its unnamed port,
// it concatenates their text with blank-line separation, matching Upal's
// internal/nodes/output.go join behavior.
func singleInput(in Inputs) string {
	if len(in) == 1 {
		for _, v := range in {
			return toText(v)
		}
	}
	keys := sortedKeys(in)
	var parts []string
	for _, k := range keys {
		if s := toText(in[k]); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

func sortedKeys(in Inputs) []string {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
