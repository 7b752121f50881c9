package operator

import (
	"context"

	"github.com/BTankut/neuralcanvas/internal/graph"
)

// InputOp emits its vertex's seed value (or, when the vertex's config holds
// a "runtime_value" entry, that value instead of the seed),
// grounded on Upal's internal/nodes/input.go "no upstream, read a seeded
// state key" shape. An empty seed is a valid value, not an error.
type InputOp struct{}

func (InputOp) Execute(_ context.Context, _ *Env, v *graph.Vertex, _ Inputs) (Output, error) {
	if rv, ok := v.Config["runtime_value"]; ok {
		return Output{graph.PortNone: rv}, nil
	}
	return Output{graph.PortNone: v.Seed}, nil
}
