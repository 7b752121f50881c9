package operator

import (
	"context"

	"github.com/BTankut/neuralcanvas/internal/graph"
)

// OutputOp joins all enabled incoming values with blank-line separation,
// grounded on Upal's internal/nodes/output.go (sort non-internal state
// keys, join non-empty string values with "\n\n"). The inbound payload is
// passed through unchanged, including when it's empty.
type OutputOp struct{}

func (OutputOp) Execute(_ context.Context, _ *Env, _ *graph.Vertex, in Inputs) (Output, error) {
	return Output{graph.PortNone: singleInput(in)}, nil
}
