package operator

import (
	"context"
	"strings"

	"github.com/BTankut/neuralcanvas/internal/apperr"
	"github.com/BTankut/neuralcanvas/internal/graph"
)

// LoopOp implements the controllable re-entry vertex kind. Its iteration
// counter lives in Env's per-vertex state (see operator.go's Env.State),
// since graph.Vertex is immutable after submission.
//
// The first activation (no counter recorded yet) is the initial admission
// from the loop's non-back-edge predecessors; every activation after that
// is a back-edge delivery and increments the counter.
type LoopOp struct{}

const loopCounterKey = "iteration_count"

func (LoopOp) Execute(_ context.Context, env *Env, v *graph.Vertex, in Inputs) (Output, error) {
	maxIterations, ok := v.Config["max_iterations"].(float64)
	if !ok || maxIterations < 1 {
		return nil, apperr.New(apperr.OperatorInvalidConf, "loop vertex %q: max_iterations must be >= 1", v.ID)
	}
	targetText, _ := v.Config["target_text"].(string)

	payload := singleInput(in)

	count := 0
	if prev, seen := env.GetVertexState(v.ID, loopCounterKey); seen {
		count = prev.(int) + 1
	}
	env.SetVertexState(v.ID, loopCounterKey, count)

	shouldContinue := float64(count) < maxIterations && (targetText == "" || !strings.Contains(payload, targetText))
	if shouldContinue {
		return Output{graph.PortLoop: payload}, nil
	}
	return Output{graph.PortDone: payload}, nil
}
