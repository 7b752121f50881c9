package operator

import (
	"context"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/BTankut/neuralcanvas/internal/apperr"
	"github.com/BTankut/neuralcanvas/internal/graph"
)

// ConditionOp evaluates a predicate against the inbound payload and enables
// exactly one of the true/false ports, grounded on Upal's
// internal/agents/branch.go + eval.go evaluateCondition dispatch, plus an
// additive "expression" operator mode evaluated with expr-lang/expr.
type ConditionOp struct{}

func (ConditionOp) Execute(_ context.Context, _ *Env, v *graph.Vertex, in Inputs) (Output, error) {
	op, _ := v.Config["operator"].(string)
	target, _ := v.Config["target"].(string)
	payload := singleInput(in)

	var result bool
	switch op {
	case "contains":
		result = strings.Contains(payload, target)
	case "not_contains":
		result = !strings.Contains(payload, target)
	case "equals":
		result = payload == target
	case "expression":
		program, err := expr.Compile(target, expr.Env(map[string]any{"payload": ""}))
		if err != nil {
			return nil, apperr.Wrap(apperr.OperatorInvalidConf, err, "condition vertex %q: invalid expression", v.ID)
		}
		out, err := expr.Run(program, map[string]any{"payload": payload})
		if err != nil {
			return nil, apperr.Wrap(apperr.OperatorInvalidConf, err, "condition vertex %q: expression evaluation failed", v.ID)
		}
		b, ok := out.(bool)
		if !ok {
			return nil, apperr.New(apperr.OperatorInvalidConf, "condition vertex %q: expression did not evaluate to a boolean", v.ID)
		}
		result = b
	default:
		return nil, apperr.New(apperr.OperatorInvalidConf, "condition vertex %q: unknown operator %q", v.ID, op)
	}

	if result {
		return Output{graph.PortTrue: "true"}, nil
	}
	return Output{graph.PortFalse: "false"}, nil
}
