package operator

import (
	"context"
	"testing"

	"github.com/BTankut/neuralcanvas/internal/apperr"
	"github.com/BTankut/neuralcanvas/internal/graph"
)

func TestLoopOp_ContinuesUntilMaxIterations(t *testing.T) {
	env := NewEnv(nil, nil, nil, "", nil)
	v := vertex("loop1", graph.KindLoop, map[string]any{"max_iterations": float64(3)})

	var lastOut Output
	for i := 0; i < 4; i++ {
		out, err := LoopOp{}.Execute(context.Background(), env, v, Inputs{"a": "body output"})
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		lastOut = out
		if i < 3 {
			if _, ok := out[graph.PortLoop]; !ok {
				t.Fatalf("iteration %d: expected loop port enabled, got %v", i, out)
			}
		}
	}
	if _, ok := lastOut[graph.PortDone]; !ok {
		t.Fatalf("expected done port enabled on the final iteration, got %v", lastOut)
	}
}

func TestLoopOp_TargetTextStopsEarly(t *testing.T) {
	env := NewEnv(nil, nil, nil, "", nil)
	v := vertex("loop1", graph.KindLoop, map[string]any{"max_iterations": float64(5), "target_text": "DONE"})

	out, err := LoopOp{}.Execute(context.Background(), env, v, Inputs{"a": "still working"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, ok := out[graph.PortLoop]; !ok {
		t.Fatalf("expected loop port on first pass, got %v", out)
	}

	out, err = LoopOp{}.Execute(context.Background(), env, v, Inputs{"a": "the work is DONE now"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, ok := out[graph.PortDone]; !ok {
		t.Fatalf("expected done port once target_text appears, got %v", out)
	}
}

func TestLoopOp_InvalidMaxIterationsErrors(t *testing.T) {
	env := NewEnv(nil, nil, nil, "", nil)
	v := vertex("loop1", graph.KindLoop, map[string]any{"max_iterations": float64(0)})
	_, err := LoopOp{}.Execute(context.Background(), env, v, Inputs{"a": "x"})
	if apperr.KindOf(err) != apperr.OperatorInvalidConf {
		t.Fatalf("expected operator-invalid-config, got %v", err)
	}
}
