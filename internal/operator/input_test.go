package operator

import (
	"context"
	"testing"

	"github.com/BTankut/neuralcanvas/internal/graph"
)

func TestInputOp_EmitsSeed(t *testing.T) {
	v := vertex("in", graph.KindInput, nil)
	v.Seed = "hello"
	out, err := InputOp{}.Execute(context.Background(), nil, v, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out[graph.PortNone] != "hello" {
		t.Errorf("got %v, want \"hello\"", out[graph.PortNone])
	}
}

func TestInputOp_RuntimeValueOverridesSeed(t *testing.T) {
	v := vertex("in", graph.KindInput, map[string]any{"runtime_value": "overridden"})
	v.Seed = "seeded"
	out, err := InputOp{}.Execute(context.Background(), nil, v, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out[graph.PortNone] != "overridden" {
		t.Errorf("got %v, want \"overridden\"", out[graph.PortNone])
	}
}

func TestInputOp_EmptySeedIsValid(t *testing.T) {
	v := vertex("in", graph.KindInput, nil)
	out, err := InputOp{}.Execute(context.Background(), nil, v, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out[graph.PortNone] != "" {
		t.Errorf("got %v, want empty string", out[graph.PortNone])
	}
}
