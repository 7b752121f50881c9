package operator

import (
	"context"
	"testing"

	"github.com/BTankut/neuralcanvas/internal/apperr"
	"github.com/BTankut/neuralcanvas/internal/graph"
)

func TestVotingOp_Majority(t *testing.T) {
	v := vertex("vt", graph.KindVoting, map[string]any{"method": "majority"})
	out, err := VotingOp{}.Execute(context.Background(), nil, v, Inputs{"a": "yes\nyes\nno"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if normalizeAnswer(out[graph.PortNone].(string)) != "yes" {
		t.Errorf("got %v", out[graph.PortNone])
	}
}

func TestVotingOp_Judge(t *testing.T) {
	env := newTestEnv(&fakeProvider{name: "test"})
	v := vertex("vt", graph.KindVoting, map[string]any{"method": "judge", "model": "test/model"})
	out, err := VotingOp{}.Execute(context.Background(), env, v, Inputs{"a": "candidate positions"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out[graph.PortNone] == "" {
		t.Error("expected a non-empty verdict")
	}
}

func TestVotingOp_Consensus(t *testing.T) {
	env := newTestEnv(&fakeProvider{name: "test"})
	v := vertex("vt", graph.KindVoting, map[string]any{"method": "consensus", "model": "test/model"})
	out, err := VotingOp{}.Execute(context.Background(), env, v, Inputs{"a": "candidate positions"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out[graph.PortNone] == "" {
		t.Error("expected a non-empty consensus statement")
	}
}

func TestVotingOp_JudgeNoModelErrors(t *testing.T) {
	env := newTestEnv(&fakeProvider{name: "test"})
	v := vertex("vt", graph.KindVoting, map[string]any{"method": "judge"})
	_, err := VotingOp{}.Execute(context.Background(), env, v, Inputs{"a": "x"})
	if apperr.KindOf(err) != apperr.OperatorInvalidConf {
		t.Fatalf("expected operator-invalid-config, got %v", err)
	}
}

func TestVotingOp_UnknownMethodErrors(t *testing.T) {
	v := vertex("vt", graph.KindVoting, map[string]any{"method": "bogus"})
	_, err := VotingOp{}.Execute(context.Background(), nil, v, Inputs{"a": "x"})
	if apperr.KindOf(err) != apperr.OperatorInvalidConf {
		t.Fatalf("expected operator-invalid-config, got %v", err)
	}
}
