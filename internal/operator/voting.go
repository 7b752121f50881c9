package operator

import (
	"context"
	"regexp"

	"github.com/BTankut/neuralcanvas/internal/apperr"
	"github.com/BTankut/neuralcanvas/internal/bus"
	"github.com/BTankut/neuralcanvas/internal/gateway"
	"github.com/BTankut/neuralcanvas/internal/graph"
)

// VotingOp judges a set of candidate answers by majority normalization, a
// reasoned LLM verdict, or an LLM-derived consensus statement.
type VotingOp struct{}

var candidateSplit = regexp.MustCompile(`[,\n]+`)

func (VotingOp) Execute(ctx context.Context, env *Env, v *graph.Vertex, in Inputs) (Output, error) {
	method, _ := v.Config["method"].(string)
	model, _ := v.Config["model"].(string)
	var temperature *float64
	if t, ok := v.Config["temperature"].(float64); ok {
		temperature = &t
	}

	payload := singleInput(in)

	switch method {
	case "majority":
		candidates := splitCandidates(payload)
		arrived := make([]sample, len(candidates))
		for i, c := range candidates {
			arrived[i] = sample{order: i, content: c}
		}
		return Output{graph.PortNone: majorityVote(candidates, arrived)}, nil
	case "judge":
		return votingComplete(ctx, env, v, model, temperature,
			"You are judging the material you are given. Produce a reasoned verdict.", payload)
	case "consensus":
		return votingComplete(ctx, env, v, model, temperature,
			"You are given several positions. State the narrowest statement all of them would agree with.", payload)
	default:
		return nil, apperr.New(apperr.OperatorInvalidConf, "voting vertex %q: unknown method %q", v.ID, method)
	}
}

func splitCandidates(payload string) []string {
	raw := candidateSplit.Split(payload, -1)
	var candidates []string
	for _, c := range raw {
		if c != "" {
			candidates = append(candidates, c)
		}
	}
	return candidates
}

func votingComplete(ctx context.Context, env *Env, v *graph.Vertex, model string, temperature *float64, systemPrompt, payload string) (Output, error) {
	if model == "" {
		model = env.DefaultModel
	}
	if model == "" {
		return nil, apperr.New(apperr.OperatorInvalidConf, "voting vertex %q: no model configured", v.ID)
	}
	req := &gateway.CompletionRequest{
		Temperature: temperature,
		Messages: []gateway.Message{
			{Role: gateway.RoleSystem, Content: systemPrompt},
			{Role: gateway.RoleUser, Content: payload},
		},
	}
	result, err := env.Gateway.Complete(ctx, model, env.FallbackModels, req, func(delta string) {
		env.Bus.Publish(v.ID, bus.EventTokenStream, map[string]any{"delta": delta})
	})
	if err != nil {
		return nil, err
	}
	return Output{graph.PortNone: result.Content}, nil
}
