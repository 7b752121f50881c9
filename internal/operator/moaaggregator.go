package operator

import (
	"context"

	"github.com/BTankut/neuralcanvas/internal/apperr"
	"github.com/BTankut/neuralcanvas/internal/bus"
	"github.com/BTankut/neuralcanvas/internal/gateway"
	"github.com/BTankut/neuralcanvas/internal/graph"
)

// MoAAggregatorOp asks one model to combine, critique, or select among a
// preceding moa-proposer's answers.
type MoAAggregatorOp struct{}

var aggregatorSystemPrompts = map[string]string{
	"synthesis": "You are combining several proposed answers into one response that keeps the strongest elements of each. The proposals are given to you as a JSON object mapping model id to answer.",
	"critique":  "You are given several proposed answers as a JSON object mapping model id to answer. Critique each briefly, then select and return the best one.",
	"best":      "You are given several proposed answers as a JSON object mapping model id to answer. Select the single strongest answer and return it verbatim, with no commentary.",
}

func (MoAAggregatorOp) Execute(ctx context.Context, env *Env, v *graph.Vertex, in Inputs) (Output, error) {
	model, _ := v.Config["model"].(string)
	if model == "" {
		model = env.DefaultModel
	}
	strategy, _ := v.Config["strategy"].(string)
	systemPrompt, ok := aggregatorSystemPrompts[strategy]
	if !ok {
		return nil, apperr.New(apperr.OperatorInvalidConf, "moa-aggregator vertex %q: unknown strategy %q", v.ID, strategy)
	}
	var temperature *float64
	if t, ok := v.Config["temperature"].(float64); ok {
		temperature = &t
	}

	payload := singleInput(in)
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
