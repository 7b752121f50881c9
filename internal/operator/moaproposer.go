package operator

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/BTankut/neuralcanvas/internal/apperr"
	"github.com/BTankut/neuralcanvas/internal/bus"
	"github.com/BTankut/neuralcanvas/internal/gateway"
	"github.com/BTankut/neuralcanvas/internal/graph"
)

const unavailableProposal = "<unavailable>"

// MoAProposerOp issues one completion per configured model in parallel and
// emits a JSON object mapping model id to its answer, preserving
// configuration order. A single model's exhausted retries degrades that
// entry to a sentinel rather than failing the whole vertex.
type MoAProposerOp struct{}

func (MoAProposerOp) Execute(ctx context.Context, env *Env, v *graph.Vertex, in Inputs) (Output, error) {
	rawModels, _ := v.Config["models"].([]any)
	if len(rawModels) == 0 {
		return nil, apperr.New(apperr.OperatorInvalidConf, "moa-proposer vertex %q: models must be non-empty", v.ID)
	}
	models := make([]string, 0, len(rawModels))
	for _, m := range rawModels {
		if s, ok := m.(string); ok {
			models = append(models, s)
		}
	}

	var temperature *float64
	if t, ok := v.Config["temperature"].(float64); ok {
		temperature = &t
	}

	payload := singleInput(in)
	answers := make([]string, len(models))
	var wg sync.WaitGroup
	for i, model := range models {
		wg.Add(1)
		go func(i int, model string) {
			defer wg.Done()
			req := &gateway.CompletionRequest{
				Temperature: temperature,
				Messages:    []gateway.Message{{Role: gateway.RoleUser, Content: payload}},
			}
			result, err := env.Gateway.Complete(ctx, model, env.FallbackModels, req, func(delta string) {
				env.Bus.Publish(v.ID, bus.EventTokenStream, map[string]any{"delta": delta, "model": model})
			})
			if err != nil {
				answers[i] = unavailableProposal
				return
			}
			answers[i] = result.Content
		}(i, model)
	}
	wg.Wait()

	ordered := make(map[string]string, len(models))
	for i, model := range models {
		ordered[model] = answers[i]
	}
	encoded, err := marshalOrdered(models, ordered)
	if err != nil {
		return nil, apperr.Wrap(apperr.OperatorInvalidConf, err, "moa-proposer vertex %q: failed to encode proposals", v.ID)
	}

	return Output{graph.PortNone: encoded}, nil
}

// marshalOrdered encodes a model->answer map as a JSON object whose keys
// appear in the given order, since encoding/json sorts map keys
// alphabetically and the spec requires configuration order preserved.
func marshalOrdered(order []string, values map[string]string) (string, error) {
	var buf []byte
	buf = append(buf, '{')
	for i, key := range order {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyJSON, err := json.Marshal(key)
		if err != nil {
			return "", err
		}
		valJSON, err := json.Marshal(values[key])
		if err != nil {
			return "", err
		}
		buf = append(buf, keyJSON...)
		buf = append(buf, ':')
		buf = append(buf, valJSON...)
	}
	buf = append(buf, '}')
	return string(buf), nil
}
