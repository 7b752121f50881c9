package operator

import (
	"context"
	"strings"
	"sync"

	"github.com/BTankut/neuralcanvas/internal/apperr"
	"github.com/BTankut/neuralcanvas/internal/gateway"
	"github.com/BTankut/neuralcanvas/internal/graph"
)

// ReducerOp collapses a splitter's chunk list (or a single unstructured
// payload) back down to one summary, grounded on Upal's stage_collect.go
// errgroup-style parallel-fan-out-then-join shape.
type ReducerOp struct{}

func (ReducerOp) Execute(ctx context.Context, env *Env, v *graph.Vertex, in Inputs) (Output, error) {
	strategy, _ := v.Config["strategy"].(string)
	model, _ := v.Config["model"].(string)
	prompt, _ := v.Config["prompt"].(string)
	var temperature *float64
	if t, ok := v.Config["temperature"].(float64); ok {
		temperature = &t
	}

	payload := singleInput(in)
	chunks, isChunkList := chunkList(payload)
	if !isChunkList {
		chunks = []string{payload}
	}

	switch strategy {
	case "concatenate":
		return Output{graph.PortNone: strings.Join(chunks, "\n\n")}, nil
	case "hierarchical":
		if model == "" {
			model = env.DefaultModel
		}
		if model == "" {
			return nil, apperr.New(apperr.OperatorInvalidConf, "reducer vertex %q: no model configured", v.ID)
		}
		summaries, err := summarizeAll(ctx, env, model, prompt, temperature, chunks)
		if err != nil {
			return nil, err
		}
		for len(summaries) > 1 {
			summaries, err = reducePairwise(ctx, env, model, prompt, temperature, summaries)
			if err != nil {
				return nil, err
			}
		}
		if len(summaries) == 0 {
			return Output{graph.PortNone: ""}, nil
		}
		return Output{graph.PortNone: summaries[0]}, nil
	default:
		return nil, apperr.New(apperr.OperatorInvalidConf, "reducer vertex %q: unknown strategy %q", v.ID, strategy)
	}
}

func summarizeAll(ctx context.Context, env *Env, model, prompt string, temperature *float64, chunks []string) ([]string, error) {
	results := make([]string, len(chunks))
	errs := make([]error, len(chunks))
	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk string) {
			defer wg.Done()
			req := &gateway.CompletionRequest{
				Temperature: temperature,
				Messages: []gateway.Message{
					{Role: gateway.RoleSystem, Content: prompt},
					{Role: gateway.RoleUser, Content: chunk},
				},
			}
			result, err := env.Gateway.Complete(ctx, model, env.FallbackModels, req, func(string) {})
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = result.Content
		}(i, chunk)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// reducePairwise merges adjacent summaries two at a time, halving the list
// each round until a single summary remains.
func reducePairwise(ctx context.Context, env *Env, model, prompt string, temperature *float64, summaries []string) ([]string, error) {
	var next []string
	for i := 0; i < len(summaries); i += 2 {
		if i+1 >= len(summaries) {
			next = append(next, summaries[i])
			continue
		}
		merged, err := summarizeAll(ctx, env, model, prompt, temperature, []string{summaries[i] + "\n\n" + summaries[i+1]})
		if err != nil {
			return nil, err
		}
		next = append(next, merged[0])
	}
	return next, nil
}
