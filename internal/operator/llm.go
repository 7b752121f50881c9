package operator

import (
	"context"

	"github.com/BTankut/neuralcanvas/internal/apperr"
	"github.com/BTankut/neuralcanvas/internal/bus"
	"github.com/BTankut/neuralcanvas/internal/gateway"
	"github.com/BTankut/neuralcanvas/internal/graph"
)

// LLMOp sends a prompt to the model gateway and streams its response as
// bus token_stream events, grounded on Upal's internal/nodes/agent.go
// (template-resolved system/user prompts) and internal/agents/llm_builder.go
// (temperature/config building) — minus the tool-calling loop, which this
// vertex kind has no equivalent of.
type LLMOp struct{}

func (LLMOp) Execute(ctx context.Context, env *Env, v *graph.Vertex, in Inputs) (Output, error) {
	modelID, _ := v.Config["model"].(string)
	if modelID == "" {
		modelID = env.DefaultModel
	}
	if modelID == "" {
		return nil, apperr.New(apperr.OperatorInvalidConf, "llm vertex %q: no model configured", v.ID)
	}

	var messages []gateway.Message
	if sp, ok := v.Config["system_prompt"].(string); ok && sp != "" {
		messages = append(messages, gateway.Message{Role: gateway.RoleSystem, Content: resolveTemplate(sp, in)})
	}
	promptTpl, _ := v.Config["prompt"].(string)
	prompt := resolveTemplate(promptTpl, in)
	if prompt == "" {
		prompt = singleInput(in)
	}
	messages = append(messages, gateway.Message{Role: gateway.RoleUser, Content: prompt})

	req := &gateway.CompletionRequest{Messages: messages}
	if temp, ok := v.Config["temperature"].(float64); ok {
		req.Temperature = &temp
	}
	if mt, ok := v.Config["max_tokens"].(float64); ok {
		n := int(mt)
		req.MaxTokens = &n
	}

	sink := func(delta string) {
		env.Bus.Publish(v.ID, bus.EventTokenStream, map[string]any{"delta": delta})
	}

	result, err := env.Gateway.Complete(ctx, modelID, env.FallbackModels, req, sink)
	if err != nil {
		return nil, err
	}

	env.Bus.Publish(v.ID, bus.EventNodeUsage, map[string]any{
		"prompt_tokens":     result.Usage.PromptTokens,
		"completion_tokens": result.Usage.CompletionTokens,
		"total_tokens":      result.Usage.TotalTokens,
		"estimated":         result.Usage.Estimated,
	})

	return Output{graph.PortNone: result.Content}, nil
}
