package gateway

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// GeminiProvider calls google.golang.org/genai directly, adapted from
// Upal's internal/model/gemini_text.go GeminiLLM — retargeted from the
// adkmodel.LLM interface onto this package's own Provider interface so the
// ready-set scheduler's operators never depend on the ADK runtime.
type GeminiProvider struct {
	name    string
	apiKey  string
	once    sync.Once
	client  *genai.Client
	initErr error
}

// NewGeminiProvider builds a native Gemini adapter for the given provider name.
func NewGeminiProvider(name, apiKey string) *GeminiProvider {
	return &GeminiProvider{name: name, apiKey: apiKey}
}

func (g *GeminiProvider) Name() string { return g.name }

func (g *GeminiProvider) ensureClient(ctx context.Context) error {
	g.once.Do(func() {
		g.client, g.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	return g.initErr
}

func (g *GeminiProvider) StreamCompletion(ctx context.Context, req *CompletionRequest, sink StreamSink) (*CompletionResult, error) {
	if err := g.ensureClient(ctx); err != nil {
		return nil, fmt.Errorf("gemini: client init failed: %w", err)
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	var systemInstruction *genai.Content
	for _, m := range req.Messages {
		part := genai.NewPartFromText(m.Content)
		switch m.Role {
		case RoleSystem:
			systemInstruction = &genai.Content{Role: "system", Parts: []*genai.Part{part}}
		case RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{part}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{part}})
		}
	}

	cfg := &genai.GenerateContentConfig{}
	if systemInstruction != nil {
		cfg.SystemInstruction = systemInstruction
	}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		cfg.Temperature = &t
	}
	if req.MaxTokens != nil {
		m := int32(*req.MaxTokens)
		cfg.MaxOutputTokens = m
	}

	result := &CompletionResult{}
	var promptTokens, completionTokens int32

	for resp, err := range g.client.Models.GenerateContentStream(ctx, req.Model, contents, cfg) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if err != nil {
			return nil, fmt.Errorf("gemini: %w", err)
		}
		if resp == nil || len(resp.Candidates) == 0 {
			continue
		}
		c := resp.Candidates[0]
		if c.Content != nil {
			for _, part := range c.Content.Parts {
				if part.Text != "" {
					result.Content += part.Text
					sink(part.Text)
				}
			}
		}
		if c.FinishReason != "" && c.FinishReason != genai.FinishReasonUnspecified {
			result.FinishReason = string(c.FinishReason)
		}
		if resp.UsageMetadata != nil {
			promptTokens = resp.UsageMetadata.PromptTokenCount
			completionTokens = resp.UsageMetadata.CandidatesTokenCount
		}
	}

	if promptTokens > 0 || completionTokens > 0 {
		result.Usage = Usage{
			PromptTokens:     int(promptTokens),
			CompletionTokens: int(completionTokens),
			TotalTokens:      int(promptTokens + completionTokens),
		}
	} else {
		result.Usage = Usage{
			PromptTokens:     EstimatePromptTokens(req.Messages),
			CompletionTokens: EstimateTokens(result.Content),
			Estimated:        true,
		}
		result.Usage.TotalTokens = result.Usage.PromptTokens + result.Usage.CompletionTokens
	}
	return result, nil
}
