package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OpenAICompatProvider calls any OpenAI-chat-completions-compatible HTTP
// endpoint, adapted from Upal's internal/provider/openai.go — extended here
// with a real Server-Sent-Events streaming implementation, since spec §4.2
// requires token-by-token delivery and the teacher's ChatCompletionStream
// was an unimplemented stub.
type OpenAICompatProvider struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewOpenAICompatProvider builds a provider for the given name, base URL
// (e.g. "https://api.openai.com/v1"), and API key.
func NewOpenAICompatProvider(name, baseURL, apiKey string) *OpenAICompatProvider {
	return &OpenAICompatProvider{name: name, baseURL: baseURL, apiKey: apiKey, client: &http.Client{}}
}

func (p *OpenAICompatProvider) Name() string { return p.name }

func (p *OpenAICompatProvider) StreamCompletion(ctx context.Context, req *CompletionRequest, sink StreamSink) (*CompletionResult, error) {
	body := p.buildRequestBody(req)
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return p.consumeSSE(ctx, req, resp.Body, sink)
}

// consumeSSE reads an OpenAI-style "data: {...}\n\n" event stream, forwards
// each delta to sink, and assembles the final result. A trailing "data:
// [DONE]" frame ends the stream; ctx cancellation is checked between frames
// so a caller cancelling mid-stream doesn't keep reading.
func (p *OpenAICompatProvider) consumeSSE(ctx context.Context, req *CompletionRequest, body io.Reader, sink StreamSink) (*CompletionResult, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var content strings.Builder
	result := &CompletionResult{}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		if payload == "[DONE]" {
			break
		}

		var chunk openAIStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			content.WriteString(choice.Delta.Content)
			sink(choice.Delta.Content)
		}
		if choice.FinishReason != "" {
			result.FinishReason = choice.FinishReason
		}
		if chunk.Usage != nil {
			result.Usage = Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}

	result.Content = content.String()
	if result.Usage.TotalTokens == 0 {
		result.Usage = Usage{
			PromptTokens:     EstimatePromptTokens(req.Messages),
			CompletionTokens: EstimateTokens(result.Content),
			Estimated:        true,
		}
		result.Usage.TotalTokens = result.Usage.PromptTokens + result.Usage.CompletionTokens
	}
	return result, nil
}

func (p *OpenAICompatProvider) buildRequestBody(req *CompletionRequest) map[string]any {
	messages := make([]map[string]any, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = map[string]any{"role": string(m.Role), "content": m.Content}
	}
	body := map[string]any{"model": req.Model, "messages": messages, "stream": true}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.MaxTokens != nil {
		body["max_tokens"] = *req.MaxTokens
	}
	return body
}

type openAIStreamChunk struct {
	Choices []openAIStreamChoice  `json:"choices"`
	Usage   *openAIStreamUsage    `json:"usage"`
}
type openAIStreamChoice struct {
	Delta        openAIStreamDelta `json:"delta"`
	FinishReason string            `json:"finish_reason"`
}
type openAIStreamDelta struct {
	Content string `json:"content"`
}
type openAIStreamUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
