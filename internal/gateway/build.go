package gateway

import "github.com/BTankut/neuralcanvas/internal/config"

// Build constructs a Registry and Gateway from a set of configured
// providers, grounded on Upal's internal/model/registry.go BuildLLM
// factory-map-with-URL-fallback pattern: a known provider type dispatches
// to its concrete Provider constructor; an unrecognized type with a base
// URL set falls back to the OpenAI-compatible adapter.
//
// apiKeyOverride, when non-empty, replaces every provider's configured key
// for this call only — the session-scoped override spec.md §6's opening
// frame `apiKey` field describes; it never mutates cfg itself.
func Build(providers map[string]config.ProviderConfig, apiKeyOverride string) *Gateway {
	registry := NewRegistry()
	for name, pc := range providers {
		apiKey := pc.APIKey
		if apiKeyOverride != "" {
			apiKey = apiKeyOverride
		}
		registry.Register(name, buildProvider(name, pc.Type, pc.URL, apiKey))
	}
	return New(registry)
}

func buildProvider(name, providerType, baseURL, apiKey string) Provider {
	switch providerType {
	case "gemini":
		return NewGeminiProvider(name, apiKey)
	case "openai":
		return NewOpenAICompatProvider(name, baseURL, apiKey)
	default:
		if baseURL != "" {
			return NewOpenAICompatProvider(name, baseURL, apiKey)
		}
		return NewOpenAICompatProvider(name, "https://api.openai.com/v1", apiKey)
	}
}
