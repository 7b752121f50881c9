package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTankut/neuralcanvas/internal/config"
)

func TestAPI_ListModels(t *testing.T) {
	providers := map[string]config.ProviderConfig{
		"openai": {
			Type: "openai",
			Models: []config.ModelConfig{
				{ID: "gpt-4o", Name: "GPT-4o", Pricing: &config.PricingConfig{Prompt: "0.005", Completion: "0.015"}},
			},
		},
	}
	srv := NewServer(nil, providers)

	req := httptest.NewRequest("GET", "/models", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []modelInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "openai/gpt-4o", resp.Data[0].ID)
	if assert.NotNil(t, resp.Data[0].Pricing) {
		assert.Equal(t, "0.005", resp.Data[0].Pricing.Prompt)
	}
}

func TestAPI_ListModels_Empty(t *testing.T) {
	srv := NewServer(nil, map[string]config.ProviderConfig{})

	req := httptest.NewRequest("GET", "/models", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	var resp struct {
		Data []modelInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Data, "expected an empty array, not null, for no configured providers")
	assert.Len(t, resp.Data, 0)
}
