package api

import (
	"encoding/json"
	"net/http"
)

// modelInfo is one entry in the discovery endpoint's response, matching
// spec.md §6's `{ "id": string, "name": string, "pricing": {...}? }`
// shape exactly; pricing is opaque passthrough data this core never
// interprets.
type modelInfo struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Pricing *pricingInfo `json:"pricing,omitempty"`
}

type pricingInfo struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}

// listModels implements GET /models, grounded on Upal's
// internal/api/models.go listModels handler, slimmed to the text-model
// `{id, name, pricing?}` shape spec.md §6 requires — this engine has no
// image/TTS vertex kinds to advertise categories or option schemas for.
func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	var models []modelInfo
	for providerName, pc := range s.providerConfigs {
		for _, m := range pc.Models {
			entry := modelInfo{ID: providerName + "/" + m.ID, Name: m.Name}
			if m.Pricing != nil {
				entry.Pricing = &pricingInfo{Prompt: m.Pricing.Prompt, Completion: m.Pricing.Completion}
			}
			models = append(models, entry)
		}
	}
	if models == nil {
		models = []modelInfo{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"data": models})
}
