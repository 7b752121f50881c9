// Package api exposes the graph execution engine over HTTP: a health
// check, model discovery, and the duplex WebSocket session endpoint
// spec.md §6 defines.
//
// Grounded on Upal's internal/api/server.go chi router/middleware/cors
// shape; the teacher's route table (workflows, runs, schedules, pipelines,
// triggers, connections, A2A) is dropped along with the persistence and
// multi-agent-protocol layers it served (see DESIGN.md's Origin
// decisions) and replaced with this spec's three endpoints.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/BTankut/neuralcanvas/internal/config"
	"github.com/BTankut/neuralcanvas/internal/session"
)

// Server wires the session manager and provider configuration into an
// http.Handler.
type Server struct {
	sessions        *session.Manager
	providerConfigs map[string]config.ProviderConfig
}

// NewServer builds a Server. providerConfigs feeds the /models discovery
// endpoint only; session.Manager already owns its own copy for building
// per-session gateways.
func NewServer(sessions *session.Manager, providerConfigs map[string]config.ProviderConfig) *Server {
	return &Server{sessions: sessions, providerConfigs: providerConfigs}
}

// Handler returns the server's routed http.Handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", s.health)
	r.Get("/models", s.listModels)
	r.Get("/ws", s.serveWS)

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
