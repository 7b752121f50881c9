// Package session manages the lifetime of one graph execution: parsing and
// validating the submitted graph, wiring a scheduler and event bus around
// it, and running it to completion under a cancellable context.
//
// Grounded on Upal's internal/engine/session.go SessionManager, generalized
// from a flat state/status map to own the C1 (graph), C4 (bus), C5
// (operator registry), and C6 (scheduler) collaborators a run actually
// needs, per SPEC_FULL.md §6's duplex session protocol.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BTankut/neuralcanvas/internal/bus"
	"github.com/BTankut/neuralcanvas/internal/config"
	"github.com/BTankut/neuralcanvas/internal/gateway"
	"github.com/BTankut/neuralcanvas/internal/graph"
	"github.com/BTankut/neuralcanvas/internal/operator"
	"github.com/BTankut/neuralcanvas/internal/scheduler"
	"github.com/BTankut/neuralcanvas/internal/search"
)

// Status is a session's coarse lifecycle state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Session is one graph execution: its validated topology, its event bus,
// and the cancellation handle for the run driving it.
type Session struct {
	ID        string
	CreatedAt time.Time

	graph  *graph.Graph
	bus    *bus.Bus
	env    *operator.Env
	sched  *scheduler.Scheduler
	cancel context.CancelFunc

	mu     sync.Mutex
	status Status
}

// Deps bundles the collaborators every session shares, wired once at
// process startup. A fresh *gateway.Gateway is built per session from
// Providers so a session's opening-frame apiKey can override the
// configured provider keys without disturbing other sessions in flight.
type Deps struct {
	Providers      map[string]config.ProviderConfig
	Search         search.Client
	Registry       *operator.Registry
	DefaultModel   string
	FallbackModels []string
	WorkerCount    int
}

// Manager tracks in-flight sessions, grounded on Upal's
// internal/engine/session.go SessionManager mutex-map shape.
type Manager struct {
	deps Deps

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager builds a Manager sharing deps across every session it creates.
func NewManager(deps Deps) *Manager {
	if deps.WorkerCount <= 0 {
		deps.WorkerCount = 5
	}
	return &Manager{deps: deps, sessions: make(map[string]*Session)}
}

// Create parses and validates doc into a graph, wires a fresh bus and
// scheduler around it, and registers the session under a new id. It does
// not start execution; call Start for that.
func (m *Manager) Create(doc *graph.Document, apiKeyOverride string) (*Session, error) {
	g, err := graph.Build(doc)
	if err != nil {
		return nil, err
	}

	b := bus.New(256)
	gw := gateway.Build(m.deps.Providers, apiKeyOverride)
	env := operator.NewEnv(gw, m.deps.Search, b, m.deps.DefaultModel, m.deps.FallbackModels)
	sched := scheduler.New(g, m.deps.Registry, m.deps.WorkerCount)

	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		graph:     g,
		bus:       b,
		env:       env,
		sched:     sched,
		status:    StatusRunning,
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	slog.Info("session: opened", "session_id", sess.ID, "vertices", len(g.Vertices()))
	return sess, nil
}

// Get looks up a session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove drops a session from the manager once its caller has finished
// consuming its event stream.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Events returns the session's event stream.
func (s *Session) Events() <-chan bus.Event { return s.bus.Events() }

// Start runs the session's graph to completion in the background, against
// a context derived from parent. Cancel stops the run early. Start must be
// called at most once per session.
func (s *Session) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel

	go func() {
		err := s.sched.Run(ctx, s.env)
		s.mu.Lock()
		if err != nil {
			s.status = StatusFailed
		} else {
			s.status = StatusCompleted
		}
		s.mu.Unlock()
		if err != nil {
			slog.Info("session: closed", "session_id", s.ID, "status", s.status, "err", err)
		} else {
			slog.Info("session: closed", "session_id", s.ID, "status", s.status)
		}
	}()
}

// Cancel requests early termination of the session's run, e.g. on client
// disconnect (spec.md §5 cancellation).
func (s *Session) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Status returns the session's current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}
