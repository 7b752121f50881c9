package operator

import (
	"context"
	"fmt"

	"github.com/BTankut/neuralcanvas/internal/bus"
	"github.com/BTankut/neuralcanvas/internal/gateway"
	"github.com/BTankut/neuralcanvas/internal/graph"
)

// fakeProvider is a scripted gateway.Provider for operator tests: it never
// makes a network call, streams a fixed set of deltas, and can simulate a
// failure for a given model name.
type fakeProvider struct {
	name string
	// reply, keyed by model name, overrides the default echo behavior.
	reply map[string]string
	fail  map[string]bool
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) StreamCompletion(ctx context.Context, req *gateway.CompletionRequest, sink gateway.StreamSink) (*gateway.CompletionResult, error) {
	if p.fail[req.Model] {
		return nil, fmt.Errorf("simulated failure for model %q", req.Model)
	}
	content := fmt.Sprintf("%s:%s", req.Model, req.Messages[len(req.Messages)-1].Content)
	if p.reply != nil {
		if r, ok := p.reply[req.Model]; ok {
			content = r
		}
	}
	for _, chunk := range []string{content[:len(content)/2], content[len(content)/2:]} {
		sink(chunk)
	}
	return &gateway.CompletionResult{
		Content: content,
		Usage:   gateway.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2},
	}, nil
}

// newTestEnv builds an Env wired to a single fake provider named "test",
// draining its bus in the background so Publish never blocks.
func newTestEnv(p *fakeProvider) *Env {
	reg := gateway.NewRegistry()
	reg.Register("test", p)
	gw := gateway.New(reg)
	b := bus.New(256)
	go func() {
		for range b.Events() {
		}
	}()
	return NewEnv(gw, nil, b, "", nil)
}

func vertex(id string, kind graph.Kind, cfg map[string]any) *graph.Vertex {
	return &graph.Vertex{ID: id, Kind: kind, Config: cfg}
}
