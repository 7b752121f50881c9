package session

import (
	"context"
	"testing"
	"time"

	"github.com/BTankut/neuralcanvas/internal/bus"
	"github.com/BTankut/neuralcanvas/internal/config"
	"github.com/BTankut/neuralcanvas/internal/graph"
	"github.com/BTankut/neuralcanvas/internal/operator"
)

func strPtr(s string) *string { return &s }

func TestManager_CreateAndRunLinearGraph(t *testing.T) {
	doc := &graph.Document{
		Nodes: []graph.VertexDoc{
			{ID: "in", Type: "input"},
			{ID: "out", Type: "output"},
		},
		Edges: []graph.EdgeDoc{
			{ID: "e1", Source: "in", Target: "out"},
		},
	}
	doc.Nodes[0].Data.InputValue = strPtr("hello")

	mgr := NewManager(Deps{
		Providers: map[string]config.ProviderConfig{},
		Registry:  operator.NewRegistry(),
	})

	sess, err := mgr.Create(doc, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.Status() != StatusRunning {
		t.Fatalf("expected StatusRunning before Start, got %v", sess.Status())
	}

	sess.Start(context.Background())

	var last bus.Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-sess.Events():
			if !ok {
				goto done
			}
			last = ev
		case <-timeout:
			t.Fatal("timed out waiting for session to finish")
		}
	}
done:
	if last.Type != bus.EventExecutionComplete {
		t.Fatalf("expected execution_complete as last event, got %v", last.Type)
	}
	if got, _ := mgr.Get(sess.ID); got == nil {
		t.Fatalf("expected session to be retrievable by id")
	}
}

func TestManager_CreateRejectsInvalidGraph(t *testing.T) {
	doc := &graph.Document{
		Nodes: []graph.VertexDoc{{ID: "a", Type: "bogus-kind"}},
	}
	mgr := NewManager(Deps{Registry: operator.NewRegistry()})
	if _, err := mgr.Create(doc, ""); err == nil {
		t.Fatal("expected an error for an unknown vertex kind")
	}
}
