package operator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/BTankut/neuralcanvas/internal/apperr"
	"github.com/BTankut/neuralcanvas/internal/graph"
)

func decodeChunks(t *testing.T, out Output) []string {
	t.Helper()
	var chunks []string
	if err := json.Unmarshal([]byte(out[graph.PortNone].(string)), &chunks); err != nil {
		t.Fatalf("decode chunks: %v", err)
	}
	return chunks
}

func TestSplitterOp_Fixed(t *testing.T) {
	v := vertex("s", graph.KindSplitter, map[string]any{"strategy": "fixed", "chunk_size": float64(4)})
	out, err := SplitterOp{}.Execute(context.Background(), nil, v, Inputs{"a": "abcdefghij"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	chunks := decodeChunks(t, out)
	want := []string{"abcd", "efgh", "ij"}
	if len(chunks) != len(want) {
		t.Fatalf("chunks: got %v, want %v", chunks, want)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d: got %q, want %q", i, chunks[i], want[i])
		}
	}
}

func TestSplitterOp_Sliding(t *testing.T) {
	v := vertex("s", graph.KindSplitter, map[string]any{"strategy": "sliding", "chunk_size": float64(4), "overlap": float64(2)})
	out, err := SplitterOp{}.Execute(context.Background(), nil, v, Inputs{"a": "abcdefgh"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	chunks := decodeChunks(t, out)
	want := []string{"abcd", "cdef", "efgh"}
	if len(chunks) != len(want) {
		t.Fatalf("chunks: got %v, want %v", chunks, want)
	}
}

func TestSplitterOp_Semantic(t *testing.T) {
	v := vertex("s", graph.KindSplitter, map[string]any{"strategy": "semantic", "chunk_size": float64(10)})
	out, err := SplitterOp{}.Execute(context.Background(), nil, v, Inputs{"a": "one\n\ntwo\n\nthreeword"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	chunks := decodeChunks(t, out)
	if len(chunks) < 2 {
		t.Fatalf("expected paragraphs to be grouped into multiple chunks, got %v", chunks)
	}
}

func TestSplitterOp_InvalidOverlapErrors(t *testing.T) {
	v := vertex("s", graph.KindSplitter, map[string]any{"strategy": "sliding", "chunk_size": float64(4), "overlap": float64(4)})
	_, err := SplitterOp{}.Execute(context.Background(), nil, v, Inputs{"a": "abcdefgh"})
	if apperr.KindOf(err) != apperr.OperatorInvalidConf {
		t.Fatalf("expected operator-invalid-config, got %v", err)
	}
}

func TestSplitterOp_UnknownStrategyErrors(t *testing.T) {
	v := vertex("s", graph.KindSplitter, map[string]any{"strategy": "bogus", "chunk_size": float64(4)})
	_, err := SplitterOp{}.Execute(context.Background(), nil, v, Inputs{"a": "abcdefgh"})
	if apperr.KindOf(err) != apperr.OperatorInvalidConf {
		t.Fatalf("expected operator-invalid-config, got %v", err)
	}
}
