package operator

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/BTankut/neuralcanvas/internal/apperr"
	"github.com/BTankut/neuralcanvas/internal/graph"
)

// SplitterOp divides the inbound payload into an ordered chunk list and
// emits it JSON-encoded, the shape ReducerOp recognizes downstream.
type SplitterOp struct{}

func (SplitterOp) Execute(_ context.Context, _ *Env, v *graph.Vertex, in Inputs) (Output, error) {
	strategy, _ := v.Config["strategy"].(string)
	chunkSizeF, _ := v.Config["chunk_size"].(float64)
	chunkSize := int(chunkSizeF)
	overlapF, _ := v.Config["overlap"].(float64)
	overlap := int(overlapF)

	if chunkSize <= 0 {
		return nil, apperr.New(apperr.OperatorInvalidConf, "splitter vertex %q: chunk_size must be > 0", v.ID)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, apperr.New(apperr.OperatorInvalidConf, "splitter vertex %q: overlap must be >= 0 and < chunk_size", v.ID)
	}

	payload := singleInput(in)

	var chunks []string
	switch strategy {
	case "fixed":
		chunks = splitFixed(payload, chunkSize)
	case "sliding":
		chunks = splitSliding(payload, chunkSize, overlap)
	case "semantic":
		chunks = splitSemantic(payload, chunkSize)
	default:
		return nil, apperr.New(apperr.OperatorInvalidConf, "splitter vertex %q: unknown strategy %q", v.ID, strategy)
	}

	encoded, err := json.Marshal(chunks)
	if err != nil {
		return nil, apperr.Wrap(apperr.OperatorInvalidConf, err, "splitter vertex %q: failed to encode chunks", v.ID)
	}
	return Output{graph.PortNone: string(encoded)}, nil
}

func splitFixed(text string, chunkSize int) []string {
	runes := []rune(text)
	var chunks []string
	for i := 0; i < len(runes); i += chunkSize {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	if chunks == nil {
		chunks = []string{}
	}
	return chunks
}

func splitSliding(text string, chunkSize, overlap int) []string {
	runes := []rune(text)
	stride := chunkSize - overlap
	var chunks []string
	for i := 0; i < len(runes); i += stride {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	if chunks == nil {
		chunks = []string{}
	}
	return chunks
}

func splitSemantic(text string, chunkSize int) []string {
	paragraphs := strings.Split(text, "\n\n")
	var chunks []string
	var current strings.Builder
	for _, p := range paragraphs {
		if current.Len() == 0 {
			current.WriteString(p)
			continue
		}
		if current.Len()+2+len(p) > chunkSize {
			chunks = append(chunks, current.String())
			current.Reset()
			current.WriteString(p)
			continue
		}
		current.WriteString("\n\n")
		current.WriteString(p)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	if chunks == nil {
		chunks = []string{}
	}
	return chunks
}

// chunkList reports whether payload decodes as a JSON array of strings, the
// shape SplitterOp emits, returning the decoded chunks when it does.
func chunkList(payload string) ([]string, bool) {
	var chunks []string
	if err := json.Unmarshal([]byte(payload), &chunks); err != nil {
		return nil, false
	}
	return chunks, true
}
