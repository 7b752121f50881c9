package operator

import (
	"context"

	"github.com/BTankut/neuralcanvas/internal/apperr"
	"github.com/BTankut/neuralcanvas/internal/graph"
)

// SearchOp resolves its query template against the incoming values and
// forwards the concatenated top-result text from the search client.
type SearchOp struct{}

func (SearchOp) Execute(ctx context.Context, env *Env, v *graph.Vertex, in Inputs) (Output, error) {
	queryTpl, _ := v.Config["query"].(string)
	query := resolveTemplate(queryTpl, in)
	if query == "" {
		query = singleInput(in)
	}
	if query == "" {
		return nil, apperr.New(apperr.OperatorInvalidConf, "search vertex %q: no query", v.ID)
	}

	text, err := env.Search.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return Output{graph.PortNone: text}, nil
}
