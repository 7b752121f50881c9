package operator

import (
	"context"
	"fmt"
	"sync"

	"github.com/BTankut/neuralcanvas/internal/apperr"
	"github.com/BTankut/neuralcanvas/internal/bus"
	"github.com/BTankut/neuralcanvas/internal/gateway"
	"github.com/BTankut/neuralcanvas/internal/graph"
)

// DebateOp runs a fixed number of debaters through a fixed number of
// sequential rounds, each debater producing one statement per round in
// parallel with the others, and accumulates the full transcript.
type DebateOp struct{}

func debatePositions(n int) []string {
	names := []string{"PRO", "CON", "NEUTRAL"}
	positions := make([]string, n)
	for i := 0; i < n; i++ {
		if i < len(names) {
			positions[i] = names[i]
			continue
		}
		positions[i] = fmt.Sprintf("POSITION-%d", i+1)
	}
	return positions
}

func (DebateOp) Execute(ctx context.Context, env *Env, v *graph.Vertex, in Inputs) (Output, error) {
	model, _ := v.Config["model"].(string)
	if model == "" {
		model = env.DefaultModel
	}
	debatersF, _ := v.Config["debaters"].(float64)
	debaters := int(debatersF)
	if debaters < 2 || debaters > 5 {
		return nil, apperr.New(apperr.OperatorInvalidConf, "debate vertex %q: debaters must be in [2,5]", v.ID)
	}
	roundsF, _ := v.Config["rounds"].(float64)
	rounds := int(roundsF)
	if rounds < 1 || rounds > 5 {
		return nil, apperr.New(apperr.OperatorInvalidConf, "debate vertex %q: rounds must be in [1,5]", v.ID)
	}
	var temperature *float64
	if t, ok := v.Config["temperature"].(float64); ok {
		temperature = &t
	}

	topic := singleInput(in)
	positions := debatePositions(debaters)
	transcript := ""

	for round := 1; round <= rounds; round++ {
		statements := make([]string, debaters)
		var wg sync.WaitGroup
		frozenTranscript := transcript
		for i, position := range positions {
			wg.Add(1)
			go func(i int, position string) {
				defer wg.Done()
				prompt := fmt.Sprintf("Topic: %s\n\nTranscript so far:\n%s\n\nYou are debating from the %s position. Give your statement for round %d.", topic, frozenTranscript, position, round)
				header := fmt.Sprintf("\n\n=== Round %d / %s ===\n", round, position)
				sentHeader := false
				req := &gateway.CompletionRequest{
					Temperature: temperature,
					Messages:    []gateway.Message{{Role: gateway.RoleUser, Content: prompt}},
				}
				result, err := env.Gateway.Complete(ctx, model, env.FallbackModels, req, func(delta string) {
					if !sentHeader {
						env.Bus.Publish(v.ID, bus.EventTokenStream, map[string]any{"delta": header})
						sentHeader = true
					}
					env.Bus.Publish(v.ID, bus.EventTokenStream, map[string]any{"delta": delta})
				})
				if err != nil {
					statements[i] = fmt.Sprintf("(%s failed to respond: %v)", position, err)
					return
				}
				statements[i] = result.Content
			}(i, position)
		}
		wg.Wait()

		for i, position := range positions {
			transcript += fmt.Sprintf("Round %d — %s: %s\n\n", round, position, statements[i])
		}

		if ctx.Err() != nil {
			return nil, apperr.Wrap(apperr.Cancelled, ctx.Err(), "debate vertex %q cancelled", v.ID)
		}
	}

	return Output{graph.PortNone: transcript}, nil
}
