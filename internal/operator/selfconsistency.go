package operator

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/BTankut/neuralcanvas/internal/apperr"
	"github.com/BTankut/neuralcanvas/internal/bus"
	"github.com/BTankut/neuralcanvas/internal/gateway"
	"github.com/BTankut/neuralcanvas/internal/graph"
)

// SelfConsistencyOp issues several parallel completions at rising
// temperatures and picks a representative by majority, length, or arrival
// order. Per-sample token deltas stream to the bus tagged with the vertex's
// own id; interleaving across samples is permitted by design.
type SelfConsistencyOp struct{}

type sample struct {
	order   int
	content string
}

func (SelfConsistencyOp) Execute(ctx context.Context, env *Env, v *graph.Vertex, in Inputs) (Output, error) {
	model, _ := v.Config["model"].(string)
	if model == "" {
		model = env.DefaultModel
	}
	samplesF, _ := v.Config["samples"].(float64)
	n := int(samplesF)
	if n < 2 {
		return nil, apperr.New(apperr.OperatorInvalidConf, "self-consistency vertex %q: samples must be >= 2", v.ID)
	}
	votingMethod, _ := v.Config["voting"].(string)
	baseTemp, _ := v.Config["temperature"].(float64)

	payload := singleInput(in)

	results := make([]string, n)
	errs := make([]error, n)
	arrival := make(chan sample, n)
	var completionOrder int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for k := 0; k < n; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			temp := baseTemp + float64(k)*0.1
			if temp > 2 {
				temp = 2
			}
			req := &gateway.CompletionRequest{
				Temperature: &temp,
				Messages:    []gateway.Message{{Role: gateway.RoleUser, Content: payload}},
			}
			result, err := env.Gateway.Complete(ctx, model, env.FallbackModels, req, func(delta string) {
				env.Bus.Publish(v.ID, bus.EventTokenStream, map[string]any{"delta": delta, "sample": k})
			})
			if err != nil {
				errs[k] = err
				return
			}
			results[k] = result.Content
			mu.Lock()
			completionOrder++
			order := completionOrder
			mu.Unlock()
			arrival <- sample{order: order, content: result.Content}
		}(k)
	}
	wg.Wait()
	close(arrival)

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	arrived := make([]sample, 0, n)
	for s := range arrival {
		arrived = append(arrived, s)
	}

	var chosen string
	switch votingMethod {
	case "majority":
		chosen = majorityVote(results, arrived)
	case "longest":
		chosen = longestVote(results)
	case "first":
		chosen = firstVote(arrived)
	default:
		return nil, apperr.New(apperr.OperatorInvalidConf, "self-consistency vertex %q: unknown voting method %q", v.ID, votingMethod)
	}

	return Output{graph.PortNone: chosen}, nil
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func normalizeAnswer(s string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

// majorityVote selects the representative of the largest equivalence class
// under normalizeAnswer, ties broken by earliest completion in arrived's
// real arrival order (the order firstVote itself uses), not by the
// configured sample/temperature-slot index.
func majorityVote(results []string, arrived []sample) string {
	type class struct {
		count int
		rep   string
	}
	classes := make(map[string]*class)
	for _, r := range results {
		key := normalizeAnswer(r)
		c, ok := classes[key]
		if !ok {
			c = &class{rep: r}
			classes[key] = c
		}
		c.count++
	}

	sorted := append([]sample(nil), arrived...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].order < sorted[j].order })

	best := ""
	bestCount := -1
	seen := make(map[string]bool)
	for _, s := range sorted {
		key := normalizeAnswer(s.content)
		if seen[key] {
			continue
		}
		seen[key] = true
		c := classes[key]
		if c.count > bestCount {
			bestCount = c.count
			best = c.rep
		}
	}
	return best
}

func longestVote(results []string) string {
	best := ""
	for _, r := range results {
		if len(r) > len(best) {
			best = r
		}
	}
	return best
}

func firstVote(arrived []sample) string {
	best := sample{order: 1<<62 - 1}
	for _, s := range arrived {
		if s.order < best.order {
			best = s
		}
	}
	return best.content
}
