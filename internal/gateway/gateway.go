package gateway

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/BTankut/neuralcanvas/internal/apperr"
)

// Policy bounds the retry/backoff/fallback behavior of a Gateway call,
// grounded on the backoff shape of Upal's deleted internal/services/retry.go
// (CalculateBackoff/isRetryable), adapted per-call instead of per-workflow-run
// and parameterized per spec §4.2's fixed numbers.
type Policy struct {
	MaxAttempts       int           // total attempts on the SAME model, the initial one included (spec: 2 additional attempts -> 3 total)
	InitialDelay      time.Duration // spec: 500ms
	MaxDelay          time.Duration // spec: 4s
	BackoffFactor     float64       // exponential base
	ConsecutiveForFallback int      // carried in the policy but not read: Complete moves to the next fallback model once a model has used up MaxAttempts or failed with a non-retryable error
}

// DefaultPolicy implements spec §4.2 exactly: 2 additional attempts (3
// total) per model, 500ms initial backoff doubling up to a 4s cap with
// jitter, and a model-list fallback after 3 consecutive failures.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:            3,
		InitialDelay:           500 * time.Millisecond,
		MaxDelay:               4 * time.Second,
		BackoffFactor:          2,
		ConsecutiveForFallback: 3,
	}
}

// Gateway routes a completion call to a primary model, retrying on
// transient errors and falling back through a configured model list when
// a model exhausts its consecutive-failure budget.
type Gateway struct {
	registry *Registry
	policy   Policy
}

// New builds a Gateway over the given provider registry.
func New(registry *Registry) *Gateway {
	return &Gateway{registry: registry, policy: DefaultPolicy()}
}

// WithPolicy returns a copy of g using the given retry/fallback policy.
func (g *Gateway) WithPolicy(p Policy) *Gateway {
	return &Gateway{registry: g.registry, policy: p}
}

// Complete runs a completion against modelID ("provider/model"), retrying
// per policy, and falling back through fallbackModels in order once modelID
// has used up policy.MaxAttempts attempts or failed with a non-retryable
// error. sink receives
// streamed text deltas from whichever attempt is currently in flight.
func (g *Gateway) Complete(ctx context.Context, modelID string, fallbackModels []string, req *CompletionRequest, sink StreamSink) (*CompletionResult, error) {
	candidates := append([]string{modelID}, fallbackModels...)

	var lastErr error
	for _, candidate := range candidates {
		result, err := g.completeOnModel(ctx, candidate, req, sink)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, apperr.Wrap(apperr.Cancelled, ctx.Err(), "completion cancelled")
		}
		lastErr = err
		slog.Warn("gateway: model exhausted, trying next fallback", "model", candidate, "err", err)
	}
	return nil, apperr.Wrap(apperr.ModelUnavailable, lastErr, "all candidate models failed for %q", modelID)
}

// attemptTimeout bounds a single provider call (spec §4.2: 120s per
// attempt); exceeding it surfaces as apperr.ModelTimeout rather than
// whatever transport error the provider's own context plumbing produces.
const attemptTimeout = 120 * time.Second

// completeOnModel retries a single model up to policy.MaxAttempts times
// (spec §4.2's "2 additional attempts" = 3 total), honoring cancellation
// ahead of any further retry.
func (g *Gateway) completeOnModel(ctx context.Context, modelID string, req *CompletionRequest, sink StreamSink) (*CompletionResult, error) {
	providerName, modelName, err := ParseModelID(modelID)
	if err != nil {
		return nil, apperr.Wrap(apperr.OperatorInvalidConf, err, "parse model id")
	}
	provider, ok := g.registry.Get(providerName)
	if !ok {
		return nil, apperr.New(apperr.ModelUnavailable, "unknown provider %q", providerName)
	}

	callReq := *req
	callReq.Model = modelName

	var lastErr error
	for attempt := 0; attempt < g.policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		result, err := provider.StreamCompletion(attemptCtx, &callReq, sink)
		timedOut := attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
		cancel()
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if timedOut {
			lastErr = apperr.New(apperr.ModelTimeout, "model %q attempt exceeded %s", modelID, attemptTimeout)
		} else {
			lastErr = err
		}

		if (!timedOut && !isRetryable(err)) || attempt == g.policy.MaxAttempts-1 {
			break
		}

		slog.Info("gateway: retrying after transient error", "model", modelID, "attempt", attempt+1, "err", err)
		if !g.sleepWithBackoff(ctx, attempt) {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// sleepWithBackoff waits out the computed backoff for attempt, returning
// false if ctx was cancelled while waiting.
func (g *Gateway) sleepWithBackoff(ctx context.Context, attempt int) bool {
	delay := CalculateBackoff(g.policy, attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// CalculateBackoff computes exponential-backoff-with-jitter delay for the
// given attempt, capped at policy.MaxDelay. Grounded on the
// exponential-with-cap shape of Upal's deleted retry.go calculateBackoff,
// with jitter added per spec §4.2. Exported so internal/search can reuse
// the same schedule instead of an ad hoc one.
func CalculateBackoff(policy Policy, attempt int) time.Duration {
	base := float64(policy.InitialDelay) * math.Pow(policy.BackoffFactor, float64(attempt))
	if time.Duration(base) > policy.MaxDelay {
		base = float64(policy.MaxDelay)
	}
	jitter := base * (0.5 + rand.Float64()*0.5) // somewhere between half the delay and the full delay
	d := time.Duration(jitter)
	if d > policy.MaxDelay {
		d = policy.MaxDelay
	}
	return d
}

// isRetryable checks if an error message indicates a retryable transport
// condition, grounded on Upal's deleted retry.go isRetryableMsg pattern
// list.
func isRetryable(err error) bool {
	lower := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout", "rate_limit", "rate limit", "too many requests",
		"429", "500", "502", "503", "504",
		"connection reset", "connection refused", "eof",
		"overloaded", "capacity",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
