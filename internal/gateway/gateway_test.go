package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BTankut/neuralcanvas/internal/apperr"
)

type stubProvider struct {
	name      string
	failTimes int
	calls     int
	content   string
	err       error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) StreamCompletion(ctx context.Context, req *CompletionRequest, sink StreamSink) (*CompletionResult, error) {
	s.calls++
	if s.calls <= s.failTimes {
		if s.err != nil {
			return nil, s.err
		}
		return nil, errors.New("503 service unavailable")
	}
	sink(s.content)
	return &CompletionResult{Content: s.content, FinishReason: "stop"}, nil
}

func TestGateway_SucceedsOnFirstTry(t *testing.T) {
	reg := NewRegistry()
	p := &stubProvider{name: "openai", content: "hello"}
	reg.Register("openai", p)

	gw := New(reg)
	var streamed string
	res, err := gw.Complete(context.Background(), "openai/gpt-4o", nil, &CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	}, func(delta string) { streamed += delta })

	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if res.Content != "hello" {
		t.Errorf("content: got %q", res.Content)
	}
	if streamed != "hello" {
		t.Errorf("streamed: got %q", streamed)
	}
	if p.calls != 1 {
		t.Errorf("calls: got %d, want 1", p.calls)
	}
}

func TestGateway_RetriesTransientErrors(t *testing.T) {
	reg := NewRegistry()
	p := &stubProvider{name: "openai", failTimes: 2, content: "ok"}
	reg.Register("openai", p)

	gw := New(reg).WithPolicy(Policy{
		MaxAttempts:            3,
		InitialDelay:           time.Millisecond,
		MaxDelay:               2 * time.Millisecond,
		BackoffFactor:          2,
		ConsecutiveForFallback: 3,
	})

	res, err := gw.Complete(context.Background(), "openai/gpt-4o", nil, &CompletionRequest{}, func(string) {})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if res.Content != "ok" {
		t.Errorf("content: got %q", res.Content)
	}
	if p.calls != 3 {
		t.Errorf("calls: got %d, want 3", p.calls)
	}
}

func TestGateway_FallsBackAfterModelExhausted(t *testing.T) {
	reg := NewRegistry()
	primary := &stubProvider{name: "openai", failTimes: 99}
	fallback := &stubProvider{name: "anthropic", content: "fallback worked"}
	reg.Register("openai", primary)
	reg.Register("anthropic", fallback)

	gw := New(reg).WithPolicy(Policy{
		MaxAttempts:            2,
		InitialDelay:           time.Millisecond,
		MaxDelay:               2 * time.Millisecond,
		BackoffFactor:          2,
		ConsecutiveForFallback: 3,
	})

	res, err := gw.Complete(context.Background(), "openai/gpt-4o", []string{"anthropic/claude"}, &CompletionRequest{}, func(string) {})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if res.Content != "fallback worked" {
		t.Errorf("content: got %q", res.Content)
	}
}

func TestGateway_AllModelsFailReturnsModelUnavailable(t *testing.T) {
	reg := NewRegistry()
	p := &stubProvider{name: "openai", failTimes: 99}
	reg.Register("openai", p)

	gw := New(reg).WithPolicy(Policy{
		MaxAttempts:            1,
		InitialDelay:           time.Millisecond,
		MaxDelay:               time.Millisecond,
		BackoffFactor:          2,
		ConsecutiveForFallback: 3,
	})

	_, err := gw.Complete(context.Background(), "openai/gpt-4o", nil, &CompletionRequest{}, func(string) {})
	if apperr.KindOf(err) != apperr.ModelUnavailable {
		t.Fatalf("expected model-unavailable, got %v", err)
	}
}

func TestGateway_UnknownProvider(t *testing.T) {
	reg := NewRegistry()
	gw := New(reg)
	_, err := gw.Complete(context.Background(), "ghost/model", nil, &CompletionRequest{}, func(string) {})
	if apperr.KindOf(err) != apperr.ModelUnavailable {
		t.Fatalf("expected model-unavailable, got %v", err)
	}
}

func TestGateway_CancellationPreemptsRetry(t *testing.T) {
	reg := NewRegistry()
	p := &stubProvider{name: "openai", failTimes: 99}
	reg.Register("openai", p)

	gw := New(reg).WithPolicy(Policy{
		MaxAttempts:            5,
		InitialDelay:           50 * time.Millisecond,
		MaxDelay:               50 * time.Millisecond,
		BackoffFactor:          2,
		ConsecutiveForFallback: 3,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.Complete(ctx, "openai/gpt-4o", nil, &CompletionRequest{}, func(string) {})
	if apperr.KindOf(err) != apperr.Cancelled && err != context.Canceled {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestEstimateTokens(t *testing.T) {
	if EstimateTokens("") != 0 {
		t.Error("empty string should estimate 0 tokens")
	}
	if n := EstimateTokens("abcd"); n != 1 {
		t.Errorf("4 chars should estimate 1 token, got %d", n)
	}
	if n := EstimateTokens("12345678"); n != 2 {
		t.Errorf("8 chars should estimate 2 tokens, got %d", n)
	}
}

func TestParseModelID(t *testing.T) {
	p, m, err := ParseModelID("openai/gpt-4o")
	if err != nil || p != "openai" || m != "gpt-4o" {
		t.Fatalf("got %q %q %v", p, m, err)
	}
	if _, _, err := ParseModelID("badid"); err == nil {
		t.Fatal("expected error for malformed model id")
	}
}
