package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BTankut/neuralcanvas/internal/apperr"
)

func TestHTTPClient_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "graph engines" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `
			<html><body>
			<div class="result"><div class="result-title">Result One</div><div class="result-snippet">snippet one</div></div>
			<div class="result"><div class="result-title">Result Two</div><div class="result-snippet">snippet two</div></div>
			</body></html>
		`)
	}))
	defer server.Close()

	c := New(server.URL, time.Second)
	text, err := c.Search(context.Background(), "graph engines")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if text == "" {
		t.Fatal("expected non-empty result text")
	}
	wantSubstrings := []string{"Result One", "snippet one", "Result Two", "snippet two"}
	for _, s := range wantSubstrings {
		if !strings.Contains(text, s) {
			t.Errorf("expected result text to contain %q, got %q", s, text)
		}
	}
}

func TestHTTPClient_EmptyResultsIsNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body></body></html>`)
	}))
	defer server.Close()

	c := New(server.URL, time.Second)
	text, err := c.Search(context.Background(), "nothing here")
	if err != nil {
		t.Fatalf("Search should not error on empty results: %v", err)
	}
	if text != "" {
		t.Errorf("expected empty string for no results, got %q", text)
	}
}

func TestHTTPClient_RetriesTransportErrorsThenFails(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := New(server.URL, time.Second)
	_, err := c.Search(context.Background(), "q")
	if apperr.KindOf(err) != apperr.SearchUnavailable {
		t.Fatalf("expected search-unavailable, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestHTTPClient_CancellationStopsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := New(server.URL, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Search(ctx, "q")
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
