package gateway

import "testing"

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	p := NewOpenAICompatProvider("openai", "http://example.invalid", "")
	r.Register("openai", p)

	got, ok := r.Get("openai")
	if !ok {
		t.Fatal("expected provider to be found")
	}
	if got.Name() != "openai" {
		t.Errorf("got provider named %q", got.Name())
	}

	if _, ok := r.Get("missing"); ok {
		t.Fatal("expected missing provider to not be found")
	}
}
