package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/reasonlab/underspec/internal/config"
)

type fakeProvider struct {
	name     string
	model    string
	calls    int
	failures int
	text     string
	err      error
}

func (f *fakeProvider) Name() string  { return f.name }
func (f *fakeProvider) Model() string { return f.model }

func (f *fakeProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.calls <= f.failures {
		return nil, errors.New("transient failure")
	}
	return &Response{Text: f.text, InputTokens: 10, OutputTokens: 5}, nil
}

func TestRetry_EventualSuccess(t *testing.T) {
	inner := &fakeProvider{name: "fake", model: "m", failures: 2, text: "ok"}
	r := WithRetry(inner, 5)
	r.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	resp, err := r.Complete(context.Background(), &Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "ok" {
		t.Fatalf("text: got %q", resp.Text)
	}
	if inner.calls != 3 {
		t.Fatalf("calls: got %d want 3", inner.calls)
	}
}

func TestRetry_Exhausted(t *testing.T) {
	inner := &fakeProvider{name: "fake", model: "m", err: errors.New("boom")}
	r := WithRetry(inner, 2)
	r.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	_, err := r.Complete(context.Background(), &Request{})
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if inner.calls != 3 {
		t.Fatalf("calls: got %d want 3", inner.calls)
	}
}

func TestCache_HitSkipsInner(t *testing.T) {
	inner := &fakeProvider{name: "fake", model: "m", text: "answer"}
	c, err := WithCache(inner, t.TempDir())
	if err != nil {
		t.Fatalf("WithCache: %v", err)
	}
	defer c.Close()

	req := &Request{Messages: []Message{{Role: "user", Content: "q1"}}}

	resp, err := c.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("first Complete: %v", err)
	}
	if resp.Cached {
		t.Fatal("first call should not be cached")
	}

	resp, err = c.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("second Complete: %v", err)
	}
	if !resp.Cached || resp.Text != "answer" {
		t.Fatalf("cache hit: got cached=%v text=%q", resp.Cached, resp.Text)
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls: got %d want 1", inner.calls)
	}
}

func TestCache_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	inner := &fakeProvider{name: "fake", model: "m", text: "persisted"}

	c, err := WithCache(inner, dir)
	if err != nil {
		t.Fatalf("WithCache: %v", err)
	}
	req := &Request{Messages: []Message{{Role: "user", Content: "q"}}}
	if _, err := c.Complete(context.Background(), req); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	inner2 := &fakeProvider{name: "fake", model: "m", err: errors.New("must not be called")}
	c2, err := WithCache(inner2, dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c2.Close()

	resp, err := c2.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("cached Complete: %v", err)
	}
	if !resp.Cached || resp.Text != "persisted" {
		t.Fatalf("got cached=%v text=%q", resp.Cached, resp.Text)
	}
}

func TestNormalizeChatMessages(t *testing.T) {
	in := []Message{
		{Role: "system", Content: "Be terse."},
		{Role: "user", Content: "Question?"},
		{Role: "assistant", Content: "Answer."},
		{Role: "assistant", Content: "More."},
	}
	out := NormalizeChatMessages(in)

	if out[0].Role != "user" {
		t.Fatalf("first role: got %q", out[0].Role)
	}
	for i := 1; i < len(out); i++ {
		if out[i].Role == out[i-1].Role {
			t.Fatalf("roles not alternating at %d: %q", i, out[i].Role)
		}
	}
	// System folded into the first user turn.
	if want := "Be terse.\n\nQuestion?"; out[0].Content != want {
		t.Fatalf("merged content: got %q want %q", out[0].Content, want)
	}
}

func TestNormalizeChatMessages_AssistantFirst(t *testing.T) {
	out := NormalizeChatMessages([]Message{{Role: "assistant", Content: "Hi."}})
	if len(out) != 2 || out[0].Role != "user" || out[1].Role != "assistant" {
		t.Fatalf("got %+v", out)
	}
}

func TestInferProvider(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"gemini-2.0-flash", "gemini"},
		{"gpt-4o", "openai"},
		{"o1-preview", "openai"},
		{"o1", "openai"},
		{"claude-3-5-sonnet-20241022", "claude"},
		{"gemma-2-9b-it", "local"},
		{"mystery-model", ""},
		{"", ""},
	}
	for _, tc := range tests {
		if got := InferProvider(tc.model); got != tc.want {
			t.Fatalf("InferProvider(%q): got %q want %q", tc.model, got, tc.want)
		}
	}
}

func TestEstimateCost(t *testing.T) {
	got := EstimateCost("gpt-4o", 1_000_000, 1_000_000)
	if want := 20.0; got != want {
		t.Fatalf("gpt-4o cost: got %v want %v", got, want)
	}
	if got := EstimateCost("gemma-2-9b-it", 1000, 1000); got != 0 {
		t.Fatalf("unmetered cost: got %v want 0", got)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeProvider{name: "Fake", model: "m"})

	if _, ok := r.Get("fake"); !ok {
		t.Fatal("expected case-insensitive lookup to succeed")
	}
	if _, ok := r.Get("other"); ok {
		t.Fatal("unexpected provider")
	}
}

type headerCaptureTransport struct {
	got http.Header
}

func (t *headerCaptureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.got = req.Header.Clone()
	return nil, errors.New("stop")
}

func TestProjectTransport_SetsHeader(t *testing.T) {
	capture := &headerCaptureTransport{}
	pt := &projectTransport{project: "proj_123", base: capture}

	req, err := http.NewRequest(http.MethodGet, "http://localhost/v1/models", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if _, err := pt.RoundTrip(req); err == nil {
		t.Fatal("expected the capturing transport to error")
	}
	if got := capture.got.Get("OpenAI-Project"); got != "proj_123" {
		t.Fatalf("OpenAI-Project header: got %q", got)
	}
	if req.Header.Get("OpenAI-Project") != "" {
		t.Fatal("original request must not be mutated")
	}
}

func TestNewRegistryFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.LLM.Providers = map[string]config.ProviderConfig{
		"local":  {Model: "gemma-2-9b-it"},
		"openai": {APIKey: "sk-test", Model: "gpt-4o"},
	}

	reg, err := NewRegistryFromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewRegistryFromConfig: %v", err)
	}
	for _, name := range []string{"local", "openai"} {
		if _, ok := reg.Get(name); !ok {
			t.Fatalf("provider %q not registered", name)
		}
	}
	if p, _ := reg.Get("local"); p.Model() != "gemma-2-9b-it" {
		t.Fatalf("local model: got %q", p.Model())
	}
}

func TestDefaultProviderFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.LLM.DefaultProvider = "local"
	cfg.LLM.Providers = map[string]config.ProviderConfig{
		"local": {Model: "gemma-2-9b-it"},
	}

	p, err := DefaultProviderFromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("DefaultProviderFromConfig: %v", err)
	}
	if p.Name() != "local" {
		t.Fatalf("provider: got %q want local", p.Name())
	}

	cfg.LLM.DefaultProvider = "missing"
	cfg.LLM.Providers["openai"] = config.ProviderConfig{APIKey: "sk-test"}
	if _, err := DefaultProviderFromConfig(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unconfigured default provider")
	}
}
