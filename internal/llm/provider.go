package llm

import "context"

// Provider is a single LLM backend. Implementations are safe for
// sequential use; wrap with RateLimited for shared concurrent use.
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, req *Request) (*Response, error)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type Response struct {
	Text         string `json:"text"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	LatencyMs    int64  `json:"latency_ms"`
	StopReason   string `json:"stop_reason,omitempty"`
	// Cached reports whether the response was served from the disk cache.
	Cached bool `json:"cached,omitempty"`
}
