package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const defaultLocalPort = 8000

// LocalProvider talks to a locally served OpenAI-compatible endpoint
// (vLLM and similar). Message normalization follows what instruction-tuned
// open models expect: no system role, strictly alternating user/assistant.
type LocalProvider struct {
	client *openai.Client
	model  string
}

func NewLocalProvider(baseURL string, port int, model string) *LocalProvider {
	url := strings.TrimSpace(baseURL)
	if url == "" {
		if port <= 0 {
			port = defaultLocalPort
		}
		url = fmt.Sprintf("http://localhost:%d/v1", port)
	}

	cfg := openai.DefaultConfig("")
	cfg.BaseURL = strings.TrimRight(url, "/")

	m := strings.TrimSpace(model)
	if m == "" {
		m = "gemma-2-9b-it"
	}

	return &LocalProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  m,
	}
}

func (p *LocalProvider) Name() string  { return "local" }
func (p *LocalProvider) Model() string { return p.model }

func (p *LocalProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if p == nil || p.client == nil {
		return nil, errors.New("llm: local: nil client")
	}
	if ctx == nil {
		return nil, errors.New("llm: local: nil context")
	}
	if req == nil {
		return nil, errors.New("llm: local: nil request")
	}

	in := make([]Message, 0, len(req.Messages)+1)
	if system := strings.TrimSpace(req.System); system != "" {
		in = append(in, Message{Role: "system", Content: system})
	}
	in = append(in, req.Messages...)

	msgs := make([]openai.ChatCompletionMessage, 0, len(in))
	for _, m := range NormalizeChatMessages(in) {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}

	r := openai.ChatCompletionRequest{
		Model:       strings.TrimSpace(p.model),
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: float32(req.Temperature),
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, r)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("llm: local: empty choices")
	}

	choice := resp.Choices[0]
	return &Response{
		Text:         strings.TrimSpace(choice.Message.Content),
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		LatencyMs:    latency,
		StopReason:   string(choice.FinishReason),
	}, nil
}

// NormalizeChatMessages rewrites system turns as user turns, merges
// consecutive same-role turns, and inserts filler turns so roles strictly
// alternate starting from user.
func NormalizeChatMessages(in []Message) []Message {
	merged := make([]Message, 0, len(in))
	for _, m := range in {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role == "system" || role == "" {
			role = "user"
		}
		if n := len(merged); n > 0 && merged[n-1].Role == role {
			merged[n-1].Content += "\n\n" + m.Content
			continue
		}
		merged = append(merged, Message{Role: role, Content: m.Content})
	}

	out := make([]Message, 0, len(merged)+2)
	for _, m := range merged {
		if len(out) == 0 && m.Role != "user" {
			out = append(out, Message{Role: "user", Content: "Hello"})
		}
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			if m.Role == "user" {
				out = append(out, Message{Role: "assistant", Content: "I understand."})
			} else {
				out = append(out, Message{Role: "user", Content: "Please continue."})
			}
		}
		out = append(out, m)
	}
	return out
}
