package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("llm: gemini: empty api key (set GOOGLE_API_KEY)")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: gemini: create client: %w", err)
	}

	m := strings.TrimSpace(model)
	if m == "" {
		m = defaultGeminiModel
	}

	return &GeminiProvider{client: client, model: m}, nil
}

func (p *GeminiProvider) Name() string  { return "gemini" }
func (p *GeminiProvider) Model() string { return p.model }

func (p *GeminiProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if p == nil || p.client == nil {
		return nil, errors.New("llm: gemini: nil client")
	}
	if ctx == nil {
		return nil, errors.New("llm: gemini: nil context")
	}
	if req == nil {
		return nil, errors.New("llm: gemini: nil request")
	}

	contents := p.buildContents(req)
	if len(contents) == 0 {
		return nil, errors.New("llm: gemini: empty messages")
	}
	config := p.buildConfig(req)

	start := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return nil, fmt.Errorf("llm: gemini: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, errors.New("llm: gemini: empty response")
	}

	out := &Response{Text: text, LatencyMs: latency}
	if usage := resp.UsageMetadata; usage != nil {
		out.InputTokens = int(usage.PromptTokenCount)
		out.OutputTokens = int(usage.CandidatesTokenCount)
	}
	return out, nil
}

// buildContents maps chat turns onto Gemini roles. There is no system role;
// system text is folded into the first user turn.
func (p *GeminiProvider) buildContents(req *Request) []*genai.Content {
	out := make([]*genai.Content, 0, len(req.Messages))
	system := strings.TrimSpace(req.System)

	for _, m := range req.Messages {
		text := m.Content
		role := genai.RoleUser
		switch strings.ToLower(strings.TrimSpace(m.Role)) {
		case "assistant", "model":
			role = genai.RoleModel
		}
		if system != "" && role == genai.RoleUser {
			text = fmt.Sprintf("System: %s\n\nUser: %s", system, text)
			system = ""
		}
		out = append(out, genai.NewContentFromText(text, genai.Role(role)))
	}
	return out
}

func (p *GeminiProvider) buildConfig(req *Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	temp := req.Temperature
	if temp < 0 {
		temp = 0
	}
	if temp > 2 {
		temp = 2
	}
	config.Temperature = genai.Ptr(float32(temp))

	if req.MaxTokens > 0 {
		if req.MaxTokens > math.MaxInt32 {
			config.MaxOutputTokens = math.MaxInt32
		} else {
			config.MaxOutputTokens = int32(req.MaxTokens)
		}
	}
	return config
}
