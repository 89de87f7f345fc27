package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/reasonlab/underspec/internal/config"
)

// NewProvider builds the backend named by providerName. When providerName is
// empty it is inferred from the model name the way the model families are
// usually spelled (gemini-*, gpt-*/o1*, claude-*, gemma-* for local serving).
func NewProvider(ctx context.Context, cfg *config.Config, providerName, model string, port int) (Provider, error) {
	if cfg == nil {
		return nil, errors.New("llm: nil config")
	}

	name := strings.ToLower(strings.TrimSpace(providerName))
	if name == "" {
		name = InferProvider(model)
	}
	if name == "" {
		name = strings.ToLower(strings.TrimSpace(cfg.LLM.DefaultProvider))
	}

	pcfg := cfg.LLM.Providers[name]
	if strings.TrimSpace(model) != "" {
		pcfg.Model = strings.TrimSpace(model)
	}
	if port > 0 {
		pcfg.Port = port
	}

	switch name {
	case "gemini", "google":
		return NewGeminiProvider(ctx, pcfg.APIKey, pcfg.Model)
	case "openai":
		return NewOpenAIProvider(pcfg.APIKey, pcfg.BaseURL, pcfg.Org, pcfg.Project, pcfg.Model), nil
	case "claude", "anthropic":
		return NewClaudeProvider(pcfg.APIKey, pcfg.BaseURL, pcfg.Model), nil
	case "local", "vllm":
		return NewLocalProvider(pcfg.BaseURL, pcfg.Port, pcfg.Model), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q (expected gemini|openai|claude|local)", name)
	}
}

// InferProvider maps a model name onto a provider name, or returns "".
func InferProvider(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case m == "":
		return ""
	case strings.Contains(m, "gemini"):
		return "gemini"
	case strings.Contains(m, "gemma"):
		return "local"
	case strings.HasPrefix(m, "gpt"), isReasoningModel(m):
		return "openai"
	case strings.Contains(m, "claude"):
		return "claude"
	default:
		return ""
	}
}

func NewRegistryFromConfig(ctx context.Context, cfg *config.Config) (*Registry, error) {
	if cfg == nil {
		return nil, errors.New("llm: nil config")
	}

	r := NewRegistry()
	var errs []error
	for name := range cfg.LLM.Providers {
		p, err := NewProvider(ctx, cfg, name, "", 0)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		r.Register(p)
	}
	if len(r.providers) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return r, nil
}

func DefaultProviderFromConfig(ctx context.Context, cfg *config.Config) (Provider, error) {
	if cfg == nil {
		return nil, errors.New("llm: nil config")
	}
	reg, err := NewRegistryFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(cfg.LLM.DefaultProvider)
	if p, ok := reg.Get(name); ok {
		return p, nil
	}
	if len(reg.providers) == 1 {
		for _, p := range reg.providers {
			return p, nil
		}
	}

	available := reg.Names()
	sort.Strings(available)
	return nil, fmt.Errorf("llm: default provider %q not configured (available: %s)",
		name, strings.Join(available, ", "))
}
