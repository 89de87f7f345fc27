package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Generation GenerationConfig `yaml:"generation"`
	Storage    StorageConfig    `yaml:"storage"`
}

type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider,omitempty"`
	Providers       map[string]ProviderConfig `yaml:"providers,omitempty"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
	// Port selects the local OpenAI-compatible endpoint when BaseURL is
	// empty (http://localhost:<port>/v1).
	Port int `yaml:"port,omitempty"`
	// Org and Project are forwarded as OpenAI organization/project headers.
	Org     string `yaml:"org,omitempty"`
	Project string `yaml:"project,omitempty"`
}

type EvaluationConfig struct {
	BatchSize   int     `yaml:"batch_size,omitempty"`
	Parallel    bool    `yaml:"parallel,omitempty"`
	RateQPS     float64 `yaml:"rate_qps,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
	Temperature float64 `yaml:"temperature"`
	ResultsDir  string  `yaml:"results_dir,omitempty"`
	CacheDir    string  `yaml:"cache_dir,omitempty"`
}

type GenerationConfig struct {
	DataDir string `yaml:"data_dir,omitempty"`
	Size    int    `yaml:"size,omitempty"`
	Seed    int64  `yaml:"seed,omitempty"`
}

type StorageConfig struct {
	Type string `yaml:"type,omitempty"` // "sqlite" or "memory"
	Path string `yaml:"path,omitempty"` // SQLite file path
}

func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	case os.IsNotExist(err) && path == DefaultPath:
		// Running without a config file is fine; env vars carry the keys.
	default:
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = make(map[string]ProviderConfig)
	}
	if strings.TrimSpace(cfg.LLM.DefaultProvider) == "" {
		cfg.LLM.DefaultProvider = "gemini"
	}
	if cfg.Evaluation.BatchSize <= 0 {
		cfg.Evaluation.BatchSize = 4
	}
	if cfg.Evaluation.MaxTokens <= 0 {
		cfg.Evaluation.MaxTokens = 1024
	}
	if cfg.Evaluation.RateQPS <= 0 {
		cfg.Evaluation.RateQPS = 2
	}
	if strings.TrimSpace(cfg.Evaluation.ResultsDir) == "" {
		cfg.Evaluation.ResultsDir = "results"
	}
	if strings.TrimSpace(cfg.Evaluation.CacheDir) == "" {
		cfg.Evaluation.CacheDir = "cache"
	}
	if strings.TrimSpace(cfg.Generation.DataDir) == "" {
		cfg.Generation.DataDir = "data"
	}
	if cfg.Generation.Size <= 0 {
		cfg.Generation.Size = 200
	}
	if strings.TrimSpace(cfg.Storage.Type) == "" {
		cfg.Storage.Type = "sqlite"
	}
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		cfg.Storage.Path = "results/underspec.db"
	}
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")); v != "" {
		p := cfg.LLM.Providers["gemini"]
		p.APIKey = v
		cfg.LLM.Providers["gemini"] = p
	}

	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		p := cfg.LLM.Providers["openai"]
		p.APIKey = v
		if org := strings.TrimSpace(os.Getenv("OPENAI_ORGANIZATION")); org != "" {
			p.Org = org
		}
		if proj := strings.TrimSpace(os.Getenv("OPENAI_PROJECT")); proj != "" {
			p.Project = proj
		}
		cfg.LLM.Providers["openai"] = p
	}

	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		p := cfg.LLM.Providers["claude"]
		p.APIKey = v
		cfg.LLM.Providers["claude"] = p
	}
}
