package llm

import (
	"fmt"
	"os"
	"time"
)

// Config selects and tunes the judge backend. API keys are never read from
// config files; ApplyEnvKeys fills them in from the environment.
type Config struct {
	Provider string `mapstructure:"provider" validate:"oneof=anthropic openai gemini openrouter mock"`

	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	OpenRouter OpenRouterConfig `mapstructure:"openrouter"`

	Retry     RetryConfig     `mapstructure:"retry"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// Timeout bounds each attempt, not the whole retried call.
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

type AnthropicConfig struct {
	APIKey string `mapstructure:"-"`
	Model  string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"-"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"-"`
	Model  string `mapstructure:"model"`
}

type OpenRouterConfig struct {
	APIKey  string `mapstructure:"-"`
	Model   string `mapstructure:"model"` // vendor/model
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gte=1,lte=10"`
	InitialWait time.Duration `mapstructure:"initial_wait" validate:"gte=0"`
	MaxWait     time.Duration `mapstructure:"max_wait" validate:"gtefield=InitialWait"`
	Multiplier  float64       `mapstructure:"multiplier" validate:"gte=1"`
}

// RateLimitConfig paces outbound judge calls. RequestsPerMinute <= 0
// disables pacing.
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst" validate:"gte=0"`
}

func DefaultConfig() Config {
	return Config{
		Provider:   "anthropic",
		Anthropic:  AnthropicConfig{Model: "claude-haiku"},
		OpenAI:     OpenAIConfig{Model: "gpt-4o-mini"},
		Gemini:     GeminiConfig{Model: "gemini-flash"},
		OpenRouter: OpenRouterConfig{Model: "openai/gpt-4o-mini"},
		Retry: RetryConfig{
			MaxAttempts: 2,
			InitialWait: 500 * time.Millisecond,
			MaxWait:     5 * time.Second,
			Multiplier:  2,
		},
		RateLimit: RateLimitConfig{RequestsPerMinute: 30, Burst: 5},
		Timeout:   20 * time.Second,
	}
}

// keyVars names, per backend, the variable our own deployment sets and the
// vendor's conventional one.
var keyVars = []struct {
	provider string
	own      string
	vendor   string
}{
	// DiscoverConfig checks in this order.
	{"gemini", "FLOWEDU_GEMINI_API_KEY", "GEMINI_API_KEY"},
	{"openai", "FLOWEDU_OPENAI_API_KEY", "OPENAI_API_KEY"},
	{"anthropic", "FLOWEDU_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"},
	{"openrouter", "FLOWEDU_OPENROUTER_API_KEY", "OPENROUTER_API_KEY"},
}

func (c *Config) keyFor(provider string) *string {
	switch provider {
	case "anthropic":
		return &c.Anthropic.APIKey
	case "openai":
		return &c.OpenAI.APIKey
	case "gemini":
		return &c.Gemini.APIKey
	case "openrouter":
		return &c.OpenRouter.APIKey
	}
	return nil
}

// ApplyEnvKeys sets every backend's key from its FLOWEDU_*_API_KEY variable.
func (c *Config) ApplyEnvKeys() {
	for _, kv := range keyVars {
		*c.keyFor(kv.provider) = os.Getenv(kv.own)
	}
}

// DiscoverConfig picks the first backend whose vendor key variable is set
// (GEMINI_API_KEY, OPENAI_API_KEY, ANTHROPIC_API_KEY, OPENROUTER_API_KEY).
func DiscoverConfig() (Config, bool) {
	for _, kv := range keyVars {
		key := os.Getenv(kv.vendor)
		if key == "" {
			continue
		}
		cfg := DefaultConfig()
		cfg.Provider = kv.provider
		*cfg.keyFor(kv.provider) = key
		return cfg, true
	}
	return Config{}, false
}

// Validate reports a missing key for the selected backend.
func (c Config) Validate() error {
	if c.Provider == "mock" {
		return nil
	}
	for _, kv := range keyVars {
		if kv.provider != c.Provider {
			continue
		}
		if *c.keyFor(kv.provider) == "" {
			return fmt.Errorf("%s is required for the %s provider", kv.own, kv.provider)
		}
		return nil
	}
	return fmt.Errorf("unknown judge provider %q", c.Provider)
}
