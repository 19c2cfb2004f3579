package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/EberSantana/flowedu-sub004/internal/store"
)

// NewProvider creates a Provider from configuration.
// It returns the provider wrapped with retry, rate limiting and logging
// middleware.
func NewProvider(ctx context.Context, cfg Config, repo store.JudgeCallRepo, log *zap.Logger) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "openrouter":
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	// caller → retry → rate limit → timeout → logging → base
	logged := WithLogging(base, cfg.Provider, repo, log)
	bounded := WithTimeout(logged, cfg.Timeout)
	limited := WithRateLimit(bounded, cfg.RateLimit)
	retried := WithRetry(limited, cfg.Retry)

	return retried, nil
}
