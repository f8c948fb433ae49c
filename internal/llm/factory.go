package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zombor/receipt-batch/internal/config"
)

// New returns the Invoker for the named provider. An empty name selects the
// configured default. The provider is chosen here once; callers never branch on it.
func New(ctx context.Context, cfg config.Config, name string) (Invoker, error) {
	if name == "" {
		name = cfg.DefaultProvider
	}
	if name == "" {
		return nil, fmt.Errorf("no LLM provider specified in configuration")
	}

	p, err := cfg.Provider(name)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout()

	slog.Info("Initializing provider", "provider", name, "model", p.Model)

	switch name {
	case config.Gemini:
		return NewGemini(ctx, p.APIKey, p.Model, timeout)
	case config.Anthropic:
		return NewAnthropic(p.APIKey, p.Model, p.BaseURL, timeout)
	case config.OpenAI:
		return NewOpenAI(p.APIKey, p.Model, p.BaseURL, timeout)
	case config.Ollama:
		return NewOllama(p.BaseURL, p.Model, timeout)
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrUnknownProvider, name)
	}
}
