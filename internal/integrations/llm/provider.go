package llm

import (
	"context"
	"fmt"
	"net/http"

	"worklogbot/internal/config"
)

// Provider produces a single completion for a prompt. Failures are returned
// on the error channel, never as reply text.
type Provider interface {
	Complete(ctx context.Context, prompt, model string) (string, error)
	Name() string
}

// NewProvider picks the provider named by cfg.LLMProvider. The system prompt
// is sent with every request when non-empty.
func NewProvider(cfg config.Config, systemPrompt string, httpClient *http.Client) (Provider, error) {
	switch cfg.LLMProvider {
	case config.ProviderOllama:
		return NewOllama(cfg.OllamaHost, systemPrompt, httpClient), nil
	case config.ProviderAnthropic:
		return NewAnthropic(cfg.AnthropicAPIKey, systemPrompt, httpClient), nil
	case config.ProviderOpenAI:
		return NewOpenAI(cfg.OpenAIAPIKey, systemPrompt, httpClient), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
}
