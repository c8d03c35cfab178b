package llm

import (
	"context"
	"fmt"

	"github.com/rememberme/rememberme/internal/config"
)

// Client is the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, prompt string) (*Response, error)
}

// Response holds the result of an LLM completion.
type Response struct {
	Content    string
	Provider   string
	TokensUsed int
}

// defaultModels are used when the config leaves the model empty.
var defaultModels = map[string]string{
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-haiku-4-5-20251001",
	"ollama":    "llama3.2",
}

// NewClient creates an LLM client based on the config provider setting.
// Model applies to every provider; for Ollama, OllamaModel is the fallback.
func NewClient(cfg config.LLMConfig) (Client, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}
	model := cfg.Model
	if model == "" && provider == "ollama" {
		model = cfg.OllamaModel
	}
	if model == "" {
		model = defaultModels[provider]
	}

	switch provider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("openai provider requires OPENAI_API_KEY or config")
		}
		return NewOpenAI(cfg.OpenAIKey, cfg.OpenAIBaseURL, model), nil
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("anthropic provider requires ANTHROPIC_API_KEY or config")
		}
		return NewAnthropic(cfg.AnthropicKey, model), nil
	case "ollama":
		url := cfg.OllamaURL
		if url == "" {
			url = "http://localhost:11434"
		}
		return NewOllama(url, model), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}
