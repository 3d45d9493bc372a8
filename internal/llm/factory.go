package llm

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ProviderConfig selects and configures an inference provider.
type ProviderConfig struct {
	Provider string // "anthropic" or "openai"
	Model    string
	APIKey   string
	BaseURL  string // optional, openai-compatible endpoints
}

// Default models per provider, used when Model is unset.
const (
	defaultAnthropicModel = "claude-sonnet-4-5-20250929"
	defaultOpenAIModel    = "gpt-4o-mini"
)

// New builds the configured provider. The rest of the system depends only
// on the Client interface, never on provider identity.
func New(cfg ProviderConfig) (Client, error) {
	if cfg.APIKey == "" {
		return nil, eris.Errorf("llm: missing api key for provider %q", cfg.Provider)
	}

	switch cfg.Provider {
	case "anthropic", "":
		model := cfg.Model
		if model == "" {
			model = defaultAnthropicModel
		}
		zap.L().Info("llm provider configured",
			zap.String("provider", "anthropic"), zap.String("model", model))
		return NewAnthropic(cfg.APIKey, model), nil
	case "openai":
		model := cfg.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		zap.L().Info("llm provider configured",
			zap.String("provider", "openai"), zap.String("model", model))
		return NewOpenAI(cfg.APIKey, model, cfg.BaseURL), nil
	default:
		return nil, eris.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
