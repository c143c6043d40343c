package llm

import (
	"context"
	"fmt"
)

// Provider names accepted by New.
const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Credentials holds the API keys for every supported provider. Only the keys of
// providers actually referenced by the configuration need to be set.
type Credentials struct {
	GroqAPIKey      string
	OpenAIAPIKey    string
	GoogleAPIKey    string
	AnthropicAPIKey string

	// OpenAIBaseURL overrides the endpoint used for ProviderOpenAI.
	OpenAIBaseURL string
}

// New builds the Completer for provider.
func New(ctx context.Context, provider string, creds Credentials) (Completer, error) {
	switch provider {
	case ProviderGroq:
		if creds.GroqAPIKey == "" {
			return nil, missingKey(provider, "GROQ_API_KEY")
		}
		return NewOpenAI(ProviderGroq, creds.GroqAPIKey, GroqBaseURL), nil
	case ProviderOpenAI:
		if creds.OpenAIAPIKey == "" {
			return nil, missingKey(provider, "OPENAI_API_KEY")
		}
		return NewOpenAI(ProviderOpenAI, creds.OpenAIAPIKey, creds.OpenAIBaseURL), nil
	case ProviderGemini:
		if creds.GoogleAPIKey == "" {
			return nil, missingKey(provider, "GOOGLE_API_KEY")
		}
		return NewGemini(ctx, creds.GoogleAPIKey)
	case ProviderAnthropic:
		if creds.AnthropicAPIKey == "" {
			return nil, missingKey(provider, "ANTHROPIC_API_KEY")
		}
		return NewAnthropic(creds.AnthropicAPIKey), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}

func missingKey(provider, env string) error {
	return fmt.Errorf("provider %s: %s is not set", provider, env)
}
