package llm

import (
	"context"
	"strings"
	"time"
)

// Provider identifies one of the supported LLM backends.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// DefaultProvider is used when nothing (or something unrecognized) is stored.
const DefaultProvider = ProviderOpenAI

// DefaultTimeout bounds a single Generate call.
const DefaultTimeout = 30 * time.Second

// Providers lists the supported providers in display order.
func Providers() []Provider {
	return []Provider{ProviderOpenAI, ProviderGemini}
}

// ParseProvider reports whether s names a supported provider.
func ParseProvider(s string) (Provider, bool) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderOpenAI, ProviderGemini:
		return p, true
	default:
		return "", false
	}
}

// Label is the human-readable provider name.
func (p Provider) Label() string {
	switch p {
	case ProviderOpenAI:
		return "OpenAI"
	case ProviderGemini:
		return "Gemini"
	default:
		return string(p)
	}
}

// Client sends one prompt to one provider and returns the generated text.
type Client interface {
	Name() string
	Generate(ctx context.Context, apiKey, prompt string) (string, error)
}

// Dispatcher routes a prompt to the client registered for provider.
type Dispatcher interface {
	Generate(ctx context.Context, provider Provider, apiKey, prompt string) (string, error)
}
