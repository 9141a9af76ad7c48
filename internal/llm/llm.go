// Package llm abstracts the chat-completion providers used for SMS copy
// generation and compliance checks.
package llm

import (
	"context"
	"fmt"
)

// Request is a single system+user chat-completion call.
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Completer abstracts the model provider so it can be swapped or mocked.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Settings selects and configures a provider.
type Settings struct {
	Provider        string
	Model           string
	OpenAIAPIKey    string
	AnthropicAPIKey string
}

const (
	defaultOpenAIModel    = "gpt-4"
	defaultAnthropicModel = "claude-sonnet-4-5-20250929"

	moderationOpenAIModel    = "gpt-3.5-turbo"
	moderationAnthropicModel = "claude-3-5-haiku-latest"
)

// New builds a Completer for the configured provider. An empty model selects
// the provider's generation default.
func New(s Settings) (Completer, error) {
	switch s.Provider {
	case "", "openai":
		model := s.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		return newOpenAI(s.OpenAIAPIKey, model)
	case "anthropic":
		model := s.Model
		if model == "" {
			model = defaultAnthropicModel
		}
		return newAnthropic(s.AnthropicAPIKey, model)
	default:
		return nil, fmt.Errorf("llm provider %s not supported", s.Provider)
	}
}

// ModerationModel returns the cheaper model used for safety pre-checks and
// compliance classification on the given provider.
func ModerationModel(provider string) string {
	if provider == "anthropic" {
		return moderationAnthropicModel
	}
	return moderationOpenAIModel
}
