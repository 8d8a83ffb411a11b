package agent

import (
	"context"
	"fmt"
)

// ModelClient is the chat-completion boundary the round controller consumes.
type ModelClient interface {
	// Complete makes one chat-completion call. Tool choice is left to the
	// model.
	Complete(ctx context.Context, request CompletionRequest) (*CompletionResponse, error)

	// Provider returns the provider name
	Provider() string
}

// NewModelClient creates a model client for the configured provider.
func NewModelClient(cfg ModelConfig) (ModelClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required for provider %s", cfg.Provider)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg), nil
	case "anthropic":
		return NewAnthropicClient(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
