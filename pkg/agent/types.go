package agent

import (
	"strings"

	"github.com/deskmate-ai/deskmate/pkg/session"
	"github.com/deskmate-ai/deskmate/pkg/toolsession"
)

// CompletionRequest contains one chat-completion call's inputs.
type CompletionRequest struct {
	System   string
	Messages []session.Message
	Tools    []toolsession.ToolDescriptor
}

// CompletionResponse is the model's reply. ToolRequests carry the raw
// argument text exactly as the model emitted it; parsing is the
// dispatcher's job.
type CompletionResponse struct {
	Content      string
	ToolRequests []session.ToolRequest
	Usage        *TokenUsage
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ModelConfig selects and parameterizes a model provider.
type ModelConfig struct {
	Provider    string `json:"provider"` // "openai" or "anthropic"
	APIKey      string `json:"api_key"`
	Model       string `json:"model"`
	Temperature float64
	MaxTokens   int
}

// IsRetryableError checks if a model call error should be retried
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errMsg := err.Error()

	// Network errors
	if strings.Contains(errMsg, "ECONNRESET") || strings.Contains(errMsg, "ETIMEDOUT") ||
		strings.Contains(errMsg, "connection reset") {
		return true
	}

	// Rate limits
	if strings.Contains(errMsg, "429") || strings.Contains(errMsg, "rate limit") {
		return true
	}

	// Server errors
	if strings.Contains(errMsg, "500") || strings.Contains(errMsg, "502") ||
		strings.Contains(errMsg, "503") || strings.Contains(errMsg, "504") {
		return true
	}

	return false
}
