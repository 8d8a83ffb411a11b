package agent

import (
	"context"

	"github.com/deskmate-ai/deskmate/pkg/session"
)

// modelSummarizer adapts a ModelClient to the compactor's Summarizer
// interface. A summarization is one tool-free completion call.
type modelSummarizer struct {
	model ModelClient
}

func (s modelSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	response, err := s.model.Complete(ctx, CompletionRequest{
		Messages: []session.Message{session.UserMessage{Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	return response.Content, nil
}
