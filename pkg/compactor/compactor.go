package compactor

import (
	"context"
	"fmt"

	"github.com/deskmate-ai/deskmate/internal/observability"
	"github.com/deskmate-ai/deskmate/internal/tracing"
	"github.com/deskmate-ai/deskmate/pkg/session"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// tailLength is how many recent messages survive a compaction.
const tailLength = 6

// Summarizer produces a conversation summary from a prompt. It is one chat
// completion call; the agent package adapts its model client to this.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Compactor replaces oversized history with a generated summary plus a short
// tail of recent messages.
type Compactor struct {
	summarizer Summarizer
	logger     zerolog.Logger
}

// New creates a compactor backed by the given summarizer.
func New(summarizer Summarizer, logger zerolog.Logger) *Compactor {
	return &Compactor{
		summarizer: summarizer,
		logger:     logger,
	}
}

// MaybeCompact compacts state when its serialized history reaches maxChars.
// Below the threshold the state is left untouched. A summarization failure is
// returned to the caller; the state is not modified in that case.
func (c *Compactor) MaybeCompact(ctx context.Context, state *session.State, maxChars, targetChars int) error {
	size := session.SerializedSize(state.History)
	if size < maxChars {
		return nil
	}

	ctx, span := tracing.StartSpan(
		ctx,
		"deskmate.compactor",
		"compactor.compact",
		attribute.Int("history_bytes", size),
		attribute.Int("history_messages", len(state.History)),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, c.logger)

	serialized, err := session.Serialize(state.History)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.RecordCompaction(false)
		return fmt.Errorf("failed to serialize history for compaction: %w", err)
	}

	prompt := buildPrompt(state.Summary, string(serialized), targetChars)

	summary, err := c.summarizer.Summarize(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.RecordCompaction(false)
		return fmt.Errorf("summarization failed: %w", err)
	}

	// Wholesale replace: the new summary supersedes the old one entirely.
	state.Summary = summary
	state.History = tail(state.History, tailLength)

	observability.RecordCompaction(true)
	logger.Info().
		Int("history_bytes", size).
		Int("kept_messages", len(state.History)).
		Msg("History compacted")

	return nil
}

func buildPrompt(priorSummary, serializedHistory string, targetChars int) string {
	prompt := "Summarize the following conversation for future turns. " +
		"Preserve the user's goals, all named facts and identifiers " +
		"(usernames, emails, ticket numbers), and any decisions made. " +
		fmt.Sprintf("Aim for at most %d characters.\n\n", targetChars)

	if priorSummary != "" {
		prompt += "Earlier summary:\n" + priorSummary + "\n\n"
	}

	prompt += "Conversation:\n" + serializedHistory

	return prompt
}

func tail(history []session.Message, n int) []session.Message {
	if len(history) <= n {
		return history
	}
	kept := make([]session.Message, n)
	copy(kept, history[len(history)-n:])
	return kept
}
