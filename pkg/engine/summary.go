package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/jordan/alivia/internal/observability"
	"github.com/jordan/alivia/internal/tracing"
	"github.com/jordan/alivia/pkg/llm"
)

// ErrNoHistory is returned when a summary is requested for a session that
// has no recorded conversation.
var ErrNoHistory = errors.New("session has no conversation history")

// GenerateSummary produces a structured summary of the session's retained
// history, non-streaming. Backend failure yields the persona's fixed
// fallback text instead of an error; a missing or empty history is the one
// case surfaced as ErrNoHistory.
func (e *Engine) GenerateSummary(ctx context.Context, sessionID string) (string, error) {
	ctx, span := tracing.StartSpan(
		tracing.WithSessionID(ctx, sessionID),
		"engine.generate_summary",
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, e.logger)

	history, ok := e.store.History(sessionID)
	if !ok || len(history) == 0 {
		return "", ErrNoHistory
	}

	promptText, err := e.composer.ComposeSummary(history)
	if err != nil {
		logger.Error().Err(err).Msg("Summary prompt composition failed")
		observability.RecordSummary(false)
		return e.composer.SummaryFallback(), nil
	}

	req := llm.Request{
		Model:       e.opts.Model,
		Prompt:      promptText,
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
	}

	text, err := e.completeWithRetry(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("Summary generation failed")
		observability.RecordSummary(false)
		return e.composer.SummaryFallback(), nil
	}

	observability.RecordSummary(true)
	logger.Info().Int("messages", len(history)).Msg("Summary generated")

	return strings.TrimSpace(text), nil
}

func (e *Engine) completeWithRetry(ctx context.Context, req llm.Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= e.opts.MaxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
		text, err := e.provider.Complete(callCtx, req)
		cancel()
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil || !llm.IsRetryable(err) {
			return "", err
		}
	}
	return "", lastErr
}
