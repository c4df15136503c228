package engine

import (
	"context"
	"strings"
	"time"

	"github.com/jordan/alivia/internal/observability"
	"github.com/jordan/alivia/internal/tracing"
	"github.com/jordan/alivia/pkg/llm"
	"github.com/jordan/alivia/pkg/prompt"
	"github.com/jordan/alivia/pkg/retrieval"
	"github.com/jordan/alivia/pkg/session"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const (
	turnKindGreeting = "greeting"
	turnKindAnswer   = "answer"
)

// Options configures model invocation for conversation turns.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	CallTimeout time.Duration
	MaxRetries  int
}

func (o *Options) applyDefaults() {
	if o.CallTimeout <= 0 {
		o.CallTimeout = 60 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 350
	}
}

// Engine runs conversation turns against the retrieval and model backends.
type Engine struct {
	store     *session.Store
	composer  *prompt.Composer
	retriever retrieval.Retriever
	provider  llm.Provider
	logger    zerolog.Logger
	opts      Options
}

// New creates a conversation engine from its collaborators.
func New(
	store *session.Store,
	composer *prompt.Composer,
	retriever retrieval.Retriever,
	provider llm.Provider,
	logger zerolog.Logger,
	opts Options,
) *Engine {
	observability.EnsureRegistered()
	opts.applyDefaults()

	return &Engine{
		store:     store,
		composer:  composer,
		retriever: retriever,
		provider:  provider,
		logger:    logger,
		opts:      opts,
	}
}

// ProcessTurn handles one user message. It resolves the session id (creating
// one when absent) and returns it together with a channel of response
// fragments in production order. The channel is closed when the turn ends.
// Turns for the same session id are serialized; different sessions run
// concurrently.
func (e *Engine) ProcessTurn(ctx context.Context, sessionID, userText string) (string, <-chan string) {
	id := e.store.GetOrCreateID(sessionID)
	out := make(chan string, 1)

	go func() {
		defer close(out)

		e.store.LockTurn(id)
		defer e.store.UnlockTurn(id)

		ctx, span := tracing.StartSpan(
			tracing.WithSessionID(ctx, id),
			"engine.process_turn",
			attribute.String("session_id", id),
		)
		defer span.End()
		logger := tracing.LoggerFromContext(ctx, e.logger)

		start := time.Now()
		e.store.GetOrCreate(id)
		observability.SetActiveSessions(e.store.Len())

		if !e.store.HasGreeted(id) {
			e.greet(ctx, logger, id, userText, out)
			observability.RecordTurn(turnKindGreeting, time.Since(start), true)
			return
		}

		ok := e.answer(ctx, logger, id, userText, out)
		observability.RecordTurn(turnKindAnswer, time.Since(start), ok)
	}()

	return id, out
}

// ClearSession removes all state for the session id.
func (e *Engine) ClearSession(sessionID string) {
	e.store.Clear(sessionID)
	observability.SetActiveSessions(e.store.Len())
}

// greet handles the first message of a session. The input is only mined for
// a name, never answered; the greeting is the entire single-fragment
// response and history stays empty.
func (e *Engine) greet(ctx context.Context, logger zerolog.Logger, id, userText string, out chan<- string) {
	if name, ok := prompt.DetectName(userText); ok {
		e.store.SetName(id, name)
		logger.Debug().Str("name", name).Msg("Name captured from first message")
	}

	name, _ := e.store.Name(id)
	greeting := e.composer.Greeting(name)
	e.store.MarkGreeted(id)

	e.emit(ctx, out, greeting)
	logger.Info().Msg("Session greeted")
}

// answer runs a full retrieval-grounded turn. It reports whether the turn
// completed well enough to append to history.
func (e *Engine) answer(ctx context.Context, logger zerolog.Logger, id, userText string, out chan<- string) bool {
	history, _ := e.store.History(id)

	passages, err := e.retriever.Retrieve(ctx, userText)
	if err != nil {
		logger.Error().Err(err).Msg("Retrieval failed")
		e.apologize(ctx, out)
		return false
	}

	texts := make([]string, 0, len(passages))
	for _, p := range passages {
		texts = append(texts, p.Content)
	}

	promptText, err := e.composer.Compose(history, texts, userText)
	if err != nil {
		logger.Error().Err(err).Msg("Prompt composition failed")
		e.apologize(ctx, out)
		return false
	}

	answer, sent, err := e.streamModel(ctx, promptText, out)
	if err != nil {
		if ctx.Err() != nil {
			// Caller is gone, drop the partial turn silently
			logger.Warn().Msg("Turn cancelled mid-stream")
			return false
		}
		logger.Error().Err(err).Int("fragments_sent", sent).Msg("Generation failed")
		if sent == 0 {
			e.apologize(ctx, out)
		}
		return false
	}

	e.store.AppendTurn(id, userText, answer)
	e.store.Touch(id)

	logger.Info().
		Int("fragments", sent).
		Int("passages", len(passages)).
		Msg("Turn completed")

	return true
}

// streamModel invokes the model backend in streaming mode, forwarding
// fragments as they arrive. Retries only before any fragment was emitted.
func (e *Engine) streamModel(ctx context.Context, promptText string, out chan<- string) (string, int, error) {
	req := llm.Request{
		Model:       e.opts.Model,
		Prompt:      promptText,
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
	}

	var lastErr error
	for attempt := 0; attempt <= e.opts.MaxRetries; attempt++ {
		answer, sent, err := e.consumeStream(ctx, req, out)
		if err == nil {
			return answer, sent, nil
		}
		lastErr = err
		if sent > 0 || ctx.Err() != nil || !llm.IsRetryable(err) {
			return answer, sent, err
		}
	}

	return "", 0, lastErr
}

func (e *Engine) consumeStream(ctx context.Context, req llm.Request, out chan<- string) (string, int, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
	defer cancel()

	stream, err := e.provider.StreamComplete(callCtx, req)
	if err != nil {
		return "", 0, err
	}
	defer stream.Close()

	var answer strings.Builder
	sent := 0
	for stream.Next() {
		if err := callCtx.Err(); err != nil {
			return answer.String(), sent, err
		}
		fragment := stream.Current()
		select {
		case out <- fragment:
		case <-callCtx.Done():
			return answer.String(), sent, callCtx.Err()
		}
		answer.WriteString(fragment)
		sent++
		observability.RecordStreamFragment()
	}
	if err := stream.Err(); err != nil {
		return answer.String(), sent, err
	}
	if err := callCtx.Err(); err != nil {
		return answer.String(), sent, err
	}

	return answer.String(), sent, nil
}

func (e *Engine) apologize(ctx context.Context, out chan<- string) {
	e.emit(ctx, out, e.composer.Apology())
}

func (e *Engine) emit(ctx context.Context, out chan<- string, text string) {
	select {
	case out <- text:
		observability.RecordStreamFragment()
	case <-ctx.Done():
	}
}
