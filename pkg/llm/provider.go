package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Request contains the parameters for a completion call
type Request struct {
	Model       string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Stream is a lazily-consumed sequence of response fragments. Fragments are
// delivered strictly in production order.
type Stream interface {
	// Next advances to the following fragment, returning false when the
	// stream ends or fails.
	Next() bool
	// Current returns the fragment at the current position.
	Current() string
	// Err returns the terminal error, if any, once Next returned false.
	Err() error
	// Close abandons the stream and releases the underlying connection.
	Close() error
}

// Provider is an interface for LLM API providers
type Provider interface {
	// Complete makes a blocking completion call and returns the full text.
	Complete(ctx context.Context, request Request) (string, error)

	// StreamComplete starts a streaming completion.
	StreamComplete(ctx context.Context, request Request) (Stream, error)

	// Name returns the provider name
	Name() string
}

// NewProvider creates a provider by name.
func NewProvider(provider, apiKey string) (Provider, error) {
	switch provider {
	case "anthropic":
		return NewAnthropicProvider(apiKey), nil
	case "openai":
		return NewOpenAIProvider(apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// IsRetryable checks if an error is worth retrying at the call boundary.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	// Network errors and per-call deadlines
	if strings.Contains(msg, "connection reset") || strings.Contains(msg, "timeout") {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Rate limits
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") {
		return true
	}

	// Server errors
	for _, code := range []string{"500", "502", "503", "504"} {
		if strings.Contains(msg, code) {
			return true
		}
	}

	return false
}
