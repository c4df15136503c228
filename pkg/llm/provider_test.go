package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	p, err := NewProvider("openai", "sk-test")
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	p, err = NewProvider("anthropic", "sk-ant-test")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())

	_, err = NewProvider("gemini", "key")
	assert.Error(t, err)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit status", errors.New("request failed: 429 Too Many Requests"), true},
		{"rate limit text", errors.New("rate limit exceeded"), true},
		{"server error", errors.New("upstream returned 503"), true},
		{"gateway timeout", errors.New("504 gateway timeout"), true},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"client timeout", errors.New("context deadline exceeded (timeout)"), true},
		{"bad request", errors.New("400 invalid request body"), false},
		{"auth failure", errors.New("401 unauthorized"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
