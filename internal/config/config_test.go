package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Model.APIKey = "sk-test"
	cfg.Embeddings.APIKey = "sk-test"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5000, cfg.Server.MaxInputLength)
	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.InDelta(t, 0.3, cfg.Model.Temperature, 0.001)
	assert.Equal(t, 350, cfg.Model.MaxTokens)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, 500, cfg.Retrieval.ChunkSize)
	assert.Equal(t, 4, cfg.Session.WindowPairs)
	assert.InDelta(t, 1.0, cfg.Tracing.SampleRatio, 0.001)
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad provider", func(c *Config) { c.Model.Provider = "gemini" }},
		{"missing model", func(c *Config) { c.Model.Model = "" }},
		{"missing api key", func(c *Config) { c.Model.APIKey = "" }},
		{"bad temperature", func(c *Config) { c.Model.Temperature = 3 }},
		{"zero max tokens", func(c *Config) { c.Model.MaxTokens = 0 }},
		{"embeddings without key", func(c *Config) { c.Embeddings.APIKey = "" }},
		{"zero top_k", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"overlap too big", func(c *Config) { c.Retrieval.ChunkOverlap = c.Retrieval.ChunkSize }},
		{"zero window", func(c *Config) { c.Session.WindowPairs = 0 }},
		{"mail host without from", func(c *Config) { c.Mail.Host = "smtp.example.com"; c.Mail.From = "" }},
		{"sample ratio above 1", func(c *Config) { c.Tracing.SampleRatio = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_EmbeddingsDisabledSkipsKey(t *testing.T) {
	cfg := validConfig()
	cfg.Embeddings.Enabled = false
	cfg.Embeddings.APIKey = ""
	require.NoError(t, cfg.Validate())
}

func TestString_RendersJSON(t *testing.T) {
	out := validConfig().String()
	assert.Contains(t, out, `"provider": "openai"`)
}
