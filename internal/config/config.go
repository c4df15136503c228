package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main alivia configuration
type Config struct {
	// HTTP server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Chat model provider
	Model ModelConfig `json:"model" mapstructure:"model"`

	// Embeddings used by the document index
	Embeddings EmbeddingsConfig `json:"embeddings" mapstructure:"embeddings"`

	// Document retrieval
	Retrieval RetrievalConfig `json:"retrieval" mapstructure:"retrieval"`

	// Session memory
	Session SessionConfig `json:"session" mapstructure:"session"`

	// Persona file path (empty uses the built-in persona)
	PersonaPath string `json:"persona_path" mapstructure:"persona_path"`

	// Summary mail delivery
	Mail MailConfig `json:"mail" mapstructure:"mail"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Tracing
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string `json:"host" mapstructure:"host"`
	Port           int    `json:"port" mapstructure:"port"`
	MaxInputLength int    `json:"max_input_length" mapstructure:"max_input_length"`
}

// ModelConfig holds chat model provider configuration
type ModelConfig struct {
	Provider    string  `json:"provider" mapstructure:"provider"` // openai, anthropic
	APIKey      string  `json:"api_key" mapstructure:"api_key"`
	Model       string  `json:"model" mapstructure:"model"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
	CallTimeout int     `json:"call_timeout" mapstructure:"call_timeout"` // seconds
	MaxRetries  int     `json:"max_retries" mapstructure:"max_retries"`
}

// EmbeddingsConfig holds embedding provider configuration
type EmbeddingsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	APIKey  string `json:"api_key" mapstructure:"api_key"`
	Model   string `json:"model" mapstructure:"model"`
}

// RetrievalConfig holds document index configuration
type RetrievalConfig struct {
	DocsDir      string `json:"docs_dir" mapstructure:"docs_dir"`
	IndexPath    string `json:"index_path" mapstructure:"index_path"`
	TopK         int    `json:"top_k" mapstructure:"top_k"`
	ChunkSize    int    `json:"chunk_size" mapstructure:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap" mapstructure:"chunk_overlap"`
	Watch        bool   `json:"watch" mapstructure:"watch"`
}

// SessionConfig holds session memory configuration
type SessionConfig struct {
	WindowPairs   int    `json:"window_pairs" mapstructure:"window_pairs"`
	IdleTTL       int    `json:"idle_ttl" mapstructure:"idle_ttl"` // minutes
	SweepSchedule string `json:"sweep_schedule" mapstructure:"sweep_schedule"`
}

// MailConfig holds SMTP configuration for summary delivery
type MailConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     int    `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	From     string `json:"from" mapstructure:"from"`
	Subject  string `json:"subject" mapstructure:"subject"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"` // 0 disables tracing, 1 samples everything
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			MaxInputLength: 5000,
		},
		Model: ModelConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0.3,
			MaxTokens:   350,
			CallTimeout: 60,
			MaxRetries:  2,
		},
		Embeddings: EmbeddingsConfig{
			Enabled: true,
			Model:   "text-embedding-3-small",
		},
		Retrieval: RetrievalConfig{
			DocsDir:      "./data/docs",
			TopK:         3,
			ChunkSize:    500,
			ChunkOverlap: 50,
			Watch:        true,
		},
		Session: SessionConfig{
			WindowPairs:   4,
			IdleTTL:       24 * 60,
			SweepSchedule: "@every 15m",
		},
		Mail: MailConfig{
			Port:    587,
			Subject: "Resumen de tu Conversación",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  true,
		},
		Tracing: TracingConfig{
			SampleRatio: 1,
		},
		DataDir: "",
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}
	if c.Server.MaxInputLength <= 0 {
		return fmt.Errorf("max_input_length must be positive")
	}

	if c.Model.Provider != "openai" && c.Model.Provider != "anthropic" {
		return fmt.Errorf("invalid model provider %s (must be: openai, anthropic)", c.Model.Provider)
	}
	if c.Model.Model == "" {
		return fmt.Errorf("model name is required")
	}
	if c.Model.APIKey == "" {
		return fmt.Errorf("model api_key is required")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("model temperature must be between 0 and 2")
	}
	if c.Model.MaxTokens <= 0 {
		return fmt.Errorf("model max_tokens must be positive")
	}

	if c.Embeddings.Enabled && c.Embeddings.APIKey == "" {
		return fmt.Errorf("embeddings api_key is required when embeddings are enabled")
	}

	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval top_k must be positive")
	}
	if c.Retrieval.ChunkSize <= 0 {
		return fmt.Errorf("retrieval chunk_size must be positive")
	}
	if c.Retrieval.ChunkOverlap < 0 || c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		return fmt.Errorf("retrieval chunk_overlap must be smaller than chunk_size")
	}

	if c.Session.WindowPairs <= 0 {
		return fmt.Errorf("session window_pairs must be positive")
	}
	if c.Session.IdleTTL <= 0 {
		return fmt.Errorf("session idle_ttl must be positive")
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing sample_ratio must be between 0 and 1")
	}

	if c.Mail.Host != "" {
		if c.Mail.From == "" {
			return fmt.Errorf("mail from address is required when mail host is set")
		}
		if c.Mail.Port <= 0 || c.Mail.Port > 65535 {
			return fmt.Errorf("mail port must be between 1 and 65535")
		}
	}

	return nil
}
