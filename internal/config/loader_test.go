package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_MissingFileReturnsDefaults(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "nope.json"))

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.NotEmpty(t, cfg.DataDir)
	assert.NotEmpty(t, cfg.Logging.File)
	assert.NotEmpty(t, cfg.Retrieval.IndexPath)
}

func TestLoader_ReadsFile(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "alivia.json")

	content := `{
		"server": {"port": 9090},
		"model": {"provider": "anthropic", "model": "claude-sonnet-4", "api_key": "sk-ant-test"},
		"data_dir": "` + tempDir + `"
	}`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

	cfg, err := NewLoader(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "anthropic", cfg.Model.Provider)
	// Defaults survive partial config
	assert.Equal(t, 5000, cfg.Server.MaxInputLength)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	// Derived paths land under the data dir
	assert.Equal(t, filepath.Join(tempDir, "alivia.log"), cfg.Logging.File)
	assert.Equal(t, filepath.Join(tempDir, "index.db"), cfg.Retrieval.IndexPath)
}

func TestLoader_LoadedConfigValidates(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "alivia.json")

	// Loads fine without an api_key, but must not pass validation
	content := `{
		"model": {"provider": "openai", "model": "gpt-4o-mini"},
		"data_dir": "` + tempDir + `"
	}`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

	cfg, err := NewLoader(configPath).Load()
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.Validate(), "api_key")

	cfg.Model.APIKey = "sk-test"
	assert.NoError(t, cfg.Validate())
}

func TestLoader_InvalidJSON(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "alivia.json")
	require.NoError(t, os.WriteFile(configPath, []byte("{not json"), 0600))

	_, err := NewLoader(configPath).Load()
	assert.Error(t, err)
}
