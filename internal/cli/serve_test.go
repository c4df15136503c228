package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withConfigFile(t *testing.T, content string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "alivia.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	prev := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = prev })
}

func TestRunServe_RejectsInvalidConfig(t *testing.T) {
	// No model api_key: startup must stop at validation
	withConfigFile(t, `{"model": {"provider": "openai", "model": "gpt-4o-mini"}}`)

	err := runServe(serveCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Contains(t, err.Error(), "api_key")
}

func TestRunIndex_RejectsInvalidConfig(t *testing.T) {
	withConfigFile(t, `{"model": {"provider": "gemini", "model": "x", "api_key": "k"}}`)

	err := runIndex(indexCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
