package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPersona_EmptyPathUsesDefault(t *testing.T) {
	p, err := LoadPersona("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPersona(), p)
}

func TestLoadPersona_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.json")
	content := `{
		"name": "coach",
		"greeting_generic": "¡Hola!",
		"greeting_named": "¡Hola {{.Name}}!",
		"system_template": "{{.History}} {{.Context}} {{.Question}}",
		"summary_template": "{{.History}}",
		"apology": "Lo siento.",
		"summary_fallback": "Sin resumen."
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	p, err := LoadPersona(path)
	require.NoError(t, err)
	assert.Equal(t, "coach", p.Name)
	assert.Equal(t, "¡Hola!", p.GreetingGeneric)

	c, err := NewComposer(p)
	require.NoError(t, err)
	assert.Equal(t, "¡Hola Ana!", c.Greeting("Ana"))
}

func TestLoadPersona_MissingRequiredField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"greeting_generic": "hola"}`), 0600))

	_, err := LoadPersona(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid persona file")
}

func TestLoadPersona_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.json")
	content := `{
		"greeting_generic": "a",
		"greeting_named": "b",
		"system_template": "c",
		"summary_template": "d",
		"apology": "e",
		"summary_fallback": "f",
		"mystery": true
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	_, err := LoadPersona(path)
	assert.Error(t, err)
}

func TestLoadPersona_MissingFile(t *testing.T) {
	_, err := LoadPersona(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
