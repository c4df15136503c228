package prompt

import (
	"testing"

	"github.com/jordan/alivia/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestComposer(t *testing.T) *Composer {
	t.Helper()
	c, err := NewComposer(DefaultPersona())
	require.NoError(t, err)
	return c
}

func TestCompose(t *testing.T) {
	c := newTestComposer(t)

	history := []session.Message{
		{Role: session.RoleUser, Content: "me siento sola"},
		{Role: session.RoleAssistant, Content: "Siento que estés pasando por esto"},
	}
	passages := []string{"La soledad es una emoción común.", "Hablar con alguien ayuda."}

	out, err := c.Compose(history, passages, "¿qué puedo hacer?")
	require.NoError(t, err)

	assert.Contains(t, out, "Usuario: me siento sola")
	assert.Contains(t, out, "Asistente: Siento que estés pasando por esto")
	assert.Contains(t, out, "La soledad es una emoción común.")
	assert.Contains(t, out, "¿qué puedo hacer?")
}

func TestCompose_EmptyHistoryAndContext(t *testing.T) {
	c := newTestComposer(t)

	out, err := c.Compose(nil, nil, "hola")
	require.NoError(t, err)
	assert.Contains(t, out, "hola")
}

func TestComposeSummary(t *testing.T) {
	c := newTestComposer(t)

	history := []session.Message{
		{Role: session.RoleUser, Content: "tuve un mal día"},
		{Role: session.RoleAssistant, Content: "cuéntame más"},
	}

	out, err := c.ComposeSummary(history)
	require.NoError(t, err)

	assert.Contains(t, out, "Temas Principales")
	assert.Contains(t, out, "Consejos Clave")
	assert.Contains(t, out, "Palabras Motivacionales")
	assert.Contains(t, out, "Usuario: tuve un mal día")
}

func TestGreeting(t *testing.T) {
	c := newTestComposer(t)

	assert.Equal(t, "¡Hola! ¿En qué puedo ayudarte hoy?", c.Greeting(""))
	assert.Equal(t, "¡Hola Marta! ¿En qué puedo ayudarte hoy?", c.Greeting("Marta"))
}

func TestNewComposer_BadTemplate(t *testing.T) {
	p := DefaultPersona()
	p.SystemTemplate = "{{.Broken"

	_, err := NewComposer(p)
	assert.Error(t, err)
}

func TestFormatHistory(t *testing.T) {
	history := []session.Message{
		{Role: session.RoleUser, Content: "hola"},
		{Role: session.RoleAssistant, Content: "buenas"},
	}
	assert.Equal(t, "Usuario: hola\nAsistente: buenas", FormatHistory(history))
	assert.Empty(t, FormatHistory(nil))
}
