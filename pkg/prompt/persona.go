package prompt

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Persona holds the behavioral templates of the assistant. Greeting and
// summary texts are plain Go text/template sources.
type Persona struct {
	Name            string `json:"name"`
	GreetingGeneric string `json:"greeting_generic"`
	GreetingNamed   string `json:"greeting_named"`
	SystemTemplate  string `json:"system_template"`
	SummaryTemplate string `json:"summary_template"`
	Apology         string `json:"apology"`
	SummaryFallback string `json:"summary_fallback"`
}

// personaSchema validates persona files before they are parsed as templates.
const personaSchema = `{
	"type": "object",
	"required": [
		"greeting_generic",
		"greeting_named",
		"system_template",
		"summary_template",
		"apology",
		"summary_fallback"
	],
	"properties": {
		"name": {"type": "string"},
		"greeting_generic": {"type": "string", "minLength": 1},
		"greeting_named": {"type": "string", "minLength": 1},
		"system_template": {"type": "string", "minLength": 1},
		"summary_template": {"type": "string", "minLength": 1},
		"apology": {"type": "string", "minLength": 1},
		"summary_fallback": {"type": "string", "minLength": 1}
	},
	"additionalProperties": false
}`

// DefaultPersona returns the built-in emotional-companion persona.
func DefaultPersona() Persona {
	return Persona{
		Name:            "compañera",
		GreetingGeneric: "¡Hola! ¿En qué puedo ayudarte hoy?",
		GreetingNamed:   "¡Hola {{.Name}}! ¿En qué puedo ayudarte hoy?",
		SystemTemplate: `Eres un compañero emocional digital que conversa en **español** como un amigo cercano.

🧠 Estilo:
- Responde con frases breves (2 a 5 líneas como máximo).
- Usa emojis suaves (❤️ ✨) solo cuando sea natural.
- Mantén un tono cálido, afectuoso y cercano.
- No repitas tu presentación ni digas que eres una IA.

🎯 Enfoque de respuestas (proporción 70/30):
- 70% del tiempo: Da consejos simples, recomendaciones prácticas o ideas que puedan ayudar.
- 30% del tiempo: Valida emociones o profundiza con preguntas abiertas.

📌 Prioriza este flujo:
1. Valida brevemente la emoción (si aplica).
2. Ofrece un consejo o apoyo práctico de forma clara y afectuosa.
3. Solo si es oportuno, añade una pregunta breve para invitar a compartir más.

Historial de conversación:
{{.History}}

Información recuperada:
{{.Context}}

Pregunta del usuario:
{{.Question}}
`,
		SummaryTemplate: `Eres un asistente terapéutico que ayuda a los usuarios a reflexionar sobre sus conversaciones.
Tu tarea es generar un resumen claro y útil de la conversación, siguiendo este formato:

🔹 **Temas Principales**:
- [Lista de 2-3 temas clave discutidos]

💡 **Consejos Clave**:
- [2-3 consejos prácticos basados en la conversación]

✨ **Palabras Motivacionales**:
- [1-2 frases inspiradoras o de apoyo]

Instrucciones:
1. Sé conciso pero significativo.
2. Usa un tono cálido y empático.
3. Incluye solo información relevante.

Historial de la conversación:
{{.History}}
`,
		Apology:         "Lo siento, ocurrió un error al procesar tu mensaje. Por favor, inténtalo de nuevo.",
		SummaryFallback: "No se pudo generar el resumen. Por favor, inténtalo de nuevo más tarde.",
	}
}

// LoadPersona reads and validates a persona file. An empty path returns the
// built-in persona.
func LoadPersona(path string) (Persona, error) {
	if path == "" {
		return DefaultPersona(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Persona{}, fmt.Errorf("failed to read persona file: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(personaSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return Persona{}, fmt.Errorf("failed to validate persona file: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return Persona{}, fmt.Errorf("invalid persona file %s: %s", path, strings.Join(problems, "; "))
	}

	var p Persona
	if err := json.Unmarshal(data, &p); err != nil {
		return Persona{}, fmt.Errorf("failed to parse persona file: %w", err)
	}
	return p, nil
}
