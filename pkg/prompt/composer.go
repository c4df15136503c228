package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/jordan/alivia/pkg/session"
)

// Composer renders grounded chat prompts, summary prompts, and greetings
// from a persona's templates. Templates are parsed once at construction.
type Composer struct {
	persona  Persona
	system   *template.Template
	summary  *template.Template
	greeting *template.Template
}

// promptData are the fields available to the system template.
type promptData struct {
	History  string
	Context  string
	Question string
}

// NewComposer parses the persona's templates.
func NewComposer(p Persona) (*Composer, error) {
	system, err := template.New("system").Parse(p.SystemTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse system template: %w", err)
	}

	summary, err := template.New("summary").Parse(p.SummaryTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse summary template: %w", err)
	}

	greeting, err := template.New("greeting").Parse(p.GreetingNamed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse greeting template: %w", err)
	}

	return &Composer{
		persona:  p,
		system:   system,
		summary:  summary,
		greeting: greeting,
	}, nil
}

// Persona returns the persona the composer was built from.
func (c *Composer) Persona() Persona {
	return c.persona
}

// Compose renders the grounded prompt from conversation history, retrieved
// passages, and the user's question.
func (c *Composer) Compose(history []session.Message, passages []string, question string) (string, error) {
	var sb strings.Builder
	err := c.system.Execute(&sb, promptData{
		History:  FormatHistory(history),
		Context:  strings.Join(passages, "\n\n"),
		Question: question,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render system template: %w", err)
	}
	return sb.String(), nil
}

// ComposeSummary renders the summary prompt for the given history.
func (c *Composer) ComposeSummary(history []session.Message) (string, error) {
	var sb strings.Builder
	err := c.summary.Execute(&sb, promptData{History: FormatHistory(history)})
	if err != nil {
		return "", fmt.Errorf("failed to render summary template: %w", err)
	}
	return sb.String(), nil
}

// Greeting renders the first-turn greeting. With a name it uses the named
// template, otherwise the generic text.
func (c *Composer) Greeting(name string) string {
	if name == "" {
		return c.persona.GreetingGeneric
	}

	var sb strings.Builder
	if err := c.greeting.Execute(&sb, struct{ Name string }{Name: name}); err != nil {
		return c.persona.GreetingGeneric
	}
	return sb.String()
}

// Apology returns the fixed text emitted when a turn fails.
func (c *Composer) Apology() string {
	return c.persona.Apology
}

// SummaryFallback returns the fixed text returned when summary generation fails.
func (c *Composer) SummaryFallback() string {
	return c.persona.SummaryFallback
}

// FormatHistory serializes messages as role-labeled lines, oldest first.
func FormatHistory(history []session.Message) string {
	lines := make([]string, 0, len(history))
	for _, msg := range history {
		label := "Usuario"
		if msg.Role == session.RoleAssistant {
			label = "Asistente"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", label, msg.Content))
	}
	return strings.Join(lines, "\n")
}
