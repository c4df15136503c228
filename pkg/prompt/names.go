package prompt

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// nameKeywords are tokens that signal the user is introducing themselves,
// e.g. "soy Marta", "me llamo Juan", "mi nombre es Ana".
var nameKeywords = map[string]struct{}{
	"soy":    {},
	"llamo":  {},
	"es":     {},
	"nombre": {},
}

// DetectName scans whitespace-delimited tokens for a self-reference keyword
// and returns the token immediately following it, capitalized. A keyword as
// the final token yields no match.
func DetectName(text string) (string, bool) {
	tokens := strings.Fields(text)

	for i, token := range tokens {
		if _, ok := nameKeywords[strings.ToLower(token)]; !ok {
			continue
		}
		if i+1 >= len(tokens) {
			return "", false
		}

		name := strings.Trim(tokens[i+1], ",.;:!?¡¿")
		if name == "" {
			return "", false
		}
		return capitalize(name), true
	}

	return "", false
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
