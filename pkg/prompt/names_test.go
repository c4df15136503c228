package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     string
		found    bool
	}{
		{"soy keyword", "Hola, soy Marta", "Marta", true},
		{"llamo keyword", "me llamo juan", "Juan", true},
		{"nombre keyword", "mi nombre Ana", "Ana", true},
		{"es keyword", "mi nombre es ana", "Ana", true},
		{"case insensitive keyword", "SOY pedro", "Pedro", true},
		{"lowercases the tail", "soy MARTA", "Marta", true},
		{"no keyword", "me siento triste hoy", "", false},
		{"keyword as last token", "dime quién soy", "", false},
		{"empty input", "", "", false},
		{"only whitespace", "   ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := DetectName(tt.input)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectName_TrimsPunctuationFromName(t *testing.T) {
	got, found := DetectName("soy Marta, y estoy cansada")
	assert.True(t, found)
	assert.Equal(t, "Marta", got)
}
