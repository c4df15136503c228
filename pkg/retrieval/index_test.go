package retrieval

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T, docsDir string) *Index {
	t.Helper()

	idx, err := NewIndex(Config{
		DocsDir: docsDir,
		DBPath:  filepath.Join(t.TempDir(), "index.db"),
		TopK:    3,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	return idx
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIndex_SyncAndRetrieve(t *testing.T) {
	docsDir := t.TempDir()
	writeDoc(t, docsDir, "ansiedad.md", "La respiración profunda ayuda a reducir la ansiedad en momentos de estrés.")
	writeDoc(t, docsDir, "sueno.md", "Dormir ocho horas mejora el estado de ánimo y la concentración.")

	idx := newTestIndex(t, docsDir)
	require.NoError(t, idx.Sync(context.Background()))

	passages, err := idx.Retrieve(context.Background(), "¿Cómo puedo reducir la ansiedad?")
	require.NoError(t, err)
	require.NotEmpty(t, passages)

	assert.Contains(t, passages[0].Content, "ansiedad")
	assert.Equal(t, "ansiedad.md", passages[0].Source)
}

func TestIndex_RetrieveEmptyQuery(t *testing.T) {
	idx := newTestIndex(t, t.TempDir())

	passages, err := idx.Retrieve(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestIndex_RetrieveEmptyCorpus(t *testing.T) {
	idx := newTestIndex(t, t.TempDir())

	passages, err := idx.Retrieve(context.Background(), "ansiedad")
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestIndex_SyncSkipsUnchanged(t *testing.T) {
	docsDir := t.TempDir()
	writeDoc(t, docsDir, "guia.txt", "Camina al aire libre todos los días.")

	idx := newTestIndex(t, docsDir)
	require.NoError(t, idx.Sync(context.Background()))

	before, err := idx.chunkCount()
	require.NoError(t, err)

	// Second sync with no changes must not duplicate chunks
	require.NoError(t, idx.Sync(context.Background()))

	after, err := idx.chunkCount()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestIndex_SyncReindexesChangedDocument(t *testing.T) {
	docsDir := t.TempDir()
	path := writeDoc(t, docsDir, "tema.md", "El ejercicio regular reduce el estrés.")

	idx := newTestIndex(t, docsDir)
	require.NoError(t, idx.Sync(context.Background()))

	require.NoError(t, os.WriteFile(path, []byte("La meditación diaria calma la mente."), 0o644))
	require.NoError(t, idx.Sync(context.Background()))

	passages, err := idx.Retrieve(context.Background(), "meditación")
	require.NoError(t, err)
	require.NotEmpty(t, passages)
	assert.Contains(t, passages[0].Content, "meditación")

	passages, err = idx.Retrieve(context.Background(), "ejercicio")
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestIndex_SyncRemovesVanishedDocument(t *testing.T) {
	docsDir := t.TempDir()
	path := writeDoc(t, docsDir, "borrar.md", "Contenido que pronto desaparece del corpus.")

	idx := newTestIndex(t, docsDir)
	require.NoError(t, idx.Sync(context.Background()))

	require.NoError(t, os.Remove(path))
	require.NoError(t, idx.Sync(context.Background()))

	count, err := idx.chunkCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIndex_IgnoresNonCorpusFiles(t *testing.T) {
	docsDir := t.TempDir()
	writeDoc(t, docsDir, "notas.md", "El agradecimiento diario mejora el bienestar.")
	writeDoc(t, docsDir, "config.json", `{"clave": "valor"}`)

	idx := newTestIndex(t, docsDir)
	require.NoError(t, idx.Sync(context.Background()))

	passages, err := idx.Retrieve(context.Background(), "valor clave")
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestIndex_MarkDirtyTriggersSyncOnRetrieve(t *testing.T) {
	docsDir := t.TempDir()
	idx := newTestIndex(t, docsDir)
	require.NoError(t, idx.Sync(context.Background()))

	writeDoc(t, docsDir, "nuevo.md", "La gratitud fortalece las relaciones personales.")
	idx.MarkDirty()

	passages, err := idx.Retrieve(context.Background(), "gratitud")
	require.NoError(t, err)
	require.NotEmpty(t, passages)
	assert.Contains(t, passages[0].Content, "gratitud")
}

func TestFTSQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain words", input: "ansiedad estrés", want: `"ansiedad" OR "estrés"`},
		{name: "spanish punctuation", input: "¿Cómo duermo mejor?", want: `"Cómo" OR "duermo" OR "mejor"`},
		{name: "only punctuation", input: "¿? ¡!", want: ""},
		{name: "embedded quotes", input: `di "hola"`, want: `"di" OR "hola"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ftsQuery(tt.input))
		})
	}
}
