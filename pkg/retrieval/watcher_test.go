package retrieval

import (
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsCorpusFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{path: "docs/ansiedad.md", want: true},
		{path: "docs/NOTAS.TXT", want: true},
		{path: "docs/guide.pdf", want: false},
		{path: "docs/.ansiedad.md.swp", want: false},
		{path: "docs/README", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, isCorpusFile(tt.path))
		})
	}
}

func TestWatcher_SchedulesOnlyForDirtyCorpusEvents(t *testing.T) {
	w, err := NewWatcher(zerolog.Nop(), func() {})
	require.NoError(t, err)
	defer w.Stop()

	w.handle(fsnotify.Event{Name: "docs/notes.go", Op: fsnotify.Write})
	assert.Nil(t, w.timer, "non-corpus file should not schedule")

	w.handle(fsnotify.Event{Name: "docs/ansiedad.md", Op: fsnotify.Chmod})
	assert.Nil(t, w.timer, "chmod should not schedule")

	w.handle(fsnotify.Event{Name: "docs/ansiedad.md", Op: fsnotify.Write})
	assert.NotNil(t, w.timer)
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dirty := make(chan struct{}, 8)
	w, err := NewWatcher(zerolog.Nop(), func() { dirty <- struct{}{} })
	require.NoError(t, err)
	defer w.Stop()

	for i := 0; i < 3; i++ {
		w.handle(fsnotify.Event{Name: "docs/ansiedad.md", Op: fsnotify.Write})
	}

	select {
	case <-dirty:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a dirty notification")
	}

	select {
	case <-dirty:
		t.Fatal("burst should coalesce into a single notification")
	case <-time.After(debounceWindow + 200*time.Millisecond):
	}
}

func TestWatcher_StopCancelsPendingNotification(t *testing.T) {
	dirty := make(chan struct{}, 1)
	w, err := NewWatcher(zerolog.Nop(), func() { dirty <- struct{}{} })
	require.NoError(t, err)

	w.handle(fsnotify.Event{Name: "docs/ansiedad.md", Op: fsnotify.Write})
	require.NoError(t, w.Stop())

	select {
	case <-dirty:
		t.Fatal("stopped watcher should not notify")
	case <-time.After(debounceWindow + 200*time.Millisecond):
	}
}
