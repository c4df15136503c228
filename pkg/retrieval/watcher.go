package retrieval

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// dirtyOps are the filesystem events that invalidate the index.
const dirtyOps = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

// debounceWindow batches a burst of corpus changes into one re-sync.
const debounceWindow = 500 * time.Millisecond

// Watcher watches the corpus directory for changes and marks the index dirty
// so the next retrieval re-syncs.
type Watcher struct {
	fs      *fsnotify.Watcher
	logger  zerolog.Logger
	onDirty func()

	mu    sync.Mutex
	timer *time.Timer

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewWatcher creates a new corpus watcher
func NewWatcher(logger zerolog.Logger, onDirty func()) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fs:      fs,
		logger:  logger,
		onDirty: onDirty,
		stopCh:  make(chan struct{}),
	}

	go w.run()

	return w, nil
}

// Watch starts watching a directory
func (w *Watcher) Watch(path string) error {
	return w.fs.Add(path)
}

// Stop stops the watcher and cancels any pending notification.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.stopCh)

		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	})
	return w.fs.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Corpus watcher error")

		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&dirtyOps == 0 || !isCorpusFile(event.Name) {
		return
	}

	w.logger.Debug().
		Str("file", filepath.Base(event.Name)).
		Str("op", event.Op.String()).
		Msg("Corpus change detected")

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer == nil {
		w.timer = time.AfterFunc(debounceWindow, w.notify)
		return
	}
	w.timer.Reset(debounceWindow)
}

func (w *Watcher) notify() {
	select {
	case <-w.stopCh:
		return
	default:
	}

	w.logger.Debug().Msg("Marking index as dirty after corpus changes")
	w.onDirty()
}

// isCorpusFile reports whether a path is an indexable corpus document.
func isCorpusFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".txt":
		return true
	default:
		return false
	}
}
