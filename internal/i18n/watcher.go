package i18n

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mixchat/pkg/logger"
)

const debounceDelay = 100 * time.Millisecond

// Watcher reloads an override file into a Store whenever it changes.
type Watcher struct {
	watcher *fsnotify.Watcher
	store   *Store
	base    *Dictionary
	file    string
	stopCh  chan struct{}
	timer   *time.Timer
	mu      sync.Mutex
	once    sync.Once

	// onReload is called after each reload attempt; tests use it.
	onReload func(error)
}

// NewWatcher watches file and merges it over base into store.
func NewWatcher(store *Store, base *Dictionary, file string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		w.Close()
		return nil, err
	}

	return &Watcher{
		watcher: w,
		store:   store,
		base:    base,
		file:    abs,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start begins watching. The parent directory is watched so editors that
// replace the file by rename are still seen.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.file)); err != nil {
		return err
	}
	go w.run()
	return nil
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.file {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Error().Err(err).Msg("Locale watcher error")
		}
	}
}

// schedule debounces bursts of events into one reload.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceDelay, w.reload)
}

// reload merges the override file over the base dictionary. A file that
// fails to parse leaves the active dictionary untouched.
func (w *Watcher) reload() {
	override, err := LoadFile(w.base.Lang(), w.file)
	if err != nil {
		logger.Warn().Err(err).Str("file", w.file).Msg("Locale reload failed")
	} else {
		merged := w.base.Merge(override)
		w.store.Swap(merged)
		logger.Info().Str("file", w.file).Int("entries", merged.Len()).Msg("Locale reloaded")
	}
	if w.onReload != nil {
		w.onReload(err)
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stopCh)

		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()

		w.watcher.Close()
	})
}
