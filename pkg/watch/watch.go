// Package watch reports files appearing in a tool's output directory while
// the tool runs.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher records files created in a single directory
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	logger    zerolog.Logger

	mu      sync.Mutex
	created []string
	seen    map[string]bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a watcher for dir. Call Start to begin receiving events.
func New(dir string, logger zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsWatcher: fsw,
		dir:       dir,
		logger:    logger.With().Str("dir", dir).Logger(),
		seen:      make(map[string]bool),
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching the directory
func (w *Watcher) Start() error {
	if err := w.fsWatcher.Add(w.dir); err != nil {
		_ = w.fsWatcher.Close()
		return fmt.Errorf("watching directory %s: %w", w.dir, err)
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop ends the watch and returns the created file names in arrival order
func (w *Watcher) Stop() []string {
	close(w.done)
	err := w.fsWatcher.Close()
	w.wg.Wait()
	if err != nil {
		w.logger.Debug().Err(err).Msg("Closing watcher")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.created...)
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			w.record(filepath.Base(event.Name))

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("Output watcher error")

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) record(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seen[name] {
		return
	}
	w.seen[name] = true
	w.created = append(w.created, name)
	w.logger.Debug().Str("file", name).Msg("Output file created")
}

// During runs fn while watching dir and returns the files created meanwhile.
// The watch is torn down on every exit path, including cancellation. If the
// watch cannot be set up, fn still runs and no files are reported.
func During(ctx context.Context, dir string, logger zerolog.Logger, fn func(context.Context) error) ([]string, error) {
	w, err := New(dir, logger)
	if err == nil {
		err = w.Start()
	}
	if err != nil {
		logger.Warn().Err(err).Str("dir", dir).Msg("Running without output watch")
		return nil, fn(ctx)
	}

	runErr := fn(ctx)
	created := w.Stop()
	logger.Debug().Int("files", len(created)).Str("dir", dir).Msg("Output watch finished")
	return created, runErr
}
