// Package watcher ingests audio files dropped into watched directories.
package watcher

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/moodbox/internal/infra/media"
)

// settleWindow is how long a file must stay quiet after the last write
// before it is ingested, so half-copied files are not picked up.
const settleWindow = 500 * time.Millisecond

// IngestFunc receives paths of settled audio files.
type IngestFunc func(paths []string)

// Watcher watches directories for new audio files.
type Watcher struct {
	fs     *fsnotify.Watcher
	ingest IngestFunc

	mu      sync.Mutex
	pending map[string]*time.Timer
	stopped bool
}

// New creates a watcher over the given directories. Directories that do not
// exist are skipped with a warning.
func New(dirs []string, ingest IngestFunc) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	w := &Watcher{
		fs:      fs,
		ingest:  ingest,
		pending: map[string]*time.Timer{},
	}

	watched := 0
	for _, dir := range dirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			zlog.Warn().Str("dir", dir).Msg("watcher: skipping missing directory")
			continue
		}
		if err := fs.Add(dir); err != nil {
			fs.Close()
			return nil, errors.Wrapf(err, "failed to watch directory: dir=%s", dir)
		}
		watched++
	}

	zlog.Info().Int("dirs", watched).Msg("watcher: watching directories")
	return w, nil
}

// Run processes filesystem events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			zlog.Warn().Err(err).Msg("watcher: filesystem event error")
		}
	}
}

// Close stops the watcher and drops pending ingestions.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	w.stopped = true
	for _, t := range w.pending {
		t.Stop()
	}
	w.fs.Close()
}

// handleEvent schedules ingestion for created or written audio files. Each
// write within the settle window rearms the file's timer.
func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) {
		return
	}
	if !media.Supported(ev.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if t, ok := w.pending[ev.Name]; ok {
		t.Stop()
	}

	path := ev.Name
	w.pending[path] = time.AfterFunc(settleWindow, func() {
		w.mu.Lock()
		delete(w.pending, path)
		stopped := w.stopped
		w.mu.Unlock()

		if stopped {
			return
		}
		zlog.Debug().Str("path", path).Msg("watcher: ingesting settled file")
		w.ingest([]string{path})
	})
}
