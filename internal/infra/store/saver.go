package store

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"
)

// Saver debounces document writes. Rapid mutations within the debounce
// window collapse into a single save; a periodic tick retries anything that
// is still dirty, so a failed save is retried rather than aborting the
// session.
type Saver struct {
	store    *Store
	collect  func() *Document
	window   time.Duration
	interval time.Duration

	mu       sync.Mutex
	gen      uint64 // bumped on every mutation
	savedGen uint64 // generation of the last successful save
	timer    *time.Timer
	stopped  bool
}

// NewSaver creates a saver. collect must return a snapshot of the current
// document; it is called outside the saver's lock.
func NewSaver(store *Store, collect func() *Document, window, interval time.Duration) *Saver {
	return &Saver{
		store:    store,
		collect:  collect,
		window:   window,
		interval: interval,
	}
}

// MarkDirty records a pending mutation and (re)arms the debounce timer.
func (s *Saver) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.gen++

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.window, s.flushIfDirty)
}

// Run drives the periodic retry tick until the context is cancelled.
func (s *Saver) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flushIfDirty()
		}
	}
}

// Flush writes the document immediately if dirty. Used at shutdown.
func (s *Saver) Flush() error {
	s.mu.Lock()
	dirty := s.gen != s.savedGen
	s.mu.Unlock()

	if !dirty {
		return nil
	}
	return s.save()
}

// Stop disarms the saver. Pending mutations are not written; call Flush first.
func (s *Saver) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
}

func (s *Saver) flushIfDirty() {
	s.mu.Lock()
	skip := s.stopped || s.gen == s.savedGen
	s.mu.Unlock()

	if skip {
		return
	}
	if err := s.save(); err != nil {
		// Generation stays ahead of savedGen; the next tick retries.
		zlog.Error().Err(err).Msg("store: save failed, will retry")
	}
}

func (s *Saver) save() error {
	// Mutations racing with collect bump gen past the snapshot we write,
	// so they are picked up by the next flush instead of being lost.
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	doc := s.collect()

	if err := s.store.Save(doc); err != nil {
		return err
	}

	s.mu.Lock()
	if gen > s.savedGen {
		s.savedGen = gen
	}
	s.mu.Unlock()

	zlog.Debug().Str("path", s.store.Path()).Msg("store: document saved")
	return nil
}
