// Package library provides the track library: a set of tracks keyed by ID
// with secondary uniqueness on file path.
package library

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/osa030/moodbox/internal/domain/track"
)

// ErrNotFound is returned when a track ID is not in the library.
var ErrNotFound = errors.New("track not found")

// Library holds all ingested tracks. The path-dedup check is atomic with the
// insert, so concurrent ingestion of the same file yields a single Track.
type Library struct {
	mu     sync.RWMutex
	byID   map[string]track.Track
	byPath map[string]string // path -> track ID
	order  []string          // insertion order of track IDs
}

// New creates an empty library.
func New() *Library {
	return &Library{
		byID:   make(map[string]track.Track),
		byPath: make(map[string]string),
	}
}

// Add inserts a track, de-duplicating by path. If a track with the same path
// already exists it is returned unchanged and added is false. A missing ID or
// AddedAt is filled in.
func (l *Library) Add(t track.Track) (track.Track, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if id, ok := l.byPath[t.Path]; ok {
		return l.byID[id], false
	}

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.AddedAt.IsZero() {
		t.AddedAt = time.Now()
	}

	l.byID[t.ID] = t
	l.byPath[t.Path] = t.ID
	l.order = append(l.order, t.ID)
	return t, true
}

// Get returns the track with the given ID.
func (l *Library) Get(id string) (track.Track, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.byID[id]
	return t, ok
}

// GetByPath returns the track with the given path.
func (l *Library) GetByPath(path string) (track.Track, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.byPath[path]
	if !ok {
		return track.Track{}, false
	}
	return l.byID[id], true
}

// Remove deletes a track from the library and returns it. The caller is
// responsible for cascading the removal into mood track lists.
func (l *Library) Remove(id string) (track.Track, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.byID[id]
	if !ok {
		return track.Track{}, errors.Wrapf(ErrNotFound, "id=%s", id)
	}

	delete(l.byID, id)
	delete(l.byPath, t.Path)
	for i, oid := range l.order {
		if oid == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return t, nil
}

// Update replaces the stored track with the same ID.
func (l *Library) Update(t track.Track) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	old, ok := l.byID[t.ID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "id=%s", t.ID)
	}
	if old.Path != t.Path {
		delete(l.byPath, old.Path)
		l.byPath[t.Path] = t.ID
	}
	l.byID[t.ID] = t
	return nil
}

// All returns all tracks in insertion order.
func (l *Library) All() []track.Track {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]track.Track, 0, len(l.order))
	for _, id := range l.order {
		result = append(result, l.byID[id])
	}
	return result
}

// Len returns the number of tracks.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byID)
}

// Search returns tracks matching the query against title, artist or album.
func (l *Library) Search(query string) []track.Track {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []track.Track
	for _, id := range l.order {
		t := l.byID[id]
		if t.Matches(query) {
			result = append(result, t)
		}
	}
	return result
}

// SetAll replaces the library contents, used when loading persisted data.
// Tracks with duplicate paths or missing IDs are dropped.
func (l *Library) SetAll(tracks []track.Track) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.byID = make(map[string]track.Track, len(tracks))
	l.byPath = make(map[string]string, len(tracks))
	l.order = l.order[:0]
	for _, t := range tracks {
		if t.ID == "" || t.Path == "" {
			continue
		}
		if _, ok := l.byPath[t.Path]; ok {
			continue
		}
		l.byID[t.ID] = t
		l.byPath[t.Path] = t.ID
		l.order = append(l.order, t.ID)
	}
}
