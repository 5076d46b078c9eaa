// Package store provides durable persistence for the library and mood
// catalog as a single versioned JSON document.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/moodbox/internal/domain/mood"
	"github.com/osa030/moodbox/internal/domain/track"
)

// Version is the current document schema version.
const Version = "1.0"

// Document is the persisted on-disk structure.
type Document struct {
	Moods    []mood.Mood    `json:"moods"`
	Library  []track.Track  `json:"library"`
	Settings map[string]any `json:"settings"`
	Metadata DocumentMeta   `json:"metadata"`
}

// DocumentMeta holds document bookkeeping.
type DocumentMeta struct {
	LastUpdated time.Time `json:"lastUpdated"`
	Version     string    `json:"version"`
}

// rawDocument defers decoding of the two sequences so a malformed section
// degrades to an empty slice instead of failing startup.
type rawDocument struct {
	Moods    json.RawMessage `json:"moods"`
	Library  json.RawMessage `json:"library"`
	Settings map[string]any  `json:"settings"`
	Metadata DocumentMeta    `json:"metadata"`
}

// Store reads and writes the document at a fixed path.
type Store struct {
	mu   sync.Mutex
	path string
}

// New creates a store for the given file path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the document path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted document. A missing file yields an empty document.
// Malformed moods or library sections fall back to empty slices.
func (s *Store) Load() (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := &Document{
		Moods:    []mood.Mood{},
		Library:  []track.Track{},
		Settings: map[string]any{},
		Metadata: DocumentMeta{Version: Version},
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read document: path=%s", s.path)
	}

	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		zlog.Warn().Err(err).Str("path", s.path).Msg("store: malformed document, starting empty")
		return doc, nil
	}

	if len(raw.Moods) > 0 {
		if err := json.Unmarshal(raw.Moods, &doc.Moods); err != nil {
			zlog.Warn().Err(err).Str("path", s.path).Msg("store: malformed moods section, using empty list")
			doc.Moods = []mood.Mood{}
		}
	}
	if len(raw.Library) > 0 {
		if err := json.Unmarshal(raw.Library, &doc.Library); err != nil {
			zlog.Warn().Err(err).Str("path", s.path).Msg("store: malformed library section, using empty list")
			doc.Library = []track.Track{}
		}
	}
	if raw.Settings != nil {
		doc.Settings = raw.Settings
	}
	doc.Metadata = raw.Metadata

	migrate(doc)
	return doc, nil
}

// Save atomically writes the document: a temp file in the same directory is
// renamed over the target so a crash never leaves a half-written document.
func (s *Store) Save(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc.Metadata.LastUpdated = time.Now()
	doc.Metadata.Version = Version

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode document")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create data directory: dir=%s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".moodbox-*.json")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrapf(err, "failed to write document: path=%s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "failed to close temp file: path=%s", tmpName)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "failed to replace document: path=%s", s.path)
	}

	return nil
}

// migrate upgrades older document versions in place.
func migrate(doc *Document) {
	from := doc.Metadata.Version
	if from == Version {
		return
	}
	// Schema has been stable since 1.0; unknown or empty versions are
	// adopted as-is and stamped on the next save.
	zlog.Info().Str("from", from).Str("to", Version).Msg("store: migrating document version")
	doc.Metadata.Version = Version
}
