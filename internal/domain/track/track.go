// Package track provides the Track domain entity.
package track

import (
	"path/filepath"
	"strings"
	"time"
)

// Fallback values used when a file carries no usable tags.
const (
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
)

// Cover holds an embedded cover image.
type Cover struct {
	Data []byte `json:"data"`
	MIME string `json:"mime"`
}

// Override holds user-edited metadata that takes precedence over file tags.
// Empty fields fall through to the tag values.
type Override struct {
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
	Cover  *Cover `json:"cover,omitempty"`
}

// Track represents a file in the music library.
// ID is assigned once at ingestion and never changes; Path is the
// de-duplication key (adding the same path twice yields one Track).
type Track struct {
	ID       string    `json:"id"`
	Path     string    `json:"path"`
	Title    string    `json:"title"`
	Artist   string    `json:"artist"`
	Album    string    `json:"album"`
	Duration float64   `json:"duration"` // seconds
	Year     *int      `json:"year"`
	Genres   []string  `json:"genre"`
	Cover    *Cover    `json:"cover,omitempty"`
	Custom   *Override `json:"customMetadata,omitempty"`
	AddedAt  time.Time `json:"addedAt"`
}

// EffectiveTitle returns the user override if present, otherwise the tag title,
// otherwise the filename without extension.
func (t *Track) EffectiveTitle() string {
	if t.Custom != nil && t.Custom.Title != "" {
		return t.Custom.Title
	}
	if t.Title != "" {
		return t.Title
	}
	base := filepath.Base(t.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// EffectiveArtist returns the user override if present, otherwise the tag artist.
func (t *Track) EffectiveArtist() string {
	if t.Custom != nil && t.Custom.Artist != "" {
		return t.Custom.Artist
	}
	if t.Artist != "" {
		return t.Artist
	}
	return UnknownArtist
}

// EffectiveAlbum returns the user override if present, otherwise the tag album.
func (t *Track) EffectiveAlbum() string {
	if t.Custom != nil && t.Custom.Album != "" {
		return t.Custom.Album
	}
	if t.Album != "" {
		return t.Album
	}
	return UnknownAlbum
}

// EffectiveCover returns the user override cover if present, otherwise the
// embedded cover.
func (t *Track) EffectiveCover() *Cover {
	if t.Custom != nil && t.Custom.Cover != nil {
		return t.Custom.Cover
	}
	return t.Cover
}

// Matches reports whether the track matches a case-insensitive search query
// against title, artist or album.
func (t *Track) Matches(query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(t.EffectiveTitle()), q) ||
		strings.Contains(strings.ToLower(t.EffectiveArtist()), q) ||
		strings.Contains(strings.ToLower(t.EffectiveAlbum()), q)
}
