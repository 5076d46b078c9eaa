// Package media provides metadata extraction for audio files.
package media

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/moodbox/internal/domain/track"
)

// supportedExtensions is the ingestion whitelist.
var supportedExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".ogg":  true,
	".m4a":  true,
}

// Metadata holds the extracted tag values for one file.
type Metadata struct {
	Title    string
	Artist   string
	Album    string
	Duration float64 // seconds; 0 when the container carries no length tag
	Year     *int
	Genres   []string
	Cover    *track.Cover
}

// Invalid describes a rejected file.
type Invalid struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Reader extracts track metadata from audio files.
type Reader struct{}

// NewReader creates a metadata reader.
func NewReader() *Reader {
	return &Reader{}
}

// Supported reports whether the file extension is on the ingestion whitelist.
func Supported(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Validate partitions paths into playable files and rejects with reasons.
func (r *Reader) Validate(paths []string) (valid []string, invalid []Invalid) {
	for _, p := range paths {
		info, err := os.Stat(p)
		switch {
		case err != nil:
			invalid = append(invalid, Invalid{Path: p, Reason: "file not accessible"})
		case info.IsDir():
			invalid = append(invalid, Invalid{Path: p, Reason: "not a file"})
		case !Supported(p):
			invalid = append(invalid, Invalid{Path: p, Reason: "unsupported format"})
		default:
			valid = append(valid, p)
		}
	}
	return valid, invalid
}

// Read extracts metadata from the file at path. It never fails: on any read
// error the fallback tuple is returned (title from the filename, unknown
// artist/album, zero duration) and the error is logged.
func (r *Reader) Read(path string) Metadata {
	meta := fallback(path)

	f, err := os.Open(path)
	if err != nil {
		zlog.Warn().Err(err).Str("path", path).Msg("media: cannot open file, using fallback metadata")
		return meta
	}
	defer f.Close()

	tags, err := tag.ReadFrom(f)
	if err != nil {
		zlog.Warn().Err(err).Str("path", path).Msg("media: cannot read tags, using fallback metadata")
		return meta
	}

	if t := strings.TrimSpace(tags.Title()); t != "" {
		meta.Title = t
	}
	if a := strings.TrimSpace(tags.Artist()); a != "" {
		meta.Artist = a
	}
	if a := strings.TrimSpace(tags.Album()); a != "" {
		meta.Album = a
	}
	if y := tags.Year(); y != 0 {
		meta.Year = &y
	}
	if g := strings.TrimSpace(tags.Genre()); g != "" {
		meta.Genres = []string{g}
	}
	if pic := tags.Picture(); pic != nil && len(pic.Data) > 0 {
		meta.Cover = &track.Cover{Data: pic.Data, MIME: pic.MIMEType}
	}

	return meta
}

// fallback builds the defined fallback tuple for a path.
func fallback(path string) Metadata {
	base := filepath.Base(path)
	return Metadata{
		Title:    strings.TrimSuffix(base, filepath.Ext(base)),
		Artist:   track.UnknownArtist,
		Album:    track.UnknownAlbum,
		Duration: 0,
		Year:     nil,
		Genres:   []string{},
		Cover:    nil,
	}
}

// Track builds a library track from the file's metadata. The ID and AddedAt
// are assigned by the library on insert.
func (r *Reader) Track(path string) track.Track {
	m := r.Read(path)
	return track.Track{
		Path:     path,
		Title:    m.Title,
		Artist:   m.Artist,
		Album:    m.Album,
		Duration: m.Duration,
		Year:     m.Year,
		Genres:   m.Genres,
		Cover:    m.Cover,
	}
}
