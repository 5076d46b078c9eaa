// Package mood provides the Mood domain entity: a user-defined playlist
// bundled with a visual theme.
package mood

import (
	"regexp"
	"time"

	"github.com/osa030/moodbox/internal/domain/track"
)

// Effect represents a mood's animated visual effect.
type Effect string

const (
	EffectNone     Effect = "none"
	EffectPulse    Effect = "pulse"
	EffectWave     Effect = "wave"
	EffectGlow     Effect = "glow"
	EffectGradient Effect = "gradient"
)

// Valid reports whether the effect is a known value.
func (e Effect) Valid() bool {
	switch e {
	case EffectNone, EffectPulse, EffectWave, EffectGlow, EffectGradient:
		return true
	}
	return false
}

// Intensity bounds.
const (
	MinIntensity = 1
	MaxIntensity = 10
)

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ValidColor reports whether s is an RGB hex color like "#847cf7".
func ValidColor(s string) bool {
	return hexColorRe.MatchString(s)
}

// Mood represents a mood playlist with visual styling.
// Name is unique case-insensitively across the catalog.
type Mood struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Color          string        `json:"color"`
	ColorSecondary string        `json:"colorSecondary"`
	Effect         Effect        `json:"effect"`
	Intensity      int           `json:"intensity"`
	Tracks         []track.Track `json:"tracks"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// TrackIDs returns the IDs of all tracks in the mood.
func (m *Mood) TrackIDs() []string {
	ids := make([]string, len(m.Tracks))
	for i, t := range m.Tracks {
		ids[i] = t.ID
	}
	return ids
}

// HasTrack reports whether the mood already contains the track.
func (m *Mood) HasTrack(trackID string) bool {
	for _, t := range m.Tracks {
		if t.ID == trackID {
			return true
		}
	}
	return false
}

// TotalDuration returns the total duration of all tracks in seconds.
func (m *Mood) TotalDuration() float64 {
	var total float64
	for _, t := range m.Tracks {
		total += t.Duration
	}
	return total
}
