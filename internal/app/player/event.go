package player

import (
	"github.com/osa030/moodbox/internal/domain/mood"
	"github.com/osa030/moodbox/internal/domain/track"
)

// EventType represents a playback event type.
type EventType int

const (
	EventTrackChanged    EventType = iota // A different track was loaded
	EventPlaybackChanged                  // Playing/paused flipped
	EventTimeUpdate                       // Periodic position report
	EventVolumeChanged                    // Volume changed (local UI only, not broadcast)
	EventTrackError                       // A track failed to load and was skipped
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackChanged:
		return "track-changed"
	case EventPlaybackChanged:
		return "playback-changed"
	case EventTimeUpdate:
		return "time-update"
	case EventVolumeChanged:
		return "volume-changed"
	case EventTrackError:
		return "track-error"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type        EventType
	Track       *track.Track // Current track (nil when the playlist is empty)
	Mood        *mood.Mood   // Active mood (nil when playing outside a mood)
	IsPlaying   bool
	CurrentTime float64 // seconds
	Duration    float64 // seconds
	Volume      float64
	Err         error // EventTrackError only
}
