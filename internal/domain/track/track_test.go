package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrack_EffectiveTitle(t *testing.T) {
	tests := []struct {
		name     string
		track    Track
		expected string
	}{
		{
			name:     "tag title",
			track:    Track{Path: "/music/song.mp3", Title: "Real Title"},
			expected: "Real Title",
		},
		{
			name:     "missing title falls back to filename",
			track:    Track{Path: "/music/My Song.mp3"},
			expected: "My Song",
		},
		{
			name: "override wins over tag",
			track: Track{
				Path:   "/music/song.mp3",
				Title:  "Tag Title",
				Custom: &Override{Title: "Edited Title"},
			},
			expected: "Edited Title",
		},
		{
			name: "empty override falls through",
			track: Track{
				Path:   "/music/song.mp3",
				Title:  "Tag Title",
				Custom: &Override{Artist: "Someone"},
			},
			expected: "Tag Title",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.track.EffectiveTitle())
		})
	}
}

func TestTrack_EffectiveArtistAlbum(t *testing.T) {
	tr := Track{Path: "/music/song.mp3"}
	assert.Equal(t, UnknownArtist, tr.EffectiveArtist())
	assert.Equal(t, UnknownAlbum, tr.EffectiveAlbum())

	tr.Artist = "Artist"
	tr.Album = "Album"
	assert.Equal(t, "Artist", tr.EffectiveArtist())
	assert.Equal(t, "Album", tr.EffectiveAlbum())

	tr.Custom = &Override{Artist: "Override Artist", Album: "Override Album"}
	assert.Equal(t, "Override Artist", tr.EffectiveArtist())
	assert.Equal(t, "Override Album", tr.EffectiveAlbum())
}

func TestTrack_EffectiveCover(t *testing.T) {
	embedded := &Cover{Data: []byte{1}, MIME: "image/jpeg"}
	override := &Cover{Data: []byte{2}, MIME: "image/png"}

	tr := Track{Cover: embedded}
	assert.Equal(t, embedded, tr.EffectiveCover())

	tr.Custom = &Override{Cover: override}
	assert.Equal(t, override, tr.EffectiveCover())
}

func TestTrack_Matches(t *testing.T) {
	tr := Track{Path: "/music/x.mp3", Title: "Nightcall", Artist: "Kavinsky", Album: "OutRun"}

	assert.True(t, tr.Matches("night"))
	assert.True(t, tr.Matches("KAVINSKY"))
	assert.True(t, tr.Matches("outrun"))
	assert.False(t, tr.Matches("daft"))
}
