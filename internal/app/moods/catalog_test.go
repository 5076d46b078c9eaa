package moods

import (
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/moodbox/internal/domain/mood"
	"github.com/osa030/moodbox/internal/domain/track"
)

func makeTracks(n int) []track.Track {
	tracks := make([]track.Track, n)
	for i := range tracks {
		tracks[i] = track.Track{
			ID:       fmt.Sprintf("track-%d", i),
			Path:     fmt.Sprintf("/music/%d.mp3", i),
			Duration: 60,
		}
	}
	return tracks
}

func TestCatalog_Create(t *testing.T) {
	c := NewCatalog()

	m, err := c.Create(Params{Name: "  Chill  ", Color: "#112233", Effect: mood.EffectPulse, Intensity: 7})
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "Chill", m.Name)
	assert.Equal(t, 7, m.Intensity)
	assert.NotNil(t, m.Tracks)
	assert.False(t, m.CreatedAt.IsZero())

	// Defaults fill in missing styling.
	m2, err := c.Create(Params{Name: "Focus"})
	require.NoError(t, err)
	assert.Equal(t, mood.EffectNone, m2.Effect)
	assert.Equal(t, 5, m2.Intensity)
	assert.NotEmpty(t, m2.Color)
}

func TestCatalog_Create_Validation(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr error
	}{
		{name: "empty name", params: Params{Name: "   "}, wantErr: ErrEmptyName},
		{name: "bad color", params: Params{Name: "x", Color: "red"}, wantErr: ErrInvalidColor},
		{name: "bad secondary", params: Params{Name: "x", ColorSecondary: "#12"}, wantErr: ErrInvalidColor},
		{name: "bad effect", params: Params{Name: "x", Effect: "sparkle"}, wantErr: ErrInvalidEffect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog().Create(tt.params)
			assert.True(t, errors.Is(err, tt.wantErr))
		})
	}
}

func TestCatalog_Create_DuplicateNameCaseInsensitive(t *testing.T) {
	c := NewCatalog()
	_, err := c.Create(Params{Name: "Chill"})
	require.NoError(t, err)

	_, err = c.Create(Params{Name: "chill"})
	assert.True(t, errors.Is(err, ErrDuplicateName))
	assert.Equal(t, 1, c.Len())
}

func TestCatalog_Update(t *testing.T) {
	c := NewCatalog()
	m, _ := c.Create(Params{Name: "Chill", Intensity: 3})
	other, _ := c.Create(Params{Name: "Focus"})

	// Rename collision with another mood.
	_, err := c.Update(m.ID, Params{Name: "FOCUS"})
	assert.True(t, errors.Is(err, ErrDuplicateName))

	// Renaming to its own name (different case) is allowed.
	updated, err := c.Update(other.ID, Params{Name: "focus", Intensity: 9})
	require.NoError(t, err)
	assert.Equal(t, "focus", updated.Name)
	assert.Equal(t, 9, updated.Intensity)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt) || updated.UpdatedAt.Equal(updated.CreatedAt))

	// Empty fields keep current values.
	kept, err := c.Update(m.ID, Params{})
	require.NoError(t, err)
	assert.Equal(t, "Chill", kept.Name)
	assert.Equal(t, 3, kept.Intensity)

	_, err = c.Update("missing", Params{Name: "x"})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCatalog_Delete_ClearsActive(t *testing.T) {
	c := NewCatalog()
	m, _ := c.Create(Params{Name: "Chill"})
	_, err := c.Select(m.ID)
	require.NoError(t, err)

	require.NoError(t, c.Delete(m.ID))

	_, ok := c.Active()
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
	assert.True(t, errors.Is(c.Delete(m.ID), ErrNotFound))
}

func TestCatalog_AddTracks_Idempotent(t *testing.T) {
	c := NewCatalog()
	m, _ := c.Create(Params{Name: "Chill"})
	tracks := makeTracks(3)

	added, err := c.AddTracks(m.ID, tracks)
	require.NoError(t, err)
	assert.Equal(t, 3, added)

	// Adding the same tracks again changes nothing.
	added, err = c.AddTracks(m.ID, tracks)
	require.NoError(t, err)
	assert.Equal(t, 0, added)

	got, _ := c.Get(m.ID)
	assert.Len(t, got.Tracks, 3)
}

func TestCatalog_RemoveTrack(t *testing.T) {
	c := NewCatalog()
	m, _ := c.Create(Params{Name: "Chill"})
	_, err := c.AddTracks(m.ID, makeTracks(3))
	require.NoError(t, err)

	require.NoError(t, c.RemoveTrack(m.ID, "track-1"))
	got, _ := c.Get(m.ID)
	assert.Equal(t, []string{"track-0", "track-2"}, got.TrackIDs())

	// Unknown track is a no-op.
	require.NoError(t, c.RemoveTrack(m.ID, "track-99"))
}

func TestCatalog_RemoveLibraryTrack_Cascades(t *testing.T) {
	c := NewCatalog()
	a, _ := c.Create(Params{Name: "A"})
	b, _ := c.Create(Params{Name: "B"})
	tracks := makeTracks(2)
	_, _ = c.AddTracks(a.ID, tracks)
	_, _ = c.AddTracks(b.ID, tracks[:1])

	touched := c.RemoveLibraryTrack("track-0")
	assert.Equal(t, 2, touched)

	gotA, _ := c.Get(a.ID)
	gotB, _ := c.Get(b.ID)
	assert.Equal(t, []string{"track-1"}, gotA.TrackIDs())
	assert.Empty(t, gotB.TrackIDs())
}

func TestCatalog_SyncLibraryTrack(t *testing.T) {
	c := NewCatalog()
	m, _ := c.Create(Params{Name: "Chill"})
	tracks := makeTracks(2)
	_, _ = c.AddTracks(m.ID, tracks)

	edited := tracks[0]
	edited.Custom = &track.Override{Title: "Renamed"}
	assert.Equal(t, 1, c.SyncLibraryTrack(edited))

	got, _ := c.Get(m.ID)
	assert.Equal(t, "Renamed", got.Tracks[0].EffectiveTitle())
}

func TestCatalog_Search(t *testing.T) {
	c := NewCatalog()
	_, _ = c.Create(Params{Name: "Deep Focus"})
	_, _ = c.Create(Params{Name: "Chill"})
	_, _ = c.Create(Params{Name: "Focus Sprint"})

	names := func(ms []mood.Mood) []string {
		out := make([]string, len(ms))
		for i, m := range ms {
			out[i] = m.Name
		}
		return out
	}

	assert.Equal(t, []string{"Deep Focus", "Focus Sprint"}, names(c.Search("focus")))
	assert.Empty(t, c.Search("metal"))
	assert.Len(t, c.Search(""), 3)
}

func TestCatalog_Stats(t *testing.T) {
	c := NewCatalog()
	a, _ := c.Create(Params{Name: "A", Effect: mood.EffectPulse})
	b, _ := c.Create(Params{Name: "B", Effect: mood.EffectPulse})
	_, _ = c.Create(Params{Name: "C", Effect: mood.EffectGlow})
	_, _ = c.AddTracks(a.ID, makeTracks(3))
	_, _ = c.AddTracks(b.ID, makeTracks(2))

	s := c.Stats()
	assert.Equal(t, 3, s.MoodCount)
	assert.Equal(t, 5, s.TrackRefs)
	assert.Equal(t, float64(300), s.TotalDuration)
	assert.InDelta(t, 5.0/3.0, s.AvgTracks, 1e-9)
	assert.Equal(t, mood.EffectPulse, s.PopularEffect)
}

func TestCatalog_Import(t *testing.T) {
	c := NewCatalog()
	existing, _ := c.Create(Params{Name: "Chill"})

	added := c.Import([]mood.Mood{
		{ID: "new-1", Name: "Focus"},
		{ID: existing.ID, Name: "Stolen ID"},
		{ID: "new-2", Name: "chill"}, // Name collision, case-insensitive.
		{ID: "new-3", Name: "  "},
	})

	assert.Equal(t, 1, added)
	assert.Equal(t, 2, c.Len())
	got, err := c.Get("new-1")
	require.NoError(t, err)
	assert.Equal(t, "Focus", got.Name)
}

func TestCatalog_SetAll_DropsDuplicates(t *testing.T) {
	c := NewCatalog()
	c.SetAll([]mood.Mood{
		{ID: "m1", Name: "Chill"},
		{ID: "m1", Name: "Other"},
		{ID: "m2", Name: "CHILL"},
		{ID: "m3", Name: "Focus"},
	})

	require.Equal(t, 2, c.Len())
	all := c.All()
	assert.Equal(t, "Chill", all[0].Name)
	assert.Equal(t, "Focus", all[1].Name)
	assert.NotNil(t, all[0].Tracks)
}
