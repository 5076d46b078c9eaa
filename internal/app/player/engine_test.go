package player

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/moodbox/internal/domain/track"
)

// fakeOutput records calls and can be told to fail specific paths.
type fakeOutput struct {
	mu        sync.Mutex
	loaded    []string
	volumes   []float64
	playing   bool
	failPaths map[string]bool
}

func (o *fakeOutput) Load(path string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failPaths[path] {
		return errors.Mark(errors.Newf("cannot read %s", path), ErrMedia)
	}
	o.loaded = append(o.loaded, path)
	return nil
}

func (o *fakeOutput) Play() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.playing = true
}

func (o *fakeOutput) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.playing = false
}

func (o *fakeOutput) SetVolume(v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volumes = append(o.volumes, v)
}

func (o *fakeOutput) lastVolume() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.volumes) == 0 {
		return -1
	}
	return o.volumes[len(o.volumes)-1]
}

func makeTracks(n int, duration float64) []track.Track {
	tracks := make([]track.Track, n)
	for i := range tracks {
		tracks[i] = track.Track{
			ID:       fmt.Sprintf("track-%d", i),
			Path:     fmt.Sprintf("/music/%d.mp3", i),
			Title:    fmt.Sprintf("Track %d", i),
			Duration: duration,
		}
	}
	return tracks
}

// newTestEngine builds an engine with instant fades and a slow ticker so
// tests only see the events they cause.
func newTestEngine(t *testing.T, out *fakeOutput) *Engine {
	t.Helper()
	e := NewEngine(out, Config{
		Volume:       0.7,
		FadeTime:     0,
		AutoAdvance:  true,
		TickInterval: time.Hour,
	})
	t.Cleanup(e.Close)
	return e
}

// drainEvents empties the event channel and returns everything buffered.
func drainEvents(e *Engine) []Event {
	var events []Event
	for {
		select {
		case ev := <-e.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}

func eventsOfType(events []Event, typ EventType) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func TestEngine_LoadPlaylist_Empty(t *testing.T) {
	out := &fakeOutput{}
	e := newTestEngine(t, out)

	e.LoadPlaylist(nil, nil, 0, false)

	assert.Empty(t, drainEvents(e))
	assert.Equal(t, 0, e.State().PlaylistLen)
	assert.Nil(t, e.State().Track)
}

func TestEngine_LoadPlaylist_ClampsStartIndex(t *testing.T) {
	tests := []struct {
		name       string
		startIndex int
		wantIndex  int
	}{
		{name: "negative", startIndex: -5, wantIndex: 0},
		{name: "in range", startIndex: 2, wantIndex: 2},
		{name: "past end", startIndex: 99, wantIndex: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, &fakeOutput{})
			e.LoadPlaylist(makeTracks(4, 100), nil, tt.startIndex, false)
			assert.Equal(t, tt.wantIndex, e.State().Index)
		})
	}
}

func TestEngine_PlayPauseToggle(t *testing.T) {
	out := &fakeOutput{}
	e := newTestEngine(t, out)
	e.LoadPlaylist(makeTracks(3, 100), nil, 0, false)
	drainEvents(e)

	e.Play()
	e.Play() // Idempotent: no second event.
	e.Pause()
	e.Toggle()

	changes := eventsOfType(drainEvents(e), EventPlaybackChanged)
	require.Len(t, changes, 3)
	assert.True(t, changes[0].IsPlaying)
	assert.False(t, changes[1].IsPlaying)
	assert.True(t, changes[2].IsPlaying)
	assert.True(t, e.State().IsPlaying)
}

func TestEngine_Play_EmptyPlaylist(t *testing.T) {
	e := newTestEngine(t, &fakeOutput{})

	e.Play()

	assert.False(t, e.State().IsPlaying)
	assert.Empty(t, drainEvents(e))
}

func TestEngine_Next_RepeatModes(t *testing.T) {
	tests := []struct {
		name        string
		repeat      RepeatMode
		startIndex  int
		wantIndex   int
		wantPlaying bool
	}{
		{name: "mid playlist advances", repeat: RepeatNone, startIndex: 0, wantIndex: 1, wantPlaying: true},
		{name: "repeat one still advances mid playlist", repeat: RepeatOne, startIndex: 0, wantIndex: 1, wantPlaying: true},
		{name: "end with none stops", repeat: RepeatNone, startIndex: 2, wantIndex: 2, wantPlaying: false},
		{name: "end with all wraps", repeat: RepeatAll, startIndex: 2, wantIndex: 0, wantPlaying: true},
		{name: "end with one replays", repeat: RepeatOne, startIndex: 2, wantIndex: 2, wantPlaying: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, &fakeOutput{})
			e.LoadPlaylist(makeTracks(3, 100), nil, tt.startIndex, false)
			e.SetRepeat(tt.repeat)
			e.Play()
			drainEvents(e)

			e.Next()

			st := e.State()
			assert.Equal(t, tt.wantIndex, st.Index)
			assert.Equal(t, tt.wantPlaying, st.IsPlaying)
		})
	}
}

func TestEngine_Previous_ThreeSecondRule(t *testing.T) {
	t.Run("deep into track restarts it", func(t *testing.T) {
		e := newTestEngine(t, &fakeOutput{})
		e.LoadPlaylist(makeTracks(3, 100), nil, 1, false)
		e.Seek(5)

		e.Previous()

		st := e.State()
		assert.Equal(t, 1, st.Index)
		assert.Equal(t, float64(0), st.CurrentTime)
	})

	t.Run("near start moves to prior track", func(t *testing.T) {
		e := newTestEngine(t, &fakeOutput{})
		e.LoadPlaylist(makeTracks(3, 100), nil, 1, false)
		e.Seek(1)

		e.Previous()

		assert.Equal(t, 0, e.State().Index)
	})

	t.Run("first track with repeat all wraps to last", func(t *testing.T) {
		e := newTestEngine(t, &fakeOutput{})
		e.LoadPlaylist(makeTracks(3, 100), nil, 0, false)
		e.SetRepeat(RepeatAll)

		e.Previous()

		assert.Equal(t, 2, e.State().Index)
	})

	t.Run("first track without wrap restarts", func(t *testing.T) {
		e := newTestEngine(t, &fakeOutput{})
		e.LoadPlaylist(makeTracks(3, 100), nil, 0, false)
		e.Seek(1)

		e.Previous()

		st := e.State()
		assert.Equal(t, 0, st.Index)
		assert.Equal(t, float64(0), st.CurrentTime)
	})
}

func TestEngine_IndexStaysInBounds(t *testing.T) {
	e := newTestEngine(t, &fakeOutput{})
	tracks := makeTracks(5, 100)
	e.LoadPlaylist(tracks, nil, 0, false)
	e.SetRepeat(RepeatAll)
	e.Play()

	for i := 0; i < 200; i++ {
		if i%3 == 0 {
			e.Previous()
		} else {
			e.Next()
		}
		st := e.State()
		require.GreaterOrEqual(t, st.Index, 0)
		require.Less(t, st.Index, len(tracks))
	}
}

func TestEngine_SkipsUnplayableTracks(t *testing.T) {
	out := &fakeOutput{failPaths: map[string]bool{"/music/1.mp3": true}}
	e := newTestEngine(t, out)
	e.LoadPlaylist(makeTracks(3, 100), nil, 0, false)
	drainEvents(e)

	e.Next()

	events := drainEvents(e)
	errs := eventsOfType(events, EventTrackError)
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0].Err, ErrMedia))
	assert.Equal(t, "track-1", errs[0].Track.ID)

	changed := eventsOfType(events, EventTrackChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, "track-2", changed[0].Track.ID)
	assert.Equal(t, 2, e.State().Index)
}

func TestEngine_StopsWhenNothingIsPlayable(t *testing.T) {
	out := &fakeOutput{failPaths: map[string]bool{
		"/music/0.mp3": true,
		"/music/1.mp3": true,
		"/music/2.mp3": true,
	}}
	e := newTestEngine(t, out)

	e.LoadPlaylist(makeTracks(3, 100), nil, 0, false)

	events := drainEvents(e)
	assert.Len(t, eventsOfType(events, EventTrackError), 3)
	assert.Empty(t, eventsOfType(events, EventTrackChanged))
	assert.False(t, e.State().IsPlaying)
}

func TestEngine_Seek_Clamps(t *testing.T) {
	e := newTestEngine(t, &fakeOutput{})
	e.LoadPlaylist(makeTracks(1, 100), nil, 0, false)

	e.Seek(-10)
	assert.Equal(t, float64(0), e.State().CurrentTime)

	e.Seek(500)
	assert.Equal(t, float64(100), e.State().CurrentTime)
}

func TestEngine_SetVolume(t *testing.T) {
	out := &fakeOutput{}
	e := newTestEngine(t, out)
	e.LoadPlaylist(makeTracks(1, 100), nil, 0, false)
	drainEvents(e)

	e.SetVolume(1.5)
	assert.Equal(t, float64(1), e.State().Volume)

	e.SetVolume(-0.2)
	assert.Equal(t, float64(0), e.State().Volume)
	assert.Equal(t, float64(0), out.lastVolume())

	changes := eventsOfType(drainEvents(e), EventVolumeChanged)
	assert.Len(t, changes, 2)
}

func TestEngine_Shuffle_ResetsToFirstPosition(t *testing.T) {
	e := newTestEngine(t, &fakeOutput{})
	e.LoadPlaylist(makeTracks(10, 100), nil, 7, false)

	e.Shuffle()

	st := e.State()
	assert.Equal(t, 0, st.Index)
	assert.True(t, st.Shuffled)
	assert.Equal(t, 10, st.PlaylistLen)
}

func TestEngine_Shuffle_FirstTrackDistribution(t *testing.T) {
	counts := map[string]int{}
	for i := 0; i < 1000; i++ {
		e := NewEngine(&fakeOutput{}, Config{TickInterval: time.Hour})
		e.LoadPlaylist(makeTracks(4, 100), nil, 0, true)
		counts[e.State().Track.ID]++
		e.Close()
	}

	// Each of the four tracks should land first roughly a quarter of the
	// time; far outside that indicates a biased shuffle.
	require.Len(t, counts, 4)
	for id, n := range counts {
		assert.Greaterf(t, n, 150, "track %s first only %d/1000 times", id, n)
	}
}

func TestEngine_AutoAdvanceOnTrackEnd(t *testing.T) {
	e := newTestEngine(t, &fakeOutput{})
	e.LoadPlaylist(makeTracks(3, 0.05), nil, 0, false)
	e.Play()

	assert.Eventually(t, func() bool {
		return e.State().Index >= 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, e.State().IsPlaying)
}

func TestEngine_RepeatOne_ReplaysOnTrackEnd(t *testing.T) {
	e := newTestEngine(t, &fakeOutput{})
	e.LoadPlaylist(makeTracks(3, 0.05), nil, 0, false)
	e.SetRepeat(RepeatOne)
	e.Play()

	time.Sleep(300 * time.Millisecond)

	st := e.State()
	assert.Equal(t, 0, st.Index)
	assert.True(t, st.IsPlaying)
}

func TestEngine_NoAutoAdvance_StopsOnTrackEnd(t *testing.T) {
	e := NewEngine(&fakeOutput{}, Config{
		Volume:       0.7,
		AutoAdvance:  false,
		TickInterval: time.Hour,
	})
	t.Cleanup(e.Close)
	e.LoadPlaylist(makeTracks(3, 0.05), nil, 0, false)
	e.Play()

	assert.Eventually(t, func() bool {
		return !e.State().IsPlaying
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, e.State().Index)
}

func TestEngine_FadeRampsVolume(t *testing.T) {
	out := &fakeOutput{}
	e := NewEngine(out, Config{
		Volume:       0.8,
		FadeTime:     0.1,
		FadeSteps:    4,
		AutoAdvance:  true,
		TickInterval: time.Hour,
	})
	t.Cleanup(e.Close)
	e.LoadPlaylist(makeTracks(1, 100), nil, 0, false)

	e.Play()

	// The ramp emits intermediate levels before settling on the target.
	assert.Eventually(t, func() bool {
		out.mu.Lock()
		defer out.mu.Unlock()
		return len(out.volumes) >= 5 && out.volumes[len(out.volumes)-1] == 0.8
	}, time.Second, 5*time.Millisecond)
}

func TestEngine_CloseConcurrentWithOperations(t *testing.T) {
	out := &fakeOutput{}
	e := NewEngine(out, Config{Volume: 0.7, TickInterval: time.Hour})
	e.LoadPlaylist(makeTracks(4, 60), nil, 0, false)
	e.Play()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				e.Next()
				e.SetVolume(0.5)
			}
		}()
	}
	e.Close()
	wg.Wait()

	// A second close is a no-op.
	e.Close()

	// Buffered events drain, then the channel reports closed.
	for {
		if _, ok := <-e.Events(); !ok {
			break
		}
	}
	assert.False(t, e.State().IsPlaying)
}
