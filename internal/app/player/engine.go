// Package player provides the playback engine: playlist position, transport
// state, repeat and shuffle behavior, volume fades and track-end scheduling.
package player

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/moodbox/internal/domain/mood"
	"github.com/osa030/moodbox/internal/domain/track"
)

// ErrMedia marks errors caused by an unreadable or unsupported media file.
var ErrMedia = errors.New("media error")

// RepeatMode controls what happens at playlist boundaries.
type RepeatMode string

const (
	RepeatNone RepeatMode = "none"
	RepeatOne  RepeatMode = "one"
	RepeatAll  RepeatMode = "all"
)

// Valid reports whether the mode is a known value.
func (m RepeatMode) Valid() bool {
	switch m {
	case RepeatNone, RepeatOne, RepeatAll:
		return true
	}
	return false
}

// previousRestartThreshold is how far into a track Previous restarts it
// instead of moving to the prior track.
const previousRestartThreshold = 3.0 // seconds

// Config holds engine configuration.
type Config struct {
	Volume       float64       // Initial volume, 0..1
	FadeTime     float64       // Crossfade length in seconds; 0 switches instantly
	FadeSteps    int           // Fade granularity; defaults to 20
	AutoAdvance  bool          // Advance to the next track when one ends
	TickInterval time.Duration // Time-update cadence; defaults to 1s
}

// Status is a point-in-time snapshot of the engine.
type Status struct {
	Track       *track.Track
	Mood        *mood.Mood
	IsPlaying   bool
	CurrentTime float64
	Duration    float64
	Volume      float64
	Repeat      RepeatMode
	Shuffled    bool
	Index       int
	PlaylistLen int
}

// Engine drives playback over an Output. All operations are safe for
// concurrent use; events are delivered on a buffered channel and dropped
// rather than blocking the engine.
type Engine struct {
	mu sync.RWMutex

	out    Output
	config Config

	playlist   []track.Track
	index      int
	activeMood *mood.Mood

	playing  bool
	volume   float64
	repeat   RepeatMode
	shuffled bool

	// Position is the paused offset; while playing the elapsed time since
	// anchor is added on top.
	position float64
	anchor   time.Time

	endTimerCancel func()
	tickCancel     func()
	fadeCancel     func()

	eventCh chan Event
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc

	rng *rand.Rand
}

// NewEngine creates a playback engine.
func NewEngine(out Output, config Config) *Engine {
	if config.FadeSteps <= 0 {
		config.FadeSteps = 20
	}
	if config.TickInterval <= 0 {
		config.TickInterval = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		out:     out,
		config:  config,
		volume:  clampVolume(config.Volume),
		repeat:  RepeatNone,
		eventCh: make(chan Event, 32),
		ctx:     ctx,
		cancel:  cancel,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	out.SetVolume(e.volume)
	return e
}

// Events returns the event channel.
func (e *Engine) Events() <-chan Event {
	return e.eventCh
}

// LoadPlaylist replaces the playlist and loads the track at startIndex.
// An empty playlist is a no-op. The playing state is preserved; callers
// wanting immediate playback follow with Play.
func (e *Engine) LoadPlaylist(tracks []track.Track, m *mood.Mood, startIndex int, shuffle bool) {
	if len(tracks) == 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.playlist = make([]track.Track, len(tracks))
	copy(e.playlist, tracks)
	e.activeMood = m
	e.shuffled = false

	if shuffle {
		e.shuffleLocked()
		startIndex = 0
	}
	if startIndex < 0 {
		startIndex = 0
	}
	if startIndex >= len(e.playlist) {
		startIndex = len(e.playlist) - 1
	}
	e.index = startIndex

	e.switchTrackLocked()
}

// Play starts or resumes playback. Playing already is a no-op.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.playing || len(e.playlist) == 0 {
		return
	}

	e.playing = true
	e.anchor = time.Now()
	e.out.Play()

	if e.config.FadeTime > 0 {
		e.startFadeLocked(0, e.volume, nil)
	} else {
		e.out.SetVolume(e.volume)
	}

	e.scheduleEndLocked()
	e.startTickerLocked()
	e.sendEventLocked(e.snapshotEventLocked(EventPlaybackChanged))
}

// Pause pauses playback. Paused already is a no-op.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.playing {
		return
	}

	e.position = e.positionLocked()
	e.playing = false
	e.stopTimersLocked()
	e.out.Pause()

	e.sendEventLocked(e.snapshotEventLocked(EventPlaybackChanged))
}

// Toggle flips between playing and paused.
func (e *Engine) Toggle() {
	e.mu.Lock()
	playing := e.playing
	e.mu.Unlock()

	if playing {
		e.Pause()
	} else {
		e.Play()
	}
}

// Next advances to the next track. At the end of the playlist the repeat
// mode decides: all wraps to the start, one replays the current track, none
// stops playback. Mid-playlist, Next always advances regardless of repeat.
func (e *Engine) Next() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.playlist) == 0 {
		return
	}
	e.advanceLocked()
}

// Previous restarts the current track when more than three seconds in;
// otherwise it moves to the prior track, wrapping only under repeat all.
func (e *Engine) Previous() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.playlist) == 0 {
		return
	}

	if e.positionLocked() > previousRestartThreshold {
		e.restartLocked()
		return
	}

	switch {
	case e.index > 0:
		e.index--
	case e.repeat == RepeatAll:
		e.index = len(e.playlist) - 1
	default:
		// First track, no wrap: restart in place.
		e.restartLocked()
		return
	}
	e.switchTrackLocked()
}

// Seek moves the playhead, clamped to the track bounds.
func (e *Engine) Seek(seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.currentTrackLocked()
	if t == nil {
		return
	}

	if seconds < 0 {
		seconds = 0
	}
	if t.Duration > 0 && seconds > t.Duration {
		seconds = t.Duration
	}

	e.position = seconds
	e.anchor = time.Now()
	if e.playing {
		e.scheduleEndLocked()
	}
	e.sendEventLocked(e.snapshotEventLocked(EventTimeUpdate))
}

// SetVolume sets the target volume, clamped to 0..1. A running fade is
// cancelled so the user's value wins.
func (e *Engine) SetVolume(volume float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopFadeLocked()
	e.volume = clampVolume(volume)
	e.out.SetVolume(e.volume)
	e.sendEventLocked(e.snapshotEventLocked(EventVolumeChanged))
}

// SetRepeat sets the repeat mode. Unknown values are ignored.
func (e *Engine) SetRepeat(mode RepeatMode) {
	if !mode.Valid() {
		zlog.Warn().Str("mode", string(mode)).Msg("player: ignoring unknown repeat mode")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.repeat = mode
}

// Shuffle reshuffles the playlist in place and restarts from the first
// position of the new order.
func (e *Engine) Shuffle() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.playlist) == 0 {
		return
	}

	e.shuffleLocked()
	e.index = 0
	e.switchTrackLocked()
}

// State returns a snapshot of the engine.
func (e *Engine) State() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var duration float64
	t := e.currentTrackLocked()
	if t != nil {
		duration = t.Duration
	}
	return Status{
		Track:       t,
		Mood:        e.activeMood,
		IsPlaying:   e.playing,
		CurrentTime: e.positionLocked(),
		Duration:    duration,
		Volume:      e.volume,
		Repeat:      e.repeat,
		Shuffled:    e.shuffled,
		Index:       e.index,
		PlaylistLen: len(e.playlist),
	}
}

// Close stops playback and releases resources. Calling it twice is a no-op.
// The event channel is closed while the lock is held, so no sender can slip
// in between shutdown and the close.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	e.stopTimersLocked()
	e.playing = false
	e.cancel()
	close(e.eventCh)
}

// advanceLocked moves to the next playlist position per the repeat mode
// and loads it.
func (e *Engine) advanceLocked() {
	switch {
	case e.index+1 < len(e.playlist):
		e.index++
	case e.repeat == RepeatAll:
		e.index = 0
	case e.repeat == RepeatOne:
		// Replay the last track.
	default:
		e.stopLocked()
		return
	}
	e.switchTrackLocked()
}

// restartLocked rewinds the current track without reloading it.
func (e *Engine) restartLocked() {
	e.position = 0
	e.anchor = time.Now()
	if e.playing {
		e.scheduleEndLocked()
	}
	e.sendEventLocked(e.snapshotEventLocked(EventTimeUpdate))
}

// stopLocked halts playback at the end of the playlist.
func (e *Engine) stopLocked() {
	if !e.playing {
		return
	}
	e.position = 0
	e.anchor = time.Now()
	e.playing = false
	e.stopTimersLocked()
	e.out.Pause()
	e.sendEventLocked(e.snapshotEventLocked(EventPlaybackChanged))
}

// switchTrackLocked loads the track at the current index, crossfading when
// playback is live and a fade time is configured.
func (e *Engine) switchTrackLocked() {
	e.cancelEndTimerLocked()

	if !e.playing || e.config.FadeTime <= 0 {
		e.stopFadeLocked()
		e.out.SetVolume(e.volume)
		e.loadCurrentLocked()
		return
	}

	e.startFadeLocked(e.volume, 0, func() {
		if e.loadCurrentLocked() {
			e.startFadeLocked(0, e.volume, nil)
		}
	})
}

// loadCurrentLocked loads the track at the current index, skipping forward
// past unreadable files. When every track fails, playback stops. Reports
// whether a track was loaded.
func (e *Engine) loadCurrentLocked() bool {
	for attempts := 0; attempts < len(e.playlist); attempts++ {
		t := e.playlist[e.index]

		if err := e.out.Load(t.Path); err != nil {
			zlog.Warn().Err(err).Str("path", t.Path).Msg("player: skipping unplayable track")
			ev := e.snapshotEventLocked(EventTrackError)
			ev.Track = &t
			ev.Err = err
			e.sendEventLocked(ev)

			e.index = (e.index + 1) % len(e.playlist)
			continue
		}

		e.position = 0
		e.anchor = time.Now()
		e.sendEventLocked(e.snapshotEventLocked(EventTrackChanged))

		if e.playing {
			e.out.Play()
			e.scheduleEndLocked()
			e.startTickerLocked()
		}
		return true
	}

	zlog.Error().Int("tracks", len(e.playlist)).Msg("player: no playable track in playlist, stopping")
	e.playing = false
	e.stopTimersLocked()
	e.sendEventLocked(e.snapshotEventLocked(EventPlaybackChanged))
	return false
}

// onTrackEnd fires when the end timer for the current track elapses.
func (e *Engine) onTrackEnd() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.playing {
		return
	}
	e.endTimerCancel = nil

	if e.repeat == RepeatOne {
		e.restartLocked()
		return
	}
	if !e.config.AutoAdvance {
		e.stopLocked()
		return
	}
	e.advanceLocked()
}

// shuffleLocked applies a Fisher-Yates shuffle to the playlist.
func (e *Engine) shuffleLocked() {
	e.rng.Shuffle(len(e.playlist), func(i, j int) {
		e.playlist[i], e.playlist[j] = e.playlist[j], e.playlist[i]
	})
	e.shuffled = true
}

// scheduleEndLocked arms the track-end timer for the remaining duration.
// Tracks with unknown (zero) duration never end on their own.
func (e *Engine) scheduleEndLocked() {
	e.cancelEndTimerLocked()

	t := e.currentTrackLocked()
	if t == nil || t.Duration <= 0 {
		return
	}

	remaining := t.Duration - e.positionLocked()
	if remaining <= 0 {
		remaining = 0
	}
	e.endTimerCancel = e.startTimer(time.Duration(remaining*float64(time.Second)), e.onTrackEnd)
}

// startFadeLocked ramps the output volume from one level to another over the
// configured fade time. then, if set, runs with the engine lock held once
// the ramp completes; with a zero fade time the whole thing is synchronous.
func (e *Engine) startFadeLocked(from, to float64, then func()) {
	e.stopFadeLocked()

	if e.config.FadeTime <= 0 {
		e.out.SetVolume(to)
		if then != nil {
			then()
		}
		return
	}

	ctx, cancel := context.WithCancel(e.ctx)
	e.fadeCancel = cancel

	steps := e.config.FadeSteps
	stepTime := time.Duration(e.config.FadeTime * float64(time.Second) / float64(steps))
	delta := (to - from) / float64(steps)

	go func() {
		level := from
		ticker := time.NewTicker(stepTime)
		defer ticker.Stop()

		for i := 0; i < steps; i++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				level += delta
				e.out.SetVolume(level)
			}
		}

		e.mu.Lock()
		defer e.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		e.fadeCancel = nil
		e.out.SetVolume(to)
		if then != nil {
			then()
		}
	}()
}

// startTickerLocked starts the time-update ticker if not already running.
func (e *Engine) startTickerLocked() {
	if e.tickCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(e.ctx)
	e.tickCancel = cancel

	go func() {
		ticker := time.NewTicker(e.config.TickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.mu.Lock()
				if e.playing {
					e.sendEventLocked(e.snapshotEventLocked(EventTimeUpdate))
				}
				e.mu.Unlock()
			}
		}
	}()
}

// startTimer runs callback after d unless cancelled.
func (e *Engine) startTimer(d time.Duration, callback func()) func() {
	ctx, cancel := context.WithCancel(e.ctx)
	go func() {
		select {
		case <-ctx.Done():
		case <-time.After(d):
			callback()
		}
	}()
	return cancel
}

func (e *Engine) cancelEndTimerLocked() {
	if e.endTimerCancel != nil {
		e.endTimerCancel()
		e.endTimerCancel = nil
	}
}

func (e *Engine) stopFadeLocked() {
	if e.fadeCancel != nil {
		e.fadeCancel()
		e.fadeCancel = nil
	}
}

// stopTimersLocked cancels the end timer, ticker and any running fade.
func (e *Engine) stopTimersLocked() {
	e.cancelEndTimerLocked()
	e.stopFadeLocked()
	if e.tickCancel != nil {
		e.tickCancel()
		e.tickCancel = nil
	}
}

// positionLocked returns the current playhead position in seconds.
func (e *Engine) positionLocked() float64 {
	if !e.playing {
		return e.position
	}
	pos := e.position + time.Since(e.anchor).Seconds()
	if t := e.currentTrackLocked(); t != nil && t.Duration > 0 && pos > t.Duration {
		return t.Duration
	}
	return pos
}

// currentTrackLocked returns a copy of the current track, or nil when the
// playlist is empty.
func (e *Engine) currentTrackLocked() *track.Track {
	if len(e.playlist) == 0 || e.index < 0 || e.index >= len(e.playlist) {
		return nil
	}
	t := e.playlist[e.index]
	return &t
}

// snapshotEventLocked builds an event carrying the current engine state.
func (e *Engine) snapshotEventLocked(typ EventType) Event {
	var duration float64
	t := e.currentTrackLocked()
	if t != nil {
		duration = t.Duration
	}
	return Event{
		Type:        typ,
		Track:       t,
		Mood:        e.activeMood,
		IsPlaying:   e.playing,
		CurrentTime: e.positionLocked(),
		Duration:    duration,
		Volume:      e.volume,
	}
}

// sendEventLocked sends an event without blocking.
func (e *Engine) sendEventLocked(ev Event) {
	if e.closed {
		return
	}
	select {
	case e.eventCh <- ev:
	default:
		zlog.Warn().Str("type", ev.Type.String()).Msg("player: event channel full, dropping event")
	}
}

func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
