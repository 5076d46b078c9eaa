// Package session wires the library, mood catalog, playback engine,
// broadcast hub and persistence together behind one facade.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/moodbox/internal/app/broadcast"
	"github.com/osa030/moodbox/internal/app/hotkeys"
	"github.com/osa030/moodbox/internal/app/moods"
	"github.com/osa030/moodbox/internal/app/player"
	"github.com/osa030/moodbox/internal/domain/library"
	"github.com/osa030/moodbox/internal/domain/mood"
	"github.com/osa030/moodbox/internal/domain/track"
	"github.com/osa030/moodbox/internal/infra/config"
	"github.com/osa030/moodbox/internal/infra/media"
	"github.com/osa030/moodbox/internal/infra/store"
)

// ErrEmptyMood is returned when playback of a mood with no tracks is requested.
var ErrEmptyMood = errors.New("mood has no tracks")

// Manager owns the application state and its background goroutines.
type Manager struct {
	// configMu guards config: the event pump folds volume changes into it
	// while settings updates replace it wholesale.
	configMu sync.RWMutex
	config   *config.Config

	lib     *library.Library
	catalog *moods.Catalog
	engine  *player.Engine
	hub     *broadcast.Hub
	store   *store.Store
	saver   *store.Saver
	reader  *media.Reader

	settingsMu sync.RWMutex
	settings   map[string]any

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a session manager and loads the persisted document.
func NewManager(cfg *config.Config) (*Manager, error) {
	st := store.New(cfg.Storage.Path)
	doc, err := st.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load document")
	}

	if err := applySettings(cfg, doc.Settings); err != nil {
		zlog.Warn().Err(err).Msg("session: ignoring malformed persisted settings")
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config:   cfg,
		lib:      library.New(),
		catalog:  moods.NewCatalog(),
		store:    st,
		reader:   media.NewReader(),
		settings: doc.Settings,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	m.lib.SetAll(doc.Library)
	m.catalog.SetAll(doc.Moods)

	m.engine = player.NewEngine(player.NewFileOutput(), player.Config{
		Volume:      cfg.Audio.Volume,
		FadeTime:    cfg.Audio.FadeTime,
		AutoAdvance: cfg.General.AutoAdvance,
	})
	m.hub = broadcast.NewHub(m.snapshotMessages)
	m.saver = store.NewSaver(st, m.collectDocument,
		time.Duration(cfg.Storage.SaveDebounceMs)*time.Millisecond,
		time.Duration(cfg.Storage.SaveIntervalSec)*time.Second)

	zlog.Info().
		Int("tracks", m.lib.Len()).
		Int("moods", m.catalog.Len()).
		Str("path", st.Path()).
		Msg("session: document loaded")
	return m, nil
}

// Start launches the event pump and the periodic saver.
func (m *Manager) Start() {
	go m.saver.Run(m.ctx)
	go m.pumpEvents()
}

// Hub returns the broadcast hub for transport layers.
func (m *Manager) Hub() *broadcast.Hub {
	return m.hub
}

// Config returns a copy of the effective configuration.
func (m *Manager) Config() config.Config {
	m.configMu.RLock()
	defer m.configMu.RUnlock()
	return *m.config
}

// Close flushes pending state and tears down the components.
func (m *Manager) Close() error {
	m.cancel()
	m.engine.Close()
	<-m.done
	m.hub.Close()

	m.saver.MarkDirty()
	err := m.saver.Flush()
	m.saver.Stop()
	return errors.Wrap(err, "failed to flush document")
}

// ---- Library operations ----

// ingestConcurrency bounds parallel tag reads during batch ingestion.
const ingestConcurrency = 4

// AddFiles validates and ingests files into the library. Unreadable tags
// never block ingestion; such files get fallback metadata. Returns the
// tracks actually added (paths already present are skipped) and the rejects.
func (m *Manager) AddFiles(paths []string) ([]track.Track, []media.Invalid) {
	valid, invalid := m.reader.Validate(paths)

	var added []track.Track
	for _, t := range m.readAll(valid) {
		if t, ok := m.lib.Add(t); ok {
			added = append(added, t)
		}
	}

	if len(added) > 0 {
		m.saver.MarkDirty()
		m.publishLibraryChanged()
	}
	zlog.Info().Int("added", len(added)).Int("rejected", len(invalid)).Msg("session: files ingested")
	return added, invalid
}

// AddFilesToMood ingests files and appends the resulting tracks to a mood.
// Files already in the library are reused rather than duplicated.
func (m *Manager) AddFilesToMood(moodID string, paths []string) (int, []media.Invalid, error) {
	valid, invalid := m.reader.Validate(paths)

	var tracks []track.Track
	for _, t := range m.readAll(valid) {
		t, _ := m.lib.Add(t)
		tracks = append(tracks, t)
	}

	added, err := m.catalog.AddTracks(moodID, tracks)
	if err != nil {
		return 0, invalid, err
	}

	m.saver.MarkDirty()
	m.publishLibraryChanged()
	return added, invalid, nil
}

// readAll extracts metadata for a batch of files. Reads run concurrently;
// the result keeps the input order so library insertion order is stable.
func (m *Manager) readAll(paths []string) []track.Track {
	tracks := make([]track.Track, len(paths))
	sem := make(chan struct{}, ingestConcurrency)

	var wg sync.WaitGroup
	for i, p := range paths {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, p string) {
			defer wg.Done()
			defer func() { <-sem }()
			tracks[i] = m.reader.Track(p)
		}(i, p)
	}
	wg.Wait()
	return tracks
}

// Tracks returns the library contents.
func (m *Manager) Tracks() []track.Track {
	return m.lib.All()
}

// SearchTracks returns library tracks matching the query.
func (m *Manager) SearchTracks(query string) []track.Track {
	return m.lib.Search(query)
}

// RemoveTrack deletes a track from the library and from every mood that
// references it.
func (m *Manager) RemoveTrack(id string) error {
	if _, err := m.lib.Remove(id); err != nil {
		return err
	}
	m.catalog.RemoveLibraryTrack(id)
	m.saver.MarkDirty()
	m.publishLibraryChanged()
	return nil
}

// UpdateTrackMetadata applies a user metadata override to a track and syncs
// the copies embedded in moods.
func (m *Manager) UpdateTrackMetadata(id string, ov track.Override) (track.Track, error) {
	t, ok := m.lib.Get(id)
	if !ok {
		return track.Track{}, errors.Wrapf(library.ErrNotFound, "id=%s", id)
	}

	if ov == (track.Override{}) {
		t.Custom = nil
	} else {
		t.Custom = &ov
	}
	if err := m.lib.Update(t); err != nil {
		return track.Track{}, err
	}
	m.catalog.SyncLibraryTrack(t)
	m.saver.MarkDirty()
	m.publishLibraryChanged()
	return t, nil
}

// ---- Mood operations ----

// CreateMood adds a mood to the catalog.
func (m *Manager) CreateMood(p moods.Params) (mood.Mood, error) {
	md, err := m.catalog.Create(p)
	if err != nil {
		return mood.Mood{}, err
	}
	m.saver.MarkDirty()
	return md, nil
}

// UpdateMood modifies a mood's name or styling.
func (m *Manager) UpdateMood(id string, p moods.Params) (mood.Mood, error) {
	md, err := m.catalog.Update(id, p)
	if err != nil {
		return mood.Mood{}, err
	}
	m.saver.MarkDirty()

	// Restyle the overlay live when the playing mood is edited.
	if active, ok := m.catalog.Active(); ok && active.ID == id {
		m.hub.Publish("mood-changed", moodView(&md))
	}
	return md, nil
}

// DeleteMood removes a mood from the catalog.
func (m *Manager) DeleteMood(id string) error {
	if err := m.catalog.Delete(id); err != nil {
		return err
	}
	m.saver.MarkDirty()
	return nil
}

// Moods returns all moods.
func (m *Manager) Moods() []mood.Mood {
	return m.catalog.All()
}

// GetMood returns one mood.
func (m *Manager) GetMood(id string) (mood.Mood, error) {
	return m.catalog.Get(id)
}

// SearchMoods returns moods whose name matches the query.
func (m *Manager) SearchMoods(query string) []mood.Mood {
	return m.catalog.Search(query)
}

// AddTracksToMood appends library tracks to a mood by ID, skipping ones
// already present. Unknown track IDs are ignored.
func (m *Manager) AddTracksToMood(moodID string, trackIDs []string) (int, error) {
	var tracks []track.Track
	for _, id := range trackIDs {
		if t, ok := m.lib.Get(id); ok {
			tracks = append(tracks, t)
		}
	}

	added, err := m.catalog.AddTracks(moodID, tracks)
	if err != nil {
		return 0, err
	}
	if added > 0 {
		m.saver.MarkDirty()
	}
	return added, nil
}

// RemoveTrackFromMood removes a track from a mood's playlist, leaving the
// library untouched.
func (m *Manager) RemoveTrackFromMood(moodID, trackID string) error {
	if err := m.catalog.RemoveTrack(moodID, trackID); err != nil {
		return err
	}
	m.saver.MarkDirty()
	return nil
}

// Stats summarizes the catalog and library.
func (m *Manager) Stats() SessionStats {
	cs := m.catalog.Stats()
	return SessionStats{
		LibraryTracks: m.lib.Len(),
		Moods:         cs.MoodCount,
		TrackRefs:     cs.TrackRefs,
		TotalDuration: cs.TotalDuration,
	}
}

// SessionStats summarizes the session's data.
type SessionStats struct {
	LibraryTracks int     `json:"libraryTracks"`
	Moods         int     `json:"moods"`
	TrackRefs     int     `json:"trackRefs"`
	TotalDuration float64 `json:"totalDuration"`
}

// ---- Playback operations ----

// PlayMood selects a mood and starts playing its tracks, shuffled when the
// configuration asks for it.
func (m *Manager) PlayMood(moodID string) error {
	md, err := m.catalog.Select(moodID)
	if err != nil {
		return err
	}
	if len(md.Tracks) == 0 {
		return errors.Mark(errors.Newf("mood has no tracks: id=%s", moodID), ErrEmptyMood)
	}

	m.configMu.RLock()
	shuffle := m.config.General.ShuffleByDefault
	m.configMu.RUnlock()

	m.hub.Publish("mood-changed", moodView(&md))
	m.engine.LoadPlaylist(md.Tracks, &md, 0, shuffle)
	m.engine.Play()
	return nil
}

// Play resumes playback.
func (m *Manager) Play() { m.engine.Play() }

// Pause pauses playback.
func (m *Manager) Pause() { m.engine.Pause() }

// Toggle flips between playing and paused.
func (m *Manager) Toggle() { m.engine.Toggle() }

// Next advances to the next track.
func (m *Manager) Next() { m.engine.Next() }

// Previous restarts or goes back a track.
func (m *Manager) Previous() { m.engine.Previous() }

// Seek moves the playhead.
func (m *Manager) Seek(seconds float64) { m.engine.Seek(seconds) }

// Shuffle reshuffles the current playlist.
func (m *Manager) Shuffle() { m.engine.Shuffle() }

// SetRepeat sets the repeat mode.
func (m *Manager) SetRepeat(mode player.RepeatMode) { m.engine.SetRepeat(mode) }

// SetVolume sets the playback volume and persists it as a setting.
func (m *Manager) SetVolume(volume float64) {
	m.engine.SetVolume(volume)
}

// Status returns the current playback status.
func (m *Manager) Status() player.Status {
	return m.engine.State()
}

// Current returns the overlay's view of the playback state.
func (m *Manager) Current() map[string]any {
	st := m.engine.State()
	payload := trackChangedPayload(player.Event{Track: st.Track, Mood: st.Mood, IsPlaying: st.IsPlaying})
	payload["currentTime"] = st.CurrentTime
	payload["duration"] = st.Duration
	payload["volume"] = st.Volume
	payload["timestamp"] = time.Now().UnixMilli()
	return payload
}

// HandleHotkey executes the action bound to a triggered hotkey.
func (m *Manager) HandleHotkey(b hotkeys.Binding) error {
	switch b.Action {
	case hotkeys.ActionPlayPause:
		m.Toggle()
	case hotkeys.ActionNext:
		m.Next()
	case hotkeys.ActionPrevious:
		m.Previous()
	case hotkeys.ActionPlayMood:
		return m.PlayMood(b.MoodID)
	default:
		return errors.Newf("unknown hotkey action: action=%s", b.Action)
	}
	return nil
}

// ---- Settings ----

// Settings returns a copy of the settings blob.
func (m *Manager) Settings() map[string]any {
	m.settingsMu.RLock()
	defer m.settingsMu.RUnlock()

	out := make(map[string]any, len(m.settings))
	for k, v := range m.settings {
		out[k] = v
	}
	return out
}

// UpdateSettings merges a settings patch, re-applies it to the running
// configuration and persists it.
func (m *Manager) UpdateSettings(patch map[string]any) error {
	m.configMu.Lock()
	err := applySettings(m.config, patch)
	volume := m.config.Audio.Volume
	m.configMu.Unlock()
	if err != nil {
		return err
	}

	m.settingsMu.Lock()
	for k, v := range patch {
		m.settings[k] = v
	}
	m.settingsMu.Unlock()

	// Volume takes effect immediately; other knobs apply to the next action.
	if _, ok := patch["audio"]; ok {
		m.engine.SetVolume(volume)
	}

	m.hub.Publish("settings-changed", m.Settings())
	m.saver.MarkDirty()
	return nil
}

// applySettings decodes the persisted settings blob over the configuration.
// The config is only touched when the merged result validates.
func applySettings(cfg *config.Config, settings map[string]any) error {
	if len(settings) == 0 {
		return nil
	}

	merged := *cfg
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &merged,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to build settings decoder")
	}
	if err := dec.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := merged.Validate(); err != nil {
		return errors.Wrap(err, "settings produced invalid config")
	}

	*cfg = merged
	return nil
}

// ---- Document import/export ----

// ExportDocument snapshots the session as a portable document.
func (m *Manager) ExportDocument() *store.Document {
	return m.collectDocument()
}

// ImportDocument merges a document into the session: tracks de-duplicate by
// path, moods by ID and name. Existing data always wins a collision.
func (m *Manager) ImportDocument(doc *store.Document) (tracksAdded, moodsAdded int) {
	for _, t := range doc.Library {
		if _, ok := m.lib.Add(t); ok {
			tracksAdded++
		}
	}
	moodsAdded = m.catalog.Import(doc.Moods)

	m.saver.MarkDirty()
	m.publishLibraryChanged()
	zlog.Info().Int("tracks", tracksAdded).Int("moods", moodsAdded).Msg("session: document imported")
	return tracksAdded, moodsAdded
}

// ---- Internals ----

// collectDocument snapshots the session for persistence.
func (m *Manager) collectDocument() *store.Document {
	return &store.Document{
		Moods:    m.catalog.All(),
		Library:  m.lib.All(),
		Settings: m.Settings(),
	}
}

// pumpEvents forwards engine events to the broadcast hub until the engine
// closes its channel.
func (m *Manager) pumpEvents() {
	defer close(m.done)

	for ev := range m.engine.Events() {
		switch ev.Type {
		case player.EventTrackChanged:
			m.hub.Publish("track-changed", trackChangedPayload(ev))
		case player.EventPlaybackChanged:
			m.hub.Publish("playback-changed", map[string]any{"isPlaying": ev.IsPlaying})
		case player.EventTimeUpdate:
			m.hub.Publish("time-update", map[string]any{
				"currentTime": ev.CurrentTime,
				"duration":    ev.Duration,
				"isPlaying":   ev.IsPlaying,
			})
		case player.EventVolumeChanged:
			m.persistVolume(ev.Volume)
		case player.EventTrackError:
			var path string
			if ev.Track != nil {
				path = ev.Track.Path
			}
			m.hub.Publish("track-error", map[string]any{
				"path":    path,
				"message": ev.Err.Error(),
			})
		}
	}
}

// persistVolume folds a volume change into the settings blob.
func (m *Manager) persistVolume(volume float64) {
	m.settingsMu.Lock()
	audio, _ := m.settings["audio"].(map[string]any)
	if audio == nil {
		audio = map[string]any{}
	}
	audio["volume"] = volume
	m.settings["audio"] = audio
	m.settingsMu.Unlock()

	m.configMu.Lock()
	m.config.Audio.Volume = volume
	m.configMu.Unlock()
	m.saver.MarkDirty()
}

// publishLibraryChanged tells overlays the library contents moved.
func (m *Manager) publishLibraryChanged() {
	m.hub.Publish("library-changed", map[string]any{"trackCount": m.lib.Len()})
}

// snapshotMessages builds the catch-up frames for a new subscriber.
func (m *Manager) snapshotMessages() []broadcast.Message {
	st := m.engine.State()
	if st.Track == nil {
		return nil
	}
	return []broadcast.Message{{Type: "track-changed", Data: trackChangedPayload(player.Event{
		Track:     st.Track,
		Mood:      st.Mood,
		IsPlaying: st.IsPlaying,
	})}}
}

// trackChangedPayload builds the wire payload for track-changed frames.
func trackChangedPayload(ev player.Event) map[string]any {
	return map[string]any{
		"track":     trackView(ev.Track),
		"mood":      moodView(ev.Mood),
		"isPlaying": ev.IsPlaying,
	}
}

// trackView renders a track with overrides and fallbacks applied.
func trackView(t *track.Track) map[string]any {
	if t == nil {
		return nil
	}
	return map[string]any{
		"id":       t.ID,
		"title":    t.EffectiveTitle(),
		"artist":   t.EffectiveArtist(),
		"album":    t.EffectiveAlbum(),
		"duration": t.Duration,
	}
}

// moodView renders a mood together with its computed effect parameters so
// overlays never re-derive animation timing.
func moodView(md *mood.Mood) map[string]any {
	if md == nil {
		return nil
	}
	return map[string]any{
		"id":               md.ID,
		"name":             md.Name,
		"color":            md.Color,
		"colorSecondary":   md.ColorSecondary,
		"effect":           md.Effect,
		"intensity":        md.Intensity,
		"effectParameters": md.Parameters(),
	}
}
