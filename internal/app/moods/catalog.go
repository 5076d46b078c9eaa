// Package moods provides the mood catalog: named playlists with visual
// styling, one of which can be active at a time.
package moods

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/moodbox/internal/domain/mood"
	"github.com/osa030/moodbox/internal/domain/track"
)

// Errors
var (
	ErrNotFound      = errors.New("mood not found")
	ErrEmptyName     = errors.New("mood name is empty")
	ErrDuplicateName = errors.New("mood name already exists")
	ErrInvalidColor  = errors.New("invalid color")
	ErrInvalidEffect = errors.New("invalid effect")
)

// Params holds the user-settable mood fields. Zero values on Update mean
// "leave unchanged" except Name, which is required on Create.
type Params struct {
	Name           string
	Color          string
	ColorSecondary string
	Effect         mood.Effect
	Intensity      int
}

// Stats summarizes the catalog.
type Stats struct {
	MoodCount     int         `json:"moodCount"`
	TrackRefs     int         `json:"trackRefs"`
	TotalDuration float64     `json:"totalDuration"` // seconds, across all moods
	AvgTracks     float64     `json:"avgTracks"`
	PopularEffect mood.Effect `json:"popularEffect,omitempty"`
}

// Catalog holds the mood collection. Names are unique case-insensitively.
type Catalog struct {
	mu     sync.RWMutex
	byID   map[string]*mood.Mood
	order  []string
	active string
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byID: map[string]*mood.Mood{}}
}

// Create adds a new mood. The name must be non-empty and unique
// (case-insensitive). Missing styling falls back to defaults.
func (c *Catalog) Create(p Params) (mood.Mood, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return mood.Mood{}, ErrEmptyName
	}
	if err := validateStyle(p); err != nil {
		return mood.Mood{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.findByNameLocked(name) != nil {
		return mood.Mood{}, errors.Mark(errors.Newf("mood name already exists: name=%s", name), ErrDuplicateName)
	}

	now := time.Now()
	m := &mood.Mood{
		ID:             uuid.New().String(),
		Name:           name,
		Color:          p.Color,
		ColorSecondary: p.ColorSecondary,
		Effect:         p.Effect,
		Intensity:      p.Intensity,
		Tracks:         []track.Track{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if m.Color == "" {
		m.Color = "#847cf7"
	}
	if m.Effect == "" {
		m.Effect = mood.EffectNone
	}
	if m.Intensity == 0 {
		m.Intensity = 5
	}

	c.byID[m.ID] = m
	c.order = append(c.order, m.ID)

	zlog.Info().Str("id", m.ID).Str("name", m.Name).Msg("moods: mood created")
	return *m, nil
}

// Update modifies a mood's name or styling. An empty field keeps the
// current value; a renamed mood must not collide with another mood's name.
func (c *Catalog) Update(id string, p Params) (mood.Mood, error) {
	if err := validateStyle(p); err != nil {
		return mood.Mood{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.byID[id]
	if !ok {
		return mood.Mood{}, errors.Mark(errors.Newf("mood not found: id=%s", id), ErrNotFound)
	}

	if name := strings.TrimSpace(p.Name); name != "" {
		if other := c.findByNameLocked(name); other != nil && other.ID != id {
			return mood.Mood{}, errors.Mark(errors.Newf("mood name already exists: name=%s", name), ErrDuplicateName)
		}
		m.Name = name
	}
	if p.Color != "" {
		m.Color = p.Color
	}
	if p.ColorSecondary != "" {
		m.ColorSecondary = p.ColorSecondary
	}
	if p.Effect != "" {
		m.Effect = p.Effect
	}
	if p.Intensity != 0 {
		m.Intensity = p.Intensity
	}
	m.UpdatedAt = time.Now()

	return *m, nil
}

// Delete removes a mood. Deleting the active mood clears the selection.
func (c *Catalog) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.byID[id]; !ok {
		return errors.Mark(errors.Newf("mood not found: id=%s", id), ErrNotFound)
	}

	delete(c.byID, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	if c.active == id {
		c.active = ""
	}

	zlog.Info().Str("id", id).Msg("moods: mood deleted")
	return nil
}

// Get returns a copy of the mood.
func (c *Catalog) Get(id string) (mood.Mood, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.byID[id]
	if !ok {
		return mood.Mood{}, errors.Mark(errors.Newf("mood not found: id=%s", id), ErrNotFound)
	}
	return *m, nil
}

// All returns copies of all moods in creation order.
func (c *Catalog) All() []mood.Mood {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]mood.Mood, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.byID[id])
	}
	return out
}

// Len returns the number of moods.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

// Select marks a mood as active and returns it.
func (c *Catalog) Select(id string) (mood.Mood, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.byID[id]
	if !ok {
		return mood.Mood{}, errors.Mark(errors.Newf("mood not found: id=%s", id), ErrNotFound)
	}
	c.active = id
	return *m, nil
}

// ClearActive drops the active selection.
func (c *Catalog) ClearActive() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = ""
}

// Active returns the active mood, if any.
func (c *Catalog) Active() (mood.Mood, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.active == "" {
		return mood.Mood{}, false
	}
	m, ok := c.byID[c.active]
	if !ok {
		return mood.Mood{}, false
	}
	return *m, true
}

// AddTracks appends tracks to a mood, skipping ones already present.
// Returns the number actually added.
func (c *Catalog) AddTracks(id string, tracks []track.Track) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.byID[id]
	if !ok {
		return 0, errors.Mark(errors.Newf("mood not found: id=%s", id), ErrNotFound)
	}

	added := 0
	for _, t := range tracks {
		if m.HasTrack(t.ID) {
			continue
		}
		m.Tracks = append(m.Tracks, t)
		added++
	}
	if added > 0 {
		m.UpdatedAt = time.Now()
	}
	return added, nil
}

// RemoveTrack removes a track from a mood. Removing a track that is not in
// the mood is a no-op.
func (c *Catalog) RemoveTrack(id, trackID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.byID[id]
	if !ok {
		return errors.Mark(errors.Newf("mood not found: id=%s", id), ErrNotFound)
	}

	for i, t := range m.Tracks {
		if t.ID == trackID {
			m.Tracks = append(m.Tracks[:i], m.Tracks[i+1:]...)
			m.UpdatedAt = time.Now()
			break
		}
	}
	return nil
}

// RemoveLibraryTrack removes a deleted library track from every mood that
// references it. Returns the number of moods touched.
func (c *Catalog) RemoveLibraryTrack(trackID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	touched := 0
	for _, m := range c.byID {
		for i, t := range m.Tracks {
			if t.ID == trackID {
				m.Tracks = append(m.Tracks[:i], m.Tracks[i+1:]...)
				m.UpdatedAt = time.Now()
				touched++
				break
			}
		}
	}
	if touched > 0 {
		zlog.Debug().Str("track_id", trackID).Int("moods", touched).Msg("moods: cascaded track removal")
	}
	return touched
}

// SyncLibraryTrack refreshes the embedded copy of an edited library track
// in every mood that references it.
func (c *Catalog) SyncLibraryTrack(t track.Track) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	touched := 0
	for _, m := range c.byID {
		for i := range m.Tracks {
			if m.Tracks[i].ID == t.ID {
				m.Tracks[i] = t
				touched++
				break
			}
		}
	}
	return touched
}

// Search returns moods whose name contains the query, case-insensitively,
// sorted by name.
func (c *Catalog) Search(query string) []mood.Mood {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	var out []mood.Mood
	for _, id := range c.order {
		m := c.byID[id]
		if strings.Contains(strings.ToLower(m.Name), q) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// Stats summarizes the catalog.
func (c *Catalog) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{MoodCount: len(c.byID)}
	effects := map[mood.Effect]int{}
	for _, m := range c.byID {
		s.TrackRefs += len(m.Tracks)
		s.TotalDuration += m.TotalDuration()
		effects[m.Effect]++
	}
	if s.MoodCount > 0 {
		s.AvgTracks = float64(s.TrackRefs) / float64(s.MoodCount)
	}
	// Ties resolve to the lexicographically smallest effect.
	for e, n := range effects {
		if n > effects[s.PopularEffect] || (n == effects[s.PopularEffect] && (s.PopularEffect == "" || e < s.PopularEffect)) {
			s.PopularEffect = e
		}
	}
	return s
}

// Import adds moods whose ID and name are both free, preserving their IDs.
// Returns the number added.
func (c *Catalog) Import(incoming []mood.Mood) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for i := range incoming {
		m := incoming[i]
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		if strings.TrimSpace(m.Name) == "" {
			continue
		}
		if _, dup := c.byID[m.ID]; dup || c.findByNameLocked(m.Name) != nil {
			zlog.Debug().Str("name", m.Name).Msg("moods: skipping colliding mood on import")
			continue
		}
		if m.Tracks == nil {
			m.Tracks = []track.Track{}
		}
		c.byID[m.ID] = &m
		c.order = append(c.order, m.ID)
		added++
	}
	return added
}

// SetAll replaces the catalog contents, used when loading a persisted
// document. Duplicate IDs or names keep the first occurrence.
func (c *Catalog) SetAll(moods []mood.Mood) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byID = map[string]*mood.Mood{}
	c.order = c.order[:0]
	c.active = ""

	for i := range moods {
		m := moods[i]
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		if _, dup := c.byID[m.ID]; dup || c.findByNameLocked(m.Name) != nil {
			zlog.Warn().Str("id", m.ID).Str("name", m.Name).Msg("moods: dropping duplicate mood from document")
			continue
		}
		if m.Tracks == nil {
			m.Tracks = []track.Track{}
		}
		c.byID[m.ID] = &m
		c.order = append(c.order, m.ID)
	}
}

// findByNameLocked returns the mood with the given name, case-insensitively.
func (c *Catalog) findByNameLocked(name string) *mood.Mood {
	for _, m := range c.byID {
		if strings.EqualFold(m.Name, name) {
			return m
		}
	}
	return nil
}

// validateStyle checks the optional styling fields of p.
func validateStyle(p Params) error {
	if p.Color != "" && !mood.ValidColor(p.Color) {
		return errors.Mark(errors.Newf("invalid color: color=%s", p.Color), ErrInvalidColor)
	}
	if p.ColorSecondary != "" && !mood.ValidColor(p.ColorSecondary) {
		return errors.Mark(errors.Newf("invalid color: color=%s", p.ColorSecondary), ErrInvalidColor)
	}
	if p.Effect != "" && !p.Effect.Valid() {
		return errors.Mark(errors.Newf("invalid effect: effect=%s", p.Effect), ErrInvalidEffect)
	}
	if p.Intensity != 0 && (p.Intensity < mood.MinIntensity || p.Intensity > mood.MaxIntensity) {
		return errors.Newf("intensity out of range: intensity=%d", p.Intensity)
	}
	return nil
}
