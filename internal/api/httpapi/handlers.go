package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/moodbox/internal/app/hotkeys"
	"github.com/osa030/moodbox/internal/app/moods"
	"github.com/osa030/moodbox/internal/app/player"
	"github.com/osa030/moodbox/internal/app/session"
	"github.com/osa030/moodbox/internal/domain/library"
	"github.com/osa030/moodbox/internal/domain/track"
	"github.com/osa030/moodbox/internal/infra/store"
)

// handleEvents streams hub messages as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.session.Hub().Subscribe()
	defer s.session.Hub().Unsubscribe(sub.ID)

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-sub.C:
			if !ok {
				return
			}
			frame, err := json.Marshal(msg)
			if err != nil {
				zlog.Error().Err(err).Str("type", msg.Type).Msg("httpapi: failed to encode event")
				continue
			}
			if _, err := w.Write([]byte("data: " + string(frame) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"timestamp":   time.Now().UnixMilli(),
		"connections": s.session.Hub().SubscriberCount(),
	})
}

func (s *Server) handleCurrent(w http.ResponseWriter, _ *http.Request) {
	payload := s.session.Current()
	payload["config"] = map[string]any{"broadcast": s.session.Config().Broadcast}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Stats())
}

// ---- Tracks ----

func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	if q := r.URL.Query().Get("q"); q != "" {
		writeJSON(w, http.StatusOK, nonNil(s.session.SearchTracks(q)))
		return
	}
	writeJSON(w, http.StatusOK, nonNil(s.session.Tracks()))
}

func (s *Server) handleAddTracks(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Paths  []string `json:"paths"`
		MoodID string   `json:"moodId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if req.MoodID != "" {
		added, invalid, err := s.session.AddFilesToMood(req.MoodID, req.Paths)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"added": added, "invalid": nonNil(invalid)})
		return
	}

	added, invalid := s.session.AddFiles(req.Paths)
	writeJSON(w, http.StatusOK, map[string]any{"added": nonNil(added), "invalid": nonNil(invalid)})
}

func (s *Server) handleUpdateTrack(w http.ResponseWriter, r *http.Request) {
	var ov track.Override
	if !decodeBody(w, r, &ov) {
		return
	}

	t, err := s.session.UpdateTrackMetadata(mux.Vars(r)["id"], ov)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleRemoveTrack(w http.ResponseWriter, r *http.Request) {
	if err := s.session.RemoveTrack(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- Moods ----

func (s *Server) handleListMoods(w http.ResponseWriter, r *http.Request) {
	if q := r.URL.Query().Get("q"); q != "" {
		writeJSON(w, http.StatusOK, nonNil(s.session.SearchMoods(q)))
		return
	}
	writeJSON(w, http.StatusOK, nonNil(s.session.Moods()))
}

func (s *Server) handleCreateMood(w http.ResponseWriter, r *http.Request) {
	var p moods.Params
	if !decodeBody(w, r, &p) {
		return
	}

	md, err := s.session.CreateMood(p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, md)
}

func (s *Server) handleGetMood(w http.ResponseWriter, r *http.Request) {
	md, err := s.session.GetMood(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, md)
}

func (s *Server) handleUpdateMood(w http.ResponseWriter, r *http.Request) {
	var p moods.Params
	if !decodeBody(w, r, &p) {
		return
	}

	md, err := s.session.UpdateMood(mux.Vars(r)["id"], p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, md)
}

func (s *Server) handleDeleteMood(w http.ResponseWriter, r *http.Request) {
	if err := s.session.DeleteMood(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddMoodTracks(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrackIDs []string `json:"trackIds"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	added, err := s.session.AddTracksToMood(mux.Vars(r)["id"], req.TrackIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"added": added})
}

func (s *Server) handleRemoveMoodTrack(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.session.RemoveTrackFromMood(vars["id"], vars["trackId"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlayMood(w http.ResponseWriter, r *http.Request) {
	if err := s.session.PlayMood(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusView(s.session.Status()))
}

// ---- Playback ----

func (s *Server) handlePlaybackAction(w http.ResponseWriter, r *http.Request) {
	switch mux.Vars(r)["action"] {
	case "play":
		s.session.Play()
	case "pause":
		s.session.Pause()
	case "toggle":
		s.session.Toggle()
	case "next":
		s.session.Next()
	case "previous":
		s.session.Previous()
	case "shuffle":
		s.session.Shuffle()
	}
	writeJSON(w, http.StatusOK, statusView(s.session.Status()))
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Position float64 `json:"position"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.session.Seek(req.Position)
	writeJSON(w, http.StatusOK, statusView(s.session.Status()))
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Volume float64 `json:"volume"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.session.SetVolume(req.Volume)
	writeJSON(w, http.StatusOK, statusView(s.session.Status()))
}

func (s *Server) handleRepeat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode player.RepeatMode `json:"mode"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !req.Mode.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown repeat mode"})
		return
	}
	s.session.SetRepeat(req.Mode)
	writeJSON(w, http.StatusOK, statusView(s.session.Status()))
}

// ---- Hotkeys ----

// handleListHotkeys returns the accelerator bindings derived from the
// configuration, for desktop shells to register.
func (s *Server) handleListHotkeys(w http.ResponseWriter, _ *http.Request) {
	bindings := hotkeys.Bindings(s.session.Config().Hotkeys)
	out := make([]map[string]any, 0, len(bindings))
	for _, b := range bindings {
		entry := map[string]any{
			"accelerator": b.Accelerator,
			"action":      b.Action,
		}
		if b.MoodID != "" {
			entry["moodId"] = b.MoodID
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleTriggerHotkey executes a hotkey action on behalf of a shell that
// captured the key press.
func (s *Server) handleTriggerHotkey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action hotkeys.Action `json:"action"`
		MoodID string         `json:"moodId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.session.HandleHotkey(hotkeys.Binding{Action: req.Action, MoodID: req.MoodID})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusView(s.session.Status()))
}

// ---- Settings and documents ----

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Settings())
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if !decodeBody(w, r, &patch) {
		return
	}
	if err := s.session.UpdateSettings(patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.session.Settings())
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.ExportDocument())
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var doc store.Document
	if !decodeBody(w, r, &doc) {
		return
	}
	tracksAdded, moodsAdded := s.session.ImportDocument(&doc)
	writeJSON(w, http.StatusOK, map[string]any{
		"tracksAdded": tracksAdded,
		"moodsAdded":  moodsAdded,
	})
}

// ---- Helpers ----

// statusView flattens the playback status for JSON responses.
func statusView(st player.Status) map[string]any {
	var moodID string
	if st.Mood != nil {
		moodID = st.Mood.ID
	}
	return map[string]any{
		"track":       st.Track,
		"moodId":      moodID,
		"isPlaying":   st.IsPlaying,
		"currentTime": st.CurrentTime,
		"duration":    st.Duration,
		"volume":      st.Volume,
		"repeat":      st.Repeat,
		"shuffled":    st.Shuffled,
		"index":       st.Index,
		"playlistLen": st.PlaylistLen,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Error().Err(err).Msg("httpapi: failed to encode response")
	}
}

// writeError maps domain errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, moods.ErrNotFound), errors.Is(err, library.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, moods.ErrDuplicateName),
		errors.Is(err, moods.ErrEmptyName),
		errors.Is(err, moods.ErrInvalidColor),
		errors.Is(err, moods.ErrInvalidEffect),
		errors.Is(err, session.ErrEmptyMood):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		zlog.Error().Err(err).Msg("httpapi: request failed")
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

// nonNil keeps empty list responses as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
