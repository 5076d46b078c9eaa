// Package httpapi serves the overlay event stream and the REST control
// surface over HTTP.
package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/moodbox/internal/app/session"
)

// ErrNetwork is returned when no listening port could be bound.
var ErrNetwork = errors.New("network error")

// maxPortAttempts bounds the busy-port self-heal before giving up.
const maxPortAttempts = 10

// Server is the HTTP front end.
type Server struct {
	session *session.Manager
	router  *mux.Router
	httpSrv *http.Server

	host string
	port int // Actual bound port after self-heal; 0 until Start
}

// NewServer creates the HTTP server for a session.
func NewServer(sess *session.Manager) *Server {
	s := &Server{
		session: sess,
		router:  mux.NewRouter(),
		host:    sess.Config().Server.Host,
	}
	s.routes()
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the bound port. Valid after Start.
func (s *Server) Port() int {
	return s.port
}

// Start binds a listener and serves until Shutdown. When the configured port
// is taken, the next ports are tried in order; after maxPortAttempts busy
// ports the startup fails with ErrNetwork.
func (s *Server) Start() error {
	basePort := s.session.Config().Broadcast.Port

	var ln net.Listener
	for attempt := 0; attempt < maxPortAttempts; attempt++ {
		port := basePort + attempt
		addr := fmt.Sprintf("%s:%d", s.host, port)

		var err error
		ln, err = net.Listen("tcp", addr)
		if err == nil {
			s.port = port
			break
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return errors.Mark(errors.Wrapf(err, "failed to listen: addr=%s", addr), ErrNetwork)
		}
		zlog.Warn().Int("port", port).Int("next", port+1).Msg("httpapi: port in use, trying next")
	}
	if ln == nil {
		return errors.Mark(
			errors.Newf("no free port: base=%d attempts=%d", basePort, maxPortAttempts), ErrNetwork)
	}

	s.httpSrv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	zlog.Info().Str("host", s.host).Int("port", s.port).Msg("httpapi: server listening")
	if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server failed")
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return errors.Wrap(s.httpSrv.Shutdown(ctx), "failed to shut down http server")
}

func (s *Server) routes() {
	s.router.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/current", s.handleCurrent).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	api.HandleFunc("/tracks", s.handleListTracks).Methods(http.MethodGet)
	api.HandleFunc("/tracks", s.handleAddTracks).Methods(http.MethodPost)
	api.HandleFunc("/tracks/{id}", s.handleUpdateTrack).Methods(http.MethodPatch)
	api.HandleFunc("/tracks/{id}", s.handleRemoveTrack).Methods(http.MethodDelete)

	api.HandleFunc("/moods", s.handleListMoods).Methods(http.MethodGet)
	api.HandleFunc("/moods", s.handleCreateMood).Methods(http.MethodPost)
	api.HandleFunc("/moods/{id}", s.handleGetMood).Methods(http.MethodGet)
	api.HandleFunc("/moods/{id}", s.handleUpdateMood).Methods(http.MethodPatch)
	api.HandleFunc("/moods/{id}", s.handleDeleteMood).Methods(http.MethodDelete)
	api.HandleFunc("/moods/{id}/tracks", s.handleAddMoodTracks).Methods(http.MethodPost)
	api.HandleFunc("/moods/{id}/tracks/{trackId}", s.handleRemoveMoodTrack).Methods(http.MethodDelete)
	api.HandleFunc("/moods/{id}/play", s.handlePlayMood).Methods(http.MethodPost)

	api.HandleFunc("/playback/{action:play|pause|toggle|next|previous|shuffle}", s.handlePlaybackAction).Methods(http.MethodPost)
	api.HandleFunc("/playback/seek", s.handleSeek).Methods(http.MethodPost)
	api.HandleFunc("/playback/volume", s.handleVolume).Methods(http.MethodPost)
	api.HandleFunc("/playback/repeat", s.handleRepeat).Methods(http.MethodPost)

	api.HandleFunc("/hotkeys", s.handleListHotkeys).Methods(http.MethodGet)
	api.HandleFunc("/hotkeys/trigger", s.handleTriggerHotkey).Methods(http.MethodPost)

	api.HandleFunc("/settings", s.handleGetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handleUpdateSettings).Methods(http.MethodPut)

	api.HandleFunc("/export", s.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/import", s.handleImport).Methods(http.MethodPost)

	// Overlay assets, when configured, are served from the root.
	if dir := s.session.Config().Broadcast.OverlayDir; dir != "" {
		s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(dir)))
	}
}
