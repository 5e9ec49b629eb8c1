// Package server exposes the engine over HTTP for browser front ends.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"go-acordeon/catalog"
	"go-acordeon/debug"
	"go-acordeon/sequencer"
	"go-acordeon/song"
)

// Server serves the HTTP API
type Server struct {
	ctx     context.Context
	engine  *sequencer.Manager
	store   *song.Store
	origins []string
}

// New creates a server. Songs started through the API run until ctx is done.
func New(ctx context.Context, engine *sequencer.Manager, store *song.Store, allowedOrigins []string) *Server {
	return &Server{ctx: ctx, engine: engine, store: store, origins: allowedOrigins}
}

// Handler returns the routed, CORS-wrapped handler
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", s.handleState).Methods("GET")
	api.HandleFunc("/catalog", s.handleCatalog).Methods("GET")
	api.HandleFunc("/songs", s.handleSongs).Methods("GET")
	api.HandleFunc("/songs/{id}/play", s.handlePlay).Methods("POST")
	api.HandleFunc("/stop", s.handleStop).Methods("POST")
	api.HandleFunc("/pause", s.handlePause).Methods("POST")
	api.HandleFunc("/resume", s.handleResume).Methods("POST")
	api.HandleFunc("/keys/{key}/{action:press|release}", s.handleKey).Methods("POST")
	api.HandleFunc("/bellows/{direction}", s.handleBellows).Methods("POST")

	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST"},
	})
	return c.Handler(router)
}

// ListenAndServe runs until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	errLog := debug.Logger().WriterLevel(logrus.WarnLevel)
	defer errLog.Close()
	srv := &http.Server{
		Addr:     addr,
		Handler:  s.Handler(),
		ErrorLog: log.New(errLog, "", 0),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	debug.Log("http", "listening on %s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debug.Log("http", "encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Catalog().Buttons())
}

func (s *Server) handleSongs(w http.ResponseWriter, r *http.Request) {
	infos, err := s.store.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	sng, err := s.store.Load(id)
	if err != nil {
		writeError(w, loadStatus(err), err)
		return
	}
	if err := s.engine.LoadSong(sng); err != nil {
		writeError(w, loadStatus(err), err)
		return
	}
	if err := s.engine.Play(s.ctx); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func loadStatus(err error) int {
	var ce *song.ContentError
	switch {
	case errors.Is(err, song.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &ce):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.engine.Stop()
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.engine.Pause()
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.engine.Resume()
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleKey(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	key := vars["key"]

	if vars["action"] == "release" {
		id, ok := s.engine.ReleaseKey(key)
		writeJSON(w, http.StatusOK, map[string]any{"noteId": id, "released": ok})
		return
	}
	writeJSON(w, http.StatusOK, s.engine.PressKey(key))
}

func (s *Server) handleBellows(w http.ResponseWriter, r *http.Request) {
	var dir catalog.Direction
	switch d := mux.Vars(r)["direction"]; d {
	case "toggle":
		dir = s.engine.ToggleBellows()
		writeJSON(w, http.StatusOK, map[string]any{"direction": dir, "changed": true})
		return
	case "push":
		dir = catalog.Push
	case "pull":
		dir = catalog.Pull
	default:
		dir = catalog.Direction(d)
	}
	if !dir.Valid() {
		writeError(w, http.StatusBadRequest, errors.Errorf("unknown bellows direction %q", dir))
		return
	}
	changed := s.engine.Flip(dir)
	writeJSON(w, http.StatusOK, map[string]any{"direction": dir, "changed": changed})
}
