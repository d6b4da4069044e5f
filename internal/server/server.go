// Package server serves the run history over a small JSON API with an
// embedded report page.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ldi/backvet/embed/webassets"
	"github.com/ldi/backvet/internal/store"
)

type Server struct {
	store  *store.Store
	server *http.Server
}

func NewServer(st *store.Store) *Server {
	return &Server{store: st}
}

func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	return s.server.ListenAndServe()
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/runs/latest", s.handleLatestRun)
	mux.HandleFunc("/api/items", s.handleItems)

	// Static files
	mux.Handle("/", http.FileServer(http.FS(webassets.Assets)))

	return mux
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context(), 0)
	s.respond(w, runs, err)
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.LatestRun(r.Context())
	if err == nil && run == nil {
		http.Error(w, "no runs recorded", http.StatusNotFound)
		return
	}
	s.respond(w, run, err)
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		run, err := s.store.LatestRun(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if run == nil {
			http.Error(w, "no runs recorded", http.StatusNotFound)
			return
		}
		runID = run.ID
	}

	if r.URL.Query().Get("flagged") == "1" {
		items, err := s.store.ListViolatingItems(r.Context(), runID)
		s.respond(w, items, err)
		return
	}

	items, err := s.store.ListRunItems(r.Context(), runID)
	s.respond(w, items, err)
}

func (s *Server) respond(w http.ResponseWriter, data any, err error) {
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
