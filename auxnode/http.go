//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package auxnode

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler returns the HTTP status handler of the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	s.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers the status routes to the router.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", s.healthz)
	r.Get("/tasks", s.listTasks)
	r.Get("/tasks/*", s.getTask)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"node":   s.self.Name,
	})
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.Tasks()
	if tasks == nil {
		tasks = []*Status{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil {
		http.Error(w, "invalid task identity", http.StatusBadRequest)
		return
	}
	status, ok := s.Task(id)
	if !ok {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
