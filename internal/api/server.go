// Package api exposes the agent over a local HTTP API. The ai-action
// endpoint is the only path into the editor service.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/docfold/docfold-agent/internal/docstore"
	"github.com/docfold/docfold-agent/internal/editor"
)

// Server is the HTTP API server for docfold-agent.
type Server struct {
	router chi.Router
	store  *docstore.Store
	editor *editor.Service
	log    *slog.Logger
}

func NewServer(store *docstore.Store, ed *editor.Service, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{store: store, editor: ed, log: log}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Post("/api/documents", s.handleCreateDocument)
	r.Get("/api/documents", s.handleListDocuments)
	r.Get("/api/documents/{docID}", s.handleGetDocument)
	r.Post("/api/documents/{docID}/sections/{sectionKey}/ai-action", s.handleSectionAIAction)
	r.Get("/api/sessions", s.handleListSessions)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
