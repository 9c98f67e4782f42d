package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/docfold/docfold-agent/internal/docmodel"
	"github.com/docfold/docfold-agent/internal/docstore"
	"github.com/docfold/docfold-agent/internal/editor"
	"github.com/docfold/docfold-agent/internal/plan"
)

const maxBodyBytes = 4 << 20

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var spec docmodel.DocumentSpec
	if err := decodeBody(w, r, &spec); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	doc := docmodel.Build(spec)
	if err := s.store.SaveDocument(r.Context(), doc); err != nil {
		s.log.Error("save document failed", "doc_id", doc.ID, "err", err)
		jsonError(w, "failed to save document", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments(r.Context())
	if err != nil {
		s.log.Error("list documents failed", "err", err)
		jsonError(w, "failed to list documents", http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []docstore.DocumentMeta{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	doc, err := s.store.GetDocument(r.Context(), docID)
	if err != nil {
		s.log.Error("get document failed", "doc_id", docID, "err", err)
		jsonError(w, "failed to load document", http.StatusInternalServerError)
		return
	}
	if doc == nil {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleSectionAIAction is the single route into the edit pipeline. Path
// parameters win over any ids present in the body.
func (s *Server) handleSectionAIAction(w http.ResponseWriter, r *http.Request) {
	var req editor.ActionRequest
	if err := decodeBody(w, r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.DocumentID = chi.URLParam(r, "docID")
	req.SectionKey = chi.URLParam(r, "sectionKey")

	res, err := s.editor.RunSectionAIAction(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, editor.ErrEditInFlight):
			status = http.StatusConflict
		case errors.Is(err, editor.ErrDocumentNotFound), errors.Is(err, docmodel.ErrSectionNotFound):
			status = http.StatusNotFound
		case errors.Is(err, plan.ErrNoCapabilities):
			status = http.StatusBadRequest
		}
		// The result still carries the session id and failure detail.
		writeJSON(w, status, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	docID := r.URL.Query().Get("doc_id")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			jsonError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	sessions, err := s.store.ListEditSessions(r.Context(), docID, limit)
	if err != nil {
		s.log.Error("list sessions failed", "err", err)
		jsonError(w, "failed to list sessions", http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []docstore.EditSession{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}
