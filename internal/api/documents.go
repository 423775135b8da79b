package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ravenlake/draftforge/internal/models"
)

// ListDocuments handles GET /api/projects/{id}/documents, newest first.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	if _, err := h.store.GetProject(projectID); err != nil {
		writeError(w, err)
		return
	}
	docs, err := h.store.ListByProject(projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"total":     len(docs),
	})
}

// GetDocument handles GET /api/projects/{id}/documents/{docID}.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.store.GetDocument(chi.URLParam(r, "id"), chi.URLParam(r, "docID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// UpdateDocument handles PUT /api/projects/{id}/documents/{docID}, the
// in-place maintenance escape hatch. The primary path for content changes is
// CreateVersion (POST .../versions); this endpoint overwrites. An optional
// If-Match header carrying the content checksum enables optimistic
// concurrency.
func (h *Handler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req ContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	doc, err := h.store.UpdateDocumentContent(chi.URLParam(r, "id"), chi.URLParam(r, "docID"), req.Content, ifMatch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// CreateVersion handles POST /api/projects/{id}/documents/{docID}/versions,
// branching a new version from the named parent at max(version)+1.
func (h *Handler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req ContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	doc, err := h.store.CreateVersion(chi.URLParam(r, "id"), chi.URLParam(r, "docID"), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}
