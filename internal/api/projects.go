package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ravenlake/draftforge/internal/models"
	"github.com/ravenlake/draftforge/internal/notify"
	"github.com/ravenlake/draftforge/internal/pipeline"
	"github.com/ravenlake/draftforge/internal/store"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	store      store.Store
	dispatcher *pipeline.Dispatcher
	ingest     *pipeline.Ingest
	notifier   *notify.Service
}

// NewHandler creates a new Handler.
func NewHandler(st store.Store, dispatcher *pipeline.Dispatcher, ingest *pipeline.Ingest, notifier *notify.Service) *Handler {
	return &Handler{store: st, dispatcher: dispatcher, ingest: ingest, notifier: notifier}
}

// pageParams reads ?page and ?limit, 1-based page, defaulting to page 1 /
// limit 20.
func pageParams(r *http.Request) (page, limit, offset int) {
	q := r.URL.Query()
	page, _ = strconv.Atoi(q.Get("page"))
	limit, _ = strconv.Atoi(q.Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return page, limit, (page - 1) * limit
}

// CreateProject handles POST /api/projects. The project and its RAW_INPUT v1
// document are created in one transaction.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	raw, err := json.Marshal(models.RawInputContent{Input: req.Input, InputType: req.InputType})
	if err != nil {
		writeError(w, err)
		return
	}
	content, err := models.ParseContent(models.DocRawInput, raw)
	if err != nil {
		writeError(w, err)
		return
	}

	project, doc, err := h.store.CreateProject(models.Project{
		Name:        req.Name,
		Description: req.Description,
		Input:       req.Input,
		InputType:   req.InputType,
	}, content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"project":  project,
		"document": doc,
	})
}

// ListProjects handles GET /api/projects?page&limit&status.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := pageParams(r)

	status := models.ProjectStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeJSON(w, http.StatusBadRequest, errorBody(fmt.Sprintf("unknown status %q", status)))
		return
	}

	projects, total, err := h.store.ListProjects(limit, offset, status)
	if err != nil {
		writeError(w, err)
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	writeJSON(w, http.StatusOK, ProjectListResponse{
		Projects: projects,
		Total:    total,
		Page:     page,
		Limit:    limit,
	})
}

// GetProject handles GET /api/projects/{id}.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.store.GetProject(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// DispatchStage handles POST /api/projects/{id}/dispatch. On synchronous
// acceptance it returns 202; the stage output arrives later through the
// completion endpoint, so there is nothing else to return here.
func (h *Handler) DispatchStage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	projectID := chi.URLParam(r, "id")

	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	stage := models.DocumentType(req.Stage)
	if err := h.dispatcher.Dispatch(r.Context(), projectID, stage, req.Content); err != nil {
		slog.Warn("dispatch failed",
			slog.String("project_id", projectID),
			slog.String("stage", req.Stage),
			slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"project_id": projectID,
		"stage":      stage,
		"status":     models.StatusProcessing,
	})
}

// IngestCompletion handles POST /api/completions, the asynchronous callback
// from the processing service. The stage is identified structurally from the
// payload. A rejected payload leaves the project status untouched.
func (h *Handler) IngestCompletion(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	doc, err := h.ingest.HandleCompletion(body)
	if err != nil {
		slog.Warn("completion rejected", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}
