package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Projects and the pipeline.
	r.Post("/projects", h.CreateProject)
	r.Get("/projects", h.ListProjects)
	r.Get("/projects/{id}", h.GetProject)
	r.Post("/projects/{id}/dispatch", h.DispatchStage)

	// Documents.
	r.Get("/projects/{id}/documents", h.ListDocuments)
	r.Get("/projects/{id}/documents/{docID}", h.GetDocument)
	r.Put("/projects/{id}/documents/{docID}", h.UpdateDocument)
	r.Post("/projects/{id}/documents/{docID}/versions", h.CreateVersion)

	// Asynchronous completion callback from the processing service.
	r.Post("/completions", h.IngestCompletion)

	// Notification feed.
	r.Get("/notifications", h.ListNotifications)
	r.Get("/notifications/count", h.UnreadCount)
	r.Post("/notifications", h.CreateNotification)
	r.Put("/notifications/read-all", h.MarkAllRead)
	r.Put("/notifications/{id}/read", h.MarkRead)
	r.Put("/notifications/{id}/archive", h.ArchiveNotification)
	r.Delete("/notifications/cleanup", h.CleanupNotifications)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
