package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ravenlake/draftforge/internal/models"
)

// ListNotifications handles GET /api/notifications?page&limit&include_archived.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := pageParams(r)
	includeArchived := r.URL.Query().Get("include_archived") == "true"

	items, total, err := h.notifier.List(limit, offset, includeArchived)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, NotificationListResponse{
		Notifications: items,
		Total:         total,
		Page:          page,
		Limit:         limit,
	})
}

// UnreadCount handles GET /api/notifications/count. Polling clients diff
// this value against their last observed one to detect new content.
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.notifier.UnreadCount()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": count})
}

// MarkRead handles PUT /api/notifications/{id}/read. Idempotent.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifier.MarkRead(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// MarkAllRead handles PUT /api/notifications/read-all.
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	updated, err := h.notifier.MarkAllRead()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

// ArchiveNotification handles PUT /api/notifications/{id}/archive. Idempotent.
func (h *Handler) ArchiveNotification(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifier.Archive(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// CreateNotification handles POST /api/notifications (manual creation).
func (h *Handler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req CreateNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	n, err := h.notifier.Create(models.Notification{
		ProjectID: req.ProjectID,
		Type:      models.NotificationType(req.Type),
		Title:     req.Title,
		Message:   req.Message,
		Priority:  models.NotificationPriority(req.Priority),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// CleanupNotifications handles DELETE /api/notifications/cleanup?daysOld=N,
// removing archived rows older than N days.
func (h *Handler) CleanupNotifications(w http.ResponseWriter, r *http.Request) {
	daysOld, err := strconv.Atoi(r.URL.Query().Get("daysOld"))
	if err != nil || daysOld <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'daysOld' must be a positive integer"))
		return
	}

	removed, err := h.notifier.Cleanup(daysOld)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}
