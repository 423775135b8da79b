// Package notify maps pipeline completions onto notification records and
// exposes the feed operations consumed by polling clients.
package notify

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ravenlake/draftforge/internal/apperr"
	"github.com/ravenlake/draftforge/internal/models"
	"github.com/ravenlake/draftforge/internal/sse"
	"github.com/ravenlake/draftforge/internal/store"
)

// template is the fixed title/message/priority emitted for a stage.
type template struct {
	title    string
	message  string
	priority models.NotificationPriority
}

var stageTemplates = map[models.NotificationType]template{
	models.NotifRequirements: {
		title:    "Requirements ready",
		message:  "Requirement extraction finished for project %s.",
		priority: models.PriorityMedium,
	},
	models.NotifBRD: {
		title:    "BRD ready",
		message:  "Business requirements document finished for project %s.",
		priority: models.PriorityHigh,
	},
	models.NotifBlueprint: {
		title:    "Blueprint ready",
		message:  "Technical blueprint finished for project %s.",
		priority: models.PriorityHigh,
	},
}

// Service owns notification creation and the feed read model. The broker is
// optional; when present, appended notifications are also broadcast over SSE
// for clients that prefer push over count polling.
type Service struct {
	store  store.Store
	broker *sse.Broker
	logger *slog.Logger
}

// NewService builds a notification service.
func NewService(st store.Store, broker *sse.Broker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, broker: broker, logger: logger}
}

// NotifyStageCompleted appends an unread notification for a completed stage
// using its fixed template. The pipeline never reads notification state
// back; this record exists purely for the feed.
func (s *Service) NotifyStageCompleted(projectID string, stage models.DocumentType) error {
	typ := models.NotificationType(stage)
	tpl, ok := stageTemplates[typ]
	if !ok {
		return fmt.Errorf("%w: no notification template for stage %q", apperr.ErrValidation, stage)
	}
	n, err := s.store.InsertNotification(models.Notification{
		ProjectID: projectID,
		Type:      typ,
		Title:     tpl.title,
		Message:   fmt.Sprintf(tpl.message, projectID),
		Priority:  tpl.priority,
	})
	if err != nil {
		return err
	}
	s.publish(n)
	return nil
}

// Create appends a manually supplied notification (type SYSTEM when unset).
func (s *Service) Create(n models.Notification) (models.Notification, error) {
	if n.Title == "" {
		return models.Notification{}, fmt.Errorf("%w: title is required", apperr.ErrValidation)
	}
	if n.Type == "" {
		n.Type = models.NotifSystem
	}
	created, err := s.store.InsertNotification(n)
	if err != nil {
		return models.Notification{}, err
	}
	s.publish(created)
	return created, nil
}

// List returns a page of notifications, newest first, excluding archived
// rows unless asked otherwise.
func (s *Service) List(limit, offset int, includeArchived bool) ([]models.Notification, int, error) {
	return s.store.ListNotifications(limit, offset, includeArchived)
}

// UnreadCount returns the current unread total. Clients poll this and treat
// an increase as "there is new content".
func (s *Service) UnreadCount() (int, error) {
	return s.store.UnreadCount()
}

// MarkRead marks one notification read. Idempotent.
func (s *Service) MarkRead(id string) (*models.Notification, error) {
	return s.store.MarkRead(id)
}

// MarkAllRead marks every unread notification read and returns the count.
func (s *Service) MarkAllRead() (int64, error) {
	return s.store.MarkAllRead()
}

// Archive removes a notification from the default list view. Idempotent.
func (s *Service) Archive(id string) (*models.Notification, error) {
	return s.store.Archive(id)
}

// Cleanup hard-deletes archived notifications older than daysOld days.
func (s *Service) Cleanup(daysOld int) (int64, error) {
	if daysOld <= 0 {
		return 0, fmt.Errorf("%w: daysOld must be positive", apperr.ErrValidation)
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -daysOld)
	return s.store.CleanupArchived(cutoff)
}

func (s *Service) publish(n models.Notification) {
	if s.broker == nil {
		return
	}
	count, err := s.store.UnreadCount()
	if err != nil {
		s.logger.Warn("unread count for broadcast failed", slog.String("error", err.Error()))
		count = -1
	}
	s.broker.PublishNotification(n, count)
}
