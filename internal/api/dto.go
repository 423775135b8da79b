package api

import (
	"encoding/json"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/ravenlake/draftforge/internal/models"
)

// CreateProjectRequest is the request body for creating a project. The input
// payload becomes the project's RAW_INPUT v1 document.
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Input       string `json:"input"`
	InputType   string `json:"input_type"`
}

// Validate enforces required fields.
func (r CreateProjectRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 256)),
		validation.Field(&r.Input, validation.Required),
	)
}

// DispatchRequest asks the processing service to advance a stage. Content,
// when present, overrides the prerequisite document as the stage input.
type DispatchRequest struct {
	Stage   string          `json:"stage"`
	Content json.RawMessage `json:"content"`
}

// Validate enforces required fields.
func (r DispatchRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Stage, validation.Required,
			validation.In(string(models.DocRequirements), string(models.DocBRD), string(models.DocBlueprint))),
	)
}

// ContentRequest carries a document content payload for the in-place update
// and branch-version endpoints.
type ContentRequest struct {
	Content json.RawMessage `json:"content"`
}

// Validate enforces required fields.
func (r ContentRequest) Validate() error {
	if len(r.Content) == 0 {
		return validation.Errors{"content": validation.ErrRequired}
	}
	return nil
}

// CreateNotificationRequest is the body for manual notification creation.
type CreateNotificationRequest struct {
	ProjectID string `json:"project_id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Priority  string `json:"priority"`
}

// Validate enforces required fields.
func (r CreateNotificationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 256)),
		validation.Field(&r.Priority, validation.In(
			string(models.PriorityLow), string(models.PriorityMedium),
			string(models.PriorityHigh), string(models.PriorityUrgent))),
	)
}

// ProjectListResponse wraps paginated project listings.
type ProjectListResponse struct {
	Projects []models.Project `json:"projects" validate:"required"`
	Total    int              `json:"total" validate:"required"`
	Page     int              `json:"page" validate:"required"`
	Limit    int              `json:"limit" validate:"required"`
}

// NotificationListResponse wraps paginated notification listings.
type NotificationListResponse struct {
	Notifications []models.Notification `json:"notifications" validate:"required"`
	Total         int                   `json:"total" validate:"required"`
	Page          int                   `json:"page" validate:"required"`
	Limit         int                   `json:"limit" validate:"required"`
}
