// Package models defines the domain types for Draftforge.
package models

import "time"

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

// Project states. StatusFailed is reachable in the schema but neither the
// dispatcher nor the ingest path produces it; it exists for operator
// tooling and forward compatibility.
const (
	StatusCreated    ProjectStatus = "created"
	StatusProcessing ProjectStatus = "processing"
	StatusCompleted  ProjectStatus = "completed"
	StatusFailed     ProjectStatus = "failed"
)

// Valid reports whether s is a known project status.
func (s ProjectStatus) Valid() bool {
	switch s {
	case StatusCreated, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// DocumentType identifies the pipeline stage a document belongs to.
type DocumentType string

// Document types, one per pipeline stage plus DRAFT for free-form work.
const (
	DocRawInput     DocumentType = "RAW_INPUT"
	DocRequirements DocumentType = "REQUIREMENTS"
	DocBRD          DocumentType = "BRD"
	DocBlueprint    DocumentType = "BLUEPRINT"
	DocDraft        DocumentType = "DRAFT"
)

// Valid reports whether t is a known document type.
func (t DocumentType) Valid() bool {
	switch t {
	case DocRawInput, DocRequirements, DocBRD, DocBlueprint, DocDraft:
		return true
	}
	return false
}

// Prerequisite returns the stage whose latest document must exist before
// this stage can be dispatched, or empty for the first stage.
func (t DocumentType) Prerequisite() DocumentType {
	switch t {
	case DocRequirements:
		return DocRawInput
	case DocBRD:
		return DocRequirements
	case DocBlueprint:
		return DocBRD
	}
	return ""
}

// Dispatchable reports whether t is a stage that can be sent to the
// processing service. RAW_INPUT and DRAFT are storage-only.
func (t DocumentType) Dispatchable() bool {
	return t == DocRequirements || t == DocBRD || t == DocBlueprint
}

// Project is the root aggregate for reporting. TotalDocuments mirrors the
// count of documents owned by the project and never decreases.
type Project struct {
	ID             string        `json:"project_id"`
	Name           string        `json:"name"`
	Description    string        `json:"description,omitempty"`
	Status         ProjectStatus `json:"status"`
	TotalDocuments int           `json:"total_documents"`
	Input          string        `json:"input,omitempty"`
	InputType      string        `json:"input_type,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Document is one immutable version within a lineage. A content change is
// always a new row at version max+1 for the same (project, type); the
// in-place update path in the store is a maintenance escape hatch only.
type Document struct {
	ID               string       `json:"document_id"`
	ProjectID        string       `json:"project_id"`
	Type             DocumentType `json:"type"`
	Content          Content      `json:"content"`
	Checksum         string       `json:"checksum"`
	Version          int          `json:"version"`
	ParentDocumentID string       `json:"parent_document_id,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
}

// NotificationPriority orders notifications for display.
type NotificationPriority string

// Notification priorities.
const (
	PriorityLow    NotificationPriority = "low"
	PriorityMedium NotificationPriority = "medium"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

// NotificationStatus is the read/archive state of a notification.
type NotificationStatus string

// Notification states.
const (
	NotifUnread   NotificationStatus = "unread"
	NotifRead     NotificationStatus = "read"
	NotifArchived NotificationStatus = "archived"
)

// NotificationType mirrors the stage that completed, or SYSTEM for
// manually created entries.
type NotificationType string

// Notification types.
const (
	NotifRequirements NotificationType = "REQUIREMENTS"
	NotifBRD          NotificationType = "BRD"
	NotifBlueprint    NotificationType = "BLUEPRINT"
	NotifSystem       NotificationType = "SYSTEM"
)

// Notification is an independent record of a completion event. The pipeline
// writes it once and never reads it back; only the feed mutates it.
type Notification struct {
	ID        string               `json:"notification_id"`
	ProjectID string               `json:"project_id"`
	Type      NotificationType     `json:"type"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Priority  NotificationPriority `json:"priority"`
	Status    NotificationStatus   `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
	ReadAt    *time.Time           `json:"read_at,omitempty"`
}
