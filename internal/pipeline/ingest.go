package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ravenlake/draftforge/internal/apperr"
	"github.com/ravenlake/draftforge/internal/models"
	"github.com/ravenlake/draftforge/internal/notify"
	"github.com/ravenlake/draftforge/internal/store"
)

// completionEnvelope is the superset of the stage-specific completion
// shapes. The stage is identified structurally by which result field is
// present, and the project identifier may arrive under either of two
// conventions (project_info.id or a bare project_id).
type completionEnvelope struct {
	ProjectInfo *struct {
		ID string `json:"id"`
	} `json:"project_info"`
	ProjectID string `json:"project_id"`

	Requirements    json.RawMessage `json:"requirements"`
	Constraints     json.RawMessage `json:"constraints"`
	BRD             json.RawMessage `json:"brd"`
	Blueprint       json.RawMessage `json:"blueprint"`
	PreferredFormat string          `json:"preferred_format"`
}

func (e *completionEnvelope) projectID() string {
	if e.ProjectInfo != nil && e.ProjectInfo.ID != "" {
		return e.ProjectInfo.ID
	}
	return e.ProjectID
}

func (e *completionEnvelope) stage() models.DocumentType {
	switch {
	case fieldPresent(e.Requirements):
		return models.DocRequirements
	case fieldPresent(e.BRD):
		return models.DocBRD
	case fieldPresent(e.Blueprint):
		return models.DocBlueprint
	}
	return ""
}

func fieldPresent(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// Ingest receives asynchronous completion callbacks from the processing
// service and applies them: a new document version, an incremented document
// counter, a completed project status, and a notification.
type Ingest struct {
	store    store.Store
	notifier *notify.Service
	logger   *slog.Logger
}

// NewIngest builds a completion ingest.
func NewIngest(st store.Store, notifier *notify.Service, logger *slog.Logger) *Ingest {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingest{store: st, notifier: notifier, logger: logger}
}

// HandleCompletion processes one completion payload. A malformed payload is
// rejected with ErrIngest before any write, leaving the project status
// untouched (a project that dispatched and never receives a valid
// completion stays processing). A project unknown to the core is
// auto-provisioned as a placeholder. Completions arriving more than once or
// out of order each still produce a new, higher-versioned document;
// latest-version-wins.
func (ig *Ingest) HandleCompletion(body []byte) (models.Document, error) {
	var env completionEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return models.Document{}, fmt.Errorf("%w: decode completion: %v", apperr.ErrIngest, err)
	}

	stage := env.stage()
	if stage == "" {
		return models.Document{}, fmt.Errorf("%w: no stage result field in payload", apperr.ErrIngest)
	}
	projectID := env.projectID()
	if projectID == "" {
		return models.Document{}, fmt.Errorf("%w: missing project identifier", apperr.ErrIngest)
	}

	raw, err := stageContent(stage, &env)
	if err != nil {
		return models.Document{}, err
	}

	if _, err := ig.store.EnsureProject(projectID, placeholderName(projectID)); err != nil {
		return models.Document{}, err
	}

	doc, err := ig.appendDocument(projectID, stage, raw)
	if err != nil {
		return models.Document{}, err
	}

	if err := ig.store.SetProjectStatus(projectID, models.StatusCompleted); err != nil {
		return models.Document{}, err
	}

	// Notification failures never roll back the document/project writes.
	if err := ig.notifier.NotifyStageCompleted(projectID, stage); err != nil {
		ig.logger.Error("completion notification failed",
			slog.String("project_id", projectID),
			slog.String("stage", string(stage)),
			slog.String("error", err.Error()))
	}

	ig.logger.Info("completion ingested",
		slog.String("project_id", projectID),
		slog.String("stage", string(stage)),
		slog.Int("version", doc.Version))
	return doc, nil
}

// appendDocument writes the completion as version 1 when the lineage is
// empty, otherwise as a new version branched from the current latest. A lost
// race on the initial insert falls back to the versioned path.
func (ig *Ingest) appendDocument(projectID string, stage models.DocumentType, raw []byte) (models.Document, error) {
	latest, err := ig.store.Latest(projectID, stage)
	if errors.Is(err, apperr.ErrNotFound) {
		doc, initErr := ig.store.CreateInitial(projectID, stage, raw)
		if !errors.Is(initErr, apperr.ErrDuplicate) {
			return doc, initErr
		}
		latest, err = ig.store.Latest(projectID, stage)
	}
	if err != nil {
		return models.Document{}, err
	}
	return ig.store.CreateVersion(projectID, latest.ID, raw)
}

// stageContent re-marshals the envelope's result fields into the canonical
// content shape for the stage, so store-boundary validation sees exactly
// what will be persisted.
func stageContent(stage models.DocumentType, env *completionEnvelope) ([]byte, error) {
	var v any
	switch stage {
	case models.DocRequirements:
		v = models.RequirementsContent{
			Requirements:    env.Requirements,
			Constraints:     env.Constraints,
			PreferredFormat: env.PreferredFormat,
		}
	case models.DocBRD:
		v = models.BRDContent{BRD: env.BRD}
	case models.DocBlueprint:
		v = models.BlueprintContent{
			Blueprint:       env.Blueprint,
			PreferredFormat: env.PreferredFormat,
		}
	default:
		return nil, fmt.Errorf("%w: unsupported stage %q", apperr.ErrIngest, stage)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s content: %v", apperr.ErrIngest, stage, err)
	}
	return data, nil
}

func placeholderName(projectID string) string {
	prefix := projectID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return "Project " + prefix
}
