package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ravenlake/draftforge/internal/apperr"
	"github.com/ravenlake/draftforge/internal/models"
	"github.com/ravenlake/draftforge/internal/store"
)

// Dispatcher advances a project's status optimistically and forwards a
// stage-advance request to the processing service. There is no single-flight
// guard: a second dispatch while the project is already processing is
// accepted and flips the status again, and whichever completion arrives
// first marks the project completed.
type Dispatcher struct {
	store  store.Store
	caller Caller
	org    string
	logger *slog.Logger
}

// NewDispatcher builds a dispatcher.
func NewDispatcher(st store.Store, caller Caller, org string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{store: st, caller: caller, org: org, logger: logger}
}

// Dispatch validates the stage preconditions, flips the project to
// processing, and issues the outbound call. On a synchronous failure the
// status is rolled back to its exact pre-dispatch value and ErrDispatch is
// surfaced. On acceptance it returns immediately; the stage output arrives
// later via the completion ingest.
func (d *Dispatcher) Dispatch(ctx context.Context, projectID string, stage models.DocumentType, override []byte) error {
	if !stage.Dispatchable() {
		return fmt.Errorf("%w: stage %q cannot be dispatched", apperr.ErrValidation, stage)
	}

	project, err := d.store.GetProject(projectID)
	if err != nil {
		return err
	}

	input, err := d.stageInput(projectID, stage, override)
	if err != nil {
		return err
	}

	prev := project.Status
	if err := d.store.SetProjectStatus(projectID, models.StatusProcessing); err != nil {
		return err
	}

	payload := StagePayload{
		ProjectID:        projectID,
		Input:            input,
		ProjectName:      project.Name,
		OrganizationName: d.org,
	}
	if err := d.caller.DispatchStage(ctx, stage, payload); err != nil {
		if rbErr := d.store.SetProjectStatus(projectID, prev); rbErr != nil {
			d.logger.Error("dispatch rollback failed",
				slog.String("project_id", projectID),
				slog.String("error", rbErr.Error()))
		}
		return err
	}

	d.logger.Info("stage dispatched",
		slog.String("project_id", projectID),
		slog.String("stage", string(stage)))
	return nil
}

// stageInput resolves the content sent to the processing service: the
// explicit override when provided, otherwise the latest document of the
// prerequisite stage. A missing prerequisite fails with NotFound before any
// state change.
func (d *Dispatcher) stageInput(projectID string, stage models.DocumentType, override []byte) (json.RawMessage, error) {
	prereq := stage.Prerequisite()
	latest, err := d.store.Latest(projectID, prereq)
	if err != nil {
		return nil, fmt.Errorf("%s prerequisite %s: %w", stage, prereq, err)
	}

	if len(override) > 0 {
		if !json.Valid(override) {
			return nil, fmt.Errorf("%w: content override is not valid JSON", apperr.ErrValidation)
		}
		return override, nil
	}
	return latest.Content.Bytes(), nil
}
