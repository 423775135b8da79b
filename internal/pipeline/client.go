// Package pipeline implements stage dispatch to the external processing
// service and ingestion of its asynchronous completion callbacks.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ravenlake/draftforge/internal/apperr"
	"github.com/ravenlake/draftforge/internal/models"
)

// StagePayload is the outbound request body for a stage advance. Input
// carries the prerequisite document content under the stage-specific field
// name ("input", "requirements", or "brd").
type StagePayload struct {
	ProjectID        string
	Input            json.RawMessage
	ProjectName      string
	OrganizationName string
}

// inputField maps a target stage to the JSON field its input travels under.
func inputField(stage models.DocumentType) string {
	switch stage {
	case models.DocRequirements:
		return "input"
	case models.DocBRD:
		return "requirements"
	case models.DocBlueprint:
		return "brd"
	}
	return ""
}

// stagePath maps a target stage to its endpoint path on the processing service.
func stagePath(stage models.DocumentType) string {
	switch stage {
	case models.DocRequirements:
		return "/requirements"
	case models.DocBRD:
		return "/brd"
	case models.DocBlueprint:
		return "/blueprint"
	}
	return ""
}

// Caller issues a stage-advance request. Satisfied by *Client; tests swap in
// fakes.
type Caller interface {
	DispatchStage(ctx context.Context, stage models.DocumentType, payload StagePayload) error
}

// Client talks to the external processing service over HTTP. Every call
// carries the configured timeout; a timeout is treated identically to a
// network failure. The response body is not interpreted beyond HTTP
// success/failure.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

// NewClient builds a processing-service client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
	}
}

// DispatchStage posts the stage payload to the stage-specific endpoint.
// There is no retry and no per-dispatch correlation token; the completion
// arrives later, matched only by (project, stage).
func (c *Client) DispatchStage(ctx context.Context, stage models.DocumentType, payload StagePayload) error {
	path := stagePath(stage)
	if path == "" {
		return fmt.Errorf("%w: stage %q is not dispatchable", apperr.ErrValidation, stage)
	}

	body := map[string]json.RawMessage{
		"project_id":        mustJSON(payload.ProjectID),
		inputField(stage):   payload.Input,
		"project_name":      mustJSON(payload.ProjectName),
		"organization_name": mustJSON(payload.OrganizationName),
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("pipeline: marshal stage payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("pipeline: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", apperr.ErrDispatch, stage, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s: processing service returned %d", apperr.ErrDispatch, stage, resp.StatusCode)
	}
	return nil
}

func mustJSON(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}
