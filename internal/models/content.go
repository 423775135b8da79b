package models

import (
	"encoding/json"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/ravenlake/draftforge/internal/apperr"
)

// Content is a stage-specific document payload. The original bytes are kept
// round-trip so the processing service's shapes pass through unmodified,
// while ParseContent enforces the required fields for each stage at the
// store boundary.
type Content struct {
	raw json.RawMessage
}

// RawInputContent is the shape of a RAW_INPUT document.
type RawInputContent struct {
	Input     string `json:"input"`
	InputType string `json:"input_type,omitempty"`
}

// Validate enforces required fields.
func (c RawInputContent) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Input, validation.Required),
	)
}

// RequirementsContent is the shape of a REQUIREMENTS document.
type RequirementsContent struct {
	Requirements    json.RawMessage `json:"requirements"`
	Constraints     json.RawMessage `json:"constraints,omitempty"`
	PreferredFormat string          `json:"preferred_format,omitempty"`
}

// Validate enforces required fields.
func (c RequirementsContent) Validate() error {
	if len(c.Requirements) == 0 || string(c.Requirements) == "null" {
		return fmt.Errorf("%w: requirements is required", apperr.ErrValidation)
	}
	return nil
}

// BRDContent is the shape of a BRD document.
type BRDContent struct {
	BRD json.RawMessage `json:"brd"`
}

// Validate enforces required fields.
func (c BRDContent) Validate() error {
	if len(c.BRD) == 0 || string(c.BRD) == "null" {
		return fmt.Errorf("%w: brd is required", apperr.ErrValidation)
	}
	return nil
}

// BlueprintContent is the shape of a BLUEPRINT document.
type BlueprintContent struct {
	Blueprint       json.RawMessage `json:"blueprint"`
	PreferredFormat string          `json:"preferred_format,omitempty"`
}

// Validate enforces required fields.
func (c BlueprintContent) Validate() error {
	if len(c.Blueprint) == 0 || string(c.Blueprint) == "null" {
		return fmt.Errorf("%w: blueprint is required", apperr.ErrValidation)
	}
	return nil
}

// ParseContent validates raw against the shape required by typ and wraps it.
// DRAFT documents accept any non-empty JSON value.
func ParseContent(typ DocumentType, raw []byte) (Content, error) {
	if len(raw) == 0 {
		return Content{}, fmt.Errorf("%w: content is required", apperr.ErrValidation)
	}
	if !json.Valid(raw) {
		return Content{}, fmt.Errorf("%w: content is not valid JSON", apperr.ErrValidation)
	}

	var v interface{ Validate() error }
	switch typ {
	case DocRawInput:
		v = &RawInputContent{}
	case DocRequirements:
		v = &RequirementsContent{}
	case DocBRD:
		v = &BRDContent{}
	case DocBlueprint:
		v = &BlueprintContent{}
	case DocDraft:
		return Content{raw: append(json.RawMessage(nil), raw...)}, nil
	default:
		return Content{}, fmt.Errorf("%w: unknown document type %q", apperr.ErrValidation, typ)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return Content{}, fmt.Errorf("%w: decode %s content: %v", apperr.ErrValidation, typ, err)
	}
	if err := v.Validate(); err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			return Content{}, err
		}
		return Content{}, fmt.Errorf("%w: %s content: %v", apperr.ErrValidation, typ, err)
	}
	return Content{raw: append(json.RawMessage(nil), raw...)}, nil
}

// RawContent wraps raw bytes without stage validation. Used when loading
// rows that were validated on the way in.
func RawContent(raw []byte) Content {
	return Content{raw: append(json.RawMessage(nil), raw...)}
}

// Bytes returns the canonical content bytes.
func (c Content) Bytes() []byte { return c.raw }

// IsZero reports whether the content is empty.
func (c Content) IsZero() bool { return len(c.raw) == 0 }

// MarshalJSON passes the stored bytes through unchanged.
func (c Content) MarshalJSON() ([]byte, error) {
	if len(c.raw) == 0 {
		return []byte("null"), nil
	}
	return c.raw, nil
}

// UnmarshalJSON captures the bytes verbatim; stage validation happens in
// ParseContent at the store boundary, not here.
func (c *Content) UnmarshalJSON(data []byte) error {
	c.raw = append(json.RawMessage(nil), data...)
	return nil
}
