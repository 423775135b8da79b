// Package apperr defines the sentinel errors shared across the service.
package apperr

import "errors"

var (
	// ErrNotFound covers missing projects, documents, notifications, and
	// unmet stage prerequisites.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned when a request is rejected before any state change.
	ErrValidation = errors.New("validation failed")
	// ErrConflict signals an optimistic-concurrency checksum mismatch.
	ErrConflict = errors.New("conflict")
	// ErrDuplicate signals an identity collision on insert.
	ErrDuplicate = errors.New("duplicate key")
	// ErrDispatch wraps a synchronous outbound failure (network error or timeout).
	ErrDispatch = errors.New("dispatch failed")
	// ErrIngest signals a malformed completion payload; nothing is written and
	// the owning project keeps whatever status it had.
	ErrIngest = errors.New("ingest rejected")
)
