// Package apperrors defines the sentinel errors shared across layers.
// Repositories translate storage failures into these, services propagate
// them, and handlers map them to HTTP status codes with errors.Is.
package apperrors

import "errors"

var (
	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the caller is authenticated but not
	// authorized for the specific resource.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation indicates malformed input or an unresolvable
	// monster reference.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrIntegrity indicates a storage-level constraint violation that
	// was not resolved to a more specific error.
	ErrIntegrity = errors.New("integrity violation")
)
