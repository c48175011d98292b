// Package apperr holds the sentinel errors shared by the service, HTTP and
// MCP layers. Filesystem failures are not mapped here; callers classify
// them with docstore.KindOf.
package apperr

import "errors"

var (
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrOccupied      = errors.New("path occupied by a non-document entry")
	ErrNotMergeable  = errors.New("document cannot be patched")
	ErrInvalidInput  = errors.New("invalid input")
)
