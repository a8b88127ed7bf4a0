package errors

import "errors"

var (
	// ErrNotFound means the id resolved to no slot row.
	ErrNotFound = errors.New("slot not found")

	// ErrInvalidID means the id is not a valid object id.
	ErrInvalidID = errors.New("invalid slot ID format")

	// ErrStatusConflict means a guarded transition matched the row by
	// id but the row was no longer in a permitted status.
	ErrStatusConflict = errors.New("slot is not in a permitted status for this transition")
)
