package tutor

import "errors"

// Sentinel errors for store operations, checked with errors.Is().
var (
	// ErrNotFound indicates the referenced record does not exist, or a
	// natural-language student reference matched nothing.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput indicates a field failed validation before any
	// database work.
	ErrInvalidInput = errors.New("invalid input")
)
