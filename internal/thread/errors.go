package thread

import "errors"

var (
	// ErrThreadNotFound indicates the thread does not exist or is not
	// visible to the requesting session.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrItemNotFound indicates the item does not exist.
	ErrItemNotFound = errors.New("thread item not found")

	// ErrInvalidInput indicates a caller passed rejected values.
	ErrInvalidInput = errors.New("invalid input")
)
