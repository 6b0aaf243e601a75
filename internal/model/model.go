// Package model provides the language model client.
//
// The surface is deliberately small: one prompt string in, the raw model
// text out. No parsing, no retries. Structure recovery from the raw text
// is the intent package's job, and the error contract forbids automatic
// retry on transport failure.
package model

import (
	"context"
	"errors"
)

// ErrModelUnavailable indicates the completion call failed at the
// transport level (process or network failure).
var ErrModelUnavailable = errors.New("model unavailable")

// Client sends a single prompt to the language model and returns the raw
// response text.
//
// Implementations must not interpret the response. Callers own the call's
// lifetime through ctx; there is no client-side timeout.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
