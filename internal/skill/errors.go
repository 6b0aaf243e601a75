package skill

import "errors"

// Sentinel errors for dispatch, checked with errors.Is().
//
// Dispatch errors are user-visible content: the orchestrator surfaces
// their text in tool results and final messages instead of aborting the
// turn, so messages should read well verbatim.
var (
	// ErrUnknownAction indicates the action name is outside the catalog.
	ErrUnknownAction = errors.New("unknown action")

	// ErrInvalidArgument indicates the argument bag did not match the
	// action's input shape.
	ErrInvalidArgument = errors.New("invalid argument")
)
