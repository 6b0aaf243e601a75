package orchestrator

import "time"

// Sink receives the events of one turn in emission order. The streaming
// protocol adapter implements it by persisting an item and pushing a
// wire event for each call; tests implement it with an in-memory
// recorder.
//
// Status is transient and cannot fail. The persisting methods return an
// error when the write behind them fails; the orchestrator stops the
// turn on the first such error.
type Sink interface {
	// Status reports transient progress. Never persisted.
	Status(text string)

	// ToolCall announces a dispatched action before it runs.
	ToolCall(tool, action string, args map[string]any, step int) error

	// ToolResult carries the outcome of the matching ToolCall.
	ToolResult(tool, action string, duration time.Duration, result any, step int) error

	// Message carries an assistant message. A turn ends with exactly
	// one terminal Message or one Error.
	Message(text string) error

	// Error reports a turn-level failure. retryable hints whether the
	// client may resubmit.
	Error(err error, retryable bool)
}

// Exchange is one prior message used to build prompts.
type Exchange struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Exchange roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// traceEntry records one executed action within the current turn. The
// trace feeds subsequent prompts of the same turn and is discarded when
// the turn ends.
type traceEntry struct {
	Action string
	Result string
}
