package orchestrator

import (
	"fmt"
	"strings"
)

const promptHeader = `You are the assistant of a tutoring dashboard. You manage students,
weekly schedule slots, attendance and leave records, class notes,
ability assessments, and tuition payments.

Respond with a single JSON object and nothing else.
To run an action:
  {"type": "tool_call", "tool": "<action name>", "action": "<action name>", "args": {...}, "reply": "<optional short progress note>"}
To answer the user directly:
  {"type": "final", "reply": "<answer in the user's language>"}

Available actions:
`

// buildPrompt assembles one model prompt from the catalog, the trimmed
// conversation history, the running tool trace, and the user message.
func buildPrompt(catalog string, history []Exchange, trace []traceEntry, message string) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString(catalog)

	if len(history) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, ex := range history {
			fmt.Fprintf(&b, "%s: %s\n", ex.Role, ex.Text)
		}
	}

	if len(trace) > 0 {
		b.WriteString("\nResults of actions already run this turn:\n")
		for i, t := range trace {
			fmt.Fprintf(&b, "tool result %d: action=%s, result=%s\n", i+1, t.Action, t.Result)
		}
		b.WriteString("\nUse these results to decide the next action or to answer.\n")
	}

	b.WriteString("\nUser message:\n")
	b.WriteString(message)
	return b.String()
}

// trimHistory keeps the most recent n exchanges.
func trimHistory(history []Exchange, n int) []Exchange {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
