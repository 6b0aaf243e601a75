package thread

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Thread lifecycle statuses.
const (
	StatusActive = "active"
	StatusClosed = "closed"
	StatusLocked = "locked"
)

// Item types.
const (
	TypeUserMessage      = "user_message"
	TypeAssistantMessage = "assistant_message"
	TypeToolWidget       = "tool_widget"
)

// Tool widget statuses. A widget is created pending and replaced in
// place with completed when its result arrives.
const (
	WidgetPending   = "pending"
	WidgetCompleted = "completed"
)

// Thread is one conversation with its ordered items.
type Thread struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	SessionID string    `json:"session_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Item is a single entry in a thread. Payload holds the type-specific
// JSON body.
type Item struct {
	ID        uuid.UUID       `json:"id"`
	ThreadID  uuid.UUID       `json:"thread_id"`
	Type      string          `json:"item_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// MessagePayload is the payload of user_message and assistant_message
// items.
type MessagePayload struct {
	Text string `json:"text"`
}

// ToolWidgetPayload is the payload of tool_widget items.
type ToolWidgetPayload struct {
	Tool   string         `json:"tool"`
	Action string         `json:"action"`
	Args   map[string]any `json:"args,omitempty"`
	Status string         `json:"status"`
	Result any            `json:"result,omitempty"`
}

// maxTitleRunes bounds thread titles derived from the first user message.
const maxTitleRunes = 24

// TitleFromMessage derives a thread title from the first user message,
// truncated to 24 visible characters with an ellipsis.
func TitleFromMessage(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= maxTitleRunes {
		return text
	}
	return string(runes[:maxTitleRunes]) + "…"
}

// ValidStatus reports whether s is a known thread status.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusClosed, StatusLocked:
		return true
	}
	return false
}
