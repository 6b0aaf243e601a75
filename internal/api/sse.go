package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Streaming wire event names.
const (
	EventThreadCreated  = "thread.created"
	EventItemAdded      = "thread.item.added"
	EventItemReplaced   = "thread.item.replaced"
	EventItemDone       = "thread.item.done"
	EventProgressUpdate = "progress_update"
	EventNotice         = "notice"
	EventError          = "error"
)

// progressPayload is the SSE data payload of progress_update and notice.
type progressPayload struct {
	Text string `json:"text"`
}

// itemDonePayload marks an item as finalized.
type itemDonePayload struct {
	ItemID string `json:"item_id"`
}

// errorPayload is the SSE data payload of terminal stream errors.
type errorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// setStreamHeaders prepares the response for SSE and returns the
// flusher, or false when the writer cannot stream.
func setStreamHeaders(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	return flusher, true
}

// writeEvent writes a single SSE event with JSON-encoded data.
// SSE format: "event: <type>\ndata: <json>\n\n"
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	flusher.Flush()
	return nil
}
