package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/david8712403/lec-dashboard-sub000/internal/log"
	"github.com/david8712403/lec-dashboard-sub000/internal/orchestrator"
	"github.com/david8712403/lec-dashboard-sub000/internal/thread"
)

// maxOpsBody bounds request bodies for the ops endpoint.
const maxOpsBody = 1 << 20

// historyWindow bounds how many recent items feed the prompt history.
const historyWindow = 50

// itemPageSize is the page size used when walking a whole thread. Kept
// at the store's maximum so full loads take as few round trips as
// possible.
const itemPageSize = 200

// opRequest is the body of POST /api/v1/threads/ops. The operation is
// selected by Type; the other fields apply per operation.
type opRequest struct {
	Type      string         `json:"type"`
	ThreadID  string         `json:"thread_id,omitempty"`
	ItemID    string         `json:"item_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Text      string         `json:"text,omitempty"`
	Title     *string        `json:"title,omitempty"`
	Status    *string        `json:"status,omitempty"`
	Limit     int            `json:"limit,omitempty"`
	Cursor    string         `json:"cursor,omitempty"`
	Order     string         `json:"order,omitempty"`
	Output    map[string]any `json:"output,omitempty"`
}

// opsHandler dispatches thread operations. Streaming operations answer
// SSE; the rest answer buffered JSON.
type opsHandler struct {
	store  ThreadStore
	runner TurnRunner
	logger log.Logger
}

func (h *opsHandler) handle(w http.ResponseWriter, r *http.Request) {
	var req opRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxOpsBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	session := r.Header.Get(sessionHeader)
	if session == "" {
		session = req.SessionID
	}

	switch req.Type {
	case "threads.create":
		h.createThread(w, r, req, session, false)
	case "threads.create_from_shared":
		h.createThread(w, r, req, session, true)
	case "threads.add_user_message":
		h.addUserMessage(w, r, req, session)
	case "threads.retry_after_item":
		h.retryAfterItem(w, r, req, session)
	case "threads.add_client_tool_output":
		// Acknowledge only; client tool output does not start a turn.
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true}, h.logger)
	case "threads.list":
		h.listThreads(w, r, req, session)
	case "items.list":
		h.listItems(w, r, req, session)
	case "threads.get_by_id":
		h.getThread(w, r, req, session)
	case "threads.update":
		h.updateThread(w, r, req, session)
	case "threads.delete":
		h.deleteThread(w, r, req, session)
	default:
		writeError(w, http.StatusBadRequest, "unknown_operation", "unknown operation type", h.logger)
	}
}

// createThread starts a thread from the first user message and streams
// the assistant turn. fromShared seeds the prompt history from a shared
// thread named by thread_id.
func (h *opsHandler) createThread(w http.ResponseWriter, r *http.Request, req opRequest, session string, fromShared bool) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "missing_text", "text is required", h.logger)
		return
	}

	var history []orchestrator.Exchange
	if fromShared {
		sharedID, err := uuid.Parse(req.ThreadID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_thread_id", "thread_id must be a UUID", h.logger)
			return
		}
		if _, err := h.store.Get(r.Context(), sharedID, session); err != nil {
			h.storeError(w, err)
			return
		}
		history, err = h.loadHistory(r, sharedID, nil)
		if err != nil {
			h.storeError(w, err)
			return
		}
	}

	th, err := h.store.Create(r.Context(), text, session)
	if err != nil {
		h.storeError(w, err)
		return
	}
	userItem, err := h.store.AppendItem(r.Context(), th.ID, thread.TypeUserMessage, thread.MessagePayload{Text: text})
	if err != nil {
		h.storeError(w, err)
		return
	}

	flusher, ok := setStreamHeaders(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported", h.logger)
		return
	}
	if err := writeEvent(w, flusher, EventThreadCreated, th); err != nil {
		return
	}
	if err := writeEvent(w, flusher, EventItemAdded, userItem); err != nil {
		return
	}
	if err := writeEvent(w, flusher, EventItemDone, itemDonePayload{ItemID: userItem.ID.String()}); err != nil {
		return
	}
	if fromShared {
		if err := writeEvent(w, flusher, EventNotice, progressPayload{Text: "已從分享的對話接續。"}); err != nil {
			return
		}
	}

	h.streamTurn(w, flusher, r, th, text, history)
}

// addUserMessage appends a user message to an existing thread and
// streams the assistant turn with the thread's history.
func (h *opsHandler) addUserMessage(w http.ResponseWriter, r *http.Request, req opRequest, session string) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "missing_text", "text is required", h.logger)
		return
	}
	th, ok := h.resolveThread(w, r, req.ThreadID, session)
	if !ok {
		return
	}

	history, err := h.loadHistory(r, th.ID, nil)
	if err != nil {
		h.storeError(w, err)
		return
	}
	userItem, err := h.store.AppendItem(r.Context(), th.ID, thread.TypeUserMessage, thread.MessagePayload{Text: text})
	if err != nil {
		h.storeError(w, err)
		return
	}

	flusher, ok := setStreamHeaders(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported", h.logger)
		return
	}
	if err := writeEvent(w, flusher, EventItemAdded, userItem); err != nil {
		return
	}
	if err := writeEvent(w, flusher, EventItemDone, itemDonePayload{ItemID: userItem.ID.String()}); err != nil {
		return
	}

	h.streamTurn(w, flusher, r, th, text, history)
}

// retryAfterItem reruns the turn for the nearest user message at or
// before the given item. No new user item is persisted.
func (h *opsHandler) retryAfterItem(w http.ResponseWriter, r *http.Request, req opRequest, session string) {
	th, ok := h.resolveThread(w, r, req.ThreadID, session)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(req.ItemID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_item_id", "item_id must be a UUID", h.logger)
		return
	}
	item, err := h.store.GetItem(r.Context(), itemID)
	if err != nil {
		h.storeError(w, err)
		return
	}
	if item.ThreadID != th.ID {
		writeError(w, http.StatusNotFound, "item_not_found", "item not found in thread", h.logger)
		return
	}

	// Walk back from the item to the nearest user message, the item
	// itself included, paging descending so thread length does not
	// matter.
	message := ""
	msgAt := item.CreatedAt
	if item.Type == thread.TypeUserMessage {
		message, _ = messageText(item)
	}
	cursor := item.CreatedAt
	for message == "" {
		page, err := h.store.ListItems(r.Context(), th.ID, historyWindow, &cursor, false)
		if err != nil {
			h.storeError(w, err)
			return
		}
		for _, prev := range page {
			cursor = prev.CreatedAt
			if prev.Type != thread.TypeUserMessage {
				continue
			}
			if text, found := messageText(prev); found {
				message = text
				msgAt = prev.CreatedAt
				break
			}
		}
		if message == "" && len(page) < historyWindow {
			writeError(w, http.StatusBadRequest, "no_user_message", "no user message precedes the item", h.logger)
			return
		}
	}

	history, err := h.loadHistory(r, th.ID, &msgAt)
	if err != nil {
		h.storeError(w, err)
		return
	}

	flusher, ok := setStreamHeaders(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported", h.logger)
		return
	}
	h.streamTurn(w, flusher, r, th, message, history)
}

func (h *opsHandler) listThreads(w http.ResponseWriter, r *http.Request, req opRequest, session string) {
	cursor, ok := parseCursor(req.Cursor)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_cursor", "cursor must be RFC 3339", h.logger)
		return
	}
	threads, err := h.store.List(r.Context(), session, req.Limit, cursor, req.Order == "asc")
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"threads": threads}, h.logger)
}

func (h *opsHandler) listItems(w http.ResponseWriter, r *http.Request, req opRequest, session string) {
	th, ok := h.resolveThread(w, r, req.ThreadID, session)
	if !ok {
		return
	}
	cursor, valid := parseCursor(req.Cursor)
	if !valid {
		writeError(w, http.StatusBadRequest, "invalid_cursor", "cursor must be RFC 3339", h.logger)
		return
	}
	items, err := h.store.ListItems(r.Context(), th.ID, req.Limit, cursor, req.Order != "desc")
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items}, h.logger)
}

func (h *opsHandler) getThread(w http.ResponseWriter, r *http.Request, req opRequest, session string) {
	th, ok := h.resolveThread(w, r, req.ThreadID, session)
	if !ok {
		return
	}

	// Page through every item so long threads come back whole.
	items := []*thread.Item{}
	var cursor *time.Time
	for {
		page, err := h.store.ListItems(r.Context(), th.ID, itemPageSize, cursor, true)
		if err != nil {
			h.storeError(w, err)
			return
		}
		items = append(items, page...)
		if len(page) < itemPageSize {
			break
		}
		last := page[len(page)-1].CreatedAt
		cursor = &last
	}
	writeJSON(w, http.StatusOK, map[string]any{"thread": th, "items": items}, h.logger)
}

func (h *opsHandler) updateThread(w http.ResponseWriter, r *http.Request, req opRequest, session string) {
	id, err := uuid.Parse(req.ThreadID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_thread_id", "thread_id must be a UUID", h.logger)
		return
	}
	th, err := h.store.Update(r.Context(), id, session, req.Title, req.Status)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"thread": th}, h.logger)
}

func (h *opsHandler) deleteThread(w http.ResponseWriter, r *http.Request, req opRequest, session string) {
	id, err := uuid.Parse(req.ThreadID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_thread_id", "thread_id must be a UUID", h.logger)
		return
	}
	if err := h.store.Delete(r.Context(), id, session); err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true}, h.logger)
}

// resolveThread parses and loads a thread visible to the session,
// writing the HTTP error itself when it fails.
func (h *opsHandler) resolveThread(w http.ResponseWriter, r *http.Request, threadID, session string) (*thread.Thread, bool) {
	id, err := uuid.Parse(threadID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_thread_id", "thread_id must be a UUID", h.logger)
		return nil, false
	}
	th, err := h.store.Get(r.Context(), id, session)
	if err != nil {
		h.storeError(w, err)
		return nil, false
	}
	return th, true
}

// loadHistory reconstructs the prompt history from a thread's persisted
// items, the most recent when before is nil, otherwise those strictly
// preceding it.
func (h *opsHandler) loadHistory(r *http.Request, threadID uuid.UUID, before *time.Time) ([]orchestrator.Exchange, error) {
	items, err := h.store.ListItems(r.Context(), threadID, historyWindow, before, false)
	if err != nil {
		return nil, err
	}
	// Items arrive newest first; history reads oldest first.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return historyFromItems(items), nil
}

// historyFromItems folds message items into prompt exchanges. Tool
// widgets are skipped; their results were already folded into the
// assistant messages of their turn.
func historyFromItems(items []*thread.Item) []orchestrator.Exchange {
	var history []orchestrator.Exchange
	for _, item := range items {
		var role string
		switch item.Type {
		case thread.TypeUserMessage:
			role = orchestrator.RoleUser
		case thread.TypeAssistantMessage:
			role = orchestrator.RoleAssistant
		default:
			continue
		}
		text, ok := messageText(item)
		if !ok {
			continue
		}
		history = append(history, orchestrator.Exchange{Role: role, Text: text})
	}
	return history
}

// messageText extracts the text of a message item.
func messageText(item *thread.Item) (string, bool) {
	var payload thread.MessagePayload
	if err := json.Unmarshal(item.Payload, &payload); err != nil || payload.Text == "" {
		return "", false
	}
	return payload.Text, true
}

// storeError maps store errors to HTTP responses.
func (h *opsHandler) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, thread.ErrThreadNotFound):
		writeError(w, http.StatusNotFound, "thread_not_found", err.Error(), h.logger)
	case errors.Is(err, thread.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "item_not_found", err.Error(), h.logger)
	case errors.Is(err, thread.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), h.logger)
	default:
		h.logger.Error("thread store failure", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
	}
}

// parseCursor parses an RFC 3339 cursor, empty meaning none.
func parseCursor(raw string) (*time.Time, bool) {
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, false
	}
	return &t, true
}
