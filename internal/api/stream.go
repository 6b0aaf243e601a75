package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/david8712403/lec-dashboard-sub000/internal/log"
	"github.com/david8712403/lec-dashboard-sub000/internal/model"
	"github.com/david8712403/lec-dashboard-sub000/internal/orchestrator"
	"github.com/david8712403/lec-dashboard-sub000/internal/thread"
)

// ThreadStore is the persistence surface the ops handler and the stream
// adapter need. *thread.Store satisfies it; tests use an in-memory
// implementation.
type ThreadStore interface {
	Create(ctx context.Context, firstMessage, sessionID string) (*thread.Thread, error)
	Get(ctx context.Context, id uuid.UUID, session string) (*thread.Thread, error)
	List(ctx context.Context, session string, limit int, cursor *time.Time, ascending bool) ([]*thread.Thread, error)
	Update(ctx context.Context, id uuid.UUID, session string, title, status *string) (*thread.Thread, error)
	Delete(ctx context.Context, id uuid.UUID, session string) error
	AppendItem(ctx context.Context, threadID uuid.UUID, itemType string, payload any) (*thread.Item, error)
	GetItem(ctx context.Context, id uuid.UUID) (*thread.Item, error)
	ListItems(ctx context.Context, threadID uuid.UUID, limit int, cursor *time.Time, ascending bool) ([]*thread.Item, error)
	ReplaceItemPayload(ctx context.Context, id uuid.UUID, payload any) (*thread.Item, error)
}

// TurnRunner drives one assistant turn. *orchestrator.Orchestrator
// satisfies it.
type TurnRunner interface {
	Run(ctx context.Context, message string, history []orchestrator.Exchange, sink orchestrator.Sink)
}

// pendingWidget remembers a tool_widget created for a tool_call so the
// matching tool_result replaces the same item.
type pendingWidget struct {
	id      uuid.UUID
	payload thread.ToolWidgetPayload
}

// streamSink translates orchestrator events into persisted thread items
// and SSE wire events, writing before emitting for every persisted kind.
type streamSink struct {
	ctx      context.Context
	w        io.Writer
	flusher  http.Flusher
	store    ThreadStore
	threadID uuid.UUID
	pending  map[int]pendingWidget
	logger   log.Logger
}

func newStreamSink(ctx context.Context, w io.Writer, flusher http.Flusher, store ThreadStore, threadID uuid.UUID, logger log.Logger) *streamSink {
	return &streamSink{
		ctx:      ctx,
		w:        w,
		flusher:  flusher,
		store:    store,
		threadID: threadID,
		pending:  make(map[int]pendingWidget),
		logger:   logger,
	}
}

// Status is transient: emitted, never persisted.
func (s *streamSink) Status(text string) {
	if err := writeEvent(s.w, s.flusher, EventProgressUpdate, progressPayload{Text: text}); err != nil {
		s.logger.Debug("writing progress event", "error", err)
	}
}

func (s *streamSink) ToolCall(tool, action string, args map[string]any, step int) error {
	payload := thread.ToolWidgetPayload{
		Tool:   tool,
		Action: action,
		Args:   args,
		Status: thread.WidgetPending,
	}
	item, err := s.store.AppendItem(s.ctx, s.threadID, thread.TypeToolWidget, payload)
	if err != nil {
		s.persistFailed(err)
		return err
	}
	s.pending[step] = pendingWidget{id: item.ID, payload: payload}
	return writeEvent(s.w, s.flusher, EventItemAdded, item)
}

func (s *streamSink) ToolResult(tool, action string, duration time.Duration, result any, step int) error {
	widget, ok := s.pending[step]
	if !ok {
		return fmt.Errorf("no pending tool widget for step %d", step)
	}
	delete(s.pending, step)

	payload := widget.payload
	payload.Status = thread.WidgetCompleted
	payload.Result = result

	item, err := s.store.ReplaceItemPayload(s.ctx, widget.id, payload)
	if err != nil {
		s.persistFailed(err)
		return err
	}
	s.logger.Debug("tool completed", "action", action, "duration", duration)
	return writeEvent(s.w, s.flusher, EventItemReplaced, item)
}

func (s *streamSink) Message(text string) error {
	item, err := s.store.AppendItem(s.ctx, s.threadID, thread.TypeAssistantMessage, thread.MessagePayload{Text: text})
	if err != nil {
		s.persistFailed(err)
		return err
	}
	if err := writeEvent(s.w, s.flusher, EventItemAdded, item); err != nil {
		return err
	}
	return writeEvent(s.w, s.flusher, EventItemDone, itemDonePayload{ItemID: item.ID.String()})
}

func (s *streamSink) Error(err error, retryable bool) {
	code := "turn_failed"
	if errors.Is(err, model.ErrModelUnavailable) {
		code = "model_unavailable"
	}
	if werr := writeEvent(s.w, s.flusher, EventError, errorPayload{
		Code:      code,
		Message:   err.Error(),
		Retryable: retryable,
	}); werr != nil {
		s.logger.Debug("writing error event", "error", werr)
	}
}

// persistFailed reports a mid-stream persistence failure on the wire.
func (s *streamSink) persistFailed(err error) {
	s.logger.Error("persisting stream item", "thread", s.threadID, "error", err)
	if werr := writeEvent(s.w, s.flusher, EventError, errorPayload{
		Code:      "persistence_failed",
		Message:   err.Error(),
		Retryable: true,
	}); werr != nil {
		s.logger.Debug("writing error event", "error", werr)
	}
}

// streamTurn runs one assistant turn over an open SSE response. The
// user message item must already be persisted and emitted by the caller.
func (h *opsHandler) streamTurn(w http.ResponseWriter, flusher http.Flusher, r *http.Request, th *thread.Thread, message string, history []orchestrator.Exchange) {
	sink := newStreamSink(r.Context(), w, flusher, h.store, th.ID, h.logger)
	h.runner.Run(r.Context(), message, history, sink)
}
