package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/david8712403/lec-dashboard-sub000/internal/api"
	"github.com/david8712403/lec-dashboard-sub000/internal/log"
	"github.com/david8712403/lec-dashboard-sub000/internal/orchestrator"
	"github.com/david8712403/lec-dashboard-sub000/internal/skill"
	"github.com/david8712403/lec-dashboard-sub000/internal/testutil"
	"github.com/david8712403/lec-dashboard-sub000/internal/thread"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type listResult struct {
	Count int `json:"count"`
}

type testEnv struct {
	server *api.Server
	store  *testutil.MemThreadStore
	mock   *testutil.MockModel
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mock := testutil.NewMockModel(`{"type": "final", "reply": "好的。"}`)
	reg := skill.NewRegistry()
	require.NoError(t, reg.Register(skill.New("list_students", "List all students.", "{}",
		func(_ context.Context, _ struct{}) (listResult, error) {
			return listResult{Count: 2}, nil
		})))

	store := testutil.NewMemThreadStore()
	runner := orchestrator.New(mock, reg, log.NewNop())

	server, err := api.NewServer(api.ServerConfig{
		Logger:  log.NewNop(),
		Threads: store,
		Runner:  runner,
	})
	require.NoError(t, err)

	return &testEnv{server: server, store: store, mock: mock}
}

func (e *testEnv) postOps(t *testing.T, session string, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/threads/ops", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set("X-Session-ID", session)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

type sseEvent struct {
	name string
	data json.RawMessage
}

// parseSSE splits a recorded SSE body into named events.
func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()

	var events []sseEvent
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			if name, ok := strings.CutPrefix(line, "event: "); ok {
				ev.name = name
			}
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				ev.data = json.RawMessage(data)
			}
		}
		require.NotEmpty(t, ev.name, "SSE block without event name: %q", block)
		events = append(events, ev)
	}
	return events
}

func eventNames(events []sseEvent) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.name
	}
	return out
}

func decodeItem(t *testing.T, data json.RawMessage) *thread.Item {
	t.Helper()
	var item thread.Item
	require.NoError(t, json.Unmarshal(data, &item))
	return &item
}

func TestCreateThreadStreamsTurn(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.mock.Push(`{"type": "tool_call", "tool": "list_students", "action": "list_students", "args": {}}`)
	env.mock.Push(`{"type": "final", "reply": "你目前有 2 位個案。"}`)

	rec := env.postOps(t, "s1", map[string]any{
		"type": "threads.create",
		"text": "我有哪些個案？",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))

	// Order: user message persisted and done, thinking status, pending
	// tool widget, its completed replacement, assistant message, and
	// the trailing elapsed status.
	events := parseSSE(t, rec.Body.String())
	assert.Equal(t, []string{
		"thread.created",
		"thread.item.added",
		"thread.item.done",
		"progress_update",
		"thread.item.added",
		"thread.item.replaced",
		"thread.item.added",
		"thread.item.done",
		"progress_update",
	}, eventNames(events))

	// The tool widget keeps its identifier across pending→completed.
	added := decodeItem(t, events[4].data)
	replaced := decodeItem(t, events[5].data)
	assert.Equal(t, added.ID, replaced.ID)
	assert.Equal(t, thread.TypeToolWidget, added.Type)
	assert.Contains(t, string(added.Payload), `"pending"`)
	assert.Contains(t, string(replaced.Payload), `"completed"`)

	// Thread title derives from the first user message.
	var created thread.Thread
	require.NoError(t, json.Unmarshal(events[0].data, &created))
	assert.Equal(t, "我有哪些個案？", created.Title)

	// Everything emitted was persisted: user message, widget, assistant.
	items, err := env.store.ListItems(context.Background(), created.ID, 10, nil, true)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, thread.TypeUserMessage, items[0].Type)
	assert.Equal(t, thread.TypeToolWidget, items[1].Type)
	assert.Equal(t, thread.TypeAssistantMessage, items[2].Type)
}

func TestCreateThreadRequiresText(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.postOps(t, "s1", map[string]any{"type": "threads.create"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddUserMessageCarriesHistory(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	th, err := env.store.Create(ctx, "第一句話", "s1")
	require.NoError(t, err)
	_, err = env.store.AppendItem(ctx, th.ID, thread.TypeUserMessage, thread.MessagePayload{Text: "第一句話"})
	require.NoError(t, err)
	_, err = env.store.AppendItem(ctx, th.ID, thread.TypeAssistantMessage, thread.MessagePayload{Text: "好的，我記下了。"})
	require.NoError(t, err)

	rec := env.postOps(t, "s1", map[string]any{
		"type":      "threads.add_user_message",
		"thread_id": th.ID.String(),
		"text":      "第二句話",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	events := parseSSE(t, rec.Body.String())
	assert.Equal(t, "thread.item.added", events[0].name)

	calls := env.mock.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "user: 第一句話")
	assert.Contains(t, calls[0], "assistant: 好的，我記下了。")
	assert.Contains(t, calls[0], "第二句話")
}

func TestCreateFromSharedSeedsHistory(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	// Anonymous threads are visible to every session.
	shared, err := env.store.Create(ctx, "共用的對話", "")
	require.NoError(t, err)
	_, err = env.store.AppendItem(ctx, shared.ID, thread.TypeUserMessage, thread.MessagePayload{Text: "共用的問題"})
	require.NoError(t, err)
	_, err = env.store.AppendItem(ctx, shared.ID, thread.TypeAssistantMessage, thread.MessagePayload{Text: "共用的回答"})
	require.NoError(t, err)

	rec := env.postOps(t, "s9", map[string]any{
		"type":      "threads.create_from_shared",
		"thread_id": shared.ID.String(),
		"text":      "接著問",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	events := parseSSE(t, rec.Body.String())
	names := eventNames(events)
	assert.Equal(t, "thread.created", names[0])
	assert.Contains(t, names, "notice")

	// A new thread was created for the caller; the shared one is untouched.
	var created thread.Thread
	require.NoError(t, json.Unmarshal(events[0].data, &created))
	assert.NotEqual(t, shared.ID, created.ID)

	calls := env.mock.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "user: 共用的問題")
	assert.Contains(t, calls[0], "assistant: 共用的回答")
}

func TestAddUserMessageUnknownThread(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.postOps(t, "s1", map[string]any{
		"type":      "threads.add_user_message",
		"thread_id": "2f0fb1f5-9a3f-4b58-9b10-6f2f6b0f8a11",
		"text":      "hi",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRetryAfterItemRerunsNearestUserMessage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	th, err := env.store.Create(ctx, "查個案", "s1")
	require.NoError(t, err)
	_, err = env.store.AppendItem(ctx, th.ID, thread.TypeUserMessage, thread.MessagePayload{Text: "查個案"})
	require.NoError(t, err)
	failed, err := env.store.AppendItem(ctx, th.ID, thread.TypeAssistantMessage, thread.MessagePayload{Text: "出錯了"})
	require.NoError(t, err)

	rec := env.postOps(t, "s1", map[string]any{
		"type":      "threads.retry_after_item",
		"thread_id": th.ID.String(),
		"item_id":   failed.ID.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// The retried turn prompts with the original user text and persists
	// no new user item.
	calls := env.mock.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "查個案")

	items, err := env.store.ListItems(ctx, th.ID, 10, nil, true)
	require.NoError(t, err)
	var userCount int
	for _, item := range items {
		if item.Type == thread.TypeUserMessage {
			userCount++
		}
	}
	assert.Equal(t, 1, userCount)
}

func TestRetryAfterItemDeepThread(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	th, err := env.store.Create(ctx, "長對話", "s1")
	require.NoError(t, err)
	var newest *thread.Item
	for i := 1; i <= 60; i++ {
		newest, err = env.store.AppendItem(ctx, th.ID, thread.TypeUserMessage, thread.MessagePayload{Text: fmt.Sprintf("訊息 %d", i)})
		require.NoError(t, err)
	}

	// Retrying the newest item must work even when the thread holds
	// more items than one history page.
	rec := env.postOps(t, "s1", map[string]any{
		"type":      "threads.retry_after_item",
		"thread_id": th.ID.String(),
		"item_id":   newest.ID.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	calls := env.mock.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "訊息 60")

	// Retrying a trailing assistant item walks back across the same
	// deep thread to its user message.
	failed, err := env.store.AppendItem(ctx, th.ID, thread.TypeAssistantMessage, thread.MessagePayload{Text: "壞掉的回覆"})
	require.NoError(t, err)

	rec = env.postOps(t, "s1", map[string]any{
		"type":      "threads.retry_after_item",
		"thread_id": th.ID.String(),
		"item_id":   failed.ID.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	calls = env.mock.Calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1], "訊息 60")
}

func TestAddClientToolOutputAcknowledges(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.postOps(t, "s1", map[string]any{
		"type":   "threads.add_client_tool_output",
		"output": map[string]any{"widget": "calendar", "picked": "2025-09-01"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok": true}`, rec.Body.String())
	assert.Empty(t, env.mock.Calls(), "no orchestration on client tool output")
}

func TestThreadCRUDOps(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	th, err := env.store.Create(ctx, "我的對話", "s1")
	require.NoError(t, err)

	// threads.list respects the session filter.
	rec := env.postOps(t, "s1", map[string]any{"type": "threads.list"})
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Threads []*thread.Thread `json:"threads"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Threads, 1)

	rec = env.postOps(t, "s2", map[string]any{"type": "threads.list"})
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Empty(t, listed.Threads)

	// threads.get_by_id returns thread plus items.
	rec = env.postOps(t, "s1", map[string]any{
		"type":      "threads.get_by_id",
		"thread_id": th.ID.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), th.ID.String())

	// Another session cannot reach it.
	rec = env.postOps(t, "s2", map[string]any{
		"type":      "threads.get_by_id",
		"thread_id": th.ID.String(),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// threads.update changes title and status.
	rec = env.postOps(t, "s1", map[string]any{
		"type":      "threads.update",
		"thread_id": th.ID.String(),
		"title":     "改名了",
		"status":    thread.StatusClosed,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	got, err := env.store.Get(ctx, th.ID, "s1")
	require.NoError(t, err)
	assert.Equal(t, "改名了", got.Title)
	assert.Equal(t, thread.StatusClosed, got.Status)

	rec = env.postOps(t, "s1", map[string]any{
		"type":      "threads.update",
		"thread_id": th.ID.String(),
		"status":    "archived",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// threads.delete removes the thread.
	rec = env.postOps(t, "s1", map[string]any{
		"type":      "threads.delete",
		"thread_id": th.ID.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	_, err = env.store.Get(ctx, th.ID, "s1")
	assert.ErrorIs(t, err, thread.ErrThreadNotFound)
}

func TestGetThreadReturnsAllItems(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	th, err := env.store.Create(ctx, "很長的對話", "s1")
	require.NoError(t, err)
	for i := 1; i <= 210; i++ {
		_, err = env.store.AppendItem(ctx, th.ID, thread.TypeUserMessage, thread.MessagePayload{Text: fmt.Sprintf("訊息 %d", i)})
		require.NoError(t, err)
	}

	rec := env.postOps(t, "s1", map[string]any{
		"type":      "threads.get_by_id",
		"thread_id": th.ID.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Items []*thread.Item `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Items, 210)
}

func TestItemsListPagination(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	th, err := env.store.Create(ctx, "page", "s1")
	require.NoError(t, err)
	for _, text := range []string{"a", "b", "c"} {
		_, err = env.store.AppendItem(ctx, th.ID, thread.TypeUserMessage, thread.MessagePayload{Text: text})
		require.NoError(t, err)
	}

	rec := env.postOps(t, "s1", map[string]any{
		"type":      "items.list",
		"thread_id": th.ID.String(),
		"limit":     2,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []*thread.Item `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 2)

	rec = env.postOps(t, "s1", map[string]any{
		"type":      "items.list",
		"thread_id": th.ID.String(),
		"cursor":    page.Items[1].CreatedAt.Format(time.RFC3339Nano),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Contains(t, string(page.Items[0].Payload), `"c"`)
}

func TestUnknownOperation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.postOps(t, "", map[string]any{"type": "threads.explode"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown_operation")
}

func TestPersistenceFailureMidStream(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.mock.Push(`{"type": "tool_call", "tool": "list_students", "action": "list_students", "args": {}}`)

	// The user message append succeeds; the tool widget append fails.
	env.store.FailAppendAfter(1, errors.New("disk full"))

	rec := env.postOps(t, "s1", map[string]any{
		"type": "threads.create",
		"text": "查個案",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	events := parseSSE(t, rec.Body.String())
	names := eventNames(events)
	assert.Contains(t, names, "error")
	// The stream still closes with the trailing progress update.
	assert.Equal(t, "progress_update", names[len(names)-1])
}

func TestHealthProbes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// readyz without a pool reports ok.
	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitExceeded(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockModel(`{"type": "final", "reply": "ok"}`)
	store := testutil.NewMemThreadStore()
	server, err := api.NewServer(api.ServerConfig{
		Logger:    log.NewNop(),
		Threads:   store,
		Runner:    orchestrator.New(mock, skill.NewRegistry(), log.NewNop()),
		RateBurst: 1,
	})
	require.NoError(t, err)

	body := bytes.NewReader([]byte(`{"type": "threads.list"}`))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/threads/ops", body)
	req.RemoteAddr = "203.0.113.9:1234"
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/threads/ops", bytes.NewReader([]byte(`{"type": "threads.list"}`)))
	req.RemoteAddr = "203.0.113.9:5678"
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
