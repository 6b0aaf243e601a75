package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/david8712403/lec-dashboard-sub000/internal/thread"
)

// MemThreadStore is an in-memory thread store with the same semantics
// as the PostgreSQL one: session visibility, created_at cursors, and
// in-place payload replacement.
//
// Safe for concurrent use.
type MemThreadStore struct {
	mu           sync.Mutex
	threads      map[uuid.UUID]*thread.Thread
	items        map[uuid.UUID][]*thread.Item
	byID         map[uuid.UUID]*thread.Item
	clock        time.Time
	appendErr    error
	appendBudget int
}

// NewMemThreadStore creates an empty in-memory thread store.
func NewMemThreadStore() *MemThreadStore {
	return &MemThreadStore{
		threads: make(map[uuid.UUID]*thread.Thread),
		items:   make(map[uuid.UUID][]*thread.Item),
		byID:    make(map[uuid.UUID]*thread.Item),
		clock:   time.Now(),
	}
}

// FailAppendWith makes subsequent AppendItem calls return err. Pass nil
// to restore normal behavior.
func (s *MemThreadStore) FailAppendWith(err error) {
	s.FailAppendAfter(0, err)
}

// FailAppendAfter lets the next n AppendItem calls succeed and fails
// every one after that with err.
func (s *MemThreadStore) FailAppendAfter(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendErr = err
	s.appendBudget = n
}

// tick returns strictly increasing timestamps so item order is stable.
func (s *MemThreadStore) tick() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

func visible(th *thread.Thread, session string) bool {
	return session == "" || th.SessionID == "" || th.SessionID == session
}

func (s *MemThreadStore) Create(_ context.Context, firstMessage, sessionID string) (*thread.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	th := &thread.Thread{
		ID:        uuid.New(),
		Title:     thread.TitleFromMessage(firstMessage),
		Status:    thread.StatusActive,
		SessionID: sessionID,
		CreatedAt: s.tick(),
	}
	s.threads[th.ID] = th
	cp := *th
	return &cp, nil
}

func (s *MemThreadStore) Get(_ context.Context, id uuid.UUID, session string) (*thread.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	th, ok := s.threads[id]
	if !ok || !visible(th, session) {
		return nil, fmt.Errorf("%w: %s", thread.ErrThreadNotFound, id)
	}
	cp := *th
	return &cp, nil
}

func (s *MemThreadStore) List(_ context.Context, session string, limit int, cursor *time.Time, ascending bool) ([]*thread.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*thread.Thread
	for _, th := range s.threads {
		if !visible(th, session) {
			continue
		}
		if !passesCursor(th.CreatedAt, cursor, ascending) {
			continue
		}
		cp := *th
		out = append(out, &cp)
	}
	sortByCreated(out, ascending, func(th *thread.Thread) time.Time { return th.CreatedAt })
	return clampPage(out, limit), nil
}

func (s *MemThreadStore) Update(_ context.Context, id uuid.UUID, session string, title, status *string) (*thread.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	th, ok := s.threads[id]
	if !ok || !visible(th, session) {
		return nil, fmt.Errorf("%w: %s", thread.ErrThreadNotFound, id)
	}
	if status != nil && !thread.ValidStatus(*status) {
		return nil, fmt.Errorf("%w: status %q", thread.ErrInvalidInput, *status)
	}
	if title != nil {
		th.Title = *title
	}
	if status != nil {
		th.Status = *status
	}
	cp := *th
	return &cp, nil
}

func (s *MemThreadStore) Delete(_ context.Context, id uuid.UUID, session string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	th, ok := s.threads[id]
	if !ok || !visible(th, session) {
		return fmt.Errorf("%w: %s", thread.ErrThreadNotFound, id)
	}
	for _, item := range s.items[id] {
		delete(s.byID, item.ID)
	}
	delete(s.items, id)
	delete(s.threads, id)
	return nil
}

func (s *MemThreadStore) AppendItem(_ context.Context, threadID uuid.UUID, itemType string, payload any) (*thread.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.appendErr != nil {
		if s.appendBudget <= 0 {
			return nil, s.appendErr
		}
		s.appendBudget--
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding item payload: %w", err)
	}

	item := &thread.Item{
		ID:        uuid.New(),
		ThreadID:  threadID,
		Type:      itemType,
		Payload:   body,
		CreatedAt: s.tick(),
	}
	s.items[threadID] = append(s.items[threadID], item)
	s.byID[item.ID] = item
	cp := *item
	return &cp, nil
}

func (s *MemThreadStore) GetItem(_ context.Context, id uuid.UUID) (*thread.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", thread.ErrItemNotFound, id)
	}
	cp := *item
	return &cp, nil
}

func (s *MemThreadStore) ListItems(_ context.Context, threadID uuid.UUID, limit int, cursor *time.Time, ascending bool) ([]*thread.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*thread.Item
	for _, item := range s.items[threadID] {
		if !passesCursor(item.CreatedAt, cursor, ascending) {
			continue
		}
		cp := *item
		out = append(out, &cp)
	}
	sortByCreated(out, ascending, func(item *thread.Item) time.Time { return item.CreatedAt })
	return clampPage(out, limit), nil
}

func (s *MemThreadStore) ReplaceItemPayload(_ context.Context, id uuid.UUID, payload any) (*thread.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", thread.ErrItemNotFound, id)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding item payload: %w", err)
	}
	item.Payload = body
	cp := *item
	return &cp, nil
}

func passesCursor(created time.Time, cursor *time.Time, ascending bool) bool {
	if cursor == nil {
		return true
	}
	if ascending {
		return created.After(*cursor)
	}
	return created.Before(*cursor)
}

func sortByCreated[T any](page []T, ascending bool, at func(T) time.Time) {
	slices.SortFunc(page, func(a, b T) int {
		c := at(a).Compare(at(b))
		if !ascending {
			c = -c
		}
		return c
	})
}

func clampPage[T any](page []T, limit int) []T {
	if limit <= 0 {
		limit = 50
	}
	if len(page) > limit {
		return page[:limit]
	}
	return page
}
