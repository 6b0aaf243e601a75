package thread

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/david8712403/lec-dashboard-sub000/internal/log"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	threadCols = `id, title, status, session_id, created_at`
	itemCols   = `id, thread_id, item_type, payload, created_at`

	defaultPageSize = 50
	maxPageSize     = 200
)

// Store persists conversation threads and their items in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     querier
	logger log.Logger
}

// NewStore creates a thread store on the given pool.
func NewStore(pool *pgxpool.Pool, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: pool, logger: logger}
}

// Create starts a thread. The title is derived from the first user
// message and set once. An empty sessionID creates an anonymous thread
// visible to every session.
func (s *Store) Create(ctx context.Context, firstMessage, sessionID string) (*Thread, error) {
	th := &Thread{
		ID:        uuid.New(),
		Title:     TitleFromMessage(firstMessage),
		Status:    StatusActive,
		SessionID: sessionID,
		CreatedAt: time.Now(),
	}
	var session *string
	if sessionID != "" {
		session = &sessionID
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO threads (id, title, status, session_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		th.ID, th.Title, th.Status, session, th.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating thread: %w", err)
	}

	s.logger.Debug("created thread", "id", th.ID, "title", th.Title)
	return th, nil
}

// Get retrieves a thread visible to the given session. Anonymous
// threads are visible to everyone; an empty session sees all threads.
func (s *Store) Get(ctx context.Context, id uuid.UUID, session string) (*Thread, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+threadCols+` FROM threads
		 WHERE id = $1 AND ($2 = '' OR session_id = $2 OR session_id IS NULL)`,
		id, session)
	th, err := scanThread(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrThreadNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting thread: %w", err)
	}
	return th, nil
}

// List returns threads visible to the session, newest first by default.
// cursor is the exclusive created_at boundary of the previous page.
func (s *Store) List(ctx context.Context, session string, limit int, cursor *time.Time, ascending bool) ([]*Thread, error) {
	limit = clampLimit(limit)
	cmp, order := pageClause(ascending)
	rows, err := s.db.Query(ctx,
		`SELECT `+threadCols+` FROM threads
		 WHERE ($1 = '' OR session_id = $1 OR session_id IS NULL)
		   AND ($2::timestamptz IS NULL OR created_at `+cmp+` $2)
		 ORDER BY created_at `+order+`
		 LIMIT $3`, session, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("listing threads: %w", err)
	}
	defer rows.Close()

	var out []*Thread
	for rows.Next() {
		th, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning thread: %w", err)
		}
		out = append(out, th)
	}
	return out, rows.Err()
}

// Update changes a thread's title and/or status. Nil fields are left
// untouched.
func (s *Store) Update(ctx context.Context, id uuid.UUID, session string, title, status *string) (*Thread, error) {
	if status != nil && !ValidStatus(*status) {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidInput, *status)
	}

	row := s.db.QueryRow(ctx,
		`UPDATE threads
		 SET title = COALESCE($3, title),
		     status = COALESCE($4, status)
		 WHERE id = $1 AND ($2 = '' OR session_id = $2 OR session_id IS NULL)
		 RETURNING `+threadCols, id, session, title, status)
	th, err := scanThread(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrThreadNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("updating thread: %w", err)
	}
	return th, nil
}

// Delete removes a thread and, via the FK cascade, all of its items.
func (s *Store) Delete(ctx context.Context, id uuid.UUID, session string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM threads
		 WHERE id = $1 AND ($2 = '' OR session_id = $2 OR session_id IS NULL)`,
		id, session)
	if err != nil {
		return fmt.Errorf("deleting thread: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrThreadNotFound, id)
	}
	return nil
}

// AppendItem adds an item to a thread. payload is marshaled to JSON.
func (s *Store) AppendItem(ctx context.Context, threadID uuid.UUID, itemType string, payload any) (*Item, error) {
	switch itemType {
	case TypeUserMessage, TypeAssistantMessage, TypeToolWidget:
	default:
		return nil, fmt.Errorf("%w: item type %q", ErrInvalidInput, itemType)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding item payload: %w", err)
	}

	item := &Item{
		ID:        uuid.New(),
		ThreadID:  threadID,
		Type:      itemType,
		Payload:   body,
		CreatedAt: time.Now(),
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO thread_items (id, thread_id, item_type, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		item.ID, item.ThreadID, item.Type, item.Payload, item.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("appending thread item: %w", err)
	}
	return item, nil
}

// GetItem retrieves a single item by ID.
func (s *Store) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+itemCols+` FROM thread_items WHERE id = $1`, id)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting thread item: %w", err)
	}
	return item, nil
}

// ListItems returns a page of a thread's items in creation order.
// cursor is the exclusive created_at boundary of the previous page.
func (s *Store) ListItems(ctx context.Context, threadID uuid.UUID, limit int, cursor *time.Time, ascending bool) ([]*Item, error) {
	limit = clampLimit(limit)
	cmp, order := pageClause(ascending)
	rows, err := s.db.Query(ctx,
		`SELECT `+itemCols+` FROM thread_items
		 WHERE thread_id = $1
		   AND ($2::timestamptz IS NULL OR created_at `+cmp+` $2)
		 ORDER BY created_at `+order+`
		 LIMIT $3`, threadID, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("listing thread items: %w", err)
	}
	defer rows.Close()

	var out []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning thread item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// ReplaceItemPayload swaps an item's payload in place. This is the only
// mutation on persisted items; the item keeps its identifier.
func (s *Store) ReplaceItemPayload(ctx context.Context, id uuid.UUID, payload any) (*Item, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding item payload: %w", err)
	}

	row := s.db.QueryRow(ctx,
		`UPDATE thread_items SET payload = $2 WHERE id = $1 RETURNING `+itemCols,
		id, body)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("replacing item payload: %w", err)
	}
	return item, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

// pageClause returns the cursor comparison and sort direction for a
// created_at keyset page.
func pageClause(ascending bool) (cmp, order string) {
	if ascending {
		return ">", "ASC"
	}
	return "<", "DESC"
}

func scanThread(row pgx.Row) (*Thread, error) {
	th := &Thread{}
	var session pgtype.Text
	if err := row.Scan(&th.ID, &th.Title, &th.Status, &session, &th.CreatedAt); err != nil {
		return nil, err
	}
	if session.Valid {
		th.SessionID = session.String
	}
	return th, nil
}

func scanItem(row pgx.Row) (*Item, error) {
	item := &Item{}
	if err := row.Scan(&item.ID, &item.ThreadID, &item.Type, &item.Payload, &item.CreatedAt); err != nil {
		return nil, err
	}
	return item, nil
}
