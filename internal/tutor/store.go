package tutor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/david8712403/lec-dashboard-sub000/internal/log"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// studentCols is the standard SELECT column list for scanStudent.
const studentCols = `id, name, contact, notes, created_at`

// Store manages tutoring records backed by PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     querier
	logger log.Logger
}

// NewStore creates a tutoring store on the given pool.
func NewStore(pool *pgxpool.Pool, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: pool, logger: logger}
}

// CreateStudent inserts a new student record.
func (s *Store) CreateStudent(ctx context.Context, name, contact, notes string) (*Student, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: student name is required", ErrInvalidInput)
	}

	st := &Student{
		ID:        uuid.New(),
		Name:      name,
		Contact:   contact,
		Notes:     notes,
		CreatedAt: time.Now(),
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO students (id, name, contact, notes, created_at) VALUES ($1, $2, $3, $4, $5)`,
		st.ID, st.Name, st.Contact, st.Notes, st.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating student: %w", err)
	}

	s.logger.Debug("created student", "id", st.ID, "name", st.Name)
	return st, nil
}

// ListStudents returns all students, newest first.
func (s *Store) ListStudents(ctx context.Context) ([]*Student, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+studentCols+` FROM students ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing students: %w", err)
	}
	defer rows.Close()
	return scanStudents(rows)
}

// GetStudent retrieves a student by ID.
func (s *Store) GetStudent(ctx context.Context, id uuid.UUID) (*Student, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+studentCols+` FROM students WHERE id = $1`, id)
	st, err := scanStudent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: student %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting student: %w", err)
	}
	return st, nil
}

// ResolveStudent resolves a natural-language student reference.
//
// Two-phase lookup: exact identifier match first, then case-insensitive
// substring match against the name. When several names match, the most
// recently created student wins.
func (s *Store) ResolveStudent(ctx context.Context, ref string) (*Student, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty student reference", ErrInvalidInput)
	}

	if id, err := uuid.Parse(ref); err == nil {
		return s.GetStudent(ctx, id)
	}

	row := s.db.QueryRow(ctx,
		`SELECT `+studentCols+` FROM students
		 WHERE name ILIKE '%' || $1 || '%'
		 ORDER BY created_at DESC
		 LIMIT 1`, ref)
	st, err := scanStudent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: no student matching %q", ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("resolving student: %w", err)
	}
	return st, nil
}

// UpdateStudent updates the non-nil fields of a student.
func (s *Store) UpdateStudent(ctx context.Context, id uuid.UUID, name, contact, notes *string) (*Student, error) {
	if name != nil && strings.TrimSpace(*name) == "" {
		return nil, fmt.Errorf("%w: student name cannot be empty", ErrInvalidInput)
	}

	row := s.db.QueryRow(ctx,
		`UPDATE students
		 SET name = COALESCE($2, name),
		     contact = COALESCE($3, contact),
		     notes = COALESCE($4, notes)
		 WHERE id = $1
		 RETURNING `+studentCols, id, name, contact, notes)
	st, err := scanStudent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: student %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("updating student: %w", err)
	}
	return st, nil
}

// CreateSlot adds a recurring weekly schedule slot for a student.
func (s *Store) CreateSlot(ctx context.Context, studentID uuid.UUID, weekday int, startTime string, durationMin int) (*ScheduleSlot, error) {
	if weekday < 0 || weekday > 6 {
		return nil, fmt.Errorf("%w: weekday %d out of range 0-6", ErrInvalidInput, weekday)
	}
	if _, err := time.Parse("15:04", startTime); err != nil {
		return nil, fmt.Errorf("%w: start time %q is not HH:MM", ErrInvalidInput, startTime)
	}
	if durationMin <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}

	slot := &ScheduleSlot{
		ID:          uuid.New(),
		StudentID:   studentID,
		Weekday:     weekday,
		StartTime:   startTime,
		DurationMin: durationMin,
		CreatedAt:   time.Now(),
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO schedule_slots (id, student_id, weekday, start_time, duration_min, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		slot.ID, slot.StudentID, slot.Weekday, slot.StartTime, slot.DurationMin, slot.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating schedule slot: %w", err)
	}
	return slot, nil
}

// ListSlots returns schedule slots, optionally filtered by student and/or
// weekday, ordered by weekday then start time.
func (s *Store) ListSlots(ctx context.Context, studentID *uuid.UUID, weekday *int) ([]*ScheduleSlot, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, student_id, weekday, start_time, duration_min, created_at
		 FROM schedule_slots
		 WHERE ($1::uuid IS NULL OR student_id = $1)
		   AND ($2::smallint IS NULL OR weekday = $2)
		 ORDER BY weekday, start_time`, studentID, weekday)
	if err != nil {
		return nil, fmt.Errorf("listing schedule slots: %w", err)
	}
	defer rows.Close()

	var slots []*ScheduleSlot
	for rows.Next() {
		slot := &ScheduleSlot{}
		if err := rows.Scan(&slot.ID, &slot.StudentID, &slot.Weekday, &slot.StartTime, &slot.DurationMin, &slot.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning schedule slot: %w", err)
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// DeleteSlot removes a schedule slot.
func (s *Store) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM schedule_slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting schedule slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: schedule slot %s", ErrNotFound, id)
	}
	return nil
}

// AddClassRecord adds an attendance, leave, or note record.
func (s *Store) AddClassRecord(ctx context.Context, studentID uuid.UUID, recordType string, date time.Time, note string) (*ClassRecord, error) {
	switch recordType {
	case RecordAttendance, RecordLeave, RecordNote:
	default:
		return nil, fmt.Errorf("%w: record type %q", ErrInvalidInput, recordType)
	}

	rec := &ClassRecord{
		ID:         uuid.New(),
		StudentID:  studentID,
		RecordType: recordType,
		RecordDate: date,
		Note:       note,
		CreatedAt:  time.Now(),
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO class_records (id, student_id, record_type, record_date, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.StudentID, rec.RecordType, rec.RecordDate, rec.Note, rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("adding class record: %w", err)
	}
	return rec, nil
}

// AddAssessment records an ability assessment.
func (s *Store) AddAssessment(ctx context.Context, studentID uuid.UUID, kind string, scores map[string]float64, assessedOn time.Time) (*Assessment, error) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return nil, fmt.Errorf("%w: assessment kind is required", ErrInvalidInput)
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("%w: at least one score is required", ErrInvalidInput)
	}

	a := &Assessment{
		ID:         uuid.New(),
		StudentID:  studentID,
		Kind:       kind,
		Scores:     scores,
		AssessedOn: assessedOn,
		CreatedAt:  time.Now(),
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO assessments (id, student_id, kind, scores, assessed_on, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.StudentID, a.Kind, a.Scores, a.AssessedOn, a.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("adding assessment: %w", err)
	}
	return a, nil
}

// ListAssessments returns a student's assessments, newest first.
// kind filters by assessment kind when non-empty.
func (s *Store) ListAssessments(ctx context.Context, studentID uuid.UUID, kind string) ([]*Assessment, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, student_id, kind, scores, assessed_on, created_at
		 FROM assessments
		 WHERE student_id = $1 AND ($2 = '' OR kind = $2)
		 ORDER BY assessed_on DESC, created_at DESC`, studentID, kind)
	if err != nil {
		return nil, fmt.Errorf("listing assessments: %w", err)
	}
	defer rows.Close()

	var out []*Assessment
	for rows.Next() {
		a := &Assessment{}
		if err := rows.Scan(&a.ID, &a.StudentID, &a.Kind, &a.Scores, &a.AssessedOn, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning assessment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AddPayment records a tuition payment.
func (s *Store) AddPayment(ctx context.Context, studentID uuid.UUID, amount int64, paidOn time.Time, method, note string) (*Payment, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	p := &Payment{
		ID:        uuid.New(),
		StudentID: studentID,
		Amount:    amount,
		PaidOn:    paidOn,
		Method:    method,
		Note:      note,
		CreatedAt: time.Now(),
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO payments (id, student_id, amount, paid_on, method, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.StudentID, p.Amount, p.PaidOn, p.Method, p.Note, p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("adding payment: %w", err)
	}
	return p, nil
}

// ListPayments returns a student's payments within the optional date
// range, newest first.
func (s *Store) ListPayments(ctx context.Context, studentID uuid.UUID, from, to *time.Time) ([]*Payment, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, student_id, amount, paid_on, method, note, created_at
		 FROM payments
		 WHERE student_id = $1
		   AND ($2::date IS NULL OR paid_on >= $2)
		   AND ($3::date IS NULL OR paid_on <= $3)
		 ORDER BY paid_on DESC, created_at DESC`, studentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}
	defer rows.Close()

	var out []*Payment
	for rows.Next() {
		p := &Payment{}
		if err := rows.Scan(&p.ID, &p.StudentID, &p.Amount, &p.PaidOn, &p.Method, &p.Note, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePayment removes a payment record.
func (s *Store) DeletePayment(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: payment %s", ErrNotFound, id)
	}
	return nil
}

func scanStudent(row pgx.Row) (*Student, error) {
	st := &Student{}
	if err := row.Scan(&st.ID, &st.Name, &st.Contact, &st.Notes, &st.CreatedAt); err != nil {
		return nil, err
	}
	return st, nil
}

func scanStudents(rows pgx.Rows) ([]*Student, error) {
	var out []*Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning student: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
