// Package tutor provides the tutoring domain store: students, weekly
// schedule slots, class records, ability assessments, and payments.
//
// Responsibilities: CRUD over PostgreSQL plus natural-reference student
// resolution. No knowledge of language models or the wire protocol.
package tutor

import (
	"time"

	"github.com/google/uuid"
)

// Student is a tutored person record.
type Student struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Contact   string    `json:"contact,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ScheduleSlot is a recurring weekly lesson time.
// Weekday follows time.Weekday numbering (Sunday = 0).
type ScheduleSlot struct {
	ID          uuid.UUID `json:"id"`
	StudentID   uuid.UUID `json:"student_id"`
	Weekday     int       `json:"weekday"`
	StartTime   string    `json:"start_time"` // "HH:MM", 24-hour
	DurationMin int       `json:"duration_min"`
	CreatedAt   time.Time `json:"created_at"`
}

// Class record types.
const (
	RecordAttendance = "attendance"
	RecordLeave      = "leave"
	RecordNote       = "note"
)

// ClassRecord is an attendance mark, a leave mark, or a free-text class
// note for a student on a given date.
type ClassRecord struct {
	ID         uuid.UUID `json:"id"`
	StudentID  uuid.UUID `json:"student_id"`
	RecordType string    `json:"record_type"`
	RecordDate time.Time `json:"record_date"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Assessment is one ability assessment: a named kind plus per-ability
// scores.
type Assessment struct {
	ID         uuid.UUID          `json:"id"`
	StudentID  uuid.UUID          `json:"student_id"`
	Kind       string             `json:"kind"`
	Scores     map[string]float64 `json:"scores"`
	AssessedOn time.Time          `json:"assessed_on"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Payment is a tuition payment record. Amount is in whole currency units.
type Payment struct {
	ID        uuid.UUID `json:"id"`
	StudentID uuid.UUID `json:"student_id"`
	Amount    int64     `json:"amount"`
	PaidOn    time.Time `json:"paid_on"`
	Method    string    `json:"method,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
