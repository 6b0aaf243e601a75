package skill

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/david8712403/lec-dashboard-sub000/internal/tutor"
)

// Directory is the domain store surface the catalog needs.
// Defined here because the skills consume it; *tutor.Store satisfies it.
type Directory interface {
	CreateStudent(ctx context.Context, name, contact, notes string) (*tutor.Student, error)
	ListStudents(ctx context.Context) ([]*tutor.Student, error)
	ResolveStudent(ctx context.Context, ref string) (*tutor.Student, error)
	UpdateStudent(ctx context.Context, id uuid.UUID, name, contact, notes *string) (*tutor.Student, error)

	CreateSlot(ctx context.Context, studentID uuid.UUID, weekday int, startTime string, durationMin int) (*tutor.ScheduleSlot, error)
	ListSlots(ctx context.Context, studentID *uuid.UUID, weekday *int) ([]*tutor.ScheduleSlot, error)
	DeleteSlot(ctx context.Context, id uuid.UUID) error

	AddClassRecord(ctx context.Context, studentID uuid.UUID, recordType string, date time.Time, note string) (*tutor.ClassRecord, error)

	AddAssessment(ctx context.Context, studentID uuid.UUID, kind string, scores map[string]float64, assessedOn time.Time) (*tutor.Assessment, error)
	ListAssessments(ctx context.Context, studentID uuid.UUID, kind string) ([]*tutor.Assessment, error)

	AddPayment(ctx context.Context, studentID uuid.UUID, amount int64, paidOn time.Time, method, note string) (*tutor.Payment, error)
	ListPayments(ctx context.Context, studentID uuid.UUID, from, to *time.Time) ([]*tutor.Payment, error)
	DeletePayment(ctx context.Context, id uuid.UUID) error
}

// RegisterAll populates the registry with the full action catalog.
// Called once at startup; any registration error is fatal.
func RegisterAll(reg *Registry, dir Directory) error {
	groups := [][]*Skill{
		studentSkills(dir),
		scheduleSkills(dir),
		recordSkills(dir),
		assessmentSkills(dir),
		paymentSkills(dir),
	}
	for _, group := range groups {
		for _, sk := range group {
			if err := reg.Register(sk); err != nil {
				return err
			}
		}
	}
	return nil
}

// NewCatalog builds a fully registered registry.
func NewCatalog(dir Directory) (*Registry, error) {
	reg := NewRegistry()
	if err := RegisterAll(reg, dir); err != nil {
		return nil, err
	}
	return reg, nil
}
