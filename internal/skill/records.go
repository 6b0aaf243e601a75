package skill

import (
	"context"
	"time"

	"github.com/david8712403/lec-dashboard-sub000/internal/tutor"
)

type recordInput struct {
	Student string `json:"student"`
	Date    string `json:"date"`
	Note    string `json:"note"`
}

type leaveInput struct {
	Student string `json:"student"`
	Date    string `json:"date"`
	Reason  string `json:"reason"`
}

// recordSkills covers attendance marks, leave marks, and free-text class
// notes. Date expressions ("today", "明天", "MM-DD") resolve against the
// server clock.
func recordSkills(dir Directory) []*Skill {
	addRecord := func(ctx context.Context, student, recordType, dateExpr, note string) (*tutor.ClassRecord, error) {
		st, err := dir.ResolveStudent(ctx, student)
		if err != nil {
			return nil, err
		}
		date, err := ResolveDate(dateExpr, time.Now())
		if err != nil {
			return nil, err
		}
		return dir.AddClassRecord(ctx, st.ID, recordType, date, note)
	}

	return []*Skill{
		New("add_attendance",
			"Record that a student attended class on a date.",
			`{"student": string, "date"?: string, "note"?: string}`,
			func(ctx context.Context, in recordInput) (*tutor.ClassRecord, error) {
				return addRecord(ctx, in.Student, tutor.RecordAttendance, in.Date, in.Note)
			}),

		New("add_leave",
			"Record that a student took leave on a date.",
			`{"student": string, "date"?: string, "reason"?: string}`,
			func(ctx context.Context, in leaveInput) (*tutor.ClassRecord, error) {
				return addRecord(ctx, in.Student, tutor.RecordLeave, in.Date, in.Reason)
			}),

		New("add_class_note",
			"Attach a free-text class note to a student on a date.",
			`{"student": string, "date"?: string, "note": string}`,
			func(ctx context.Context, in recordInput) (*tutor.ClassRecord, error) {
				return addRecord(ctx, in.Student, tutor.RecordNote, in.Date, in.Note)
			}),
	}
}
