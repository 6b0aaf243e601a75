package skill

import (
	"context"

	"github.com/david8712403/lec-dashboard-sub000/internal/tutor"
)

type addStudentInput struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Notes   string `json:"notes"`
}

type studentRefInput struct {
	Student string `json:"student"`
}

type updateStudentInput struct {
	Student string  `json:"student"`
	Name    *string `json:"name"`
	Contact *string `json:"contact"`
	Notes   *string `json:"notes"`
}

type StudentListResult struct {
	Count    int              `json:"count"`
	Students []*tutor.Student `json:"students"`
}

func studentSkills(dir Directory) []*Skill {
	return []*Skill{
		New("add_student",
			"Create a new student record.",
			`{"name": string, "contact"?: string, "notes"?: string}`,
			func(ctx context.Context, in addStudentInput) (*tutor.Student, error) {
				return dir.CreateStudent(ctx, in.Name, in.Contact, in.Notes)
			}),

		New("list_students",
			"List all students, newest first.",
			`{}`,
			func(ctx context.Context, _ struct{}) (StudentListResult, error) {
				students, err := dir.ListStudents(ctx)
				if err != nil {
					return StudentListResult{}, err
				}
				return StudentListResult{Count: len(students), Students: students}, nil
			}),

		New("get_student",
			"Look up one student by ID or (partial) name.",
			`{"student": string}`,
			func(ctx context.Context, in studentRefInput) (*tutor.Student, error) {
				return dir.ResolveStudent(ctx, in.Student)
			}),

		New("update_student",
			"Update a student's name, contact, or notes. Only provided fields change.",
			`{"student": string, "name"?: string, "contact"?: string, "notes"?: string}`,
			func(ctx context.Context, in updateStudentInput) (*tutor.Student, error) {
				st, err := dir.ResolveStudent(ctx, in.Student)
				if err != nil {
					return nil, err
				}
				return dir.UpdateStudent(ctx, st.ID, in.Name, in.Contact, in.Notes)
			}),
	}
}
