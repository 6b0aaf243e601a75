package skill

import (
	"context"
	"fmt"
	"time"

	"github.com/david8712403/lec-dashboard-sub000/internal/tutor"
)

type addAssessmentInput struct {
	Student string             `json:"student"`
	Kind    string             `json:"kind"`
	Scores  map[string]float64 `json:"scores"`
	Date    string             `json:"date"`
}

type assessmentQueryInput struct {
	Student string `json:"student"`
	Kind    string `json:"kind"`
}

type AssessmentListResult struct {
	Count       int                 `json:"count"`
	Assessments []*tutor.Assessment `json:"assessments"`
}

// AssessmentCompareResult is the per-ability delta between a student's
// two most recent assessments of one kind.
type AssessmentCompareResult struct {
	Kind     string             `json:"kind"`
	Latest   string             `json:"latest"`   // assessment date, YYYY-MM-DD
	Previous string             `json:"previous"` // assessment date, YYYY-MM-DD
	Deltas   map[string]float64 `json:"deltas"`
}

func assessmentSkills(dir Directory) []*Skill {
	return []*Skill{
		New("add_assessment",
			"Record an ability assessment with per-ability scores.",
			`{"student": string, "kind": string, "scores": {ability: number, ...}, "date"?: string}`,
			func(ctx context.Context, in addAssessmentInput) (*tutor.Assessment, error) {
				st, err := dir.ResolveStudent(ctx, in.Student)
				if err != nil {
					return nil, err
				}
				date, err := ResolveDate(in.Date, time.Now())
				if err != nil {
					return nil, err
				}
				return dir.AddAssessment(ctx, st.ID, in.Kind, in.Scores, date)
			}),

		New("list_assessments",
			"List a student's assessments, optionally filtered by kind.",
			`{"student": string, "kind"?: string}`,
			func(ctx context.Context, in assessmentQueryInput) (AssessmentListResult, error) {
				st, err := dir.ResolveStudent(ctx, in.Student)
				if err != nil {
					return AssessmentListResult{}, err
				}
				list, err := dir.ListAssessments(ctx, st.ID, in.Kind)
				if err != nil {
					return AssessmentListResult{}, err
				}
				return AssessmentListResult{Count: len(list), Assessments: list}, nil
			}),

		New("compare_assessments",
			"Compare a student's two most recent assessments of the same kind, ability by ability.",
			`{"student": string, "kind"?: string}`,
			func(ctx context.Context, in assessmentQueryInput) (AssessmentCompareResult, error) {
				st, err := dir.ResolveStudent(ctx, in.Student)
				if err != nil {
					return AssessmentCompareResult{}, err
				}
				list, err := dir.ListAssessments(ctx, st.ID, in.Kind)
				if err != nil {
					return AssessmentCompareResult{}, err
				}
				if len(list) == 0 {
					return AssessmentCompareResult{}, fmt.Errorf("%w: no assessments to compare", tutor.ErrNotFound)
				}

				// Without a kind filter the list mixes kinds; the
				// previous assessment must match the latest one's kind.
				latest := list[0]
				var previous *tutor.Assessment
				for _, a := range list[1:] {
					if a.Kind == latest.Kind {
						previous = a
						break
					}
				}
				if previous == nil {
					return AssessmentCompareResult{}, fmt.Errorf("%w: need at least two %s assessments to compare", tutor.ErrNotFound, latest.Kind)
				}
				return compareAssessments(latest, previous), nil
			}),
	}
}

// compareAssessments diffs scores of the latest assessment against the
// previous one. Abilities present on only one side diff against zero.
func compareAssessments(latest, previous *tutor.Assessment) AssessmentCompareResult {
	deltas := make(map[string]float64, len(latest.Scores))
	for ability, score := range latest.Scores {
		deltas[ability] = score - previous.Scores[ability]
	}
	for ability, score := range previous.Scores {
		if _, ok := latest.Scores[ability]; !ok {
			deltas[ability] = -score
		}
	}
	return AssessmentCompareResult{
		Kind:     latest.Kind,
		Latest:   latest.AssessedOn.Format("2006-01-02"),
		Previous: previous.AssessedOn.Format("2006-01-02"),
		Deltas:   deltas,
	}
}
