package skill

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/david8712403/lec-dashboard-sub000/internal/tutor"
)

type addSlotInput struct {
	Student     string `json:"student"`
	Weekday     string `json:"weekday"`
	StartTime   string `json:"start_time"`
	DurationMin int    `json:"duration_min"`
}

type listScheduleInput struct {
	Student string `json:"student"`
	Weekday string `json:"weekday"`
}

type deleteSlotInput struct {
	SlotID string `json:"slot_id"`
}

type ScheduleResult struct {
	Count int                   `json:"count"`
	Slots []*tutor.ScheduleSlot `json:"slots"`
}

type DeletedResult struct {
	Deleted string `json:"deleted"`
}

func scheduleSkills(dir Directory) []*Skill {
	return []*Skill{
		New("add_schedule_slot",
			"Add a recurring weekly lesson slot for a student.",
			`{"student": string, "weekday": string, "start_time": "HH:MM", "duration_min": number}`,
			func(ctx context.Context, in addSlotInput) (*tutor.ScheduleSlot, error) {
				st, err := dir.ResolveStudent(ctx, in.Student)
				if err != nil {
					return nil, err
				}
				wd, err := ParseWeekday(in.Weekday)
				if err != nil {
					return nil, err
				}
				return dir.CreateSlot(ctx, st.ID, int(wd), in.StartTime, in.DurationMin)
			}),

		New("list_schedule",
			"List weekly lesson slots, optionally for one student or one weekday.",
			`{"student"?: string, "weekday"?: string}`,
			func(ctx context.Context, in listScheduleInput) (ScheduleResult, error) {
				var studentID *uuid.UUID
				if in.Student != "" {
					st, err := dir.ResolveStudent(ctx, in.Student)
					if err != nil {
						return ScheduleResult{}, err
					}
					studentID = &st.ID
				}
				var weekday *int
				if in.Weekday != "" {
					wd, err := ParseWeekday(in.Weekday)
					if err != nil {
						return ScheduleResult{}, err
					}
					n := int(wd)
					weekday = &n
				}
				slots, err := dir.ListSlots(ctx, studentID, weekday)
				if err != nil {
					return ScheduleResult{}, err
				}
				return ScheduleResult{Count: len(slots), Slots: slots}, nil
			}),

		New("delete_schedule_slot",
			"Delete a weekly lesson slot by its ID.",
			`{"slot_id": string}`,
			func(ctx context.Context, in deleteSlotInput) (DeletedResult, error) {
				id, err := uuid.Parse(in.SlotID)
				if err != nil {
					return DeletedResult{}, fmt.Errorf("%w: slot_id %q is not a UUID", ErrInvalidArgument, in.SlotID)
				}
				if err := dir.DeleteSlot(ctx, id); err != nil {
					return DeletedResult{}, err
				}
				return DeletedResult{Deleted: in.SlotID}, nil
			}),
	}
}
