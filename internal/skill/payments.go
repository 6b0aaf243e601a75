package skill

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/david8712403/lec-dashboard-sub000/internal/tutor"
)

type addPaymentInput struct {
	Student string `json:"student"`
	Amount  int64  `json:"amount"`
	Date    string `json:"date"`
	Method  string `json:"method"`
	Note    string `json:"note"`
}

type listPaymentsInput struct {
	Student string `json:"student"`
	From    string `json:"from"`
	To      string `json:"to"`
}

type deletePaymentInput struct {
	PaymentID string `json:"payment_id"`
}

type PaymentListResult struct {
	Count    int              `json:"count"`
	Total    int64            `json:"total"`
	Payments []*tutor.Payment `json:"payments"`
}

func paymentSkills(dir Directory) []*Skill {
	return []*Skill{
		New("add_payment",
			"Record a tuition payment for a student.",
			`{"student": string, "amount": number, "date"?: string, "method"?: string, "note"?: string}`,
			func(ctx context.Context, in addPaymentInput) (*tutor.Payment, error) {
				st, err := dir.ResolveStudent(ctx, in.Student)
				if err != nil {
					return nil, err
				}
				date, err := ResolveDate(in.Date, time.Now())
				if err != nil {
					return nil, err
				}
				return dir.AddPayment(ctx, st.ID, in.Amount, date, in.Method, in.Note)
			}),

		New("list_payments",
			"List a student's payments, optionally within a date range.",
			`{"student": string, "from"?: string, "to"?: string}`,
			func(ctx context.Context, in listPaymentsInput) (PaymentListResult, error) {
				st, err := dir.ResolveStudent(ctx, in.Student)
				if err != nil {
					return PaymentListResult{}, err
				}
				var from, to *time.Time
				if in.From != "" {
					t, err := ResolveDate(in.From, time.Now())
					if err != nil {
						return PaymentListResult{}, err
					}
					from = &t
				}
				if in.To != "" {
					t, err := ResolveDate(in.To, time.Now())
					if err != nil {
						return PaymentListResult{}, err
					}
					to = &t
				}
				payments, err := dir.ListPayments(ctx, st.ID, from, to)
				if err != nil {
					return PaymentListResult{}, err
				}
				result := PaymentListResult{Count: len(payments), Payments: payments}
				for _, p := range payments {
					result.Total += p.Amount
				}
				return result, nil
			}),

		New("delete_payment",
			"Delete a payment record by its ID.",
			`{"payment_id": string}`,
			func(ctx context.Context, in deletePaymentInput) (DeletedResult, error) {
				id, err := uuid.Parse(in.PaymentID)
				if err != nil {
					return DeletedResult{}, fmt.Errorf("%w: payment_id %q is not a UUID", ErrInvalidArgument, in.PaymentID)
				}
				if err := dir.DeletePayment(ctx, id); err != nil {
					return DeletedResult{}, err
				}
				return DeletedResult{Deleted: in.PaymentID}, nil
			}),
	}
}
