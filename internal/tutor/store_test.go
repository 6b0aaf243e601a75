package tutor_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david8712403/lec-dashboard-sub000/internal/log"
	"github.com/david8712403/lec-dashboard-sub000/internal/testutil"
	"github.com/david8712403/lec-dashboard-sub000/internal/tutor"
)

func setupStore(t *testing.T) *tutor.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	db, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)
	return tutor.NewStore(db.Pool, log.NewNop())
}

func TestStudentCRUD(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	st, err := store.CreateStudent(ctx, "王小明", "0912345678", "國三")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, st.ID)

	_, err = store.CreateStudent(ctx, "   ", "", "")
	assert.ErrorIs(t, err, tutor.ErrInvalidInput)

	got, err := store.GetStudent(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, "王小明", got.Name)

	_, err = store.GetStudent(ctx, uuid.New())
	assert.ErrorIs(t, err, tutor.ErrNotFound)

	notes := "升高一"
	updated, err := store.UpdateStudent(ctx, st.ID, nil, nil, &notes)
	require.NoError(t, err)
	assert.Equal(t, "王小明", updated.Name, "nil fields stay untouched")
	assert.Equal(t, "升高一", updated.Notes)

	empty := ""
	_, err = store.UpdateStudent(ctx, st.ID, &empty, nil, nil)
	assert.ErrorIs(t, err, tutor.ErrInvalidInput)

	all, err := store.ListStudents(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestResolveStudentTwoPhase(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	first, err := store.CreateStudent(ctx, "王小明", "", "")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := store.CreateStudent(ctx, "王小明明", "", "")
	require.NoError(t, err)

	// Phase one: an exact identifier wins outright.
	got, err := store.ResolveStudent(ctx, first.ID.String())
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	// Phase two: substring match, most recently created wins ties.
	got, err = store.ResolveStudent(ctx, "小明")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	_, err = store.ResolveStudent(ctx, "陳大文")
	assert.ErrorIs(t, err, tutor.ErrNotFound)

	_, err = store.ResolveStudent(ctx, "  ")
	assert.ErrorIs(t, err, tutor.ErrInvalidInput)
}

func TestScheduleSlots(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	st, err := store.CreateStudent(ctx, "陳小美", "", "")
	require.NoError(t, err)

	slot, err := store.CreateSlot(ctx, st.ID, 3, "19:00", 90)
	require.NoError(t, err)

	_, err = store.CreateSlot(ctx, st.ID, 7, "19:00", 90)
	assert.ErrorIs(t, err, tutor.ErrInvalidInput)
	_, err = store.CreateSlot(ctx, st.ID, 3, "7pm", 90)
	assert.ErrorIs(t, err, tutor.ErrInvalidInput)
	_, err = store.CreateSlot(ctx, st.ID, 3, "19:00", 0)
	assert.ErrorIs(t, err, tutor.ErrInvalidInput)

	wednesday := 3
	slots, err := store.ListSlots(ctx, &st.ID, &wednesday)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, slot.ID, slots[0].ID)

	monday := 1
	slots, err = store.ListSlots(ctx, nil, &monday)
	require.NoError(t, err)
	assert.Empty(t, slots)

	require.NoError(t, store.DeleteSlot(ctx, slot.ID))
	assert.ErrorIs(t, store.DeleteSlot(ctx, slot.ID), tutor.ErrNotFound)
}

func TestClassRecords(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	st, err := store.CreateStudent(ctx, "林大同", "", "")
	require.NoError(t, err)

	day := time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC)
	rec, err := store.AddClassRecord(ctx, st.ID, tutor.RecordAttendance, day, "")
	require.NoError(t, err)
	assert.Equal(t, tutor.RecordAttendance, rec.RecordType)

	_, err = store.AddClassRecord(ctx, st.ID, "vacation", day, "")
	assert.ErrorIs(t, err, tutor.ErrInvalidInput)
}

func TestAssessments(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	st, err := store.CreateStudent(ctx, "張小華", "", "")
	require.NoError(t, err)

	march := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	june := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err = store.AddAssessment(ctx, st.ID, "math", map[string]float64{"algebra": 60}, march)
	require.NoError(t, err)
	_, err = store.AddAssessment(ctx, st.ID, "math", map[string]float64{"algebra": 75}, june)
	require.NoError(t, err)
	_, err = store.AddAssessment(ctx, st.ID, "english", map[string]float64{"reading": 80}, june)
	require.NoError(t, err)

	_, err = store.AddAssessment(ctx, st.ID, "", map[string]float64{"x": 1}, june)
	assert.ErrorIs(t, err, tutor.ErrInvalidInput)
	_, err = store.AddAssessment(ctx, st.ID, "math", nil, june)
	assert.ErrorIs(t, err, tutor.ErrInvalidInput)

	math, err := store.ListAssessments(ctx, st.ID, "math")
	require.NoError(t, err)
	require.Len(t, math, 2)
	assert.Equal(t, june, math[0].AssessedOn.UTC(), "newest first")
	assert.InDelta(t, 75.0, math[0].Scores["algebra"], 0.001)

	all, err := store.ListAssessments(ctx, st.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPayments(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	st, err := store.CreateStudent(ctx, "黃小強", "", "")
	require.NoError(t, err)

	may := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)
	june := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	p1, err := store.AddPayment(ctx, st.ID, 4000, may, "轉帳", "")
	require.NoError(t, err)
	_, err = store.AddPayment(ctx, st.ID, 3500, june, "現金", "")
	require.NoError(t, err)

	_, err = store.AddPayment(ctx, st.ID, 0, june, "", "")
	assert.ErrorIs(t, err, tutor.ErrInvalidInput)

	all, err := store.ListPayments(ctx, st.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, june, all[0].PaidOn.UTC(), "newest first")

	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	recent, err := store.ListPayments(ctx, st.ID, &from, nil)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, int64(3500), recent[0].Amount)

	require.NoError(t, store.DeletePayment(ctx, p1.ID))
	assert.ErrorIs(t, store.DeletePayment(ctx, p1.ID), tutor.ErrNotFound)
}
