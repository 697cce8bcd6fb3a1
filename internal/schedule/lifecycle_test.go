package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/coach-scheduling/internal/model"
)

func TestCanTransitionTable(t *testing.T) {
	cases := []struct {
		from, to model.BookingStatus
		want     bool
	}{
		{model.StatusPending, model.StatusConfirmed, true},
		{model.StatusPending, model.StatusCancelled, true},
		{model.StatusPending, model.StatusCompleted, false},
		{model.StatusPending, model.StatusNoShow, false},
		{model.StatusConfirmed, model.StatusCompleted, true},
		{model.StatusConfirmed, model.StatusCancelled, true},
		{model.StatusConfirmed, model.StatusNoShow, true},
		{model.StatusConfirmed, model.StatusConfirmed, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}

	// Terminal states have no outgoing transitions at all.
	for _, from := range []model.BookingStatus{model.StatusCompleted, model.StatusCancelled, model.StatusNoShow} {
		for _, to := range []model.BookingStatus{model.StatusPending, model.StatusConfirmed, model.StatusCompleted, model.StatusCancelled, model.StatusNoShow} {
			assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestConfirmRequiresPayment(t *testing.T) {
	b := model.Booking{ID: 1, CustomerID: 10, InstructorID: 7, Status: model.StatusPending}
	actor := Actor{UserID: 10}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := CheckTransition(b, model.StatusConfirmed, actor, nil, 24, now)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	err = CheckTransition(b, model.StatusConfirmed, actor, &model.PaymentDescriptor{AmountCents: 5000, Currency: "USD"}, 24, now)
	require.Error(t, err) // provider missing
	assert.Equal(t, KindValidation, KindOf(err))

	pay := &model.PaymentDescriptor{AmountCents: 5000, Currency: "USD", Provider: "stripe"}
	assert.Nil(t, CheckTransition(b, model.StatusConfirmed, actor, pay, 24, now))
}

func TestRedundantConfirmationIsConflict(t *testing.T) {
	b := model.Booking{ID: 1, CustomerID: 10, InstructorID: 7, Status: model.StatusConfirmed}
	pay := &model.PaymentDescriptor{AmountCents: 5000, Currency: "USD", Provider: "stripe"}

	err := CheckTransition(b, model.StatusConfirmed, Actor{UserID: 10}, pay, 24, time.Now())
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestCompletionRequiresInstructorOrAdmin(t *testing.T) {
	b := model.Booking{ID: 1, CustomerID: 10, InstructorID: 7, Status: model.StatusConfirmed}
	now := time.Now()

	err := CheckTransition(b, model.StatusCompleted, Actor{UserID: 10}, nil, 24, now)
	require.Error(t, err)
	assert.Equal(t, KindAuthorization, KindOf(err))

	assert.Nil(t, CheckTransition(b, model.StatusCompleted, Actor{UserID: 7, InstructorIDs: []uint64{7}}, nil, 24, now))
	assert.Nil(t, CheckTransition(b, model.StatusNoShow, Actor{UserID: 99, Admin: true}, nil, 24, now))
}

func TestCustomerCancellationCutoffBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	customer := Actor{UserID: 10}

	// Exactly 24h ahead is still cancellable.
	b := model.Booking{ID: 1, CustomerID: 10, InstructorID: 7, Status: model.StatusConfirmed, StartAt: now.Add(24 * time.Hour)}
	assert.Nil(t, CheckTransition(b, model.StatusCancelled, customer, nil, 24, now))

	// 23h59m ahead is not.
	b.StartAt = now.Add(24*time.Hour - time.Minute)
	err := CheckTransition(b, model.StatusCancelled, customer, nil, 24, now)
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))

	// The instructor and the admin ignore the cutoff.
	assert.Nil(t, CheckTransition(b, model.StatusCancelled, Actor{UserID: 7, InstructorIDs: []uint64{7}}, nil, 24, now))
	assert.Nil(t, CheckTransition(b, model.StatusCancelled, Actor{UserID: 99, Admin: true}, nil, 24, now))
}

func TestCheckTransitionUnknownStatus(t *testing.T) {
	b := model.Booking{ID: 1, Status: model.StatusPending}
	err := CheckTransition(b, model.BookingStatus("paused"), Actor{}, nil, 24, time.Now())
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestInstructorNotesGuard(t *testing.T) {
	instructor := Actor{UserID: 7, InstructorIDs: []uint64{7}}

	b := model.Booking{ID: 1, CustomerID: 10, InstructorID: 7, Status: model.StatusConfirmed}
	err := CheckInstructorNotes(b, instructor)
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))

	b.Status = model.StatusCompleted
	assert.Nil(t, CheckInstructorNotes(b, instructor))

	err = CheckInstructorNotes(b, Actor{UserID: 10})
	require.Error(t, err)
	assert.Equal(t, KindAuthorization, KindOf(err))
}
