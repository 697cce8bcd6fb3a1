package schedule

import (
	"time"

	"github.com/iliyamo/coach-scheduling/internal/model"
)

// Actor is the caller identity the tenant/identity resolver produced.
// The scheduling core trusts it without re-deriving roles.
type Actor struct {
	UserID        uint64
	BrandID       uint64
	Admin         bool
	InstructorIDs []uint64 // instructors this actor manages (self for instructors)
}

// Manages reports whether the actor administers the given instructor,
// either as a brand admin or as the instructor themself.
func (a Actor) Manages(instructorID uint64) bool {
	if a.Admin {
		return true
	}
	for _, id := range a.InstructorIDs {
		if id == instructorID {
			return true
		}
	}
	return false
}

// transitions is the booking state machine.  Terminal states have no
// outgoing edges; self-transitions are not listed and are therefore
// rejected.
var transitions = map[model.BookingStatus][]model.BookingStatus{
	model.StatusPending:   {model.StatusConfirmed, model.StatusCancelled},
	model.StatusConfirmed: {model.StatusCompleted, model.StatusCancelled, model.StatusNoShow},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to model.BookingStatus) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// CheckTransition validates a requested status change against the guard
// rules and returns nil when the transition may proceed:
//
//   - confirmation requires a complete payment descriptor and a booking
//     that is still exactly pending; confirming an already-confirmed
//     booking is a conflict, not an idempotent no-op,
//   - completed / no_show require the assigned instructor or a brand admin,
//   - a cancellation initiated by the booking's own customer must happen
//     more than cutoffHours before the session start; instructors and
//     admins are not subject to the cutoff.
func CheckTransition(b model.Booking, target model.BookingStatus, actor Actor, pay *model.PaymentDescriptor, cutoffHours int, now time.Time) *Error {
	if !target.Valid() {
		return Validationf("unknown status %q", target)
	}
	if !CanTransition(b.Status, target) {
		return Conflictf("cannot change booking from %s to %s", b.Status, target)
	}

	switch target {
	case model.StatusConfirmed:
		if pay == nil || !pay.Complete() {
			return Validationf("confirmation requires payment amount, currency and provider")
		}
	case model.StatusCompleted, model.StatusNoShow:
		if !actor.Manages(b.InstructorID) {
			return Authorizationf("only the instructor or a brand admin can mark %s", target)
		}
	case model.StatusCancelled:
		customerInitiated := actor.UserID == b.CustomerID && !actor.Manages(b.InstructorID)
		if customerInitiated {
			cutoff := time.Duration(cutoffHours) * time.Hour
			if b.StartAt.Before(now.Add(cutoff)) {
				return Conflictf("cancellation window closed: bookings must be cancelled at least %dh before start", cutoffHours)
			}
		}
	}
	return nil
}

// CheckInstructorNotes validates attaching instructor notes.  Notes are a
// post-session artifact: they may only be written once the booking has
// reached a terminal state, and only by someone managing the instructor.
func CheckInstructorNotes(b model.Booking, actor Actor) *Error {
	if !actor.Manages(b.InstructorID) {
		return Authorizationf("only the instructor or a brand admin can attach instructor notes")
	}
	if !b.Status.Terminal() {
		return Conflictf("instructor notes require a completed, cancelled or no_show booking")
	}
	return nil
}
