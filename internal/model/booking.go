package model

import "time"

// BookingStatus enumerates the booking lifecycle states.  pending and
// confirmed are "active": they occupy the slot and count toward conflict
// detection.  completed, cancelled and no_show are terminal.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
	StatusNoShow    BookingStatus = "no_show"
)

// Valid reports whether s is one of the five known statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Active reports whether the status occupies its slot.
func (s BookingStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Terminal reports whether the status has no outgoing transitions.
func (s BookingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// Payment states tracked on a booking.  Processing beyond recording the
// descriptor lives outside this service.
const (
	PaymentUnpaid = "unpaid"
	PaymentPaid   = "paid"
)

// Booking mirrors the `bookings` table.  StartAt/EndAt are UTC instants;
// the two timezone columns record what customer and instructor saw at
// booking time.  Exactly one lifecycle timestamp matches the current
// status once the booking is confirmed or terminal.  Rows are never
// physically deleted; DeletedAt implements soft deletion.
//
// Fields:
//
//	ID                 – primary key identifier.
//	Reference          – public UUID handed to clients.
//	BrandID            – tenant the booking belongs to.
//	CustomerID         – booking customer.
//	InstructorID       – booked instructor.
//	CourseID           – optional course the session belongs to.
//	Status             – lifecycle state, see BookingStatus.
//	StartAt, EndAt     – UTC session window.
//	StudentTimezone    – customer's IANA zone at creation.
//	InstructorTimezone – instructor's IANA zone at creation.
//	Location           – optional meeting place or URL.
//	Notes              – customer-supplied free text.
//	InstructorNotes    – instructor notes, writable only after a terminal state.
//	PaymentStatus      – unpaid/paid.
//	PaymentRef         – provider reference supplied at confirmation.
//	ConfirmedAt..NoShowAt – lifecycle timestamps, one per reached state.
//	ReminderSentAt     – reminder claim/sent marker (null until claimed).
//	DeletedAt          – soft-delete marker.
//	CreatedAt, UpdatedAt – row timestamps.
type Booking struct {
	ID                 uint64        `json:"id"`
	Reference          string        `json:"reference"`
	BrandID            uint64        `json:"brand_id"`
	CustomerID         uint64        `json:"customer_id"`
	InstructorID       uint64        `json:"instructor_id"`
	CourseID           *uint64       `json:"course_id,omitempty"`
	Status             BookingStatus `json:"status"`
	StartAt            time.Time     `json:"start_at"`
	EndAt              time.Time     `json:"end_at"`
	StudentTimezone    string        `json:"student_timezone"`
	InstructorTimezone string        `json:"instructor_timezone"`
	Location           *string       `json:"location,omitempty"`
	Notes              *string       `json:"notes,omitempty"`
	InstructorNotes    *string       `json:"instructor_notes,omitempty"`
	PaymentStatus      string        `json:"payment_status"`
	PaymentRef         *string       `json:"payment_ref,omitempty"`
	ConfirmedAt        *time.Time    `json:"confirmed_at,omitempty"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty"`
	NoShowAt           *time.Time    `json:"no_show_at,omitempty"`
	ReminderSentAt     *time.Time    `json:"reminder_sent_at,omitempty"`
	DeletedAt          *time.Time    `json:"-"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// PaymentDescriptor is the payment proof a customer supplies when
// confirming a pending booking.  The service only validates presence of
// the fields; charging happens elsewhere.
type PaymentDescriptor struct {
	AmountCents uint64 `json:"amount_cents"`
	Currency    string `json:"currency"`
	Provider    string `json:"provider"`
	ProviderRef string `json:"provider_ref,omitempty"`
}

// Complete reports whether the descriptor carries everything a
// confirmation requires.
func (p PaymentDescriptor) Complete() bool {
	return p.AmountCents > 0 && p.Currency != "" && p.Provider != ""
}
