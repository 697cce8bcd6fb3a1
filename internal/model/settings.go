package model

import "time"

// MinSessionMinutes is the shortest session any instructor may offer.
const MinSessionMinutes = 15

// SchedulingSettings holds the per brand+instructor scheduling
// configuration.  A row is materialized with defaults the first time it is
// read and mutated only through upsert; rows are never hard-deleted.  The
// struct is passed by value into every scheduling computation so there is
// no ambient global configuration.
//
// Fields:
//
//	BrandID                 – tenant the settings belong to.
//	InstructorID            – instructor the settings belong to.
//	Timezone                – IANA zone name used for calendar arithmetic.
//	SessionMinutes          – length of one bookable slot (>= 15).
//	BufferMinutes           – mandatory gap enforced around sessions.
//	AdvanceBookingDays      – how far in the future a slot may be booked.
//	CancellationCutoffHours – minimum hours-before-start for a customer cancellation.
//	UpdatedAt               – timestamp of last upsert.
type SchedulingSettings struct {
	BrandID                 uint64    `json:"brand_id"`
	InstructorID            uint64    `json:"instructor_id"`
	Timezone                string    `json:"timezone"`
	SessionMinutes          int       `json:"session_minutes"`
	BufferMinutes           int       `json:"buffer_minutes"`
	AdvanceBookingDays      int       `json:"advance_booking_days"`
	CancellationCutoffHours int       `json:"cancellation_cutoff_hours"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// DefaultSettings returns the settings materialized when no persisted row
// exists for the instructor.
func DefaultSettings(brandID, instructorID uint64) SchedulingSettings {
	return SchedulingSettings{
		BrandID:                 brandID,
		InstructorID:            instructorID,
		Timezone:                "UTC",
		SessionMinutes:          60,
		BufferMinutes:           0,
		AdvanceBookingDays:      30,
		CancellationCutoffHours: 24,
	}
}

// Validate reports whether the settings satisfy the model invariants: all
// numeric fields non-negative, session length at least MinSessionMinutes
// and a parseable timezone is checked by the caller (it needs the tzdata
// lookup, which the model layer does not perform).
func (s SchedulingSettings) Validate() bool {
	if s.SessionMinutes < MinSessionMinutes {
		return false
	}
	return s.BufferMinutes >= 0 && s.AdvanceBookingDays >= 0 && s.CancellationCutoffHours >= 0
}
