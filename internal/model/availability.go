package model

import "time"

// AvailabilityRule is one weekly recurrence window for an instructor.
// Weekday follows time.Weekday numbering (0 = Sunday).  StartTime and
// EndTime are local clock strings in "HH:MM" form, interpreted in the
// instructor's configured timezone.  Rules are replaced wholesale on
// update; there is no partial patch.
//
// Fields:
//
//	ID           – primary key identifier.
//	InstructorID – owner of the rule.
//	Weekday      – 0..6, Sunday-based.
//	StartTime    – local window start ("09:00").
//	EndTime      – local window end ("17:00"), same calendar day.
//	IsActive     – inactive rules are ignored by the resolver.
type AvailabilityRule struct {
	ID           uint64 `json:"id"`
	InstructorID uint64 `json:"instructor_id"`
	Weekday      int    `json:"weekday"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	IsActive     bool   `json:"is_active"`
}

// AvailabilityOverride is a date-specific exception.  When any override
// exists for a date it fully supersedes the weekly rules for that date:
// an unavailable override yields zero slots, an available override makes
// its own start/end the only candidate window.
//
// Fields:
//
//	ID           – primary key identifier.
//	InstructorID – owner of the override.
//	Date         – local calendar date in the instructor's timezone ("2026-03-10").
//	IsAvailable  – false blocks the whole day.
//	StartTime    – local window start when available (nullable).
//	EndTime      – local window end when available (nullable).
type AvailabilityOverride struct {
	ID           uint64  `json:"id"`
	InstructorID uint64  `json:"instructor_id"`
	Date         string  `json:"date"`
	IsAvailable  bool    `json:"is_available"`
	StartTime    *string `json:"start_time,omitempty"`
	EndTime      *string `json:"end_time,omitempty"`
}

// Slot is one bookable interval emitted by the availability resolver.
// Both instants are UTC.  A booking request must match a slot exactly to
// be accepted; there are no partial-slot bookings.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
