package schedule

import (
	"time"

	"github.com/iliyamo/coach-scheduling/internal/model"
)

// BufferedWindow widens a candidate session window by the requesting
// booking's buffer on both sides.  The buffer comes from the creating
// booking's settings at creation time; it is not stored per historical
// booking.
func BufferedWindow(start, end time.Time, bufferMinutes int) (time.Time, time.Time) {
	buf := time.Duration(bufferMinutes) * time.Minute
	return start.Add(-buf), end.Add(buf)
}

// Overlaps is the half-open interval intersection test:
// [aStart, aEnd) and [bStart, bEnd) intersect iff aStart < bEnd and
// aEnd > bStart.  Back-to-back intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// HasConflict reports whether the buffered candidate window intersects
// any existing active booking.  Terminal bookings (completed, cancelled,
// no_show) never conflict, and excludeID skips one booking so a booking
// can be re-validated against everything but itself.
func HasConflict(existing []model.Booking, candidateStart, candidateEnd time.Time, bufferMinutes int, excludeID uint64) bool {
	bufStart, bufEnd := BufferedWindow(candidateStart, candidateEnd, bufferMinutes)
	for _, b := range existing {
		if b.ID == excludeID && excludeID != 0 {
			continue
		}
		if !b.Status.Active() {
			continue
		}
		if Overlaps(bufStart, bufEnd, b.StartAt, b.EndAt) {
			return true
		}
	}
	return false
}
