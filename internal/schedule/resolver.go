package schedule

import (
	"sort"
	"time"

	"github.com/iliyamo/coach-scheduling/internal/model"
)

// DateLayout is the wire format for calendar dates ("2026-03-10").
const DateLayout = "2006-01-02"

// clockMinutes parses a local "HH:MM" clock string into minutes from
// midnight.  It rejects out-of-range values.
func clockMinutes(s string) (int, bool) {
	if len(s) != 5 || s[2] != ':' {
		return 0, false
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' ||
		s[3] < '0' || s[3] > '9' || s[4] < '0' || s[4] > '9' {
		return 0, false
	}
	if h > 23 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// ValidClock reports whether s is a well-formed "HH:MM" local clock string.
func ValidClock(s string) bool {
	_, ok := clockMinutes(s)
	return ok
}

// localWindow is a candidate availability window on one calendar date,
// expressed as minutes from local midnight.
type localWindow struct {
	startMin int
	endMin   int
}

// ResolveSlots turns an instructor's weekly rules and date overrides into
// the ordered list of bookable UTC slots for [startDate, startDate+days).
//
// For each date the override set wins outright when present: an
// unavailable override yields zero slots, an available one makes its own
// window the only candidate.  Otherwise every active rule matching the
// local weekday contributes a window.  Windows are partitioned into
// back-to-back slots of sessionMinutes; a slot that does not fully fit
// inside its window is discarded.  Local boundaries are converted to UTC
// per slot, so each slot picks up the zone offset in force at that
// instant and DST transition days come out correct.  Windows whose end
// does not lie after their start on the same local date produce nothing,
// which is what excludes midnight-crossing sessions.
func ResolveSlots(loc *time.Location, rules []model.AvailabilityRule, overrides []model.AvailabilityOverride, startDate string, days, sessionMinutes int) ([]model.Slot, error) {
	if days <= 0 {
		return nil, Validationf("days must be positive")
	}
	if sessionMinutes < model.MinSessionMinutes {
		return nil, Validationf("session length must be at least %d minutes", model.MinSessionMinutes)
	}
	first, err := time.ParseInLocation(DateLayout, startDate, loc)
	if err != nil {
		return nil, Validationf("invalid start date %q", startDate)
	}

	overrideByDate := make(map[string][]model.AvailabilityOverride, len(overrides))
	for _, o := range overrides {
		overrideByDate[o.Date] = append(overrideByDate[o.Date], o)
	}

	var slots []model.Slot
	for i := 0; i < days; i++ {
		// AddDate performs civil-date arithmetic, so stepping across a DST
		// boundary still lands on the next calendar day.
		day := first.AddDate(0, 0, i)
		y, m, d := day.Date()
		date := day.Format(DateLayout)

		var windows []localWindow
		if ovs, ok := overrideByDate[date]; ok {
			for _, o := range ovs {
				if !o.IsAvailable || o.StartTime == nil || o.EndTime == nil {
					continue
				}
				ws, ok1 := clockMinutes(*o.StartTime)
				we, ok2 := clockMinutes(*o.EndTime)
				if ok1 && ok2 {
					windows = append(windows, localWindow{ws, we})
				}
			}
		} else {
			weekday := int(day.Weekday())
			for _, r := range rules {
				if !r.IsActive || r.Weekday != weekday {
					continue
				}
				ws, ok1 := clockMinutes(r.StartTime)
				we, ok2 := clockMinutes(r.EndTime)
				if ok1 && ok2 {
					windows = append(windows, localWindow{ws, we})
				}
			}
		}

		for _, w := range windows {
			if w.endMin <= w.startMin {
				continue
			}
			for s := w.startMin; s+sessionMinutes <= w.endMin; s += sessionMinutes {
				e := s + sessionMinutes
				start := time.Date(y, m, d, s/60, s%60, 0, 0, loc)
				end := time.Date(y, m, d, e/60, e%60, 0, 0, loc)
				if !end.After(start) {
					continue
				}
				slots = append(slots, model.Slot{Start: start.UTC(), End: end.UTC()})
			}
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	// Overlapping rules can emit the same slot twice; keep one.
	out := slots[:0]
	for _, s := range slots {
		if len(out) > 0 && out[len(out)-1].Start.Equal(s.Start) && out[len(out)-1].End.Equal(s.End) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// ContainsSlot reports whether the exact (start, end) pair appears in the
// resolved slot list.  Matching is instant-exact; a request that is off
// by any amount is outside availability.
func ContainsSlot(slots []model.Slot, start, end time.Time) bool {
	for _, s := range slots {
		if s.Start.Equal(start) && s.End.Equal(end) {
			return true
		}
	}
	return false
}
