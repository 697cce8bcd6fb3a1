package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/coach-scheduling/internal/model"
)

func strPtr(s string) *string { return &s }

func TestResolveSlotsPartitionsWindow(t *testing.T) {
	loc, err := time.LoadLocation("UTC")
	require.NoError(t, err)

	rules := []model.AvailabilityRule{
		// 2026-03-09 is a Monday (weekday 1).
		{InstructorID: 7, Weekday: 1, StartTime: "09:00", EndTime: "11:30", IsActive: true},
	}
	slots, err := ResolveSlots(loc, rules, nil, "2026-03-09", 1, 60)
	require.NoError(t, err)

	// 09:00-10:00 and 10:00-11:00 fit; 11:00-12:00 spills past 11:30 and is discarded.
	require.Len(t, slots, 2)
	assert.Equal(t, time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC), slots[0].Start)
	assert.Equal(t, time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC), slots[0].End)
	assert.Equal(t, time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC), slots[1].Start)
	assert.Equal(t, time.Date(2026, 3, 9, 11, 0, 0, 0, time.UTC), slots[1].End)
}

func TestResolveSlotsWeeklyRuleInInstructorZone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Tuesday 09:00-17:00 local; 2026-03-10 is a Tuesday after the US DST
	// switch, so local time is UTC-4.
	rules := []model.AvailabilityRule{
		{InstructorID: 7, Weekday: 2, StartTime: "09:00", EndTime: "17:00", IsActive: true},
	}
	slots, err := ResolveSlots(loc, rules, nil, "2026-03-10", 1, 60)
	require.NoError(t, err)
	require.Len(t, slots, 8)

	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC) // 10:00 local
	end := start.Add(time.Hour)
	assert.True(t, ContainsSlot(slots, start, end))
	assert.False(t, ContainsSlot(slots, start.Add(time.Minute), end.Add(time.Minute)))
}

func TestResolveSlotsDSTOffsetPerSlot(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// US DST starts 2026-03-08 at 02:00 local. The week before is UTC-5,
	// after it UTC-4. The same local rule must land on different UTC
	// instants across the transition.
	rules := []model.AvailabilityRule{
		{InstructorID: 7, Weekday: 0, StartTime: "09:00", EndTime: "10:00", IsActive: true},
	}

	before, err := ResolveSlots(loc, rules, nil, "2026-03-01", 1, 60)
	require.NoError(t, err)
	after, err := ResolveSlots(loc, rules, nil, "2026-03-08", 1, 60)
	require.NoError(t, err)

	require.Len(t, before, 1)
	require.Len(t, after, 1)
	assert.Equal(t, time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC), before[0].Start) // EST
	assert.Equal(t, time.Date(2026, 3, 8, 13, 0, 0, 0, time.UTC), after[0].Start)  // EDT
}

func TestResolveSlotsOverridePrecedence(t *testing.T) {
	loc := time.UTC

	rules := []model.AvailabilityRule{
		{InstructorID: 7, Weekday: 1, StartTime: "09:00", EndTime: "17:00", IsActive: true},
	}
	overrides := []model.AvailabilityOverride{
		{InstructorID: 7, Date: "2026-03-09", IsAvailable: false},
	}

	// The unavailable override wins over the matching weekly rule.
	slots, err := ResolveSlots(loc, rules, overrides, "2026-03-09", 1, 60)
	require.NoError(t, err)
	assert.Empty(t, slots)

	// An available override replaces the rule window entirely.
	overrides = []model.AvailabilityOverride{
		{InstructorID: 7, Date: "2026-03-09", IsAvailable: true, StartTime: strPtr("13:00"), EndTime: strPtr("15:00")},
	}
	slots, err = ResolveSlots(loc, rules, overrides, "2026-03-09", 1, 60)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, time.Date(2026, 3, 9, 13, 0, 0, 0, time.UTC), slots[0].Start)
}

func TestResolveSlotsIgnoresInactiveAndOtherWeekdays(t *testing.T) {
	rules := []model.AvailabilityRule{
		{InstructorID: 7, Weekday: 1, StartTime: "09:00", EndTime: "12:00", IsActive: false},
		{InstructorID: 7, Weekday: 3, StartTime: "09:00", EndTime: "12:00", IsActive: true},
	}
	slots, err := ResolveSlots(time.UTC, rules, nil, "2026-03-09", 1, 60)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestResolveSlotsRejectsInvertedWindow(t *testing.T) {
	// end before start would mean a midnight-crossing session; nothing is emitted.
	rules := []model.AvailabilityRule{
		{InstructorID: 7, Weekday: 1, StartTime: "22:00", EndTime: "02:00", IsActive: true},
	}
	slots, err := ResolveSlots(time.UTC, rules, nil, "2026-03-09", 1, 60)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestResolveSlotsValidation(t *testing.T) {
	_, err := ResolveSlots(time.UTC, nil, nil, "not-a-date", 1, 60)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	// Callers narrow resolver failures back to the tagged type to keep
	// the kind; the concrete value must support that.
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindValidation, se.Kind)

	_, err = ResolveSlots(time.UTC, nil, nil, "2026-03-09", 1, 10)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = ResolveSlots(time.UTC, nil, nil, "2026-03-09", 0, 60)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestResolveSlotsMultipleDaysOrdered(t *testing.T) {
	rules := []model.AvailabilityRule{
		{InstructorID: 7, Weekday: 1, StartTime: "09:00", EndTime: "10:00", IsActive: true},
		{InstructorID: 7, Weekday: 2, StartTime: "08:00", EndTime: "09:00", IsActive: true},
	}
	slots, err := ResolveSlots(time.UTC, rules, nil, "2026-03-09", 7, 30)
	require.NoError(t, err)
	require.Len(t, slots, 4)
	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i-1].Start.Before(slots[i].Start))
	}
}
