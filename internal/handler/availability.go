package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/coach-scheduling/internal/model"
	"github.com/iliyamo/coach-scheduling/internal/schedule"
)

// SettingsEditor extends the read-side settings store with the upsert
// the PUT endpoint needs.
type SettingsEditor interface {
	SettingsStore
	Upsert(ctx context.Context, s model.SchedulingSettings) error
}

// AvailabilityEditor extends the read-side availability store with the
// full-replace write the PUT endpoint needs.
type AvailabilityEditor interface {
	AvailabilityStore
	ReplaceAll(ctx context.Context, instructorID uint64, rules []model.AvailabilityRule, overrides []model.AvailabilityOverride) error
}

// AvailabilityHandler serves the slot resolver and the instructor-facing
// rule/override and scheduling-settings endpoints.  All methods assume
// JWT authentication ran first; write endpoints additionally check that
// the actor manages the target instructor.
type AvailabilityHandler struct {
	Users        UserStore
	Settings     SettingsEditor
	Availability AvailabilityEditor
	now          func() time.Time
}

func NewAvailabilityHandler(u UserStore, s SettingsEditor, a AvailabilityEditor) *AvailabilityHandler {
	return &AvailabilityHandler{Users: u, Settings: s, Availability: a, now: time.Now}
}

// WithClock replaces the time source for tests.
func (h *AvailabilityHandler) WithClock(now func() time.Time) *AvailabilityHandler {
	h.now = now
	return h
}

// instructorParam reads and validates the instructor_id query parameter
// and confirms the instructor exists inside the caller's brand.
func (h *AvailabilityHandler) instructorParam(c echo.Context, actor schedule.Actor) (uint64, error) {
	id, err := strconv.ParseUint(c.QueryParam("instructor_id"), 10, 64)
	if err != nil || id == 0 {
		return 0, schedule.Validationf("instructor_id is required")
	}
	ok, err := h.Users.InstructorInBrand(c.Request().Context(), actor.BrandID, id)
	if err != nil {
		return 0, schedule.Upstream("instructor lookup failed", err)
	}
	if !ok {
		return 0, schedule.NotFoundf("instructor %d not found", id)
	}
	return id, nil
}

// GetSlots handles GET /v1/availability.  It resolves the instructor's
// weekly rules and date overrides into concrete UTC slots starting at
// start_date (default: today in the instructor's timezone) for the
// requested number of days, capped by the advance-booking horizon.
func (h *AvailabilityHandler) GetSlots(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return err
	}
	instructorID, serr := h.instructorParam(c, actor)
	if serr != nil {
		return scheduleError(c, serr)
	}
	ctx := c.Request().Context()

	settings, err := h.Settings.GetOrDefault(ctx, actor.BrandID, instructorID)
	if err != nil {
		return scheduleError(c, schedule.Upstream("load settings failed", err))
	}
	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		return scheduleError(c, schedule.Upstream("bad instructor timezone", err))
	}

	startDate := c.QueryParam("start_date")
	if startDate == "" {
		startDate = h.now().In(loc).Format(schedule.DateLayout)
	}
	start, err := time.Parse(schedule.DateLayout, startDate)
	if err != nil {
		return scheduleError(c, schedule.Validationf("start_date must be YYYY-MM-DD"))
	}

	days := settings.AdvanceBookingDays
	if raw := c.QueryParam("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return scheduleError(c, schedule.Validationf("days must be a positive integer"))
		}
		days = n
	}
	if days > settings.AdvanceBookingDays {
		days = settings.AdvanceBookingDays
	}
	if days <= 0 {
		return c.JSON(http.StatusOK, echo.Map{"settings": settings, "slots": []model.Slot{}})
	}

	rules, err := h.Availability.RulesByInstructor(ctx, instructorID)
	if err != nil {
		return scheduleError(c, schedule.Upstream("load rules failed", err))
	}
	endDate := start.AddDate(0, 0, days-1).Format(schedule.DateLayout)
	overrides, err := h.Availability.OverridesInRange(ctx, instructorID, startDate, endDate)
	if err != nil {
		return scheduleError(c, schedule.Upstream("load overrides failed", err))
	}

	slots, rerr := schedule.ResolveSlots(loc, rules, overrides, startDate, days, settings.SessionMinutes)
	if rerr != nil {
		return scheduleError(c, rerr)
	}
	if slots == nil {
		slots = []model.Slot{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"settings": settings,
		"slots":    slots,
	})
}

type putAvailabilityReq struct {
	Rules     []model.AvailabilityRule     `json:"rules"`
	Overrides []model.AvailabilityOverride `json:"overrides"`
}

// PutAvailability handles PUT /v1/availability.  The payload replaces
// the instructor's full rule and override set; there is no partial
// patch, which keeps concurrent edits last-writer-wins over a
// consistent snapshot.
func (h *AvailabilityHandler) PutAvailability(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return err
	}
	instructorID, serr := h.instructorParam(c, actor)
	if serr != nil {
		return scheduleError(c, serr)
	}
	if !actor.Manages(instructorID) {
		return scheduleError(c, schedule.Authorizationf("cannot edit another instructor's availability"))
	}

	var req putAvailabilityReq
	if err := c.Bind(&req); err != nil {
		return scheduleError(c, schedule.Validationf("invalid body"))
	}
	for _, r := range req.Rules {
		if r.Weekday < 0 || r.Weekday > 6 {
			return scheduleError(c, schedule.Validationf("weekday must be 0..6"))
		}
		if !schedule.ValidClock(r.StartTime) || !schedule.ValidClock(r.EndTime) {
			return scheduleError(c, schedule.Validationf("rule times must be HH:MM"))
		}
	}
	for _, o := range req.Overrides {
		if _, err := time.Parse(schedule.DateLayout, o.Date); err != nil {
			return scheduleError(c, schedule.Validationf("override date must be YYYY-MM-DD"))
		}
		if o.IsAvailable {
			if o.StartTime == nil || o.EndTime == nil ||
				!schedule.ValidClock(*o.StartTime) || !schedule.ValidClock(*o.EndTime) {
				return scheduleError(c, schedule.Validationf("available override needs HH:MM start and end"))
			}
		}
	}

	if err := h.Availability.ReplaceAll(c.Request().Context(), instructorID, req.Rules, req.Overrides); err != nil {
		return scheduleError(c, schedule.Upstream("save availability failed", err))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"instructor_id": instructorID,
		"rules":         len(req.Rules),
		"overrides":     len(req.Overrides),
	})
}

// GetSettings handles GET /v1/scheduling-settings.  Reading settings
// materializes the default row on first access so clients always see
// the values later bookings will be checked against.
func (h *AvailabilityHandler) GetSettings(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return err
	}
	instructorID, serr := h.instructorParam(c, actor)
	if serr != nil {
		return scheduleError(c, serr)
	}
	settings, err := h.Settings.GetOrDefault(c.Request().Context(), actor.BrandID, instructorID)
	if err != nil {
		return scheduleError(c, schedule.Upstream("load settings failed", err))
	}
	return c.JSON(http.StatusOK, settings)
}

// PutSettings handles PUT /v1/scheduling-settings for the instructor or
// a brand admin.
func (h *AvailabilityHandler) PutSettings(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return err
	}
	instructorID, serr := h.instructorParam(c, actor)
	if serr != nil {
		return scheduleError(c, serr)
	}
	if !actor.Manages(instructorID) {
		return scheduleError(c, schedule.Authorizationf("cannot edit another instructor's settings"))
	}

	var s model.SchedulingSettings
	if err := c.Bind(&s); err != nil {
		return scheduleError(c, schedule.Validationf("invalid body"))
	}
	s.BrandID = actor.BrandID
	s.InstructorID = instructorID
	if !s.Validate() {
		return scheduleError(c, schedule.Validationf(
			"session_minutes must be >= %d and the remaining fields non-negative", model.MinSessionMinutes))
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return scheduleError(c, schedule.Validationf("unknown timezone %q", s.Timezone))
	}

	if err := h.Settings.Upsert(c.Request().Context(), s); err != nil {
		return scheduleError(c, schedule.Upstream("save settings failed", err))
	}
	return c.JSON(http.StatusOK, s)
}
