package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/coach-scheduling/internal/config"
	"github.com/iliyamo/coach-scheduling/internal/model"
	"github.com/iliyamo/coach-scheduling/internal/notifier"
	"github.com/iliyamo/coach-scheduling/internal/repository"
	"github.com/iliyamo/coach-scheduling/internal/schedule"
	"github.com/iliyamo/coach-scheduling/internal/service"
)

// Store slices the booking endpoints need.  The concrete repositories
// satisfy them; tests substitute fakes to pin down precondition
// ordering without a database.
type UserStore interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
	InstructorInBrand(ctx context.Context, brandID, instructorID uint64) (bool, error)
}

type SettingsStore interface {
	GetOrDefault(ctx context.Context, brandID, instructorID uint64) (model.SchedulingSettings, error)
}

type AvailabilityStore interface {
	RulesByInstructor(ctx context.Context, instructorID uint64) ([]model.AvailabilityRule, error)
	OverridesInRange(ctx context.Context, instructorID uint64, from, to string) ([]model.AvailabilityOverride, error)
}

type BookingStore interface {
	Create(ctx context.Context, b *model.Booking, bufferMinutes int) error
	GetByID(ctx context.Context, id uint64) (model.Booking, error)
	ActiveInWindow(ctx context.Context, instructorID uint64, from, to time.Time) ([]model.Booking, error)
	ListForCustomer(ctx context.Context, brandID, customerID uint64) ([]model.Booking, error)
	ListForInstructor(ctx context.Context, brandID, instructorID uint64) ([]model.Booking, error)
	UpdateStatus(ctx context.Context, id uint64, from, target model.BookingStatus, pay *model.PaymentDescriptor, now time.Time) (model.Booking, error)
	SetInstructorNotes(ctx context.Context, id uint64, notes string) error
}

// BookingHandler owns the booking lifecycle endpoints: creation with its
// ordered preconditions, the guarded status transitions, instructor
// notes, and the role-scoped listings.  The storage layer is the only
// arbiter under concurrency; the handler never holds locks.
type BookingHandler struct {
	Cfg          config.Config
	Users        UserStore
	Settings     SettingsStore
	Availability AvailabilityStore
	Bookings     BookingStore
	Sender       notifier.Sender
	Logger       *zap.Logger
	now          func() time.Time
}

func NewBookingHandler(cfg config.Config, u UserStore, s SettingsStore, a AvailabilityStore, b BookingStore, sender notifier.Sender, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{
		Cfg: cfg, Users: u, Settings: s, Availability: a, Bookings: b,
		Sender: sender, Logger: logger, now: time.Now,
	}
}

// WithClock replaces the time source for tests.
func (h *BookingHandler) WithClock(now func() time.Time) *BookingHandler {
	h.now = now
	return h
}

type createBookingReq struct {
	InstructorID    uint64  `json:"instructor_id"`
	StartAt         string  `json:"start_at"` // RFC3339
	EndAt           string  `json:"end_at"`   // RFC3339
	StudentTimezone string  `json:"student_timezone"`
	CourseID        *uint64 `json:"course_id,omitempty"`
	Location        *string `json:"location,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

// Create handles POST /v1/bookings.  The preconditions run in a fixed
// order and short-circuit on first failure:
//
//  1. instructor belongs to the caller's brand,
//  2. end after start, start strictly in the future,
//  3. duration equals the instructor's configured session length,
//  4. start within the advance-booking horizon,
//  5. the exact start/end pair is a resolver-produced slot,
//  6. no buffered conflict with an active booking.
//
// Steps 1-4 fail as validation (400), 5-6 as conflict (409).  The
// read-then-decide check in step 6 cannot rule out a concurrent insert,
// so the store repeats the buffered scan under lock inside the insert
// transaction: the loser of a tie gets the same 409 a step-6 failure
// produces.
func (h *BookingHandler) Create(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return err
	}
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return scheduleError(c, schedule.Validationf("invalid body"))
	}
	ctx := c.Request().Context()
	now := h.now().UTC()

	booking, bufferMinutes, serr := h.prepareBooking(ctx, actor, req, now)
	if serr != nil {
		return scheduleError(c, serr)
	}

	if err := h.Bookings.Create(ctx, booking, bufferMinutes); err != nil {
		if errors.Is(err, repository.ErrSlotTaken) {
			return scheduleError(c, schedule.Conflictf("slot was just booked by someone else"))
		}
		return scheduleError(c, schedule.Upstream("create booking failed", err))
	}

	// Best-effort: a failed notification never fails the booking.
	if customer, err := h.Users.GetByID(ctx, actor.UserID); err == nil {
		service.NotifyBookingCreated(ctx, h.Cfg.AMQPURL, h.Sender, *booking, customer, h.Logger)
	} else {
		h.Logger.Warn("booking created but customer lookup failed",
			zap.String("reference", booking.Reference), zap.Error(err))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"booking":   booking,
		"next_step": "confirm_and_pay",
	})
}

// prepareBooking runs precondition steps 1-6 and returns the row ready
// to insert plus the buffer the store's locked conflict scan must honor.
func (h *BookingHandler) prepareBooking(ctx context.Context, actor schedule.Actor, req createBookingReq, now time.Time) (*model.Booking, int, *schedule.Error) {
	// 1. instructor must exist inside the caller's brand.
	if req.InstructorID == 0 {
		return nil, 0, schedule.Validationf("instructor_id is required")
	}
	ok, err := h.Users.InstructorInBrand(ctx, actor.BrandID, req.InstructorID)
	if err != nil {
		return nil, 0, schedule.Upstream("instructor lookup failed", err)
	}
	if !ok {
		return nil, 0, schedule.Validationf("instructor %d not found in brand", req.InstructorID)
	}

	// 2. time sanity: end after start, start strictly future.
	startAt, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		return nil, 0, schedule.Validationf("start_at must be RFC3339")
	}
	endAt, err := time.Parse(time.RFC3339, req.EndAt)
	if err != nil {
		return nil, 0, schedule.Validationf("end_at must be RFC3339")
	}
	startAt, endAt = startAt.UTC(), endAt.UTC()
	if !endAt.After(startAt) {
		return nil, 0, schedule.Validationf("end_at must be after start_at")
	}
	if !startAt.After(now) {
		return nil, 0, schedule.Validationf("start_at must be in the future")
	}
	if req.StudentTimezone == "" {
		return nil, 0, schedule.Validationf("student_timezone is required")
	}
	if _, err := time.LoadLocation(req.StudentTimezone); err != nil {
		return nil, 0, schedule.Validationf("unknown timezone %q", req.StudentTimezone)
	}

	settings, err := h.Settings.GetOrDefault(ctx, actor.BrandID, req.InstructorID)
	if err != nil {
		return nil, 0, schedule.Upstream("load settings failed", err)
	}

	// 3. duration must be the instructor's legal session length.
	durMin := int(endAt.Sub(startAt) / time.Minute)
	if durMin < model.MinSessionMinutes || durMin != settings.SessionMinutes {
		return nil, 0, schedule.Validationf("duration must be exactly %d minutes", settings.SessionMinutes)
	}

	// 4. start within the advance-booking horizon.
	horizon := now.AddDate(0, 0, settings.AdvanceBookingDays)
	if startAt.After(horizon) {
		return nil, 0, schedule.Validationf("start_at exceeds the %d-day booking horizon", settings.AdvanceBookingDays)
	}

	// 5. the requested pair must be a slot the resolver would offer on
	// that instructor-local date.
	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		return nil, 0, schedule.Upstream("bad instructor timezone", err)
	}
	localDate := startAt.In(loc).Format(schedule.DateLayout)
	rules, err := h.Availability.RulesByInstructor(ctx, req.InstructorID)
	if err != nil {
		return nil, 0, schedule.Upstream("load rules failed", err)
	}
	overrides, err := h.Availability.OverridesInRange(ctx, req.InstructorID, localDate, localDate)
	if err != nil {
		return nil, 0, schedule.Upstream("load overrides failed", err)
	}
	slots, rerr := schedule.ResolveSlots(loc, rules, overrides, localDate, 1, settings.SessionMinutes)
	if rerr != nil {
		var se *schedule.Error
		if errors.As(rerr, &se) {
			return nil, 0, se
		}
		return nil, 0, schedule.Upstream("resolve slots failed", rerr)
	}
	if !schedule.ContainsSlot(slots, startAt, endAt) {
		return nil, 0, schedule.Conflictf("requested time is not an offered slot")
	}

	// 6. no buffered conflict with an active booking.  The scan window
	// is widened by the buffer so adjacent bookings are visible.
	pad := time.Duration(settings.BufferMinutes) * time.Minute
	existing, err := h.Bookings.ActiveInWindow(ctx, req.InstructorID, startAt.Add(-pad-24*time.Hour), endAt.Add(pad+24*time.Hour))
	if err != nil {
		return nil, 0, schedule.Upstream("conflict scan failed", err)
	}
	if schedule.HasConflict(existing, startAt, endAt, settings.BufferMinutes, 0) {
		return nil, 0, schedule.Conflictf("slot conflicts with an existing booking")
	}

	return &model.Booking{
		Reference:          uuid.NewString(),
		BrandID:            actor.BrandID,
		CustomerID:         actor.UserID,
		InstructorID:       req.InstructorID,
		CourseID:           req.CourseID,
		Status:             model.StatusPending,
		StartAt:            startAt,
		EndAt:              endAt,
		StudentTimezone:    req.StudentTimezone,
		InstructorTimezone: settings.Timezone,
		Location:           req.Location,
		Notes:              req.Notes,
		PaymentStatus:      model.PaymentUnpaid,
	}, settings.BufferMinutes, nil
}

type patchBookingReq struct {
	Status          string                   `json:"status,omitempty"`
	Payment         *model.PaymentDescriptor `json:"payment,omitempty"`
	InstructorNotes *string                  `json:"instructor_notes,omitempty"`
}

// Patch handles PATCH /v1/bookings/:id.  A status change runs through
// the lifecycle guards and a single conditional UPDATE keyed on the
// status the guards evaluated, so a concurrent transition turns into a
// 409 instead of a silent double-apply.  Instructor notes are a
// separate, terminal-only mutation.
func (h *BookingHandler) Patch(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return err
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return scheduleError(c, schedule.Validationf("invalid booking id"))
	}
	var req patchBookingReq
	if err := c.Bind(&req); err != nil {
		return scheduleError(c, schedule.Validationf("invalid body"))
	}
	if req.Status == "" && req.InstructorNotes == nil {
		return scheduleError(c, schedule.Validationf("nothing to update"))
	}
	ctx := c.Request().Context()

	b, err := h.Bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return scheduleError(c, schedule.NotFoundf("booking %d not found", id))
		}
		return scheduleError(c, schedule.Upstream("load booking failed", err))
	}
	if b.BrandID != actor.BrandID || !h.canView(actor, b) {
		// Hide other tenants' and other customers' bookings entirely.
		return scheduleError(c, schedule.NotFoundf("booking %d not found", id))
	}

	if req.Status != "" {
		target := model.BookingStatus(req.Status)
		if serr := schedule.CheckTransition(b, target, actor, req.Payment, h.cutoffHours(ctx, b), h.now().UTC()); serr != nil {
			return scheduleError(c, serr)
		}
		updated, err := h.Bookings.UpdateStatus(ctx, b.ID, b.Status, target, req.Payment, h.now().UTC())
		if err != nil {
			if errors.Is(err, repository.ErrStaleStatus) {
				return scheduleError(c, schedule.Conflictf("booking changed concurrently, reload and retry"))
			}
			return scheduleError(c, schedule.Upstream("update booking failed", err))
		}
		b = updated
	}

	if req.InstructorNotes != nil {
		if serr := schedule.CheckInstructorNotes(b, actor); serr != nil {
			return scheduleError(c, serr)
		}
		if err := h.Bookings.SetInstructorNotes(ctx, b.ID, *req.InstructorNotes); err != nil {
			return scheduleError(c, schedule.Upstream("save notes failed", err))
		}
		b.InstructorNotes = req.InstructorNotes
	}

	return c.JSON(http.StatusOK, b)
}

// cutoffHours loads the cancellation cutoff for the booking's
// instructor, falling back to the default when settings cannot load.
func (h *BookingHandler) cutoffHours(ctx context.Context, b model.Booking) int {
	settings, err := h.Settings.GetOrDefault(ctx, b.BrandID, b.InstructorID)
	if err != nil {
		return model.DefaultSettings(b.BrandID, b.InstructorID).CancellationCutoffHours
	}
	return settings.CancellationCutoffHours
}

// canView reports whether the actor may see the booking at all.
func (h *BookingHandler) canView(actor schedule.Actor, b model.Booking) bool {
	return actor.Admin || actor.UserID == b.CustomerID || actor.Manages(b.InstructorID)
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return err
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return scheduleError(c, schedule.Validationf("invalid booking id"))
	}
	b, err := h.Bookings.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return scheduleError(c, schedule.NotFoundf("booking %d not found", id))
		}
		return scheduleError(c, schedule.Upstream("load booking failed", err))
	}
	if b.BrandID != actor.BrandID || !h.canView(actor, b) {
		return scheduleError(c, schedule.NotFoundf("booking %d not found", id))
	}
	return c.JSON(http.StatusOK, b)
}

// List handles GET /v1/bookings.  Customers see their own bookings,
// instructors their schedule; admins may scope with instructor_id or
// customer_id and default to the whole-brand customer view being
// unsupported (they must pick a scope).
func (h *BookingHandler) List(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	var (
		items []model.Booking
		lerr  error
	)
	switch {
	case len(actor.InstructorIDs) > 0 && !actor.Admin:
		items, lerr = h.Bookings.ListForInstructor(ctx, actor.BrandID, actor.UserID)
	case actor.Admin:
		if raw := c.QueryParam("instructor_id"); raw != "" {
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil || id == 0 {
				return scheduleError(c, schedule.Validationf("invalid instructor_id"))
			}
			items, lerr = h.Bookings.ListForInstructor(ctx, actor.BrandID, id)
		} else if raw := c.QueryParam("customer_id"); raw != "" {
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil || id == 0 {
				return scheduleError(c, schedule.Validationf("invalid customer_id"))
			}
			items, lerr = h.Bookings.ListForCustomer(ctx, actor.BrandID, id)
		} else {
			return scheduleError(c, schedule.Validationf("admins must scope with instructor_id or customer_id"))
		}
	default:
		items, lerr = h.Bookings.ListForCustomer(ctx, actor.BrandID, actor.UserID)
	}
	if lerr != nil {
		return scheduleError(c, schedule.Upstream("list bookings failed", lerr))
	}
	if items == nil {
		items = []model.Booking{}
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": items})
}
