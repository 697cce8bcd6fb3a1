package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/coach-scheduling/internal/config"
	"github.com/iliyamo/coach-scheduling/internal/model"
	"github.com/iliyamo/coach-scheduling/internal/notifier"
	"github.com/iliyamo/coach-scheduling/internal/repository"
	"github.com/iliyamo/coach-scheduling/internal/schedule"
)

// The fakes share a call log so tests can assert that the creation
// preconditions short-circuit in their documented order.

type fakeUserStore struct {
	calls         *[]string
	instructorOK  bool
	customerPhone *string
}

func (f *fakeUserStore) GetByID(_ context.Context, id uint64) (model.User, error) {
	*f.calls = append(*f.calls, "users.GetByID")
	return model.User{ID: id, Email: "c@x.y", Phone: f.customerPhone}, nil
}

func (f *fakeUserStore) InstructorInBrand(_ context.Context, _, _ uint64) (bool, error) {
	*f.calls = append(*f.calls, "users.InstructorInBrand")
	return f.instructorOK, nil
}

type fakeSettingsStore struct {
	calls    *[]string
	settings model.SchedulingSettings
}

func (f *fakeSettingsStore) GetOrDefault(_ context.Context, _, _ uint64) (model.SchedulingSettings, error) {
	*f.calls = append(*f.calls, "settings.GetOrDefault")
	return f.settings, nil
}

type fakeAvailabilityStore struct {
	calls *[]string
	rules []model.AvailabilityRule
}

func (f *fakeAvailabilityStore) RulesByInstructor(_ context.Context, _ uint64) ([]model.AvailabilityRule, error) {
	*f.calls = append(*f.calls, "availability.Rules")
	return f.rules, nil
}

func (f *fakeAvailabilityStore) OverridesInRange(_ context.Context, _ uint64, _, _ string) ([]model.AvailabilityOverride, error) {
	*f.calls = append(*f.calls, "availability.Overrides")
	return nil, nil
}

type fakeBookingStore struct {
	calls        *[]string
	existing     []model.Booking
	byID         map[uint64]model.Booking
	createErr    error
	created      *model.Booking
	createBuffer int
	updateErr    error
}

func (f *fakeBookingStore) Create(_ context.Context, b *model.Booking, bufferMinutes int) error {
	*f.calls = append(*f.calls, "bookings.Create")
	f.createBuffer = bufferMinutes
	if f.createErr != nil {
		return f.createErr
	}
	b.ID = 42
	b.CreatedAt = time.Now().UTC()
	f.created = b
	return nil
}

func (f *fakeBookingStore) GetByID(_ context.Context, id uint64) (model.Booking, error) {
	b, ok := f.byID[id]
	if !ok {
		return model.Booking{}, repository.ErrNotFound
	}
	return b, nil
}

func (f *fakeBookingStore) ActiveInWindow(_ context.Context, _ uint64, _, _ time.Time) ([]model.Booking, error) {
	*f.calls = append(*f.calls, "bookings.ActiveInWindow")
	return f.existing, nil
}

func (f *fakeBookingStore) ListForCustomer(_ context.Context, _, _ uint64) ([]model.Booking, error) {
	return nil, nil
}

func (f *fakeBookingStore) ListForInstructor(_ context.Context, _, _ uint64) ([]model.Booking, error) {
	return nil, nil
}

func (f *fakeBookingStore) UpdateStatus(_ context.Context, id uint64, _, target model.BookingStatus, _ *model.PaymentDescriptor, now time.Time) (model.Booking, error) {
	*f.calls = append(*f.calls, "bookings.UpdateStatus")
	if f.updateErr != nil {
		return model.Booking{}, f.updateErr
	}
	b := f.byID[id]
	b.Status = target
	b.UpdatedAt = now
	return b, nil
}

func (f *fakeBookingStore) SetInstructorNotes(_ context.Context, _ uint64, _ string) error {
	return nil
}

type noopSender struct{}

func (noopSender) SendSMS(_ context.Context, _, _ string, _ notifier.Meta) model.NotificationResult {
	return model.NotificationResult{Channel: model.ChannelSMS, Status: model.NotificationSent}
}

func (noopSender) SendEmail(_ context.Context, _, _, _, _ string, _ notifier.Meta) model.NotificationResult {
	return model.NotificationResult{Channel: model.ChannelEmail, Status: model.NotificationSent}
}

// fixture wires a handler whose instructor works Tuesdays and
// Wednesdays 09:00-17:00 UTC with 60-minute sessions.
func newFixture(t *testing.T) (*BookingHandler, *[]string, *fakeBookingStore) {
	t.Helper()
	calls := &[]string{}
	users := &fakeUserStore{calls: calls, instructorOK: true}
	settings := &fakeSettingsStore{calls: calls, settings: model.SchedulingSettings{
		BrandID: 1, InstructorID: 7, Timezone: "UTC",
		SessionMinutes: 60, BufferMinutes: 0,
		AdvanceBookingDays: 30, CancellationCutoffHours: 24,
	}}
	avail := &fakeAvailabilityStore{calls: calls, rules: []model.AvailabilityRule{
		{InstructorID: 7, Weekday: 2, StartTime: "09:00", EndTime: "17:00", IsActive: true},
		{InstructorID: 7, Weekday: 3, StartTime: "09:00", EndTime: "17:00", IsActive: true},
	}}
	bookings := &fakeBookingStore{calls: calls, byID: map[uint64]model.Booking{}}

	h := NewBookingHandler(config.Config{}, users, settings, avail, bookings, noopSender{}, zap.NewNop()).
		WithClock(func() time.Time { return time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC) })
	return h, calls, bookings
}

func customerActor() schedule.Actor { return schedule.Actor{UserID: 5, BrandID: 1} }

func validReq() createBookingReq {
	return createBookingReq{
		InstructorID:    7,
		StartAt:         "2026-03-10T14:00:00Z",
		EndAt:           "2026-03-10T15:00:00Z",
		StudentTimezone: "America/New_York",
	}
}

func TestPrepareBookingHappyPath(t *testing.T) {
	h, calls, _ := newFixture(t)

	b, buffer, serr := h.prepareBooking(context.Background(), customerActor(), validReq(), h.now())
	require.Nil(t, serr)
	assert.Zero(t, buffer)

	assert.Equal(t, model.StatusPending, b.Status)
	assert.Equal(t, model.PaymentUnpaid, b.PaymentStatus)
	assert.Equal(t, uint64(5), b.CustomerID)
	assert.Equal(t, uint64(7), b.InstructorID)
	assert.NotEmpty(t, b.Reference)
	assert.Equal(t, "UTC", b.InstructorTimezone)
	assert.Equal(t, []string{
		"users.InstructorInBrand",
		"settings.GetOrDefault",
		"availability.Rules",
		"availability.Overrides",
		"bookings.ActiveInWindow",
	}, *calls)
}

func TestPrepareBookingPreconditionOrder(t *testing.T) {
	t.Run("unknown instructor stops before settings", func(t *testing.T) {
		h, calls, _ := newFixture(t)
		h.Users.(*fakeUserStore).instructorOK = false

		_, _, serr := h.prepareBooking(context.Background(), customerActor(), validReq(), h.now())
		require.NotNil(t, serr)
		assert.Equal(t, schedule.KindValidation, schedule.KindOf(serr))
		assert.Equal(t, []string{"users.InstructorInBrand"}, *calls)
	})

	t.Run("time sanity stops before settings", func(t *testing.T) {
		h, calls, _ := newFixture(t)
		req := validReq()
		req.EndAt = req.StartAt // end must be strictly after start

		_, _, serr := h.prepareBooking(context.Background(), customerActor(), req, h.now())
		require.NotNil(t, serr)
		assert.Equal(t, schedule.KindValidation, schedule.KindOf(serr))
		assert.Equal(t, []string{"users.InstructorInBrand"}, *calls)
	})

	t.Run("wrong duration stops before availability", func(t *testing.T) {
		h, calls, _ := newFixture(t)
		req := validReq()
		req.EndAt = "2026-03-10T14:30:00Z" // 30m against a 60m session

		_, _, serr := h.prepareBooking(context.Background(), customerActor(), req, h.now())
		require.NotNil(t, serr)
		assert.Equal(t, schedule.KindValidation, schedule.KindOf(serr))
		assert.Equal(t, []string{"users.InstructorInBrand", "settings.GetOrDefault"}, *calls)
	})

	t.Run("off-slot request stops before conflict scan", func(t *testing.T) {
		h, calls, _ := newFixture(t)
		req := validReq()
		req.StartAt = "2026-03-10T14:30:00Z" // grid-misaligned
		req.EndAt = "2026-03-10T15:30:00Z"

		_, _, serr := h.prepareBooking(context.Background(), customerActor(), req, h.now())
		require.NotNil(t, serr)
		assert.Equal(t, schedule.KindConflict, schedule.KindOf(serr))
		assert.NotContains(t, *calls, "bookings.ActiveInWindow")
	})
}

func TestPrepareBookingPastStart(t *testing.T) {
	h, _, _ := newFixture(t)
	req := validReq()
	req.StartAt = "2026-03-08T14:00:00Z" // before the fixed clock
	req.EndAt = "2026-03-08T15:00:00Z"

	_, _, serr := h.prepareBooking(context.Background(), customerActor(), req, h.now())
	require.NotNil(t, serr)
	assert.Equal(t, schedule.KindValidation, schedule.KindOf(serr))
}

func TestPrepareBookingAdvanceWindowBoundary(t *testing.T) {
	h, _, _ := newFixture(t)

	// now+30d lands on Wednesday 2026-04-08; 12:00 is on the slot grid.
	req := validReq()
	req.StartAt = "2026-04-08T12:00:00Z"
	req.EndAt = "2026-04-08T13:00:00Z"
	_, _, serr := h.prepareBooking(context.Background(), customerActor(), req, h.now())
	assert.Nil(t, serr, "start exactly at the horizon is bookable")

	// One week later is past the horizon.
	req.StartAt = "2026-04-15T12:00:00Z"
	req.EndAt = "2026-04-15T13:00:00Z"
	_, _, serr = h.prepareBooking(context.Background(), customerActor(), req, h.now())
	require.NotNil(t, serr)
	assert.Equal(t, schedule.KindValidation, schedule.KindOf(serr))
}

func TestPrepareBookingConflict(t *testing.T) {
	h, _, store := newFixture(t)
	store.existing = []model.Booking{{
		ID: 9, InstructorID: 7, Status: model.StatusConfirmed,
		StartAt: time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
	}}

	_, _, serr := h.prepareBooking(context.Background(), customerActor(), validReq(), h.now())
	require.NotNil(t, serr)
	assert.Equal(t, schedule.KindConflict, schedule.KindOf(serr))
}

func TestPrepareBookingBufferAdjacency(t *testing.T) {
	h, _, store := newFixture(t)
	h.Settings.(*fakeSettingsStore).settings.BufferMinutes = 30
	store.existing = []model.Booking{{
		ID: 9, InstructorID: 7, Status: model.StatusConfirmed,
		StartAt: time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2026, 3, 10, 16, 0, 0, 0, time.UTC),
	}}

	// 14:00-15:00 only touches the existing 15:00 booking, but the
	// 30-minute buffer turns adjacency into a conflict.
	_, _, serr := h.prepareBooking(context.Background(), customerActor(), validReq(), h.now())
	require.NotNil(t, serr)
	assert.Equal(t, schedule.KindConflict, schedule.KindOf(serr))
}

// newRequest builds an authenticated Echo context the way JWTAuth would.
func newRequest(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", uint64(5))
	c.Set("brand_id", uint64(1))
	c.Set("role", model.RoleCustomer)
	return c, rec
}

func TestCreateBookingHTTP(t *testing.T) {
	e := echo.New()

	t.Run("success returns confirm_and_pay", func(t *testing.T) {
		h, _, store := newFixture(t)
		body := `{"instructor_id":7,"start_at":"2026-03-10T14:00:00Z","end_at":"2026-03-10T15:00:00Z","student_timezone":"UTC"}`
		c, rec := newRequest(e, http.MethodPost, "/v1/bookings", body)

		require.NoError(t, h.Create(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			NextStep string        `json:"next_step"`
			Booking  model.Booking `json:"booking"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "confirm_and_pay", resp.NextStep)
		assert.Equal(t, model.StatusPending, resp.Booking.Status)
		require.NotNil(t, store.created)
		assert.Equal(t, uint64(42), store.created.ID)
	})

	t.Run("locked scan receives the configured buffer", func(t *testing.T) {
		h, _, store := newFixture(t)
		h.Settings.(*fakeSettingsStore).settings.BufferMinutes = 30
		body := `{"instructor_id":7,"start_at":"2026-03-10T14:00:00Z","end_at":"2026-03-10T15:00:00Z","student_timezone":"UTC"}`
		c, rec := newRequest(e, http.MethodPost, "/v1/bookings", body)

		// The pre-insert check cannot see a concurrent insert, so the
		// store must repeat the scan with the same buffer under lock.
		require.NoError(t, h.Create(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 30, store.createBuffer)
	})

	t.Run("race loser gets 409", func(t *testing.T) {
		h, _, store := newFixture(t)
		store.createErr = repository.ErrSlotTaken
		body := `{"instructor_id":7,"start_at":"2026-03-10T14:00:00Z","end_at":"2026-03-10T15:00:00Z","student_timezone":"UTC"}`
		c, rec := newRequest(e, http.MethodPost, "/v1/bookings", body)

		require.NoError(t, h.Create(c))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("validation failure gets 400", func(t *testing.T) {
		h, _, _ := newFixture(t)
		body := `{"instructor_id":7,"start_at":"not-a-time","end_at":"2026-03-10T15:00:00Z","student_timezone":"UTC"}`
		c, rec := newRequest(e, http.MethodPost, "/v1/bookings", body)

		require.NoError(t, h.Create(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPatchBookingHTTP(t *testing.T) {
	e := echo.New()
	pending := model.Booking{
		ID: 42, Reference: "r-1", BrandID: 1, CustomerID: 5, InstructorID: 7,
		Status: model.StatusPending, PaymentStatus: model.PaymentUnpaid,
		StartAt: time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
	}

	t.Run("confirm without payment is 400", func(t *testing.T) {
		h, _, store := newFixture(t)
		store.byID[42] = pending
		c, rec := newRequest(e, http.MethodPatch, "/v1/bookings/42", `{"status":"confirmed"}`)
		c.SetParamNames("id")
		c.SetParamValues("42")

		require.NoError(t, h.Patch(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("confirm with payment succeeds", func(t *testing.T) {
		h, _, store := newFixture(t)
		store.byID[42] = pending
		body := `{"status":"confirmed","payment":{"amount_cents":5000,"currency":"USD","provider":"stripe"}}`
		c, rec := newRequest(e, http.MethodPatch, "/v1/bookings/42", body)
		c.SetParamNames("id")
		c.SetParamValues("42")

		require.NoError(t, h.Patch(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var got model.Booking
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, model.StatusConfirmed, got.Status)
	})

	t.Run("customer cancel inside cutoff is 409", func(t *testing.T) {
		h, _, store := newFixture(t)
		// Session starts 2026-03-10T14:00Z, clock is 2026-03-09T12:00Z:
		// 26h out is fine, so move the clock to 2026-03-09T15:00Z (23h).
		h.WithClock(func() time.Time { return time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC) })
		store.byID[42] = pending
		c, rec := newRequest(e, http.MethodPatch, "/v1/bookings/42", `{"status":"cancelled"}`)
		c.SetParamNames("id")
		c.SetParamValues("42")

		require.NoError(t, h.Patch(c))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("stale status maps to 409", func(t *testing.T) {
		h, _, store := newFixture(t)
		store.byID[42] = pending
		store.updateErr = repository.ErrStaleStatus
		body := `{"status":"confirmed","payment":{"amount_cents":5000,"currency":"USD","provider":"stripe"}}`
		c, rec := newRequest(e, http.MethodPatch, "/v1/bookings/42", body)
		c.SetParamNames("id")
		c.SetParamValues("42")

		require.NoError(t, h.Patch(c))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("foreign booking is hidden as 404", func(t *testing.T) {
		h, _, store := newFixture(t)
		other := pending
		other.CustomerID = 99
		store.byID[42] = other
		c, rec := newRequest(e, http.MethodPatch, "/v1/bookings/42", `{"status":"cancelled"}`)
		c.SetParamNames("id")
		c.SetParamValues("42")

		require.NoError(t, h.Patch(c))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
