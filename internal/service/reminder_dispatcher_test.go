package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/coach-scheduling/internal/model"
	"github.com/iliyamo/coach-scheduling/internal/notifier"
)

// fakeStore mimics the repository's conditional-update semantics with a
// mutex so concurrent dispatcher runs exercise the claim protocol.
type fakeStore struct {
	mu       sync.Mutex
	bookings map[uint64]*model.Booking
}

func newFakeStore(bs ...model.Booking) *fakeStore {
	s := &fakeStore{bookings: make(map[uint64]*model.Booking)}
	for i := range bs {
		b := bs[i]
		s.bookings[b.ID] = &b
	}
	return s
}

func (s *fakeStore) DueReminders(_ context.Context, from, to time.Time) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.bookings {
		if b.Status == model.StatusConfirmed && b.ReminderSentAt == nil &&
			!b.StartAt.Before(from) && !b.StartAt.After(to) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *fakeStore) ClaimReminder(_ context.Context, id uint64, claimAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || b.Status != model.StatusConfirmed || b.ReminderSentAt != nil {
		return false, nil
	}
	t := claimAt
	b.ReminderSentAt = &t
	return true, nil
}

func (s *fakeStore) ReleaseReminder(_ context.Context, id uint64, claimAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if ok && b.ReminderSentAt != nil && b.ReminderSentAt.Equal(claimAt) {
		b.ReminderSentAt = nil
	}
	return nil
}

func (s *fakeStore) reminderSentAt(id uint64) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookings[id].ReminderSentAt
}

type fakeUsers struct {
	users map[uint64]model.User
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return model.User{}, errors.New("no such user")
	}
	return u, nil
}

// fakeSender records sends and can be told to fail.
type fakeSender struct {
	mu    sync.Mutex
	sends []string // destinations in send order
	fail  bool
}

func (f *fakeSender) result(channel string) model.NotificationResult {
	if f.fail {
		return model.NotificationResult{Channel: channel, Provider: "fake", Status: model.NotificationFailed, Error: "provider down"}
	}
	return model.NotificationResult{Channel: channel, Provider: "fake", Status: model.NotificationSent, ProviderMessageID: "m-1"}
}

func (f *fakeSender) SendSMS(_ context.Context, to, _ string, _ notifier.Meta) model.NotificationResult {
	f.mu.Lock()
	f.sends = append(f.sends, to)
	f.mu.Unlock()
	return f.result(model.ChannelSMS)
}

func (f *fakeSender) SendEmail(_ context.Context, to, _, _, _ string, _ notifier.Meta) model.NotificationResult {
	f.mu.Lock()
	f.sends = append(f.sends, to)
	f.mu.Unlock()
	return f.result(model.ChannelEmail)
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

func phonePtr(s string) *string { return &s }

func confirmedBooking(id uint64, startAt time.Time) model.Booking {
	return model.Booking{
		ID:              id,
		Reference:       "ref-1",
		CustomerID:      10,
		InstructorID:    7,
		Status:          model.StatusConfirmed,
		StartAt:         startAt,
		EndAt:           startAt.Add(time.Hour),
		StudentTimezone: "UTC",
	}
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestDispatchSendsDueReminder(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	store := newFakeStore(confirmedBooking(1, now.Add(24*time.Hour)))
	users := &fakeUsers{users: map[uint64]model.User{10: {ID: 10, Email: "a@b.c", Phone: phonePtr("+15550100")}}}
	sender := &fakeSender{}

	d := NewReminderDispatcher(store, users, sender, zap.NewNop()).WithClock(fixedClock(now))
	res, err := d.DispatchDueReminders(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Attempted)
	assert.Equal(t, 1, res.Sent)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 1, sender.count())
	assert.NotNil(t, store.reminderSentAt(1))
}

func TestDispatchIgnoresBookingsOutsideWindow(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	store := newFakeStore(
		confirmedBooking(1, now.Add(2*time.Hour)),  // too soon
		confirmedBooking(2, now.Add(48*time.Hour)), // too far
	)
	users := &fakeUsers{users: map[uint64]model.User{10: {ID: 10, Email: "a@b.c"}}}
	sender := &fakeSender{}

	d := NewReminderDispatcher(store, users, sender, zap.NewNop()).WithClock(fixedClock(now))
	res, err := d.DispatchDueReminders(context.Background())
	require.NoError(t, err)

	assert.Zero(t, res.Attempted)
	assert.Zero(t, sender.count())
}

func TestDispatchAtMostOnceUnderConcurrentRuns(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	var bookings []model.Booking
	users := map[uint64]model.User{}
	for id := uint64(1); id <= 5; id++ {
		b := confirmedBooking(id, now.Add(24*time.Hour))
		b.CustomerID = 100 + id
		bookings = append(bookings, b)
		users[100+id] = model.User{ID: 100 + id, Email: "x@y.z", Phone: phonePtr("+15550100")}
	}
	store := newFakeStore(bookings...)
	sender := &fakeSender{}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := NewReminderDispatcher(store, &fakeUsers{users: users}, sender, zap.NewNop()).WithClock(fixedClock(now))
			_, err := d.DispatchDueReminders(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Both runs saw the same candidates, but each booking was claimed once.
	assert.Equal(t, 5, sender.count())
}

func TestDispatchReleasesClaimOnSendFailure(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	store := newFakeStore(confirmedBooking(1, now.Add(24*time.Hour)))
	users := &fakeUsers{users: map[uint64]model.User{10: {ID: 10, Email: "a@b.c", Phone: phonePtr("+15550100")}}}
	sender := &fakeSender{fail: true}

	d := NewReminderDispatcher(store, users, sender, zap.NewNop()).WithClock(fixedClock(now))
	res, err := d.DispatchDueReminders(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Attempted)
	assert.Zero(t, res.Sent)
	assert.Len(t, res.Warnings, 1)
	// The claim was released, so a later run can retry.
	assert.Nil(t, store.reminderSentAt(1))

	sender.fail = false
	res, err = d.DispatchDueReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.NotNil(t, store.reminderSentAt(1))
}

func TestDispatchReleasesClaimWhenCustomerLookupFails(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	store := newFakeStore(confirmedBooking(1, now.Add(24*time.Hour)))
	users := &fakeUsers{users: map[uint64]model.User{}} // lookup fails
	sender := &fakeSender{}

	d := NewReminderDispatcher(store, users, sender, zap.NewNop()).WithClock(fixedClock(now))
	res, err := d.DispatchDueReminders(context.Background())
	require.NoError(t, err)

	assert.Len(t, res.Warnings, 1)
	assert.Zero(t, sender.count())
	assert.Nil(t, store.reminderSentAt(1))
}

func TestDispatchFallsBackToEmailWithoutPhone(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	store := newFakeStore(confirmedBooking(1, now.Add(24*time.Hour)))
	users := &fakeUsers{users: map[uint64]model.User{10: {ID: 10, Email: "a@b.c"}}}
	sender := &fakeSender{}

	d := NewReminderDispatcher(store, users, sender, zap.NewNop()).WithClock(fixedClock(now))
	res, err := d.DispatchDueReminders(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Sent)
	require.Equal(t, 1, sender.count())
	assert.Equal(t, "a@b.c", sender.sends[0])
}
