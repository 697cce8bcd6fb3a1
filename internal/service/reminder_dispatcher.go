// Package service hosts the background orchestration that sits between
// the HTTP layer and the repositories: the reminder dispatcher and the
// booking notification helper.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/coach-scheduling/internal/model"
	"github.com/iliyamo/coach-scheduling/internal/notifier"
	"github.com/iliyamo/coach-scheduling/internal/queue"
)

// The reminder fires once per confirmed booking when the session start
// falls inside [now+23h, now+25h].  The two-hour window tolerates cron
// jitter and missed runs without ever reminding twice.
const (
	reminderWindowFrom = 23 * time.Hour
	reminderWindowTo   = 25 * time.Hour
)

// ReminderStore is the slice of the booking repository the dispatcher
// needs.  ClaimReminder and ReleaseReminder must be atomic conditional
// updates at the store layer; the dispatcher performs no read-then-write
// of its own.
type ReminderStore interface {
	DueReminders(ctx context.Context, from, to time.Time) ([]model.Booking, error)
	ClaimReminder(ctx context.Context, id uint64, claimAt time.Time) (bool, error)
	ReleaseReminder(ctx context.Context, id uint64, claimAt time.Time) error
}

// UserDirectory resolves booking participants to their contact details.
type UserDirectory interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// DispatchResult summarizes one dispatcher run.  Warnings collect
// per-booking failures; they are reported, never raised, so one stuck
// booking cannot block reminders for the rest of the batch.
type DispatchResult struct {
	Attempted int      `json:"attempted"`
	Sent      int      `json:"sent"`
	Warnings  []string `json:"warnings"`
}

// ReminderDispatcher scans for bookings starting in roughly 24 hours and
// sends each confirmed booking exactly one reminder.  Concurrency safety
// comes entirely from the store's claim/release compare-and-set: the
// dispatcher may run on overlapping schedules, be re-triggered after a
// crash, or race booking cancellation, and still send at most once.
type ReminderDispatcher struct {
	store  ReminderStore
	users  UserDirectory
	sender notifier.Sender
	logger *zap.Logger
	now    func() time.Time
}

// NewReminderDispatcher wires a dispatcher with the real clock.
func NewReminderDispatcher(store ReminderStore, users UserDirectory, sender notifier.Sender, logger *zap.Logger) *ReminderDispatcher {
	return &ReminderDispatcher{store: store, users: users, sender: sender, logger: logger, now: time.Now}
}

// WithClock replaces the time source.  Tests use this to pin the
// reminder window.
func (d *ReminderDispatcher) WithClock(now func() time.Time) *ReminderDispatcher {
	d.now = now
	return d
}

// DispatchDueReminders runs one batch.  Candidates are processed
// sequentially, so notification side effects within a run are strictly
// ordered.  The returned error is non-nil only when the candidate scan
// itself fails; everything after the scan degrades into warnings.
func (d *ReminderDispatcher) DispatchDueReminders(ctx context.Context) (DispatchResult, error) {
	runID := uuid.NewString()
	now := d.now().UTC()
	// MySQL DATETIME stores whole seconds; truncating keeps the release
	// comparison exact after a round-trip.
	claimAt := now.Truncate(time.Second)

	var res DispatchResult
	res.Warnings = []string{}

	candidates, err := d.store.DueReminders(ctx, now.Add(reminderWindowFrom), now.Add(reminderWindowTo))
	if err != nil {
		return res, fmt.Errorf("scan due reminders: %w", err)
	}
	d.logger.Info("reminder dispatch started",
		zap.String("run_id", runID), zap.Int("candidates", len(candidates)))

	for _, b := range candidates {
		claimed, err := d.store.ClaimReminder(ctx, b.ID, claimAt)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("booking %s: claim failed: %v", b.Reference, err))
			continue
		}
		if !claimed {
			// Another run owns or already sent this reminder; not an error.
			continue
		}
		res.Attempted++

		if d.sendReminder(ctx, b, &res) {
			res.Sent++
			continue
		}
		// The send did not land: release the claim so a later run retries.
		// The claim-timestamp condition keeps us from clobbering a newer
		// claim taken in the meantime.
		if err := d.store.ReleaseReminder(ctx, b.ID, claimAt); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("booking %s: release failed: %v", b.Reference, err))
		}
	}

	d.logger.Info("reminder dispatch finished",
		zap.String("run_id", runID),
		zap.Int("attempted", res.Attempted),
		zap.Int("sent", res.Sent),
		zap.Int("warnings", len(res.Warnings)))
	return res, nil
}

// sendReminder resolves the customer and pushes the reminder through the
// sender.  It reports success and appends a warning on any failure.
func (d *ReminderDispatcher) sendReminder(ctx context.Context, b model.Booking, res *DispatchResult) bool {
	customer, err := d.users.GetByID(ctx, b.CustomerID)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("booking %s: load customer: %v", b.Reference, err))
		return false
	}

	body := reminderBody(b)
	meta := notifier.Meta{Kind: queue.KindReminder24h, BookingReference: b.Reference}

	var result model.NotificationResult
	if customer.Phone != nil && *customer.Phone != "" {
		result = d.sender.SendSMS(ctx, *customer.Phone, body, meta)
	} else {
		result = d.sender.SendEmail(ctx, customer.Email, "Session reminder", body, "", meta)
	}
	if !result.Sent() {
		res.Warnings = append(res.Warnings, fmt.Sprintf("booking %s: %s send %s: %s",
			b.Reference, result.Channel, result.Status, result.Error))
		return false
	}
	return true
}

// reminderBody renders the session start in the student's own timezone,
// falling back to UTC when the stored zone no longer parses.
func reminderBody(b model.Booking) string {
	loc, err := time.LoadLocation(b.StudentTimezone)
	if err != nil {
		loc = time.UTC
	}
	local := b.StartAt.In(loc)
	return fmt.Sprintf("Reminder: your coaching session starts %s (%s).",
		local.Format("Mon, 02 Jan 2006 at 15:04"), b.StudentTimezone)
}

// Run triggers DispatchDueReminders immediately and then on every tick
// until the context is cancelled.  The cron HTTP endpoint and this loop
// may fire concurrently; the claim protocol makes that safe.
func (d *ReminderDispatcher) Run(ctx context.Context, interval time.Duration) {
	if _, err := d.DispatchDueReminders(ctx); err != nil {
		d.logger.Error("reminder dispatch failed", zap.Error(err))
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("reminder loop stopped")
			return
		case <-t.C:
			if _, err := d.DispatchDueReminders(ctx); err != nil {
				d.logger.Error("reminder dispatch failed", zap.Error(err))
			}
		}
	}
}
