package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/coach-scheduling/internal/model"
	"github.com/iliyamo/coach-scheduling/internal/notifier"
	"github.com/iliyamo/coach-scheduling/internal/queue"
)

// NotifyBookingCreated pushes the "booking created" message to the
// customer and publishes the domain event for downstream consumers.
// Both legs are best-effort: failures are logged and reported but must
// never fail the booking that was just reserved.
func NotifyBookingCreated(ctx context.Context, amqpURL string, sender notifier.Sender, b model.Booking, customer model.User, logger *zap.Logger) model.NotificationResult {
	if amqpURL != "" {
		ev := queue.BookingCreatedEvent{
			BookingID:       b.ID,
			Reference:       b.Reference,
			BrandID:         b.BrandID,
			CustomerID:      b.CustomerID,
			InstructorID:    b.InstructorID,
			StartAt:         b.StartAt.UTC().Format(time.RFC3339),
			EndAt:           b.EndAt.UTC().Format(time.RFC3339),
			StudentTimezone: b.StudentTimezone,
			CreatedAt:       b.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := queue.Publish(ctx, amqpURL, queue.BookingCreatedQueue, ev); err != nil {
			logger.Warn("booking created event publish failed",
				zap.String("reference", b.Reference), zap.Error(err))
		}
	}

	loc, err := time.LoadLocation(b.StudentTimezone)
	if err != nil {
		loc = time.UTC
	}
	body := fmt.Sprintf("Your session on %s is reserved. Confirm and pay to lock it in.",
		b.StartAt.In(loc).Format("Mon, 02 Jan 2006 at 15:04"))
	meta := notifier.Meta{Kind: queue.KindBookingCreated, BookingReference: b.Reference}

	var result model.NotificationResult
	if customer.Phone != nil && *customer.Phone != "" {
		result = sender.SendSMS(ctx, *customer.Phone, body, meta)
	} else {
		result = sender.SendEmail(ctx, customer.Email, "Booking received", body, "", meta)
	}
	if !result.Sent() {
		logger.Warn("booking created notification not sent",
			zap.String("reference", b.Reference),
			zap.String("status", result.Status),
			zap.String("error", result.Error))
	}
	return result
}
