// Package notifier abstracts the outbound notification provider.  The
// scheduling core treats sends as best-effort, fallible I/O: a failed
// result never fails a booking, and the reminder dispatcher uses the
// result to decide whether its claim stands or must be released.
package notifier

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/coach-scheduling/internal/model"
	"github.com/iliyamo/coach-scheduling/internal/queue"
)

// Sender delivers customer-facing messages.  Implementations must be
// safe for concurrent use and must report the outcome rather than
// returning an error: callers branch on NotificationResult.Status.
type Sender interface {
	SendSMS(ctx context.Context, to, body string, meta Meta) model.NotificationResult
	SendEmail(ctx context.Context, to, subject, text, html string, meta Meta) model.NotificationResult
}

// Meta tags a message for the delivery worker.
type Meta struct {
	Kind             string // queue.KindBookingCreated / queue.KindReminder24h
	BookingReference string
}

// AMQPSender publishes messages to the notification.outbound queue; the
// background consumer performs the actual delivery.  A successful
// publish is reported as sent (the broker persists the message), a
// failed publish as failed, and a missing destination as skipped.
type AMQPSender struct {
	URL string
}

// NewAMQPSender returns a Sender backed by the broker at url.
func NewAMQPSender(url string) *AMQPSender { return &AMQPSender{URL: url} }

func (s *AMQPSender) publish(ctx context.Context, msg queue.OutboundMessage) model.NotificationResult {
	res := model.NotificationResult{Channel: msg.Channel, Provider: "amqp"}
	if msg.To == "" {
		res.Status = model.NotificationSkipped
		return res
	}
	if s.URL == "" {
		res.Status = model.NotificationSkipped
		res.Error = "no broker configured"
		return res
	}
	if err := queue.Publish(ctx, s.URL, queue.OutboundQueue, msg); err != nil {
		res.Status = model.NotificationFailed
		res.Error = err.Error()
		return res
	}
	res.Status = model.NotificationSent
	res.ProviderMessageID = msg.MessageID
	return res
}

func (s *AMQPSender) SendSMS(ctx context.Context, to, body string, meta Meta) model.NotificationResult {
	return s.publish(ctx, queue.OutboundMessage{
		MessageID:        uuid.NewString(),
		Kind:             meta.Kind,
		Channel:          model.ChannelSMS,
		To:               to,
		Body:             body,
		BookingReference: meta.BookingReference,
		EnqueuedAt:       time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *AMQPSender) SendEmail(ctx context.Context, to, subject, text, html string, meta Meta) model.NotificationResult {
	return s.publish(ctx, queue.OutboundMessage{
		MessageID:        uuid.NewString(),
		Kind:             meta.Kind,
		Channel:          model.ChannelEmail,
		To:               to,
		Subject:          subject,
		Body:             text,
		BodyHTML:         html,
		BookingReference: meta.BookingReference,
		EnqueuedAt:       time.Now().UTC().Format(time.RFC3339),
	})
}
