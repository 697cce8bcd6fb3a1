// Package queue defines message payloads exchanged over the message broker
// and the background consumer that drains them.
package queue

// Queue names used on the default exchange.  Both are declared durable.
const (
	OutboundQueue       = "notification.outbound"
	BookingCreatedQueue = "booking.created"
)

// Message kinds carried in OutboundMessage.Kind.
const (
	KindBookingCreated = "booking_created"
	KindReminder24h    = "reminder_24h"
)

// OutboundMessage is one customer-facing notification handed to the
// delivery worker.  It contains everything the worker needs so it never
// queries the primary database.
type OutboundMessage struct {
	MessageID        string `json:"message_id"`
	Kind             string `json:"kind"`
	Channel          string `json:"channel"` // sms or email
	To               string `json:"to"`
	Subject          string `json:"subject,omitempty"`
	Body             string `json:"body"`
	BodyHTML         string `json:"body_html,omitempty"`
	BookingReference string `json:"booking_reference,omitempty"`
	EnqueuedAt       string `json:"enqueued_at"`
}

// BookingCreatedEvent is published when a booking is successfully
// reserved.  Downstream consumers can log, notify, or trigger analytics
// without querying the primary database.
type BookingCreatedEvent struct {
	BookingID       uint64 `json:"booking_id"`
	Reference       string `json:"reference"`
	BrandID         uint64 `json:"brand_id"`
	CustomerID      uint64 `json:"customer_id"`
	InstructorID    uint64 `json:"instructor_id"`
	StartAt         string `json:"start_at"`
	EndAt           string `json:"end_at"`
	StudentTimezone string `json:"student_timezone"`
	CreatedAt       string `json:"created_at"`
}
