// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the current user is not
// authorized to perform an operation on a resource owned by someone
// else, while ErrSlotTaken signals that a booking insert lost the race
// for its slot.
package repository

import "errors"

// ErrEmailExists is returned when registering a user whose email is
// already taken within the brand. Handlers should translate this into
// an HTTP 409 response.
var ErrEmailExists = errors.New("email already exists")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers should translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrNotFound is returned when a requested row does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrSlotTaken is returned when inserting a booking violates the unique
// active-slot key, i.e. a concurrent request reserved the same slot
// first. It is distinguishable from generic store failures so handlers
// can answer 409 and clients can re-fetch availability.
var ErrSlotTaken = errors.New("slot already booked")

// ErrStaleStatus is returned when a guarded status update matched no row
// because the booking's status changed underneath the caller. Handlers
// should translate this into an HTTP 409 response.
var ErrStaleStatus = errors.New("booking status changed concurrently")
