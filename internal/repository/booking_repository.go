package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/coach-scheduling/internal/model"
)

// BookingRepo provides access to the bookings table.  Two operations
// carry the service's concurrency guarantees and are deliberately plain
// SQL rather than read-then-write application code:
//
//   - Create re-runs the buffered conflict scan inside the insert
//     transaction with FOR UPDATE, and the UNIQUE (instructor_id,
//     start_at, active_slot) key backstops the same-slot race: either
//     way the loser sees ErrSlotTaken.
//   - ClaimReminder / ReleaseReminder are conditional single-row updates
//     (compare-and-set on reminder_sent_at) so overlapping dispatcher
//     runs claim each booking at most once.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, reference, brand_id, customer_id, instructor_id, course_id, status,
	   start_at, end_at, student_timezone, instructor_timezone, location, notes, instructor_notes,
	   payment_status, payment_ref, confirmed_at, completed_at, cancelled_at, no_show_at,
	   reminder_sent_at, deleted_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(rs rowScanner) (model.Booking, error) {
	var b model.Booking
	var courseID sql.NullInt64
	var location, notes, instructorNotes, paymentRef sql.NullString
	var confirmedAt, completedAt, cancelledAt, noShowAt, reminderSentAt, deletedAt sql.NullTime
	err := rs.Scan(
		&b.ID, &b.Reference, &b.BrandID, &b.CustomerID, &b.InstructorID, &courseID, &b.Status,
		&b.StartAt, &b.EndAt, &b.StudentTimezone, &b.InstructorTimezone, &location, &notes, &instructorNotes,
		&b.PaymentStatus, &paymentRef, &confirmedAt, &completedAt, &cancelledAt, &noShowAt,
		&reminderSentAt, &deletedAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return model.Booking{}, err
	}
	if courseID.Valid {
		v := uint64(courseID.Int64)
		b.CourseID = &v
	}
	setStr := func(dst **string, src sql.NullString) {
		if src.Valid {
			s := src.String
			*dst = &s
		}
	}
	setStr(&b.Location, location)
	setStr(&b.Notes, notes)
	setStr(&b.InstructorNotes, instructorNotes)
	setStr(&b.PaymentRef, paymentRef)
	setTime := func(dst **time.Time, src sql.NullTime) {
		if src.Valid {
			t := src.Time.UTC()
			*dst = &t
		}
	}
	setTime(&b.ConfirmedAt, confirmedAt)
	setTime(&b.CompletedAt, completedAt)
	setTime(&b.CancelledAt, cancelledAt)
	setTime(&b.NoShowAt, noShowAt)
	setTime(&b.ReminderSentAt, reminderSentAt)
	setTime(&b.DeletedAt, deletedAt)
	b.StartAt = b.StartAt.UTC()
	b.EndAt = b.EndAt.UTC()
	return b, nil
}

// Create inserts the booking in pending status with its slot marked
// active.  The handler's read-then-decide conflict check cannot rule
// out a concurrent insert, so the scan runs again here inside the
// transaction: the FOR UPDATE range read takes InnoDB gap locks on the
// (instructor_id, start_at) index, which holds back a concurrent insert
// of an overlapping or buffer-adjacent slot until this transaction
// decides.  The unique active-slot key still backstops the exact
// same-slot race.  Either loser gets ErrSlotTaken; a deadlock between
// two gap-locked inserts (MySQL 1213) is the same outcome under a
// different error number.  On success the generated ID and row defaults
// are populated on b.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking, bufferMinutes int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	pad := time.Duration(bufferMinutes) * time.Minute
	lo, hi := b.StartAt.UTC().Add(-pad), b.EndAt.UTC().Add(pad)
	var conflict uint64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM bookings
		 WHERE instructor_id = ?
		   AND status IN ('pending','confirmed')
		   AND deleted_at IS NULL
		   AND start_at < ? AND end_at > ?
		 ORDER BY start_at LIMIT 1
		 FOR UPDATE`,
		b.InstructorID, hi, lo).Scan(&conflict)
	if err == nil {
		return ErrSlotTaken
	}
	if err != sql.ErrNoRows {
		return err
	}

	const q = `INSERT INTO bookings
			   (reference, brand_id, customer_id, instructor_id, course_id, status, active_slot,
				start_at, end_at, student_timezone, instructor_timezone, location, notes, payment_status)
			   VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		b.Reference, b.BrandID, b.CustomerID, b.InstructorID, b.CourseID, model.StatusPending,
		b.StartAt.UTC(), b.EndAt.UTC(), b.StudentTimezone, b.InstructorTimezone,
		b.Location, b.Notes, model.PaymentUnpaid,
	)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && (me.Number == 1062 || me.Number == 1213) {
			return ErrSlotTaken
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*b = created
	return nil
}

// GetByID loads one booking, soft-deleted rows included only for
// internal callers that need them; handlers treat deleted as missing.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ? LIMIT 1`, id))
	if err == sql.ErrNoRows {
		return model.Booking{}, ErrNotFound
	}
	return b, err
}

// ActiveInWindow returns the instructor's pending and confirmed bookings
// whose [start_at, end_at) interval intersects [from, to).  This is the
// read the conflict detector runs against; terminal and soft-deleted
// rows never appear.
func (r *BookingRepo) ActiveInWindow(ctx context.Context, instructorID uint64, from, to time.Time) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + `
			   FROM bookings
			   WHERE instructor_id = ?
				 AND status IN ('pending','confirmed')
				 AND deleted_at IS NULL
				 AND start_at < ? AND end_at > ?
			   ORDER BY start_at`
	rows, err := r.db.QueryContext(ctx, q, instructorID, to.UTC(), from.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// ListForCustomer returns the customer's bookings, newest first.
func (r *BookingRepo) ListForCustomer(ctx context.Context, brandID, customerID uint64) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + `
			   FROM bookings
			   WHERE brand_id = ? AND customer_id = ? AND deleted_at IS NULL
			   ORDER BY start_at DESC`
	rows, err := r.db.QueryContext(ctx, q, brandID, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// ListForInstructor returns the instructor's bookings, newest first.
func (r *BookingRepo) ListForInstructor(ctx context.Context, brandID, instructorID uint64) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + `
			   FROM bookings
			   WHERE brand_id = ? AND instructor_id = ? AND deleted_at IS NULL
			   ORDER BY start_at DESC`
	rows, err := r.db.QueryContext(ctx, q, brandID, instructorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func collectBookings(rows *sql.Rows) ([]model.Booking, error) {
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// lifecycleColumn maps a target status to the timestamp column that
// records reaching it.  Each transition writes exactly this one column
// and never touches the others.
func lifecycleColumn(target model.BookingStatus) string {
	switch target {
	case model.StatusConfirmed:
		return "confirmed_at"
	case model.StatusCompleted:
		return "completed_at"
	case model.StatusCancelled:
		return "cancelled_at"
	case model.StatusNoShow:
		return "no_show_at"
	}
	return ""
}

// UpdateStatus performs the guarded transition from -> target as one
// conditional update: the row must still hold the expected current
// status, otherwise zero rows match and ErrStaleStatus is returned so
// the caller can answer 409.  Terminal targets clear active_slot, which
// frees the unique slot key for rebooking.  pay is only consulted for
// confirmation and records the payment descriptor.
func (r *BookingRepo) UpdateStatus(ctx context.Context, id uint64, from, target model.BookingStatus, pay *model.PaymentDescriptor, now time.Time) (model.Booking, error) {
	col := lifecycleColumn(target)
	if col == "" {
		return model.Booking{}, ErrStaleStatus
	}

	q := `UPDATE bookings SET status = ?, ` + col + ` = ?`
	args := []interface{}{target, now.UTC()}
	if !target.Active() {
		q += `, active_slot = NULL`
	}
	if target == model.StatusConfirmed && pay != nil {
		q += `, payment_status = ?, payment_ref = ?`
		ref := pay.ProviderRef
		if ref == "" {
			ref = pay.Provider
		}
		args = append(args, model.PaymentPaid, ref)
	}
	q += ` WHERE id = ? AND status = ? AND deleted_at IS NULL AND ` + col + ` IS NULL`
	args = append(args, id, from)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return model.Booking{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Booking{}, err
	}
	if n == 0 {
		return model.Booking{}, ErrStaleStatus
	}
	return r.GetByID(ctx, id)
}

// SetInstructorNotes attaches instructor notes.  The lifecycle guard has
// already verified the booking is terminal; the status condition here
// keeps a concurrent un-terminal row from being written.
func (r *BookingRepo) SetInstructorNotes(ctx context.Context, id uint64, notes string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET instructor_notes = ?
		 WHERE id = ? AND status IN ('completed','cancelled','no_show') AND deleted_at IS NULL`,
		notes, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleStatus
	}
	return nil
}

// DueReminders returns confirmed, not-yet-reminded bookings starting
// inside [from, to].  The result is a candidate list only; the claim
// decides ownership.
func (r *BookingRepo) DueReminders(ctx context.Context, from, to time.Time) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + `
			   FROM bookings
			   WHERE status = 'confirmed'
				 AND reminder_sent_at IS NULL
				 AND deleted_at IS NULL
				 AND start_at BETWEEN ? AND ?
			   ORDER BY start_at`
	rows, err := r.db.QueryContext(ctx, q, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// ClaimReminder atomically claims the booking's reminder by setting
// reminder_sent_at to the claim timestamp, conditioned on the row still
// being confirmed, not deleted and unclaimed.  The boolean reports
// whether this caller won the claim; false means another run owns or
// already sent it and is not an error.
func (r *BookingRepo) ClaimReminder(ctx context.Context, id uint64, claimAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET reminder_sent_at = ?
		 WHERE id = ? AND status = 'confirmed' AND deleted_at IS NULL AND reminder_sent_at IS NULL`,
		claimAt.UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleaseReminder resets reminder_sent_at to null after a failed send so
// a later run can retry.  The condition on the claim timestamp prevents
// clobbering a newer claim taken by another run.
func (r *BookingRepo) ReleaseReminder(ctx context.Context, id uint64, claimAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET reminder_sent_at = NULL
		 WHERE id = ? AND reminder_sent_at = ?`,
		id, claimAt.UTC())
	return err
}
