package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/coach-scheduling/internal/model"
)

// SettingsRepo provides access to the scheduling_settings table.  A row
// is materialized with defaults the first time an instructor's settings
// are read; upsert is the only mutation and rows are never deleted.
type SettingsRepo struct {
	db *sql.DB
}

// NewSettingsRepo returns a new SettingsRepo bound to the given database.
func NewSettingsRepo(db *sql.DB) *SettingsRepo { return &SettingsRepo{db: db} }

// GetOrDefault loads the settings for brand+instructor, inserting the
// default row on first read so subsequent upserts have something to
// supersede.  The insert uses ON DUPLICATE KEY so two concurrent first
// reads cannot fail on the unique key.
func (r *SettingsRepo) GetOrDefault(ctx context.Context, brandID, instructorID uint64) (model.SchedulingSettings, error) {
	s, err := r.get(ctx, brandID, instructorID)
	if err == nil {
		return s, nil
	}
	if err != sql.ErrNoRows {
		return model.SchedulingSettings{}, err
	}
	def := model.DefaultSettings(brandID, instructorID)
	const ins = `INSERT INTO scheduling_settings
				 (brand_id, instructor_id, timezone, session_minutes, buffer_minutes, advance_booking_days, cancellation_cutoff_hours)
				 VALUES (?, ?, ?, ?, ?, ?, ?)
				 ON DUPLICATE KEY UPDATE brand_id = brand_id`
	if _, err := r.db.ExecContext(ctx, ins,
		def.BrandID, def.InstructorID, def.Timezone, def.SessionMinutes,
		def.BufferMinutes, def.AdvanceBookingDays, def.CancellationCutoffHours,
	); err != nil {
		return model.SchedulingSettings{}, err
	}
	return r.get(ctx, brandID, instructorID)
}

// Upsert writes the full settings row, creating it when absent.
func (r *SettingsRepo) Upsert(ctx context.Context, s model.SchedulingSettings) error {
	const q = `INSERT INTO scheduling_settings
			   (brand_id, instructor_id, timezone, session_minutes, buffer_minutes, advance_booking_days, cancellation_cutoff_hours)
			   VALUES (?, ?, ?, ?, ?, ?, ?)
			   ON DUPLICATE KEY UPDATE
				 timezone = VALUES(timezone),
				 session_minutes = VALUES(session_minutes),
				 buffer_minutes = VALUES(buffer_minutes),
				 advance_booking_days = VALUES(advance_booking_days),
				 cancellation_cutoff_hours = VALUES(cancellation_cutoff_hours)`
	_, err := r.db.ExecContext(ctx, q,
		s.BrandID, s.InstructorID, s.Timezone, s.SessionMinutes,
		s.BufferMinutes, s.AdvanceBookingDays, s.CancellationCutoffHours,
	)
	return err
}

func (r *SettingsRepo) get(ctx context.Context, brandID, instructorID uint64) (model.SchedulingSettings, error) {
	const q = `SELECT brand_id, instructor_id, timezone, session_minutes, buffer_minutes,
					  advance_booking_days, cancellation_cutoff_hours, updated_at
			   FROM scheduling_settings
			   WHERE brand_id = ? AND instructor_id = ?
			   LIMIT 1`
	var s model.SchedulingSettings
	err := r.db.QueryRowContext(ctx, q, brandID, instructorID).Scan(
		&s.BrandID, &s.InstructorID, &s.Timezone, &s.SessionMinutes,
		&s.BufferMinutes, &s.AdvanceBookingDays, &s.CancellationCutoffHours, &s.UpdatedAt,
	)
	return s, err
}
