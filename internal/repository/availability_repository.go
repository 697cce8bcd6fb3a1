package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/coach-scheduling/internal/model"
)

// AvailabilityRepo provides access to the availability_rules and
// availability_overrides tables.  Updates are full replacements: the
// instructor's rule and override sets are cleared and reinserted inside
// one transaction so a concurrent reader never observes a partially
// replaced schedule.
type AvailabilityRepo struct {
	db *sql.DB
}

// NewAvailabilityRepo returns a new AvailabilityRepo bound to the given database.
func NewAvailabilityRepo(db *sql.DB) *AvailabilityRepo { return &AvailabilityRepo{db: db} }

// RulesByInstructor returns all weekly rules for the instructor,
// including inactive ones (the resolver skips those itself).
func (r *AvailabilityRepo) RulesByInstructor(ctx context.Context, instructorID uint64) ([]model.AvailabilityRule, error) {
	const q = `SELECT id, instructor_id, weekday, start_time, end_time, is_active
			   FROM availability_rules
			   WHERE instructor_id = ?
			   ORDER BY weekday, start_time`
	rows, err := r.db.QueryContext(ctx, q, instructorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	rules := make([]model.AvailabilityRule, 0)
	for rows.Next() {
		var rule model.AvailabilityRule
		if err := rows.Scan(&rule.ID, &rule.InstructorID, &rule.Weekday, &rule.StartTime, &rule.EndTime, &rule.IsActive); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// OverridesInRange returns all date overrides for the instructor whose
// date falls inside [from, to] (inclusive local calendar dates in
// "YYYY-MM-DD" form).
func (r *AvailabilityRepo) OverridesInRange(ctx context.Context, instructorID uint64, from, to string) ([]model.AvailabilityOverride, error) {
	const q = `SELECT id, instructor_id, DATE_FORMAT(date, '%Y-%m-%d'), is_available, start_time, end_time
			   FROM availability_overrides
			   WHERE instructor_id = ? AND date BETWEEN ? AND ?
			   ORDER BY date`
	rows, err := r.db.QueryContext(ctx, q, instructorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	overrides := make([]model.AvailabilityOverride, 0)
	for rows.Next() {
		var o model.AvailabilityOverride
		var start, end sql.NullString
		if err := rows.Scan(&o.ID, &o.InstructorID, &o.Date, &o.IsAvailable, &start, &end); err != nil {
			return nil, err
		}
		if start.Valid {
			s := start.String
			o.StartTime = &s
		}
		if end.Valid {
			e := end.String
			o.EndTime = &e
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

// ReplaceAll clears and reinserts the instructor's rules and overrides
// as one transactional unit.  There is no partial patch; callers send
// the complete desired sets.
func (r *AvailabilityRepo) ReplaceAll(ctx context.Context, instructorID uint64, rules []model.AvailabilityRule, overrides []model.AvailabilityOverride) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM availability_rules WHERE instructor_id = ?`, instructorID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM availability_overrides WHERE instructor_id = ?`, instructorID); err != nil {
		return err
	}

	if len(rules) > 0 {
		query := `INSERT INTO availability_rules (instructor_id, weekday, start_time, end_time, is_active) VALUES `
		args := make([]interface{}, 0, len(rules)*5)
		for i, rule := range rules {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?)"
			args = append(args, instructorID, rule.Weekday, rule.StartTime, rule.EndTime, rule.IsActive)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	if len(overrides) > 0 {
		query := `INSERT INTO availability_overrides (instructor_id, date, is_available, start_time, end_time) VALUES `
		args := make([]interface{}, 0, len(overrides)*5)
		for i, o := range overrides {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?)"
			args = append(args, instructorID, o.Date, o.IsAvailable, o.StartTime, o.EndTime)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
