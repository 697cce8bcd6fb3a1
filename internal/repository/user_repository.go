package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/coach-scheduling/internal/model"
	"github.com/iliyamo/coach-scheduling/internal/utils"
)

// UserRepo persists application users.  Emails are unique per brand.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,brand_id,email,phone,password_hash,role,is_active,created_at,updated_at"

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	var phone sql.NullString
	err := row.Scan(&u.ID, &u.BrandID, &u.Email, &phone, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if phone.Valid {
		p := phone.String
		u.Phone = &p
	}
	return u, err
}

// Create inserts a user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, brandID uint64, email, phone, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	var phoneVal interface{}
	if p := strings.TrimSpace(phone); p != "" {
		phoneVal = p
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (brand_id, email, phone, password_hash, role) VALUES (?,?,?,?,?)",
		brandID, email, phoneVal, hash, role)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email within a brand.
func (r *UserRepo) GetByEmail(ctx context.Context, brandID uint64, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE brand_id=? AND email=? LIMIT 1",
		brandID, email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// InstructorInBrand reports whether the user exists, is active, carries
// the INSTRUCTOR role and belongs to the given brand.  Booking creation
// runs this as its first precondition.
func (r *UserRepo) InstructorInBrand(ctx context.Context, brandID, instructorID uint64) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM users WHERE id=? AND brand_id=? AND role=? AND is_active=1 LIMIT 1",
		instructorID, brandID, model.RoleInstructor).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
