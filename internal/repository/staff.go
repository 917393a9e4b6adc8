package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/avelora/ticket-office/internal/model"
	"github.com/avelora/ticket-office/internal/utils"
)

// ErrEmailExists is returned when a staff account already uses the
// requested email.
var ErrEmailExists = errors.New("email already exists")

// StaffRepo mirrors the 'staff' table.
type StaffRepo struct {
	db *sql.DB
}

func NewStaffRepo(db *sql.DB) *StaffRepo { return &StaffRepo{db: db} }

// Create inserts a staff account and returns its ID.
func (r *StaffRepo) Create(ctx context.Context, email, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO staff (email, password_hash, role) VALUES (?, ?, ?)`,
		email, hash, role)
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

// GetByEmail fetches a staff account by normalized email.
func (r *StaffRepo) GetByEmail(ctx context.Context, email string) (model.Staff, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var s model.Staff
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role, is_active, created_at, updated_at FROM staff WHERE email = ? LIMIT 1`,
		email).Scan(&s.ID, &s.Email, &s.PasswordHash, &s.Role, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}
