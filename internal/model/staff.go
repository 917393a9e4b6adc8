package model

import "time"

// Staff roles accepted by the protected endpoints.
const (
	RoleGate  = "GATE"  // may check tickets in
	RoleAdmin = "ADMIN" // may also refund, resend and manage events
)

// Staff is an operator account for the check-in and admin surfaces.
type Staff struct {
	ID           uint64    // staff.id
	Email        string    // staff.email
	PasswordHash string    // staff.password_hash (bcrypt)
	Role         string    // staff.role
	IsActive     bool      // staff.is_active
	CreatedAt    time.Time // staff.created_at
	UpdatedAt    time.Time // staff.updated_at
}
