package model

import "time"

type UserRole string

const (
	UserRoleSuperAdmin UserRole = "superadmin"
	UserRoleAdmin      UserRole = "admin"
	UserRoleStaff      UserRole = "staff"
)

// User is a POS account. The billing core only ever flips the Active flag of
// a restaurant's admin when a payment is confirmed.
type User struct {
	ID           string // UUID
	RestaurantID string // UUID; empty for superadmins
	Email        string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *User) IsSuperAdmin() bool { return u.Role == UserRoleSuperAdmin }
