package domain

import "time"

// UserStatus represents lifecycle states for an OMS user.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// User is an OMS account: staff, finance, or the owner of a vendor.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Roles        []Role
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRole reports whether the user currently holds role.
func (u *User) HasRole(role Role) bool {
	if u == nil {
		return false
	}
	return HasRole(u.Roles, role)
}
