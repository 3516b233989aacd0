package user

import (
	"time"

	"github.com/google/uuid"
)

// Role is the account type of a user.
type Role string

const (
	RoleTenant Role = "tenant"
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleTenant, RoleOwner, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID              uuid.UUID  `json:"id"`
	Firstname       string     `json:"firstname"`
	Lastname        string     `json:"lastname"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone"`
	PasswordHash    string     `json:"-"` // Never expose password hash in JSON
	Role            Role       `json:"role"`
	IsEmailVerified bool       `json:"isEmailVerified"`
	IsActive        bool       `json:"isActive"`
	LastLogin       *time.Time `json:"lastLogin,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// NewUser carries the fields needed to create an account.
type NewUser struct {
	Firstname    string
	Lastname     string
	Email        string
	Phone        string
	PasswordHash string
	Role         Role
}

// ProfileUpdate lists the fields a user may change on their own profile.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Firstname *string
	Lastname  *string
}

// ListFilter selects a page of users.
type ListFilter struct {
	Role   Role
	Limit  int
	Offset int
}
