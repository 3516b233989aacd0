package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the bun model for the users table.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID              uuid.UUID  `bun:"id,pk,type:uuid,nullzero,default:gen_random_uuid()"`
	Firstname       string     `bun:"firstname,notnull"`
	Lastname        string     `bun:"lastname,notnull"`
	Email           string     `bun:"email,notnull,unique"`
	Phone           string     `bun:"phone,notnull,unique"`
	PasswordHash    string     `bun:"password_hash,notnull"`
	Role            string     `bun:"role,notnull,default:'tenant'"`
	IsEmailVerified bool       `bun:"is_email_verified,notnull"`
	IsActive        bool       `bun:"is_active,notnull"`
	LastLogin       *time.Time `bun:"last_login"`
	CreatedAt       time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// Contact is the bun model for contact and enquiry submissions.
type Contact struct {
	bun.BaseModel `bun:"table:contacts,alias:c"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,nullzero,default:gen_random_uuid()"`
	Name      string    `bun:"name,notnull"`
	Email     string    `bun:"email"`
	Number    string    `bun:"number,notnull"`
	City      string    `bun:"city"`
	Message   string    `bun:"message,notnull"`
	Type      string    `bun:"type,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
