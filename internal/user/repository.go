package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/database"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
	ErrDuplicatePhone = errors.New("phone already exists")
	ErrAdminExists    = errors.New("admin account already exists")
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// Repository handles user data persistence
type Repository struct {
	db bun.IDB
}

func NewRepository(db bun.IDB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new unverified, active user.
func (r *Repository) Create(ctx context.Context, nu NewUser) (*User, error) {
	dbUser := &database.User{
		Firstname:       nu.Firstname,
		Lastname:        nu.Lastname,
		Email:           nu.Email,
		Phone:           nu.Phone,
		PasswordHash:    nu.PasswordHash,
		Role:            string(nu.Role),
		IsEmailVerified: false,
		IsActive:        true,
	}

	_, err := r.db.NewInsert().
		Model(dbUser).
		Returning("*").
		Exec(ctx)

	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByEmail retrieves a user by email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "email = ?", email)
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *Repository) getOne(ctx context.Context, where string, arg any) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where(where, arg).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// ExistsByEmailOrPhone reports whether any user, active or not, already uses
// the email or the phone.
func (r *Repository) ExistsByEmailOrPhone(ctx context.Context, email, phone string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*database.User)(nil)).
		WhereOr("email = ?", email).
		WhereOr("phone = ?", phone).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check existing user: %w", err)
	}
	return exists, nil
}

// AdminExists reports whether an admin account has been created.
func (r *Repository) AdminExists(ctx context.Context) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*database.User)(nil)).
		Where("role = ?", string(RoleAdmin)).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check admin existence: %w", err)
	}
	return exists, nil
}

// MarkEmailVerified flips is_email_verified to true.
func (r *Repository) MarkEmailVerified(ctx context.Context, userID uuid.UUID) error {
	return r.update(ctx, userID, "mark email as verified", func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("is_email_verified = ?", true)
	})
}

// UpdateLastLogin records a completed login.
func (r *Repository) UpdateLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	return r.update(ctx, userID, "update last login", func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("last_login = ?", at)
	})
}

// UpdatePassword updates a user's password hash
func (r *Repository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	return r.update(ctx, userID, "update password", func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("password_hash = ?", passwordHash)
	})
}

// Deactivate soft deletes a user. The row is kept; authentication is refused.
func (r *Repository) Deactivate(ctx context.Context, userID uuid.UUID) error {
	return r.update(ctx, userID, "deactivate user", func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("is_active = ?", false)
	})
}

// UpdateProfile applies the non-nil fields of upd and returns the new state.
func (r *Repository) UpdateProfile(ctx context.Context, userID uuid.UUID, upd ProfileUpdate) (*User, error) {
	if upd.Firstname == nil && upd.Lastname == nil {
		return r.GetByID(ctx, userID)
	}

	dbUser := new(database.User)
	q := r.db.NewUpdate().
		Model(dbUser).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Returning("*")
	if upd.Firstname != nil {
		q = q.Set("firstname = ?", *upd.Firstname)
	}
	if upd.Lastname != nil {
		q = q.Set("lastname = ?", *upd.Lastname)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}

	return mapDBUserToModel(dbUser), nil
}

// List returns one page of users, newest first, and the total match count.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]*User, int, error) {
	var rows []database.User
	q := r.db.NewSelect().
		Model(&rows).
		Order("created_at DESC").
		Limit(f.Limit).
		Offset(f.Offset)
	if f.Role != "" {
		q = q.Where("role = ?", string(f.Role))
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]*User, 0, len(rows))
	for i := range rows {
		users = append(users, mapDBUserToModel(&rows[i]))
	}
	return users, total, nil
}

func (r *Repository) update(ctx context.Context, userID uuid.UUID, op string, set func(*bun.UpdateQuery) *bun.UpdateQuery) error {
	q := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("updated_at = NOW()").
		Where("id = ?", userID)

	result, err := set(q).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// mapUniqueViolation translates unique constraint names into domain errors.
func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != pgUniqueViolation {
		return nil
	}

	switch pqErr.Constraint {
	case "users_email_key":
		return ErrDuplicateEmail
	case "users_phone_key":
		return ErrDuplicatePhone
	case "users_single_admin_idx":
		return ErrAdminExists
	}
	return nil
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	return &User{
		ID:              dbu.ID,
		Firstname:       dbu.Firstname,
		Lastname:        dbu.Lastname,
		Email:           dbu.Email,
		Phone:           dbu.Phone,
		PasswordHash:    dbu.PasswordHash,
		Role:            Role(dbu.Role),
		IsEmailVerified: dbu.IsEmailVerified,
		IsActive:        dbu.IsActive,
		LastLogin:       dbu.LastLogin,
		CreatedAt:       dbu.CreatedAt,
		UpdatedAt:       dbu.UpdatedAt,
	}
}
