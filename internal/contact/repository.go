package contact

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/database"
)

var ErrNotFound = errors.New("contact not found")

// Repository handles contact persistence
type Repository struct {
	db bun.IDB
}

func NewRepository(db bun.IDB) *Repository {
	return &Repository{db: db}
}

// Create stores a submission and returns it with its id and timestamp.
func (r *Repository) Create(ctx context.Context, c *Contact) (*Contact, error) {
	row := &database.Contact{
		Name:    c.Name,
		Email:   c.Email,
		Number:  c.Number,
		City:    c.City,
		Message: c.Message,
		Type:    string(c.Type),
	}

	if _, err := r.db.NewInsert().Model(row).Returning("*").Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}

	return toModel(row), nil
}

// List returns one page of submissions, newest first, and the total match count.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]*Contact, int, error) {
	var rows []database.Contact
	q := r.db.NewSelect().
		Model(&rows).
		Order("created_at DESC").
		Limit(f.Limit).
		Offset(f.Offset)
	if f.Type != "" {
		q = q.Where("type = ?", string(f.Type))
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list contacts: %w", err)
	}

	contacts := make([]*Contact, 0, len(rows))
	for i := range rows {
		contacts = append(contacts, toModel(&rows[i]))
	}
	return contacts, total, nil
}

// Delete removes a submission for good.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*database.Contact)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func toModel(row *database.Contact) *Contact {
	return &Contact{
		ID:        row.ID,
		Name:      row.Name,
		Email:     row.Email,
		Number:    row.Number,
		City:      row.City,
		Message:   row.Message,
		Type:      Type(row.Type),
		CreatedAt: row.CreatedAt,
	}
}
