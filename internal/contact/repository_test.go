package contact

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/database"
)

var contactColumns = []string{"id", "name", "email", "number", "city", "message", "type", "created_at"}

func newRepoWithMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	return NewRepository(database.NewBunDB(sqlDB)), mock
}

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO "contacts" .* RETURNING`).
		WillReturnRows(sqlmock.NewRows(contactColumns).
			AddRow(id.String(), "Ravi", "ravi@x.com", "555", "Pune", "Is it free?", "enquiry", now))

	got, err := repo.Create(context.Background(), &Contact{
		Name: "Ravi", Email: "ravi@x.com", Number: "555", City: "Pune", Message: "Is it free?", Type: TypeEnquiry,
	})
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, TypeEnquiry, got.Type)
	assert.Equal(t, now, got.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`INSERT INTO "contacts"`).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &Contact{Name: "a", Number: "1", Message: "m", Type: TypeContact})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestList_FiltersByType(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	// Rows and count are fetched concurrently.
	mock.MatchExpectationsInOrder(false)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .* FROM "contacts" AS "c" WHERE \(type = 'enquiry'\) ORDER BY "created_at" DESC LIMIT 2 OFFSET 2`).
		WillReturnRows(sqlmock.NewRows(contactColumns).
			AddRow(uuid.NewString(), "A", "", "1", "", "m1", "enquiry", now).
			AddRow(uuid.NewString(), "B", "", "2", "", "m2", "enquiry", now))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "contacts" AS "c" WHERE \(type = 'enquiry'\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	got, total, err := repo.List(context.Background(), ListFilter{Type: TypeEnquiry, Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Delete(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	id := uuid.New()

	mock.ExpectExec(`DELETE FROM "contacts" AS "c" WHERE \(id = '` + id.String() + `'\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), id))

	mock.ExpectExec(`DELETE FROM "contacts"`).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), id), ErrNotFound)
}
