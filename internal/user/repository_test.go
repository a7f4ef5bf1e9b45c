package user

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepository(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRepository(mock), mock
}

func TestRepository_Create(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs("ana@example.com", "hash", "Ana", "Lopez").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "first_name", "last_name", "password_hash", "created_at", "updated_at"}).
			AddRow(int64(5), "ana@example.com", "Ana", "Lopez", "hash", now, now))

	u, err := repo.Create(context.Background(), "ana@example.com", "hash", "Ana", "Lopez")
	require.NoError(t, err)
	assert.Equal(t, int64(5), u.ID)
	assert.Equal(t, "hash", u.PasswordHash)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_CreateDuplicateEmail(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs("ana@example.com", "hash", "Ana", "Lopez").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), "ana@example.com", "hash", "Ana", "Lopez")
	assert.ErrorIs(t, err, ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByEmailMissing(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE email = $1`)).
		WithArgs("nobody@example.com").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
