package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestAccountStoreGetByUsernameNormalizesHandle(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	createdAt := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE LOWER(username) = LOWER($1)")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "default_language", "created_at"}).
			AddRow(int64(7), "Alice", "fr", createdAt))

	account, err := NewAccountStore(db).GetByUsername(context.Background(), "  @alice ")
	require.NoError(t, err)
	require.Equal(t, int64(7), account.ID)
	require.Equal(t, "Alice", account.Username)
	require.Equal(t, "fr", account.DefaultLanguage)
	require.Equal(t, createdAt, account.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStoreGetByUsernameReturnsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, username, default_language, created_at").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "default_language", "created_at"}))

	_, err = NewAccountStore(db).GetByUsername(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStoreGetByUsernameRejectsBlank(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewAccountStore(db).GetByUsername(context.Background(), " @ ")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestAccountStoreGetByUsernameWrapsQueryErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, username").
		WillReturnError(errors.New("connection reset"))

	_, err = NewAccountStore(db).GetByUsername(context.Background(), "alice")
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrNotFound))
	require.Contains(t, err.Error(), "connection reset")
}

func TestAccountStoreCreateStoresNullLanguageWhenBlank(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO accounts").
		WithArgs("bob", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "default_language", "created_at"}).
			AddRow(int64(3), "bob", nil, time.Now()))

	account, err := NewAccountStore(db).Create(context.Background(), CreateAccountInput{
		Username:        "@bob",
		DefaultLanguage: "  ",
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), account.ID)
	require.Empty(t, account.DefaultLanguage)
	require.NoError(t, mock.ExpectationsWereMet())
}
