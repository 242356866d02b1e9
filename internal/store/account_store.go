package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Account struct {
	ID              int64     `json:"id"`
	Username        string    `json:"username"`
	DefaultLanguage string    `json:"default_language,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type CreateAccountInput struct {
	Username        string
	DefaultLanguage string
}

type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

// NormalizeUsername trims whitespace and a leading "@".
func NormalizeUsername(raw string) string {
	return strings.TrimPrefix(strings.TrimSpace(raw), "@")
}

func (s *AccountStore) GetByUsername(ctx context.Context, username string) (Account, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return Account{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}

	account, err := scanAccount(s.db.QueryRowContext(
		ctx,
		`SELECT id, username, default_language, created_at
		   FROM accounts
		  WHERE LOWER(username) = LOWER($1)`,
		username,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("failed to load account %q: %w", username, err)
	}
	return account, nil
}

func (s *AccountStore) Create(ctx context.Context, input CreateAccountInput) (Account, error) {
	username := NormalizeUsername(input.Username)
	if username == "" {
		return Account{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}

	account, err := scanAccount(s.db.QueryRowContext(
		ctx,
		`INSERT INTO accounts (username, default_language)
		 VALUES ($1, $2)
		 RETURNING id, username, default_language, created_at`,
		username,
		nullableString(input.DefaultLanguage),
	))
	if err != nil {
		return Account{}, fmt.Errorf("failed to create account %q: %w", username, err)
	}
	return account, nil
}

func scanAccount(row *sql.Row) (Account, error) {
	var (
		account  Account
		language sql.NullString
	)
	if err := row.Scan(&account.ID, &account.Username, &language, &account.CreatedAt); err != nil {
		return Account{}, err
	}
	account.DefaultLanguage = strings.TrimSpace(language.String)
	account.CreatedAt = account.CreatedAt.UTC()
	return account, nil
}
