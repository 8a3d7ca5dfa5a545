package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// User is a backstage account. ID is the login account name.
type User struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	Description string `json:"description,omitempty"`
}

// CreateUser stores a new account with a bcrypt password hash.
// ErrExists is returned when the account is taken.
func (s *Store) CreateUser(ctx context.Context, u User, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return insertUser(ctx, s.db, u, hash)
}

// RegisterUser creates u when the site has no accounts yet, or when open
// is true. The count and the insert share one immediate transaction, so
// only one caller can become the first account. It reports whether u is
// the first account, and returns ErrRegistrationClosed or ErrExists when
// u was not created.
func (s *Store) RegisterUser(ctx context.Context, u User, password string, open bool) (bool, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return false, err
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("store: register user: %w", err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return false, fmt.Errorf("store: count users: %w", err)
	}
	if n > 0 && !open {
		return false, ErrRegistrationClosed
	}
	if err := insertUser(ctx, tx, u, hash); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("store: register user: %w", err)
	}
	return n == 0, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("store: hash password: %w", err)
	}
	return string(hash), nil
}

func insertUser(ctx context.Context, db execer, u User, hash string) error {
	res, err := db.ExecContext(ctx,
		`INSERT INTO users (id, name, pwd, email, description) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		u.ID, u.Name, hash, nullString(u.Email), nullString(u.Description))
	if err != nil {
		return fmt.Errorf("store: create user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: create user: %w", err)
	}
	if n == 0 {
		return ErrExists
	}
	return nil
}

// UserByID returns the account or ErrNotFound.
func (s *Store) UserByID(ctx context.Context, id string) (*User, error) {
	u, _, err := s.userWithHash(ctx, id)
	return u, err
}

// Authenticate checks an account's password. It returns ErrNotFound for
// an unknown account and ErrWrongPassword on mismatch.
func (s *Store) Authenticate(ctx context.Context, id, password string) (*User, error) {
	u, hash, err := s.userWithHash(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrWrongPassword
	}
	return u, nil
}

func (s *Store) userWithHash(ctx context.Context, id string) (*User, string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var (
		u           User
		hash        string
		email, desc sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, pwd, email, description FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &hash, &email, &desc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("store: load user: %w", err)
	}
	u.Email = email.String
	u.Description = desc.String
	return &u, hash, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
