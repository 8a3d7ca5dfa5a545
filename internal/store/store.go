// Package store is the blog data layer over a site's SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	gocache "github.com/patrickmn/go-cache"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrExists        = errors.New("store: already exists")
	ErrWrongPassword = errors.New("store: wrong password")
	// ErrNotOwner is returned when a post is updated by another account.
	ErrNotOwner = errors.New("store: post belongs to another author")
	// ErrRegistrationClosed is returned by RegisterUser once accounts
	// exist and registration is not open.
	ErrRegistrationClosed = errors.New("store: registration closed")
)

const (
	// DefaultQueryTimeout bounds every statement, connection checkout
	// included.
	DefaultQueryTimeout = 5 * time.Second

	configCacheTTL     = 10 * time.Minute
	configCacheCleanup = 30 * time.Minute
)

// Store reads and writes one site's blog data. It is safe for concurrent use.
type Store struct {
	db        *sql.DB
	timeout   time.Duration
	now       func() time.Time
	newID     func() string
	sanitizer *bluemonday.Policy
	markdown  *converter.Converter
	config    *gocache.Cache
}

// Option configures a Store.
type Option func(*Store)

// WithQueryTimeout sets the per-statement timeout.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock overrides time.Now for post timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New wraps an opened, migrated database.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:        db,
		timeout:   DefaultQueryTimeout,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
		sanitizer: bluemonday.UGCPolicy(),
		markdown: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		config: gocache.New(configCacheTTL, configCacheCleanup),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}
