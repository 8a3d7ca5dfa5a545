// Package db opens per-site SQLite databases and applies the embedded
// schema migrations.
package db

import (
	"context"
	"database/sql"
	"embed"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/light-letter/lightletter/internal/errors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Options configures a site database pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeoutMS   int
}

// DefaultOptions are used for zero fields.
var DefaultOptions = Options{
	MaxOpenConns:    8,
	MaxIdleConns:    4,
	ConnMaxLifetime: time.Hour,
	BusyTimeoutMS:   10000,
}

func (o Options) withDefaults() Options {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = DefaultOptions.MaxOpenConns
	}
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = DefaultOptions.MaxIdleConns
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = DefaultOptions.ConnMaxLifetime
	}
	if o.BusyTimeoutMS <= 0 {
		o.BusyTimeoutMS = DefaultOptions.BusyTimeoutMS
	}
	return o
}

// Path returns the database file for name inside dir.
func Path(dir, name string) string {
	return filepath.Join(dir, name+".sqlite")
}

// DSN builds a modernc.org/sqlite DSN applying the pragmas on every
// pooled connection.
func DSN(path string, busyTimeoutMS int) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)&_txlock=immediate",
		path, busyTimeoutMS)
}

// Open opens the database at path, creating it when missing, and migrates
// it to the current schema. A migration failure is returned as an error
// and the pool is closed.
func Open(ctx context.Context, path string, opts Options, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.New(errors.CodeDatabaseOpen).WithSubject(path).Wrap(err)
	}
	switch _, err := os.Stat(path); {
	case err == nil:
	case stderrors.Is(err, fs.ErrNotExist):
		logger.Info("creating database", "path", path)
	default:
		// Opening creates the file anyway.
		logger.Debug("database existence check failed", "path", path, "error", err)
	}

	db, err := sql.Open("sqlite", DSN(path, opts.BusyTimeoutMS))
	if err != nil {
		return nil, errors.New(errors.CodeDatabaseOpen).WithSubject(path).Wrap(err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.New(errors.CodeDatabaseOpen).WithSubject(path).Wrap(err)
	}

	version, err := Migrate(db)
	if err != nil {
		db.Close()
		return nil, errors.New(errors.CodeMigration).WithSubject(path).Wrap(err)
	}
	logger.Debug("database ready", "path", path, "schema_version", version)
	return db, nil
}

// Migrate applies every pending up migration and returns the resulting
// schema version.
func Migrate(db *sql.DB) (uint, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, err
	}
	defer src.Close()

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return 0, err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return 0, err
	}
	// m.Close would close db as well; the pool outlives the migrator.

	if err := m.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		return 0, err
	}
	version, dirty, err := m.Version()
	if err != nil {
		return 0, err
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}
