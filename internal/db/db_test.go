package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/light-letter/lightletter/internal/errors"
)

func TestOpen_CreatesAndMigrates(t *testing.T) {
	path := Path(filepath.Join(t.TempDir(), "db"), "blog")

	db, err := Open(context.Background(), path, Options{}, nil)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(path)
	require.NoError(t, err)

	for _, table := range []string{"users", "posts", "post_tags", "categories", "series", "config"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		assert.NoError(t, err, table)
	}

	var fk int
	require.NoError(t, db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestOpen_Idempotent(t *testing.T) {
	path := Path(t.TempDir(), "blog")

	first, err := Open(context.Background(), path, Options{}, nil)
	require.NoError(t, err)
	_, err = first.Exec(`INSERT INTO config (key, value) VALUES ('k', '"v"')`)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(context.Background(), path, Options{MaxOpenConns: 2}, nil)
	require.NoError(t, err)
	defer second.Close()

	var v string
	require.NoError(t, second.QueryRow(`SELECT value FROM config WHERE key = 'k'`).Scan(&v))
	assert.Equal(t, `"v"`, v)

	version, err := Migrate(second)
	require.NoError(t, err)
	assert.EqualValues(t, 1, version)
}

func TestOpen_Unopenable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := Open(context.Background(), Path(filepath.Join(blocker, "sub"), "blog"), Options{}, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeDatabaseOpen))
}

func TestOpen_NotADatabase(t *testing.T) {
	path := Path(t.TempDir(), "blog")
	require.NoError(t, os.WriteFile(path, []byte("this is not an sqlite file, definitely not"), 0o644))

	_, err := Open(context.Background(), path, Options{}, nil)
	require.Error(t, err)
}

func TestDSN(t *testing.T) {
	dsn := DSN("/x/blog.sqlite", 250)
	assert.Contains(t, dsn, "file:/x/blog.sqlite?")
	assert.Contains(t, dsn, "_pragma=busy_timeout(250)")
	assert.Contains(t, dsn, "_pragma=foreign_keys(1)")
}
