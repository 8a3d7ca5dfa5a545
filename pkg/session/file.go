package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultDirName is the directory created under os.TempDir() when no
// session directory is configured.
const DefaultDirName = "light-letter"

// FileStore keeps one file per token in a directory. The file name is the
// token id and its modification time is set to the token's expiry, which
// lets DeleteExpired sweep without reading file contents.
type FileStore struct {
	dir    string
	closed atomic.Bool
}

// NewFileStore creates the directory if needed and returns a store over it.
// An empty dir means os.TempDir()/light-letter.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), DefaultDirName)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("session: create store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory tokens are written to.
func (f *FileStore) Dir() string {
	return f.dir
}

// path maps an id to its file. Only UUIDs are accepted, so a cookie value
// can never address a file outside the store.
func (f *FileStore) path(id string) (string, bool) {
	u, err := uuid.Parse(id)
	if err != nil || u.String() != id {
		return "", false
	}
	return filepath.Join(f.dir, id), true
}

// Save writes the token atomically.
func (f *FileStore) Save(ctx context.Context, id string, data []byte, expiresAt time.Time) error {
	if f.closed.Load() {
		return ErrStoreClosed{}
	}
	p, ok := f.path(id)
	if !ok {
		return fmt.Errorf("session: invalid token id %q", id)
	}

	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("session: save token: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("session: save token: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("session: save token: %w", err)
	}
	if err := os.Chtimes(tmpName, expiresAt, expiresAt); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("session: save token: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("session: save token: %w", err)
	}
	return nil
}

// Load reads a token. Unknown or malformed ids load as (nil, nil).
func (f *FileStore) Load(ctx context.Context, id string) ([]byte, error) {
	if f.closed.Load() {
		return nil, ErrStoreClosed{}
	}
	p, ok := f.path(id)
	if !ok {
		return nil, nil
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: load token: %w", err)
	}
	return data, nil
}

// Delete removes a token file.
func (f *FileStore) Delete(ctx context.Context, id string) error {
	if f.closed.Load() {
		return ErrStoreClosed{}
	}
	p, ok := f.path(id)
	if !ok {
		return nil
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("session: delete token: %w", err)
	}
	return nil
}

// DeleteExpired removes token files whose expiry has passed. Leftover
// temporary files older than a minute are removed too.
func (f *FileStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	if f.closed.Load() {
		return 0, ErrStoreClosed{}
	}
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return 0, fmt.Errorf("session: sweep: %w", err)
	}

	n := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		_, isToken := f.path(e.Name())
		switch {
		case isToken && !info.ModTime().After(now):
		case !isToken && strings.HasPrefix(e.Name(), ".tmp-") && now.Sub(info.ModTime()) > time.Minute:
		default:
			continue
		}
		if err := os.Remove(filepath.Join(f.dir, e.Name())); err == nil && isToken {
			n++
		}
	}
	return n, nil
}

// Close marks the store closed. Files are left in place.
func (f *FileStore) Close() error {
	f.closed.Store(true)
	return nil
}
