package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	gocache "github.com/patrickmn/go-cache"
)

// Well-known site configuration keys.
const (
	ConfigRegistrationOpen = "registration_open"
	ConfigSiteTitle        = "site_title"
	ConfigSiteDescription  = "site_description"
)

// GetConfig decodes the JSON value stored under key into dst. It reports
// false when the key is absent. Values are cached in memory.
func (s *Store) GetConfig(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok := s.config.Get(key)
	if !ok {
		ctx, cancel := s.bound(ctx)
		defer cancel()

		var value string
		err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("store: get config %q: %w", key, err)
		}
		s.config.Set(key, value, gocache.DefaultExpiration)
		raw = value
	}

	if err := json.Unmarshal([]byte(raw.(string)), dst); err != nil {
		return false, fmt.Errorf("store: decode config %q: %w", key, err)
	}
	return true, nil
}

// SetConfig stores value as JSON under key.
func (s *Store) SetConfig(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: encode config %q: %w", key, err)
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO config (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, string(b))
	if err != nil {
		s.config.Delete(key)
		return fmt.Errorf("store: set config %q: %w", key, err)
	}
	s.config.Set(key, string(b), gocache.DefaultExpiration)
	return nil
}

// ConfigValue is GetConfig for a typed value, returning def when absent.
func ConfigValue[T any](ctx context.Context, s *Store, key string, def T) (T, error) {
	var v T
	ok, err := s.GetConfig(ctx, key, &v)
	if err != nil || !ok {
		return def, err
	}
	return v, nil
}
