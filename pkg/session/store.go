package session

import (
	"context"
	"time"
)

// Store defines the interface for token persistence backends.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save persists a signed token under id. Ids are never reused, so Save
	// does not need to handle overwrites specially.
	Save(ctx context.Context, id string, data []byte, expiresAt time.Time) error

	// Load retrieves a token by id.
	// Returns (nil, nil) if the token doesn't exist.
	// Returns (nil, err) on backend errors.
	Load(ctx context.Context, id string) ([]byte, error)

	// Delete removes a token.
	// Should not return an error if the token doesn't exist.
	Delete(ctx context.Context, id string) error

	// DeleteExpired removes every token whose expiry is at or before now and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// ErrStoreClosed is returned when operations are attempted on a closed store.
type ErrStoreClosed struct{}

func (e ErrStoreClosed) Error() string {
	return "session store is closed"
}
