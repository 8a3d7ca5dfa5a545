package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory token store. Tokens do not survive a
// restart; use it for tests and single-process development.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]*storedToken
	closed bool
}

type storedToken struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryStore creates a new in-memory token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens: make(map[string]*storedToken),
	}
}

// Save stores token data with an expiration time.
func (m *MemoryStore) Save(ctx context.Context, id string, data []byte, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed{}
	}

	// Make a copy of data to prevent mutations
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	m.tokens[id] = &storedToken{
		data:      dataCopy,
		expiresAt: expiresAt,
	}
	return nil
}

// Load retrieves token data. Expiry is not checked here; the manager
// rejects expired tokens itself.
func (m *MemoryStore) Load(ctx context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed{}
	}

	s, ok := m.tokens[id]
	if !ok {
		return nil, nil
	}

	dataCopy := make([]byte, len(s.data))
	copy(dataCopy, s.data)
	return dataCopy, nil
}

// Delete removes a token from the store.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed{}
	}

	delete(m.tokens, id)
	return nil
}

// DeleteExpired removes tokens that expired at or before now.
func (m *MemoryStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrStoreClosed{}
	}

	n := 0
	for id, s := range m.tokens {
		if !s.expiresAt.After(now) {
			delete(m.tokens, id)
			n++
		}
	}
	return n, nil
}

// Close releases the stored tokens.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.tokens = nil
	return nil
}

// Count returns the number of tokens in the store.
// This is for monitoring/testing purposes.
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tokens)
}
