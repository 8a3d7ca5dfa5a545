package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long a minted token stays valid.
const DefaultTTL = 86400 * time.Second

// Reasons a token is rejected, as reported to an Observer.
const (
	RejectMissing   = "missing"
	RejectMalformed = "malformed"
	RejectExpired   = "expired"
	RejectSignature = "signature"
	RejectBody      = "body"
	RejectStore     = "store"
)

// Observer receives token lifecycle events. internal/telemetry provides a
// Prometheus-backed implementation.
type Observer interface {
	TokenMinted()
	TokenVerified()
	TokenRejected(reason string)
	TokensSwept(n int)
}

type nopObserver struct{}

func (nopObserver) TokenMinted()         {}
func (nopObserver) TokenVerified()       {}
func (nopObserver) TokenRejected(string) {}
func (nopObserver) TokensSwept(int)      {}

// Manager mints and verifies session tokens.
//
// The secret is fixed at construction and only read afterwards, so a
// Manager is safe for concurrent use without locking.
type Manager struct {
	store    Store
	signer   signer
	ttl      time.Duration
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
	observer Observer
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTTL overrides DefaultTTL.
func WithTTL(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.ttl = d
	}
}

// WithClock sets the time source. Used by tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithObserver sets the metrics observer. nil keeps the no-op observer.
func WithObserver(o Observer) ManagerOption {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// NewManager creates a manager over store. The secret is copied.
func NewManager(store Store, secret []byte, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:    store,
		signer:   signer{secret: append([]byte(nil), secret...)},
		ttl:      DefaultTTL,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
		logger:   slog.Default(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Generate signs s, persists it under a fresh random id and returns the id.
// The id is the only thing handed to the client.
func (m *Manager) Generate(ctx context.Context, s *Session) (string, error) {
	body, err := s.marshal()
	if err != nil {
		return "", err
	}
	expiresAt := m.now().Add(m.ttl).Truncate(time.Second)

	t, err := m.signer.seal(body, expiresAt.Unix())
	if err != nil {
		return "", err
	}
	data, err := t.encode()
	if err != nil {
		return "", err
	}

	id := m.newID()
	if err := m.store.Save(ctx, id, data, expiresAt); err != nil {
		return "", err
	}
	m.observer.TokenMinted()
	return id, nil
}

// Parse loads and verifies the token stored under id. Every failure
// (missing, malformed, expired, bad signature, bad body, store error)
// yields (nil, false); the caller treats the request as anonymous.
func (m *Manager) Parse(ctx context.Context, id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	data, err := m.store.Load(ctx, id)
	if err != nil {
		m.logger.Warn("session store load failed", "error", err)
		return m.reject(RejectStore)
	}
	if data == nil {
		return m.reject(RejectMissing)
	}

	t, err := decodeToken(data)
	if err != nil {
		return m.reject(RejectMalformed)
	}
	if t.ExpireTS <= m.now().Unix() {
		return m.reject(RejectExpired)
	}
	if !m.signer.verify(t) {
		return m.reject(RejectSignature)
	}
	s, err := unmarshalSession([]byte(t.ContentJSON))
	if err != nil {
		return m.reject(RejectBody)
	}

	m.observer.TokenVerified()
	return s, true
}

func (m *Manager) reject(reason string) (*Session, bool) {
	m.observer.TokenRejected(reason)
	return nil, false
}

// Resolve is Parse with the anonymous fallback applied.
func (m *Manager) Resolve(ctx context.Context, id string) *Session {
	if s, ok := m.Parse(ctx, id); ok {
		return s
	}
	return Anonymous()
}

// Rotate mints a token for s and deletes the superseded one. A failure to
// delete the old file is logged; the sweep reclaims it later.
func (m *Manager) Rotate(ctx context.Context, oldID string, s *Session) (string, error) {
	id, err := m.Generate(ctx, s)
	if err != nil {
		return "", err
	}
	if oldID != "" {
		if err := m.Revoke(ctx, oldID); err != nil {
			m.logger.Warn("session superseded token not deleted", "error", err)
		}
	}
	return id, nil
}

// Revoke deletes the token stored under id. Revoking an unknown id is
// not an error.
func (m *Manager) Revoke(ctx context.Context, id string) error {
	return m.store.Delete(ctx, id)
}

// Sweep deletes expired tokens.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	n, err := m.store.DeleteExpired(ctx, m.now())
	if n > 0 {
		m.observer.TokensSwept(n)
	}
	return n, err
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := m.Sweep(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Warn("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				m.logger.Debug("session sweep", "removed", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// TTL returns the token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}
