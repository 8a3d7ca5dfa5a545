package session

import (
	"bytes"
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"pgregory.net/rapid"
)

var testSecret = []byte("test-secret")

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingObserver records observer calls.
type countingObserver struct {
	mu       sync.Mutex
	minted   int
	verified int
	rejected map[string]int
	swept    int
}

func (o *countingObserver) TokenMinted() {
	o.mu.Lock()
	o.minted++
	o.mu.Unlock()
}

func (o *countingObserver) TokenVerified() {
	o.mu.Lock()
	o.verified++
	o.mu.Unlock()
}

func (o *countingObserver) TokensSwept(n int) {
	o.mu.Lock()
	o.swept += n
	o.mu.Unlock()
}

func (o *countingObserver) TokenRejected(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.rejected == nil {
		o.rejected = map[string]int{}
	}
	o.rejected[reason]++
}

func newTestManager(t *testing.T, opts ...ManagerOption) (*Manager, *MemoryStore, *fakeClock) {
	t.Helper()
	store := NewMemoryStore()
	clock := newFakeClock()
	opts = append([]ManagerOption{WithClock(clock.Now)}, opts...)
	return NewManager(store, testSecret, opts...), store, clock
}

func loggedIn(id, name string) *Session {
	s := Anonymous()
	s.SetLoginUser(id, name)
	return s
}

func TestManagerRoundTrip(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	tests := []struct {
		name string
		sess *Session
	}{
		{"anonymous", Anonymous()},
		{"logged in", loggedIn("abcd", "Alice")},
		{"unicode name", loggedIn("u_1", "Zoë \"quoted\"")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := m.Generate(ctx, tt.sess)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			got, ok := m.Parse(ctx, id)
			if !ok {
				t.Fatal("Parse rejected a fresh token")
			}
			if !reflect.DeepEqual(got.LoginUser, tt.sess.LoginUser) {
				t.Errorf("LoginUser = %+v, want %+v", got.LoginUser, tt.sess.LoginUser)
			}
			if got.Dirty() {
				t.Error("parsed session should be clean")
			}
		})
	}
}

func TestManagerRoundTripProperty(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	rapid.Check(t, func(r *rapid.T) {
		s := Anonymous()
		if rapid.Bool().Draw(r, "loggedIn") {
			s.SetLoginUser(rapid.String().Draw(r, "id"), rapid.String().Draw(r, "name"))
		}
		id, err := m.Generate(ctx, s)
		if err != nil {
			r.Fatalf("Generate: %v", err)
		}
		got, ok := m.Parse(ctx, id)
		if !ok {
			r.Fatal("Parse rejected a fresh token")
		}
		if !reflect.DeepEqual(got.LoginUser, s.LoginUser) {
			r.Fatalf("LoginUser = %+v, want %+v", got.LoginUser, s.LoginUser)
		}
	})
}

func TestManagerRejectsFlippedSignature(t *testing.T) {
	obs := &countingObserver{}
	m, store, _ := newTestManager(t, WithObserver(obs))
	ctx := context.Background()

	id, err := m.Generate(ctx, loggedIn("abcd", "Alice"))
	if err != nil {
		t.Fatal(err)
	}

	data, _ := store.Load(ctx, id)
	tok, err := decodeToken(data)
	if err != nil {
		t.Fatal(err)
	}
	sig := []byte(tok.Sig)
	if sig[0] == 'a' {
		sig[0] = 'b'
	} else {
		sig[0] = 'a'
	}
	tok.Sig = string(sig)
	tampered, _ := tok.encode()
	if err := store.Save(ctx, id, tampered, time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	if _, ok := m.Parse(ctx, id); ok {
		t.Error("Parse accepted a flipped signature")
	}
	if obs.rejected[RejectSignature] != 1 {
		t.Errorf("rejected = %v, want one signature rejection", obs.rejected)
	}
}

func TestManagerRejectsTamperedContent(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	id, _ := m.Generate(ctx, loggedIn("abcd", "Alice"))
	data, _ := store.Load(ctx, id)
	tok, _ := decodeToken(data)
	tok.ContentJSON = `{"login_user":{"id":"admin","name":"Mallory"}}`
	tampered, _ := tok.encode()
	store.Save(ctx, id, tampered, time.Now().Add(time.Hour))

	if _, ok := m.Parse(ctx, id); ok {
		t.Error("Parse accepted tampered content")
	}
}

func TestManagerRejectsOtherSecret(t *testing.T) {
	m, store, clock := newTestManager(t)
	ctx := context.Background()

	id, _ := m.Generate(ctx, loggedIn("abcd", "Alice"))

	other := NewManager(store, []byte("another-secret"), WithClock(clock.Now))
	if _, ok := other.Parse(ctx, id); ok {
		t.Error("token verified under a different secret")
	}
}

func TestManagerExpiry(t *testing.T) {
	m, _, clock := newTestManager(t)
	ctx := context.Background()

	id, _ := m.Generate(ctx, loggedIn("abcd", "Alice"))

	clock.Advance(DefaultTTL - time.Second)
	if _, ok := m.Parse(ctx, id); !ok {
		t.Fatal("token rejected before expiry")
	}

	clock.Advance(time.Second)
	if _, ok := m.Parse(ctx, id); ok {
		t.Error("token accepted at expire_ts")
	}
}

func TestManagerMissingAndMalformed(t *testing.T) {
	obs := &countingObserver{}
	m, store, _ := newTestManager(t, WithObserver(obs))
	ctx := context.Background()

	if _, ok := m.Parse(ctx, ""); ok {
		t.Error("empty id accepted")
	}
	if _, ok := m.Parse(ctx, "4b0e9e5c-9f7a-4d51-b8a3-6b7d0c1d2e3f"); ok {
		t.Error("unknown id accepted")
	}

	store.Save(ctx, "garbage", []byte("not json"), time.Now().Add(time.Hour))
	if _, ok := m.Parse(ctx, "garbage"); ok {
		t.Error("malformed wrapper accepted")
	}

	if obs.rejected[RejectMissing] != 1 || obs.rejected[RejectMalformed] != 1 {
		t.Errorf("rejected = %v", obs.rejected)
	}
}

func TestManagerMalformedBody(t *testing.T) {
	m, store, clock := newTestManager(t)
	ctx := context.Background()

	tok, err := m.signer.seal([]byte(`{"login_user": 12}`), clock.Now().Add(time.Hour).Unix())
	if err != nil {
		t.Fatal(err)
	}
	data, _ := tok.encode()
	store.Save(ctx, "bad-body", data, clock.Now().Add(time.Hour))

	if _, ok := m.Parse(ctx, "bad-body"); ok {
		t.Error("malformed body accepted")
	}
	if s := m.Resolve(ctx, "bad-body"); s == nil || s.LoggedIn() {
		t.Error("Resolve should fall back to anonymous")
	}
}

func TestManagerTokensAreDistinct(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	s := loggedIn("abcd", "Alice")
	id1, _ := m.Generate(ctx, s)
	id2, _ := m.Generate(ctx, s)

	if id1 == id2 {
		t.Fatal("two mints returned the same id")
	}
	d1, _ := store.Load(ctx, id1)
	d2, _ := store.Load(ctx, id2)
	if bytes.Equal(d1, d2) {
		t.Error("two mints of identical content produced identical wrappers")
	}
	t1, _ := decodeToken(d1)
	t2, _ := decodeToken(d2)
	if t1.UniqueSalt == t2.UniqueSalt {
		t.Error("salts should differ")
	}
}

func TestManagerRotate(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	oldID, _ := m.Generate(ctx, Anonymous())
	newID, err := m.Rotate(ctx, oldID, loggedIn("abcd", "Alice"))
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	if _, ok := m.Parse(ctx, oldID); ok {
		t.Error("superseded token still valid")
	}
	s, ok := m.Parse(ctx, newID)
	if !ok || s.LoginUser.Name != "Alice" {
		t.Errorf("Parse(new) = %+v, %v", s, ok)
	}
	if store.Count() != 1 {
		t.Errorf("store.Count() = %d, want 1", store.Count())
	}
}

func TestManagerRevoke(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	id, _ := m.Generate(ctx, loggedIn("abcd", "Alice"))
	keep, _ := m.Generate(ctx, Anonymous())
	if err := m.Revoke(ctx, id); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if s := m.Resolve(ctx, id); s.LoggedIn() {
		t.Error("revoked token still resolves to its user")
	}
	if _, ok := m.Parse(ctx, keep); !ok {
		t.Error("Revoke removed another token")
	}
	if err := m.Revoke(ctx, id); err != nil {
		t.Errorf("Revoke(missing) = %v, want nil", err)
	}
	if store.Count() != 1 {
		t.Errorf("store.Count() = %d, want 1", store.Count())
	}
}

func TestManagerSweep(t *testing.T) {
	obs := &countingObserver{}
	m, store, clock := newTestManager(t, WithObserver(obs), WithTTL(time.Hour))
	ctx := context.Background()

	m.Generate(ctx, Anonymous())
	clock.Advance(30 * time.Minute)
	keep, _ := m.Generate(ctx, Anonymous())
	clock.Advance(31 * time.Minute)

	n, err := m.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
	if store.Count() != 1 {
		t.Errorf("store.Count() = %d, want 1", store.Count())
	}
	if _, ok := m.Parse(ctx, keep); !ok {
		t.Error("unexpired token was swept")
	}
	if obs.swept != 1 {
		t.Errorf("observer swept = %d, want 1", obs.swept)
	}
}

func TestManagerRunStopsOnCancel(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestManagerSecretIsCopied(t *testing.T) {
	secret := []byte("mutable")
	store := NewMemoryStore()
	m := NewManager(store, secret)
	ctx := context.Background()

	id, _ := m.Generate(ctx, Anonymous())
	secret[0] = 'X'

	if _, ok := m.Parse(ctx, id); !ok {
		t.Error("mutating the caller's secret must not affect the manager")
	}
}
