// Package session mints and verifies signed, server-side session tokens.
//
// A token is a JSON wrapper
//
//	{"unique_salt": "...", "expire_ts": 1700000000, "sig": "...", "content_json": "..."}
//
// where sig is HMAC-SHA256 over salt, expiry and content, keyed by the
// process-wide secret. The wrapper is persisted under a fresh UUID and only
// that UUID travels to the client, normally in a cookie.
//
// # Storage
//
// The Store interface abstracts where wrappers live:
//
//	store, err := session.NewFileStore("") // $TMPDIR/light-letter
//	// or
//	store := session.NewMemoryStore()
//
// # Lifecycle
//
//	m := session.NewManager(store, secret)
//	s := m.Resolve(ctx, cookieValue) // anonymous on any failure
//	s.SetLoginUser("abcd", "Alice")
//	if s.Dirty() {
//	    id, err := m.Rotate(ctx, cookieValue, s)
//	    // set id as the new cookie
//	}
//
// Tokens are never updated in place. Rotate deletes the superseded file
// and Sweep removes expired ones.
package session
