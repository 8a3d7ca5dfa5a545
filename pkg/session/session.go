package session

import "encoding/json"

// LoginUser identifies the account a session is logged in as.
type LoginUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Session is the per-request session state handed to RPC handlers.
//
// A Session is owned by one handler for the duration of one call. Every
// mutation marks it dirty; the caller persists it (minting a new token)
// only when Dirty reports true.
type Session struct {
	LoginUser *LoginUser `json:"login_user"`

	dirty bool
}

// Anonymous returns an empty, clean session.
func Anonymous() *Session {
	return &Session{}
}

// SetLoginUser records a successful login.
func (s *Session) SetLoginUser(id, name string) {
	s.LoginUser = &LoginUser{ID: id, Name: name}
	s.dirty = true
}

// Logout clears the login user. Logging out an anonymous session is not
// a mutation.
func (s *Session) Logout() {
	if s.LoginUser == nil {
		return
	}
	s.LoginUser = nil
	s.dirty = true
}

// Dirty reports whether the session changed since it was loaded.
func (s *Session) Dirty() bool {
	return s.dirty
}

// LoggedIn reports whether a user is logged in.
func (s *Session) LoggedIn() bool {
	return s != nil && s.LoginUser != nil
}

// marshal returns the canonical body that is signed.
func (s *Session) marshal() ([]byte, error) {
	return json.Marshal(s)
}

func unmarshalSession(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
