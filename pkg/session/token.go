package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
)

// saltBytes is the size of the random per-token salt.
const saltBytes = 8

// token is the signed wrapper persisted for every session id.
type token struct {
	UniqueSalt  string `json:"unique_salt"`
	ExpireTS    int64  `json:"expire_ts"`
	Sig         string `json:"sig"`
	ContentJSON string `json:"content_json"`
}

// signer computes token signatures with the process-wide secret.
// It is read-only after construction.
type signer struct {
	secret []byte
}

// sign returns hex(HMAC-SHA256(secret, salt || expire_ts || content)).
func (s signer) sign(salt string, expireTS int64, content string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(salt))
	mac.Write([]byte(strconv.FormatInt(expireTS, 10)))
	mac.Write([]byte(content))
	return hex.EncodeToString(mac.Sum(nil))
}

// verify reports whether t carries a valid signature.
func (s signer) verify(t *token) bool {
	want := s.sign(t.UniqueSalt, t.ExpireTS, t.ContentJSON)
	return hmac.Equal([]byte(want), []byte(t.Sig))
}

// seal builds and signs a wrapper for body.
func (s signer) seal(body []byte, expireTS int64) (*token, error) {
	salt, err := randomHex(saltBytes)
	if err != nil {
		return nil, err
	}
	content := string(body)
	return &token{
		UniqueSalt:  salt,
		ExpireTS:    expireTS,
		Sig:         s.sign(salt, expireTS, content),
		ContentJSON: content,
	}, nil
}

func (t *token) encode() ([]byte, error) {
	return json.Marshal(t)
}

func decodeToken(data []byte) (*token, error) {
	var t token
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// NewSecret returns a fresh random secret for deployments that do not
// configure one.
func NewSecret() ([]byte, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}
