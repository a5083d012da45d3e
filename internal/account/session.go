package account

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidSession is returned for any session cookie that fails to decode,
// verify or that has aged out.
var ErrInvalidSession = errors.New("invalid session")

// SessionCodec signs and verifies the login session cookie value. The value
// binds an account ID and an issuance timestamp with an HMAC; it carries no
// server-side state.
type SessionCodec struct {
	secret []byte
	ttl    time.Duration
}

func NewSessionCodec(secret []byte) *SessionCodec {
	return &SessionCodec{secret: secret, ttl: 24 * time.Hour}
}

func (c *SessionCodec) sign(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Encode produces a signed cookie value for the account ID.
func (c *SessionCodec) Encode(accountID string, now time.Time) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(accountID)) + "." + strconv.FormatInt(now.Unix(), 10)
	return payload + "." + c.sign(payload)
}

// Decode verifies a cookie value and returns the embedded account ID.
func (c *SessionCodec) Decode(value string) (string, error) {
	parts := strings.Split(value, ".")
	if len(parts) != 3 {
		return "", ErrInvalidSession
	}
	payload := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(c.sign(payload)), []byte(parts[2])) {
		return "", ErrInvalidSession
	}
	issued, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", ErrInvalidSession
	}
	if time.Since(time.Unix(issued, 0)) > c.ttl {
		return "", ErrInvalidSession
	}
	id, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil || len(id) == 0 {
		return "", ErrInvalidSession
	}
	return string(id), nil
}

// TTL is surfaced so handlers can set a matching cookie Max-Age.
func (c *SessionCodec) TTL() time.Duration { return c.ttl }
