// Package token issues and verifies the signed, time-limited tokens used by
// the password-reset flow. Tokens are stateless: there is no server-side
// revocation list, a token stays valid until its ttl elapses.
package token

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultResetTTL is the validity window for password-reset tokens.
const DefaultResetTTL = time.Hour

const resetPurpose = "pwd-reset"

// ErrInvalidToken is returned for every verification failure. Tampered,
// malformed and expired tokens are deliberately indistinguishable to the
// caller.
var ErrInvalidToken = errors.New("invalid or expired token")

// Config holds the process-wide signing secret. It is immutable after
// construction and safe for concurrent use.
type Config struct {
	Secret []byte
}

// ConfigFromEnv reads SECRET_KEY from the environment. A missing or weak
// secret is a startup error, never a silent fallback.
func ConfigFromEnv() (Config, error) {
	secret := os.Getenv("SECRET_KEY")
	if secret == "" {
		return Config{}, errors.New("SECRET_KEY is required")
	}
	if len(secret) < 16 {
		return Config{}, fmt.Errorf("SECRET_KEY too short: %d bytes, want at least 16", len(secret))
	}
	return Config{Secret: []byte(secret)}, nil
}

// Service signs and verifies reset tokens with HMAC-SHA256.
type Service struct {
	secret []byte
	now    func() time.Time
}

func NewService(cfg Config) *Service {
	return &Service{secret: cfg.Secret, now: time.Now}
}

type resetClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Issue produces a signed token binding the identity (normalized email) and
// the current timestamp. Two tokens for the same identity differ but both
// verify independently until expiry.
func (s *Service) Issue(identity string) (string, error) {
	claims := resetClaims{
		Purpose: resetPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  identity,
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify validates the signature and the age of the token against ttl and
// returns the embedded identity. Any failure yields ErrInvalidToken.
func (s *Service) Verify(tokenString string, ttl time.Duration) (string, error) {
	var claims resetClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", ErrInvalidToken
	}
	if claims.Purpose != resetPurpose || claims.Subject == "" || claims.IssuedAt == nil {
		return "", ErrInvalidToken
	}
	if s.now().Sub(claims.IssuedAt.Time) > ttl {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
