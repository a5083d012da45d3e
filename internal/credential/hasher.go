package credential

import (
	"golang.org/x/crypto/bcrypt"
)

// Hasher defines the minimal password hashing interface (abstract so we can
// swap to argon2 later).
type Hasher interface {
	Hash(pw string) (hash string, err error)
	Verify(pw, hash string) bool
}

// BcryptHasher hashes passwords with bcrypt. Hashing is deliberately slow;
// callers must not hold shared locks across Hash or Verify.
type BcryptHasher struct{ Cost int }

// NewBcryptHasher returns a hasher with the default cost (12).
func NewBcryptHasher() BcryptHasher { return BcryptHasher{Cost: 12} }

func (b BcryptHasher) Hash(pw string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify reports whether pw matches hash. Malformed hashes verify as false,
// never as an error.
func (b BcryptHasher) Verify(pw, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}
