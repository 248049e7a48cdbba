// Package auth provides password hashing and signed session tokens.
package auth

import "golang.org/x/crypto/bcrypt"

// MaxPasswordLength is the longest password bcrypt accepts, in bytes.
const MaxPasswordLength = 72

// Hasher hashes and verifies passwords with bcrypt.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher using cost, or bcrypt.DefaultCost when cost is out of range.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{Cost: cost}
}

// Hash returns the bcrypt hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether password matches hash.
func (h *Hasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
