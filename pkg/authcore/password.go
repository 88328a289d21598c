package authcore

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes passwords and opaque tokens with bcrypt. Tokens are
// pre-hashed with SHA-256 because bcrypt rejects inputs over 72 bytes
// and refresh tokens are JWTs well past that limit.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher with the given bcrypt cost. Costs outside
// the valid bcrypt range fall back to the library default.
func NewHasher(cost int) Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return Hasher{cost: cost}
}

// HashPassword returns the bcrypt digest of a password.
func (h Hasher) HashPassword(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// VerifyPassword reports whether password matches the stored digest.
func (h Hasher) VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// HashToken returns the bcrypt digest of the SHA-256 of a token string.
func (h Hasher) HashToken(token string) (string, error) {
	pre := sha256.Sum256([]byte(token))
	digest, err := bcrypt.GenerateFromPassword(pre[:], h.cost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(digest), nil
}

// VerifyToken reports whether token matches a digest produced by HashToken.
func (h Hasher) VerifyToken(hash, token string) bool {
	pre := sha256.Sum256([]byte(token))
	return bcrypt.CompareHashAndPassword([]byte(hash), pre[:]) == nil
}
