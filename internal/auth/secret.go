package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxSecretLength is the longest secret bcrypt can hash without truncation.
const MaxSecretLength = 72

// ErrEmptySecret is returned when hashing an empty value.
var ErrEmptySecret = errors.New("empty secret")

// SecretManager hashes and verifies complaint secrets and official
// passwords. Hashes are salted bcrypt; plaintext is never kept.
type SecretManager struct {
	cost int
}

// NewSecretManager builds a manager with the given bcrypt cost. Costs outside
// the bcrypt range fall back to the library default.
func NewSecretManager(cost int) *SecretManager {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &SecretManager{cost: cost}
}

// Hash returns a salted hash of plain.
func (m *SecretManager) Hash(plain string) (string, error) {
	switch {
	case plain == "":
		return "", ErrEmptySecret
	case len(plain) > MaxSecretLength:
		return "", fmt.Errorf("secret longer than %d bytes", MaxSecretLength)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), m.cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plain matches hash. Empty values never match, and
// neither does anything longer than MaxSecretLength, since bcrypt would only
// compare its prefix.
func (m *SecretManager) Verify(plain, hash string) bool {
	if plain == "" || hash == "" || len(plain) > MaxSecretLength {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
