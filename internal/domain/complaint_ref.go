package domain

import (
	"strings"

	"github.com/google/uuid"
)

// PublicIDPrefix starts every human-typeable complaint id.
const PublicIDPrefix = "CMP-"

const publicIDHexLen = 8

// NewPublicID returns a fresh display id such as CMP-1A2B3C4D.
func NewPublicID() string {
	return PublicIDPrefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:publicIDHexLen])
}

// CanonicalPublicID upper-cases s and reports whether it is a well-formed display id.
func CanonicalPublicID(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != len(PublicIDPrefix)+publicIDHexLen || !strings.HasPrefix(s, PublicIDPrefix) {
		return "", false
	}
	for _, r := range s[len(PublicIDPrefix):] {
		if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'F') {
			return "", false
		}
	}
	return s, true
}

// IsInternalID reports whether s is a complaint's internal UUID.
func IsInternalID(s string) bool {
	_, err := uuid.Parse(strings.TrimSpace(s))
	return err == nil
}
