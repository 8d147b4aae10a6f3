package idhash

import (
	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// NewRunID returns a fresh run identifier: a random UUID encoded in base58
// (Bitcoin alphabet), 21 or 22 characters with no separators.
func NewRunID() string {
	id := uuid.New()
	return base58.Encode(id[:])
}

// IsRunID reports whether s decodes to a 16-byte run identifier.
func IsRunID(s string) bool {
	if s == "" {
		return false
	}
	b, err := base58.Decode(s)
	if err != nil {
		return false
	}
	return len(b) == 16
}
