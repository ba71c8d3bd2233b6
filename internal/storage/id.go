package storage

import (
	"crypto/rand"
	"crypto/sha1" //nolint:gosec
	"fmt"
)

const (
	// IDShort is the short display length used in CLI output.
	IDShort = 7
	// IDMinLen is the minimum prefix length considered for ID matching.
	IDMinLen = 4

	idEntropyBytes = 4096
)

// NewConversationID generates an identifier for conversation records. It is
// not used for cryptographic security.
func NewConversationID() string {
	b := make([]byte, idEntropyBytes)
	_, _ = rand.Read(b)
	//nolint:gosec // identifier generation only.
	return fmt.Sprintf("%x", sha1.Sum(b))
}

func shortID(id string) string {
	if len(id) > IDShort {
		return id[:IDShort]
	}
	return id
}
