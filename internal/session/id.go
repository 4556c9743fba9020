package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// newID returns a 32-character lowercase hex identifier drawn from a
// cryptographically adequate entropy source.
func newID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session: generate id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
