package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// NewResetToken returns a random token for the reset link; only HashToken(token) is stored.
func NewResetToken() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
