package common

import (
	"crypto/rand"
	"encoding/hex"
)

// RandomHex returns size random bytes encoded as lowercase hex, so the result
// is 2*size characters long.
func RandomHex(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
