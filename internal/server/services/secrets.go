package services

import (
	"crypto/rand"
	"crypto/subtle"
	"strings"

	"github.com/dmitrijs2005/imagesync/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	secretBytes = 32
	saltBytes   = 16

	argonTime    = 2
	argonMemory  = 19 * 1024
	argonThreads = 1
	argonKeyLen  = 32
)

func hashSecret(secret string, salt []byte) []byte {
	return argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

func verifySecret(secret string, salt, hash []byte) bool {
	return subtle.ConstantTimeCompare(hashSecret(secret, salt), hash) == 1
}

func newSalt() ([]byte, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// ParseToken splits a bearer token of the form "<deviceId>.<deviceSecret>".
func ParseToken(token string) (deviceID, secret string, err error) {
	deviceID, secret, ok := strings.Cut(token, ".")
	if !ok || deviceID == "" || secret == "" {
		return "", "", common.ErrUnauthorized
	}
	return deviceID, secret, nil
}
