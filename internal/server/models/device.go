// Package models defines gateway-side data models persisted in the database.
package models

import "time"

// Device is an anonymously registered client. The secret itself is never
// stored; SecretHash is argon2id(secret, SecretSalt).
type Device struct {
	ID         string
	SecretSalt []byte
	SecretHash []byte
	ExpiresAt  time.Time
	CreatedAt  time.Time
}
