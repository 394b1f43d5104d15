// Package common defines sentinel errors shared by the client agent and the
// development gateway. Callers match them with errors.Is.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// Service-level errors.
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")

	// Validation errors.
	ErrInvalidArgument = errors.New("invalid argument")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")
	ErrNonceReused  = errors.New("nonce reused")
)
