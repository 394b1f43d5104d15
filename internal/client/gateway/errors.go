package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidURL   = errors.New("invalid url")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTokenExpired = errors.New("token expired")
	ErrNonceReused  = errors.New("nonce reused")
	ErrNotFound     = errors.New("not found")
	// ErrUnknown wraps transport failures (DNS, refused, timeout).
	ErrUnknown = errors.New("unknown network error")
)

// Error codes of the backend error envelope.
const (
	CodeUnauthorized = "unauthorized"
	CodeTokenExpired = "token_expired"
	CodeNonceReused  = "nonce_reused"
	CodeNotFound     = "not_found"
)

// HTTPError is a non-2xx answer without a recognised error code.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// DecodingError means a 2xx body did not match the expected shape.
type DecodingError struct {
	Err error
}

func (e *DecodingError) Error() string {
	return "decoding response: " + e.Err.Error()
}

func (e *DecodingError) Unwrap() error {
	return e.Err
}

// ErrorEnvelope is the body of every failed gateway response.
type ErrorEnvelope struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// errorFromResponse maps a failed response onto the error taxonomy.
func errorFromResponse(status int, body []byte) error {
	var env ErrorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error == "" {
		return &HTTPError{Status: status}
	}

	var sentinel error
	switch env.Error {
	case CodeUnauthorized:
		sentinel = ErrUnauthorized
	case CodeTokenExpired:
		sentinel = ErrTokenExpired
	case CodeNonceReused:
		sentinel = ErrNonceReused
	case CodeNotFound:
		sentinel = ErrNotFound
	default:
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		return &HTTPError{Status: status, Message: msg}
	}

	if env.Message != "" {
		return fmt.Errorf("%w: %s", sentinel, env.Message)
	}
	return sentinel
}
