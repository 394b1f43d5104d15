package models

import "time"

// Image describes an uploaded binary owned by a device. The bytes live in
// object storage under StorageKey.
type Image struct {
	ID          string
	DeviceID    string
	StorageKey  string
	ContentType string
	// SizeBytes is the size the client declared, if any.
	SizeBytes *int64
	CreatedAt time.Time
}

// Nonce records a one-time upload nonce already presented by a device.
type Nonce struct {
	DeviceID  string
	Value     string
	CreatedAt time.Time
}
