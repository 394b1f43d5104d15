package models

import "time"

// DeviceCredential is the anonymous device identity issued by the backend.
type DeviceCredential struct {
	DeviceID     string
	DeviceSecret string
	TokenExpiry  time.Time
}

// Token is the bearer value "{deviceId}.{deviceSecret}".
func (c DeviceCredential) Token() string {
	return c.DeviceID + "." + c.DeviceSecret
}
