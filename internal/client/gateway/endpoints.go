package gateway

import (
	"net/http"
	"net/url"
	"strconv"
)

// Endpoint describes one backend call relative to the base URL.
type Endpoint struct {
	Method string
	Path   string
	Query  url.Values
	// Body is JSON-encoded when non-nil.
	Body any
}

// DeviceGrant is returned by registration and refresh.
type DeviceGrant struct {
	DeviceID     string `json:"deviceId"`
	DeviceSecret string `json:"deviceSecret"`
	ExpiresAt    Time   `json:"expiresAt"`
}

type UploadURLRequest struct {
	ContentType string `json:"contentType"`
	SizeBytes   *int64 `json:"sizeBytes,omitempty"`
	Nonce       string `json:"nonce"`
	// ImageID asks the backend to re-issue a URL for an existing object.
	ImageID string `json:"imageId,omitempty"`
}

type UploadURLResponse struct {
	ImageID         string            `json:"imageId"`
	UploadURL       string            `json:"uploadUrl"`
	ExpiresAt       Time              `json:"expiresAt"`
	RequiredHeaders map[string]string `json:"requiredHeaders"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

func RegisterEndpoint() Endpoint {
	return Endpoint{Method: http.MethodPost, Path: "/v1/anonymous/register"}
}

func RefreshEndpoint() Endpoint {
	return Endpoint{Method: http.MethodPost, Path: "/v1/auth/refresh"}
}

func UploadURLEndpoint(req UploadURLRequest) Endpoint {
	return Endpoint{Method: http.MethodPost, Path: "/v1/images/upload-url", Body: req}
}

// ImageEndpoint fetches an image; width <= 0 omits the w parameter.
func ImageEndpoint(imageID string, width int) Endpoint {
	ep := Endpoint{Method: http.MethodGet, Path: "/v1/images/" + url.PathEscape(imageID)}
	if width > 0 {
		ep.Query = url.Values{"w": []string{strconv.Itoa(width)}}
	}
	return ep
}

func DeleteImageEndpoint(imageID string) Endpoint {
	return Endpoint{Method: http.MethodDelete, Path: "/v1/images/" + url.PathEscape(imageID)}
}

func HealthEndpoint() Endpoint {
	return Endpoint{Method: http.MethodGet, Path: "/healthz"}
}
