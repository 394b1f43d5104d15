// Package gateway is the HTTP client of the image backend: typed JSON calls
// against the API gateway plus raw transfers to presigned object-store URLs.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/logging"
	"github.com/dmitrijs2005/imagesync/internal/netx"
)

const maxErrorBody = 64 << 10

type Client struct {
	base   *url.URL
	http   *http.Client
	upload *http.Client
	log    logging.Logger
}

// New validates baseURL and returns a client using requestTimeout for
// gateway calls and uploadTimeout for presigned PUTs.
func New(baseURL string, requestTimeout, uploadTimeout time.Duration, log logging.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, baseURL)
	}

	return &Client{
		base:   u,
		http:   &http.Client{Timeout: requestTimeout},
		upload: &http.Client{Timeout: uploadTimeout},
		log:    log,
	}, nil
}

func (c *Client) newRequest(ctx context.Context, ep Endpoint, bearer string) (*http.Request, error) {
	u := *c.base
	u.Path = c.base.Path + ep.Path
	if len(ep.Query) > 0 {
		u.RawQuery = ep.Query.Encode()
	}

	var body io.Reader
	if ep.Body != nil {
		b, err := json.Marshal(ep.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, ep.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if ep.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// send executes the request and returns the body of a 2xx answer.
func (c *Client) send(ctx context.Context, ep Endpoint, bearer string) ([]byte, error) {
	req, err := c.newRequest(ctx, ep, bearer)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknown, err)
	}
	defer resp.Body.Close()

	c.log.Debug(ctx, "gateway call", "method", ep.Method, "path", ep.Path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, errorFromResponse(resp.StatusCode, b)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrUnknown, err)
	}
	return b, nil
}

// Do performs a JSON call and decodes a successful body into out (skipped
// when out is nil). An empty bearer sends an unauthenticated request.
func (c *Client) Do(ctx context.Context, ep Endpoint, bearer string, out any) error {
	b, err := c.send(ctx, ep, bearer)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return &DecodingError{Err: err}
	}
	return nil
}

// Request is the typed form of Do.
func Request[T any](ctx context.Context, c *Client, ep Endpoint, bearer string) (T, error) {
	var out T
	err := c.Do(ctx, ep, bearer, &out)
	return out, err
}

// DownloadBinary returns the raw body of a successful GET.
func (c *Client) DownloadBinary(ctx context.Context, ep Endpoint, bearer string) ([]byte, error) {
	return c.send(ctx, ep, bearer)
}

// UploadBinary PUTs data to a presigned URL. Only requiredHeaders are sent;
// contentType is used when the server did not require a Content-Type.
func (c *Client) UploadBinary(ctx context.Context, rawURL string, data []byte, contentType string, requiredHeaders map[string]string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: upload url", ErrInvalidURL)
	}

	headers := make(map[string]string, len(requiredHeaders)+1)
	for k, v := range requiredHeaders {
		headers[k] = v
	}
	if contentType != "" && !hasHeader(requiredHeaders, "Content-Type") {
		headers["Content-Type"] = contentType
	}

	err = netx.PutPresigned(ctx, c.upload, u.String(), data, headers)
	if err == nil {
		return nil
	}

	var se *netx.StatusError
	if errors.As(err, &se) {
		return &HTTPError{Status: se.Status, Message: "presigned upload rejected"}
	}
	return fmt.Errorf("%w: %w", ErrUnknown, err)
}

func hasHeader(h map[string]string, name string) bool {
	for k := range h {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

// Ping reports whether the gateway answers at all. Any HTTP response counts
// as reachable; only transport failures mean offline.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, HealthEndpoint(), "")
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnknown, err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return resp.Body.Close()
}

func (c *Client) RegisterDevice(ctx context.Context) (DeviceGrant, error) {
	return Request[DeviceGrant](ctx, c, RegisterEndpoint(), "")
}

func (c *Client) RefreshDevice(ctx context.Context, bearer string) (DeviceGrant, error) {
	return Request[DeviceGrant](ctx, c, RefreshEndpoint(), bearer)
}

func (c *Client) RequestUploadURL(ctx context.Context, bearer string, req UploadURLRequest) (UploadURLResponse, error) {
	resp, err := Request[UploadURLResponse](ctx, c, UploadURLEndpoint(req), bearer)
	if err != nil {
		return resp, err
	}
	if resp.ImageID == "" || resp.UploadURL == "" {
		return resp, &DecodingError{Err: errors.New("upload-url response misses imageId or uploadUrl")}
	}
	return resp, nil
}

// DeleteImage treats an empty 2xx body (a bare 204) as success.
func (c *Client) DeleteImage(ctx context.Context, bearer, imageID string) error {
	b, err := c.send(ctx, DeleteImageEndpoint(imageID), bearer)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	var ok OKResponse
	if err := json.Unmarshal(b, &ok); err != nil {
		return &DecodingError{Err: err}
	}
	return nil
}

func (c *Client) DownloadImage(ctx context.Context, bearer, imageID string, width int) ([]byte, error) {
	return c.DownloadBinary(ctx, ImageEndpoint(imageID, width), bearer)
}
