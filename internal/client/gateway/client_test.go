package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	c, err := New(ts.URL, 5*time.Second, 5*time.Second, logging.Discard())
	require.NoError(t, err)
	return c, ts
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "not a url", "/relative/path", "http://"} {
		_, err := New(raw, time.Second, time.Second, logging.Discard())
		assert.ErrorIs(t, err, ErrInvalidURL, raw)
	}
}

func TestRegisterDevice_NoBearerNoContentType(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/anonymous/register", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("Content-Type"), "no body, no content type")
		writeJSON(w, http.StatusOK, map[string]any{
			"deviceId":     "d1",
			"deviceSecret": "s1",
			"expiresAt":    "2030-01-01T00:00:00.123Z",
		})
	})

	g, err := c.RegisterDevice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "d1", g.DeviceID)
	assert.Equal(t, "s1", g.DeviceSecret)
	assert.Equal(t, time.Date(2030, 1, 1, 0, 0, 0, 123_000_000, time.UTC), g.ExpiresAt.UTC())
}

func TestRequestUploadURL_SendsBearerAndJSONBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer d1.s1", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "image/jpeg", body["contentType"])
		assert.Equal(t, float64(2048), body["sizeBytes"])
		assert.Equal(t, "n-1", body["nonce"])
		_, hasImageID := body["imageId"]
		assert.False(t, hasImageID, "imageId omitted when empty")

		writeJSON(w, http.StatusOK, map[string]any{
			"imageId":         "r1",
			"uploadUrl":       "https://bucket.example/put",
			"expiresAt":       1893456000,
			"requiredHeaders": map[string]string{"Content-Type": "image/jpeg"},
		})
	})

	size := int64(2048)
	resp, err := c.RequestUploadURL(context.Background(), "d1.s1", UploadURLRequest{
		ContentType: "image/jpeg", SizeBytes: &size, Nonce: "n-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "r1", resp.ImageID)
	assert.Equal(t, int64(1893456000), resp.ExpiresAt.Unix())
	assert.Equal(t, map[string]string{"Content-Type": "image/jpeg"}, resp.RequiredHeaders)
}

func TestRequestUploadURL_MissingFieldsIsDecodingError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"imageId": "r1"})
	})

	_, err := c.RequestUploadURL(context.Background(), "t", UploadURLRequest{Nonce: "n"})
	var de *DecodingError
	assert.ErrorAs(t, err, &de)
}

func TestDo_ErrorEnvelopeMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", 401, `{"ok":false,"error":"unauthorized"}`, ErrUnauthorized},
		{"token expired", 401, `{"ok":false,"error":"token_expired","message":"renew"}`, ErrTokenExpired},
		{"nonce reused", 409, `{"ok":false,"error":"nonce_reused"}`, ErrNonceReused},
		{"not found", 404, `{"ok":false,"error":"not_found"}`, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			err := c.Do(context.Background(), DeleteImageEndpoint("r1"), "t", nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDo_UnknownCodeAndGarbageBecomeHTTPError(t *testing.T) {
	t.Run("unknown code keeps message", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"ok":false,"error":"rate_limited","message":"slow down"}`)
		})
		err := c.Do(context.Background(), RefreshEndpoint(), "t", nil)
		var he *HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusTooManyRequests, he.Status)
		assert.Equal(t, "slow down", he.Message)
	})

	t.Run("unparsable body", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, `<html>bad gateway</html>`)
		})
		err := c.Do(context.Background(), RefreshEndpoint(), "t", nil)
		var he *HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusBadGateway, he.Status)
		assert.Empty(t, he.Message)
	})
}

func TestDo_DecodingErrorIsDistinct(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"deviceId": 42})
	})

	_, err := c.RegisterDevice(context.Background())
	var de *DecodingError
	require.ErrorAs(t, err, &de)
	assert.NotErrorIs(t, err, ErrUnknown)
}

func TestDo_TransportFailureIsUnknown(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()

	c, err := New(ts.URL, time.Second, time.Second, logging.Discard())
	require.NoError(t, err)

	err = c.Do(context.Background(), RegisterEndpoint(), "", nil)
	assert.ErrorIs(t, err, ErrUnknown)
	assert.Error(t, c.Ping(context.Background()))
}

func TestDownloadImage_WidthQueryAndBearer(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/images/r1", r.URL.Path)
		assert.Equal(t, "2048", r.URL.Query().Get("w"))
		assert.Equal(t, "Bearer d1.s1", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte{0xFF, 0xD8, 0xFF, 0x00})
	})

	b, err := c.DownloadImage(context.Background(), "d1.s1", "r1", 2048)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0x00}, b)
}

func TestImageEndpoint_NoWidth(t *testing.T) {
	ep := ImageEndpoint("r1", 0)
	assert.Nil(t, ep.Query)
	assert.Equal(t, "/v1/images/r1", ep.Path)
}

func TestDeleteImage_OK(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	require.NoError(t, c.DeleteImage(context.Background(), "t", "r1"))
}

func TestDeleteImage_EmptyBodyIsSuccess(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, c.DeleteImage(context.Background(), "t", "r1"))
}

func TestDeleteImage_GarbageBodyIsDecodingError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>")
	})
	var de *DecodingError
	assert.ErrorAs(t, c.DeleteImage(context.Background(), "t", "r1"), &de)
}

func TestUploadBinary_OnlyRequiredHeadersNoBearer(t *testing.T) {
	var got http.Header
	c, ts := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		assert.Equal(t, http.MethodPut, r.Method)
		w.WriteHeader(http.StatusOK)
	})

	err := c.UploadBinary(context.Background(), ts.URL+"/bucket/key?sig=1", []byte("data"), "image/png",
		map[string]string{"Content-Type": "image/jpeg", "x-amz-meta-device": "d1"})
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", got.Get("Content-Type"), "required header wins")
	assert.Equal(t, "d1", got.Get("X-Amz-Meta-Device"))
	assert.Empty(t, got.Get("Authorization"))
}

func TestUploadBinary_Failures(t *testing.T) {
	c, ts := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	err := c.UploadBinary(context.Background(), ts.URL, []byte("x"), "image/jpeg", nil)
	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusForbidden, he.Status)

	err = c.UploadBinary(context.Background(), "::bad", []byte("x"), "image/jpeg", nil)
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestPing_AnyResponseIsReachable(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	require.NoError(t, c.Ping(context.Background()))
}

func TestTime_Formats(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{`"2030-01-01T10:00:00.5Z"`, time.Date(2030, 1, 1, 10, 0, 0, 500_000_000, time.UTC)},
		{`"2030-01-01T10:00:00Z"`, time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)},
		{`"2030-01-01T12:00:00+02:00"`, time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)},
		{`1893492000`, time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		var v Time
		require.NoError(t, json.Unmarshal([]byte(tt.in), &v), tt.in)
		assert.True(t, tt.want.Equal(v.Time), "%s -> %s", tt.in, v.Time)
	}

	var v Time
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &v))
}
