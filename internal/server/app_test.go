package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/logging"
	"github.com/dmitrijs2005/imagesync/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.ListenAddr = "127.0.0.1:0"
	return cfg
}

func serve(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader("x")))
	return rec
}

func TestNewApp_InMemory(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(), logging.Discard())
	require.NoError(t, err)
	assert.Nil(t, app.db)

	h := app.Handler()
	assert.Equal(t, http.StatusOK, serve(t, h, http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusOK, serve(t, h, http.MethodGet, "/metrics").Code)
	assert.Equal(t, http.StatusBadRequest, serve(t, h, http.MethodPut, "/objects/devices/d/i?expires=99999999999").Code,
		"in-memory upload target is mounted")
}

func TestNewApp_MetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics = false
	app, err := NewApp(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, serve(t, app.Handler(), http.MethodGet, "/metrics").Code)
}

func TestNewApp_S3StoreHasNoUploadRoute(t *testing.T) {
	cfg := testConfig()
	cfg.S3BaseEndpoint = "http://127.0.0.1:9000"
	app, err := NewApp(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, serve(t, app.Handler(), http.MethodPut, "/objects/devices/d/i").Code)
}

func TestNewApp_UnreachableDatabase(t *testing.T) {
	cfg := testConfig()
	cfg.DatabaseDSN = "postgres://u:p@127.0.0.1:1/imagesync?sslmode=disable&connect_timeout=1"

	_, err := NewApp(context.Background(), cfg, logging.Discard())
	assert.ErrorContains(t, err, "db init error")
}

func TestRun_StopsOnCancel(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(), logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
