package handlers

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/imagesync/internal/logging"
	"github.com/dmitrijs2005/imagesync/internal/server/services"
	"github.com/dmitrijs2005/imagesync/internal/server/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type DeviceAuthority interface {
	Register(ctx context.Context) (*services.DeviceCredentials, error)
	Refresh(ctx context.Context, token string) (*services.DeviceCredentials, error)
	Authenticate(ctx context.Context, token string) (string, error)
}

type ImageFlows interface {
	RequestUpload(ctx context.Context, deviceID string, req services.UploadRequest) (*services.UploadTicket, error)
	Open(ctx context.Context, deviceID, imageID string, width int) (*services.Download, error)
	Delete(ctx context.Context, deviceID, imageID string) error
}

// Options wires a router. Objects and Registry are optional: Objects mounts
// the in-memory upload target, Registry mounts /metrics and request metrics.
type Options struct {
	Devices  DeviceAuthority
	Images   ImageFlows
	Objects  *storage.MemoryStore
	Registry *prometheus.Registry
	Log      logging.Logger
}

type Handler struct {
	devices DeviceAuthority
	images  ImageFlows
	objects *storage.MemoryStore
	log     logging.Logger
}

// NewRouter builds the gin engine serving the REST contract.
func NewRouter(opts Options) *gin.Engine {
	h := &Handler{devices: opts.Devices, images: opts.Images, objects: opts.Objects, log: opts.Log}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), h.logRequests())

	if opts.Registry != nil {
		r.Use(NewMetrics(opts.Registry).middleware())
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, okEnvelope{OK: true}) })

	v1 := r.Group("/v1")
	{
		v1.POST("/anonymous/register", h.register)
		v1.POST("/auth/refresh", h.refresh)

		img := v1.Group("/images", h.requireDevice())
		{
			img.POST("/upload-url", h.uploadURL)
			img.GET("/:id", h.getImage)
			img.DELETE("/:id", h.deleteImage)
		}
	}

	if h.objects != nil {
		r.PUT(storage.ObjectsPrefix+"*key", h.putObject)
	}

	r.NoRoute(func(c *gin.Context) { abortWith(c, http.StatusNotFound, codeNotFound, "no such route") })
	return r
}
