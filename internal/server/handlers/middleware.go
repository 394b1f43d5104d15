package handlers

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/common"
	"github.com/gin-gonic/gin"
)

const deviceIDKey = "deviceID"

func bearerToken(c *gin.Context) string {
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// requireDevice authenticates the bearer token and stores the device id in
// the gin context.
func (h *Handler) requireDevice() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			h.abortWithError(c, common.ErrUnauthorized)
			return
		}
		deviceID, err := h.devices.Authenticate(c.Request.Context(), token)
		if err != nil {
			h.abortWithError(c, err)
			return
		}
		c.Set(deviceIDKey, deviceID)
		c.Next()
	}
}

func (h *Handler) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.log.Debug(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
