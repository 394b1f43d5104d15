package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const maxObjectBytes = 64 << 20

// putObject accepts the bytes of a presigned upload into the in-memory store.
func (h *Handler) putObject(c *gin.Context) {
	if h.objects.Expired(c.Query("expires")) {
		abortWith(c, http.StatusForbidden, codeUnauthorized, "upload url expired")
		return
	}
	if c.GetHeader("Content-Type") == "" {
		abortWith(c, http.StatusBadRequest, codeInvalidRequest, "Content-Type header required")
		return
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxObjectBytes+1))
	if err != nil {
		abortWith(c, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}
	if len(data) > maxObjectBytes {
		abortWith(c, http.StatusRequestEntityTooLarge, codeInvalidRequest, "object too large")
		return
	}

	key := strings.TrimPrefix(c.Param("key"), "/")
	if err := h.objects.Put(c.Request.Context(), key, data); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
