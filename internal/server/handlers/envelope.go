package handlers

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/imagesync/internal/common"
	"github.com/gin-gonic/gin"
)

const (
	codeUnauthorized   = "unauthorized"
	codeTokenExpired   = "token_expired"
	codeNonceReused    = "nonce_reused"
	codeNotFound       = "not_found"
	codeInvalidRequest = "invalid_request"
	codeInternal       = "internal"
)

type errorEnvelope struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type okEnvelope struct {
	OK bool `json:"ok"`
}

func abortWith(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorEnvelope{OK: false, Error: code, Message: message})
}

// abortWithError maps a service error onto a status and error code. Internal
// failures are logged and answered without details.
func (h *Handler) abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrTokenExpired):
		abortWith(c, http.StatusUnauthorized, codeTokenExpired, "")
	case errors.Is(err, common.ErrUnauthorized):
		abortWith(c, http.StatusUnauthorized, codeUnauthorized, "")
	case errors.Is(err, common.ErrNonceReused):
		abortWith(c, http.StatusConflict, codeNonceReused, "")
	case errors.Is(err, common.ErrNotFound):
		abortWith(c, http.StatusNotFound, codeNotFound, "")
	case errors.Is(err, common.ErrInvalidArgument):
		abortWith(c, http.StatusBadRequest, codeInvalidRequest, err.Error())
	default:
		h.log.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		abortWith(c, http.StatusInternalServerError, codeInternal, "")
	}
}
