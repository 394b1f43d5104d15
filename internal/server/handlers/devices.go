package handlers

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/common"
	"github.com/dmitrijs2005/imagesync/internal/server/services"
	"github.com/gin-gonic/gin"
)

type deviceGrant struct {
	DeviceID     string    `json:"deviceId"`
	DeviceSecret string    `json:"deviceSecret"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func grantFrom(creds *services.DeviceCredentials) deviceGrant {
	return deviceGrant{DeviceID: creds.DeviceID, DeviceSecret: creds.Secret, ExpiresAt: creds.ExpiresAt}
}

func (h *Handler) register(c *gin.Context) {
	creds, err := h.devices.Register(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, grantFrom(creds))
}

func (h *Handler) refresh(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		h.abortWithError(c, common.ErrUnauthorized)
		return
	}
	creds, err := h.devices.Refresh(c.Request.Context(), token)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, grantFrom(creds))
}
