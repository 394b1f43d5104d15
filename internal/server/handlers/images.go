package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/imagesync/internal/common"
	"github.com/dmitrijs2005/imagesync/internal/server/services"
	"github.com/gin-gonic/gin"
)

type uploadURLRequest struct {
	ContentType string `json:"contentType"`
	SizeBytes   *int64 `json:"sizeBytes,omitempty"`
	Nonce       string `json:"nonce"`
	ImageID     string `json:"imageId,omitempty"`
}

type uploadURLResponse struct {
	ImageID         string            `json:"imageId"`
	UploadURL       string            `json:"uploadUrl"`
	ExpiresAt       int64             `json:"expiresAt"`
	RequiredHeaders map[string]string `json:"requiredHeaders"`
}

func (h *Handler) uploadURL(c *gin.Context) {
	var req uploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}

	ticket, err := h.images.RequestUpload(c.Request.Context(), c.GetString(deviceIDKey), services.UploadRequest{
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
		Nonce:       req.Nonce,
		ImageID:     req.ImageID,
	})
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, uploadURLResponse{
		ImageID:         ticket.ImageID,
		UploadURL:       ticket.UploadURL,
		ExpiresAt:       ticket.ExpiresAt.Unix(),
		RequiredHeaders: ticket.RequiredHeaders,
	})
}

func (h *Handler) getImage(c *gin.Context) {
	width := 0
	if raw := c.Query("w"); raw != "" {
		w, err := strconv.Atoi(raw)
		if err != nil || w < 0 {
			h.abortWithError(c, fmt.Errorf("w must be a non-negative integer: %w", common.ErrInvalidArgument))
			return
		}
		width = w
	}

	dl, err := h.images.Open(c.Request.Context(), c.GetString(deviceIDKey), c.Param("id"), width)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, dl.ContentType, dl.Data)
}

func (h *Handler) deleteImage(c *gin.Context) {
	if err := h.images.Delete(c.Request.Context(), c.GetString(deviceIDKey), c.Param("id")); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, okEnvelope{OK: true})
}
