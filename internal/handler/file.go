package handler

import (
	"FireBox/internal/dto"
	"FireBox/internal/service"
	"FireBox/utils"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// NegotiateUpload answers a fingerprint manifest with per-part dedup
// verdicts and presigned PUT handles.
func NegotiateUpload(c *gin.Context) {
	var req dto.NegotiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	deviceID := c.GetString("device_id")
	resp, err := service.NegotiateUpload(c.Request.Context(), deviceID, req)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, resp)
}

// ConfirmUpload commits a file's complete chunk manifest.
func ConfirmUpload(c *gin.Context) {
	var req dto.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := service.ConfirmUpload(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrSessionClosed):
			c.JSON(http.StatusGone, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrManifestGap), errors.Is(err, service.ErrPartNotStored):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			utils.Fail(c, err)
		}
		return
	}
	utils.Success(c, resp)
}

// DownloadURLs issues presigned GET handles for the requested chunks.
func DownloadURLs(c *gin.Context) {
	var req dto.DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := service.DownloadURLs(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrChunkMissing) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		utils.Fail(c, err)
		return
	}
	utils.Success(c, resp)
}
