package handler

import (
	"FireBox/internal/dto"
	"FireBox/internal/service"
	"FireBox/utils"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SyncDelta reports files changed since the client's cursor, each with
// its full current manifest, plus the next cursor.
func SyncDelta(c *gin.Context) {
	var req dto.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := service.SyncDelta(req)
	if err != nil {
		if errors.Is(err, service.ErrBadCursor) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		utils.Fail(c, err)
		return
	}
	utils.Success(c, resp)
}

// Health is a liveness probe.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
