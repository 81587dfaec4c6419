package handler

import (
	"FireBox/internal/dto"
	"FireBox/internal/service"
	"FireBox/utils"
	"net/http"

	"github.com/gin-gonic/gin"
)

// UpsertFolder records a folder the client saw while scanning.
func UpsertFolder(c *gin.Context) {
	var req dto.FolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	folder, err := service.GetOrCreateFolder(req)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, dto.FolderResponse{
		FolderID: folder.FolderID,
		Success:  true,
	})
}
