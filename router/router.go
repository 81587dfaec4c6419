package router

import (
	"FireBox/internal/handler"
	"FireBox/utils"

	"github.com/gin-gonic/gin"
)

// InitRouter builds API routes.
func InitRouter() *gin.Engine {
	r := gin.Default()
	r.Use(utils.CORSMiddleware())

	api := r.Group("/api")
	{
		api.GET("/health", handler.Health)
		api.POST("/device/register", handler.RegisterDevice)
		api.POST("/device/login", handler.LoginDevice)

		auth := api.Group("")
		auth.Use(utils.AuthMiddleware())

		auth.POST("/folder", handler.UpsertFolder)

		file := auth.Group("/file")
		{
			file.POST("/negotiate", handler.NegotiateUpload)
			file.POST("/confirm", handler.ConfirmUpload)
			file.POST("/download", handler.DownloadURLs)
		}

		auth.POST("/sync", handler.SyncDelta)
	}
	return r
}
