package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authhub/internal/handlers"
)

func registerMediaRoutes(api *gin.RouterGroup, handler *handlers.MediaHandler, requireAuth gin.HandlerFunc) {
	media := api.Group("/media", requireAuth)
	{
		media.POST("", handler.Upload)
		media.GET("/:id", handler.Get)
		media.GET("/:id/content", handler.Content)
		media.DELETE("/:id", handler.Delete)
	}
}
