package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authhub/internal/handlers"
)

func registerRealtimeRoutes(api *gin.RouterGroup, handler *handlers.RealtimeHandler) {
	api.GET("/ws", handler.Stream)
}
