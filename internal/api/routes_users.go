package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authhub/internal/handlers"
)

func registerUserRoutes(api *gin.RouterGroup, handler *handlers.UserHandler, requireAuth gin.HandlerFunc) {
	users := api.Group("/user", requireAuth)
	{
		users.GET("", handler.Me)
		users.PUT("", handler.Update)
		users.GET("/sessions", handler.Sessions)
		users.GET("/:id", handler.Get)
	}
}
