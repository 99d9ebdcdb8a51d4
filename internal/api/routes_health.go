package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/authhub/internal/handlers"
)

func registerHealthRoutes(engine *gin.Engine, db *gorm.DB) {
	engine.GET("/health", handlers.Health(db))
}
