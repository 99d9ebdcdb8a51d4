package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/authhub/internal/database"
	"github.com/charlesng35/authhub/pkg/errors"
	"github.com/charlesng35/authhub/pkg/response"
)

const healthTimeout = 2 * time.Second

var errUnhealthy = errors.New("SERVICE_UNAVAILABLE", "Service unavailable", http.StatusServiceUnavailable)

// Health returns a status payload useful for readiness checks. A nil db skips the database probe.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(requestContext(c), healthTimeout)
			defer cancel()
			if err := database.Ping(ctx, db); err != nil {
				response.Error(c, errUnhealthy.WithInternal(err))
				return
			}
		}
		response.Success(c, http.StatusOK, "ok", gin.H{"status": "ok"})
	}
}
