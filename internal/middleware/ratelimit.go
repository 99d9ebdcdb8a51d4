package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/authhub/internal/cache"
	"github.com/charlesng35/authhub/pkg/errors"
	"github.com/charlesng35/authhub/pkg/logger"
	"github.com/charlesng35/authhub/pkg/response"
)

const rateLimitPrefix = "ratelimit:"

// RateLimit limits requests per (client IP, route) within a fixed window. Counters
// live in the shared cache so limits hold across instances when Redis is enabled.
// Store failures let the request through.
func RateLimit(store cache.Store, maxRequests int, window time.Duration) gin.HandlerFunc {
	log := logger.WithModule("ratelimit")

	return func(c *gin.Context) {
		if store == nil || maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		key := rateLimitPrefix + c.ClientIP() + "|" + route

		count, ttl, err := store.IncrementWithTTL(c.Request.Context(), key, window)
		if err != nil {
			log.Warn("rate limit store unavailable", zap.Error(err))
			c.Next()
			return
		}

		remaining := maxRequests - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(ttl.Seconds())))

		if int(count) > maxRequests {
			response.Error(c, errors.ErrRateLimit)
			c.Abort()
			return
		}

		c.Next()
	}
}
