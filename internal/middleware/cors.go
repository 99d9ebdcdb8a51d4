package middleware

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows the configured browser origins. An empty list or "*" allows any
// origin without credentials; explicit origins may send the token cookie.
func CORS(origins []string) (gin.HandlerFunc, error) {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "X-Requested-With", "Content-Type", "Accept", "Authorization", "X-Client-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}

	var explicit []string
	wildcard := false
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch origin {
		case "":
		case "*":
			wildcard = true
		default:
			explicit = append(explicit, origin)
		}
	}

	if wildcard || len(explicit) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = explicit
		cfg.AllowCredentials = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cors.New(cfg), nil
}
