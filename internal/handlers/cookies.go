package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authhub/internal/middleware"
)

// DefaultCookieMaxAge matches the default token lifetime.
const DefaultCookieMaxAge = 30 * 24 * time.Hour

// CookieConfig controls the token cookie.
type CookieConfig struct {
	// Secure is set in production so the cookie only travels over TLS.
	Secure bool
	MaxAge time.Duration
}

func (cfg CookieConfig) maxAgeSeconds() int {
	if cfg.MaxAge <= 0 {
		return int(DefaultCookieMaxAge.Seconds())
	}
	return int(cfg.MaxAge.Seconds())
}

func setTokenCookie(c *gin.Context, cfg CookieConfig, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.TokenCookieName, token, cfg.maxAgeSeconds(), "/", "", cfg.Secure, true)
}

func clearTokenCookie(c *gin.Context, cfg CookieConfig) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.TokenCookieName, "", -1, "/", "", cfg.Secure, true)
}
