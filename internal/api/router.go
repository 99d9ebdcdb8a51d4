package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/authhub/internal/app"
	iauth "github.com/charlesng35/authhub/internal/auth"
	"github.com/charlesng35/authhub/internal/cache"
	"github.com/charlesng35/authhub/internal/handlers"
	"github.com/charlesng35/authhub/internal/middleware"
	"github.com/charlesng35/authhub/internal/realtime"
	"github.com/charlesng35/authhub/internal/services"
)

const metricsPath = "/metrics"

// Dependencies bundles the services the HTTP layer is built on.
type Dependencies struct {
	DB       *gorm.DB
	Config   *app.Config
	Tokens   *iauth.TokenService
	Sessions *iauth.SessionService
	Auth     *services.AuthService
	Users    *services.UserService
	Media    *services.MediaService
	// Hub is optional; without it /api/v1/ws responds 404.
	Hub *realtime.Hub
	// RateStore backs the auth rate limiter. Nil disables rate limiting.
	RateStore cache.Store
}

func (d Dependencies) validate() error {
	switch {
	case d.DB == nil:
		return fmt.Errorf("database handle must be provided")
	case d.Config == nil:
		return fmt.Errorf("config must be provided")
	case d.Tokens == nil:
		return fmt.Errorf("token service must be provided")
	case d.Auth == nil:
		return fmt.Errorf("auth service must be provided")
	case d.Users == nil:
		return fmt.Errorf("user service must be provided")
	case d.Media == nil:
		return fmt.Errorf("media service must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg := deps.Config

	corsMiddleware, err := middleware.CORS(cfg.Server.CORS.AllowedOrigins)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics(metricsPath))
	r.Use(middleware.SecurityHeaders(cfg.Server.IsProduction()))
	r.Use(corsMiddleware)

	registerHealthRoutes(r, deps.DB)

	cookies := handlers.CookieConfig{
		Secure: cfg.Server.IsProduction(),
		MaxAge: deps.Tokens.TTL(),
	}
	authHandler, err := handlers.NewAuthHandler(deps.Auth, cookies)
	if err != nil {
		return nil, err
	}
	var sessions handlers.SessionLister
	if deps.Sessions != nil {
		sessions = deps.Sessions
	}
	userHandler, err := handlers.NewUserHandler(deps.Users, sessions)
	if err != nil {
		return nil, err
	}
	mediaHandler, err := handlers.NewMediaHandler(deps.Media, cfg.Storage.UploadLimit())
	if err != nil {
		return nil, err
	}

	v1 := r.Group("/api/v1")
	requireAuth := middleware.Auth(deps.Tokens)

	var limiter gin.HandlerFunc
	if deps.RateStore != nil && cfg.Server.RateLimit.Requests > 0 {
		limiter = middleware.RateLimit(deps.RateStore, cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window)
	}

	registerAuthRoutes(v1, authRouteDeps{
		Handler:     authHandler,
		RequireAuth: requireAuth,
		RateLimit:   limiter,
	})
	registerUserRoutes(v1, userHandler, requireAuth)
	registerMediaRoutes(v1, mediaHandler, requireAuth)
	registerRealtimeRoutes(v1, handlers.NewRealtimeHandler(deps.Hub))

	// Metrics endpoint
	r.GET(metricsPath, gin.WrapH(promhttp.Handler()))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
