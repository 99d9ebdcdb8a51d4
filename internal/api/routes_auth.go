package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authhub/internal/handlers"
)

type authRouteDeps struct {
	Handler     *handlers.AuthHandler
	RequireAuth gin.HandlerFunc
	// RateLimit is applied to the unauthenticated credential and OTP endpoints when set.
	RateLimit gin.HandlerFunc
}

func registerAuthRoutes(api *gin.RouterGroup, deps authRouteDeps) {
	auth := api.Group("/auth")
	if deps.RateLimit != nil {
		auth.Use(deps.RateLimit)
	}
	{
		auth.POST("/register", deps.Handler.Register)
		auth.POST("/login", deps.Handler.Login)
		auth.POST("/google", deps.Handler.Google)
		auth.POST("/verify-email", deps.Handler.VerifyEmail)
		auth.POST("/resend-email-verification", deps.Handler.ResendOTP)
		auth.POST("/forgot-password", deps.Handler.ForgotPassword)
		auth.POST("/reset-password", deps.Handler.ResetPassword)
		auth.PUT("/logout", deps.RequireAuth, deps.Handler.Logout)
	}
}
