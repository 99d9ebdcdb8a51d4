package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authhub/internal/auth"
	"github.com/charlesng35/authhub/internal/middleware"
	"github.com/charlesng35/authhub/pkg/errors"
	"github.com/charlesng35/authhub/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

func sessionMeta(c *gin.Context) auth.SessionMeta {
	return auth.SessionMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// requireIdentity writes 401 and returns false when the auth middleware did not run.
func requireIdentity(c *gin.Context) (*auth.Identity, bool) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return nil, false
	}
	return identity, true
}
