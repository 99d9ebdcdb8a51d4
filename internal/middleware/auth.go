package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authhub/internal/auth"
	"github.com/charlesng35/authhub/pkg/errors"
	"github.com/charlesng35/authhub/pkg/response"
)

const (
	CtxIdentityKey  = "authIdentity"
	CtxUserIDKey    = "userID"
	CtxSessionIDKey = "sessionID"

	// TokenCookieName is the cookie carrying the bearer token for browser clients.
	TokenCookieName = "token"
)

// TokenValidator resolves a bearer token to a live identity.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*auth.Identity, error)
}

// Auth requires a token whose session is still live.
func Auth(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		identity, err := tokens.Validate(c.Request.Context(), token)
		if err != nil {
			if errors.FromError(err).StatusCode == 401 {
				c.Header("WWW-Authenticate", "Bearer")
			}
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(CtxIdentityKey, identity)
		c.Set(CtxUserIDKey, identity.UserID)
		c.Set(CtxSessionIDKey, identity.SessionID)

		c.Next()
	}
}

// ExtractToken prefers the token cookie over the Authorization header.
func ExtractToken(c *gin.Context) string {
	if cookie, err := c.Cookie(TokenCookieName); err == nil {
		if token := strings.TrimSpace(cookie); token != "" {
			return token
		}
	}

	authz := c.GetHeader("Authorization")
	if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[7:])
}

// IdentityFrom returns the identity stored by Auth.
func IdentityFrom(c *gin.Context) (*auth.Identity, bool) {
	value, ok := c.Get(CtxIdentityKey)
	if !ok {
		return nil, false
	}
	identity, ok := value.(*auth.Identity)
	return identity, ok && identity != nil
}
