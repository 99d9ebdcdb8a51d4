package app

import (
	"strings"

	"github.com/charlesng35/authhub/internal/auth"
	"github.com/charlesng35/authhub/internal/otp"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultTokenTTL
	}

	return auth.JWTConfig{
		Secret: c.JWT.Secret,
		Issuer: c.JWT.Issuer,
		TTL:    ttl,
	}
}

// SessionServiceConfig converts AuthConfig into SessionService parameters.
func (c AuthConfig) SessionServiceConfig() auth.SessionConfig {
	maxAge := c.Session.MaxAge
	if maxAge < 0 {
		maxAge = 0
	}
	return auth.SessionConfig{MaxAge: maxAge}
}

// TokenServiceConfig converts AuthConfig into TokenService parameters.
func (c AuthConfig) TokenServiceConfig() auth.TokenConfig {
	timeout := c.Session.LookupTimeout
	if timeout <= 0 {
		timeout = auth.DefaultLookupTimeout
	}
	return auth.TokenConfig{LookupTimeout: timeout}
}

// GoogleVerifierConfig converts AuthConfig into the Google verifier parameters.
func (c AuthConfig) GoogleVerifierConfig() auth.GoogleConfig {
	issuer := strings.TrimSpace(c.Google.Issuer)
	if issuer == "" {
		issuer = auth.GoogleIssuer
	}

	clientIDs := make([]string, 0, len(c.Google.ClientIDs))
	for _, id := range c.Google.ClientIDs {
		if id = strings.TrimSpace(id); id != "" {
			clientIDs = append(clientIDs, id)
		}
	}

	return auth.GoogleConfig{
		Issuer:    issuer,
		ClientIDs: clientIDs,
		Timeout:   c.Google.Timeout,
	}
}

// OTPOptions converts OTPSettings into engine options.
func (c AuthConfig) OTPOptions() []otp.Option {
	if c.OTP.TTL <= 0 {
		return nil
	}
	return []otp.Option{otp.WithTTL(c.OTP.TTL)}
}
