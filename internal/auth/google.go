package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	// GoogleIssuer is the OpenID issuer for Google accounts.
	GoogleIssuer = "https://accounts.google.com"

	defaultGoogleTimeout = 10 * time.Second
)

// ErrGoogleTokenInvalid is returned when Google rejects the supplied token.
var ErrGoogleTokenInvalid = errors.New("google: invalid token")

// GoogleConfig configures Google token verification.
type GoogleConfig struct {
	Issuer string
	// ClientIDs are the OAuth clients whose ID tokens are accepted. Access tokens
	// are checked against the userinfo endpoint and need none.
	ClientIDs  []string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// GoogleProfile is the identity Google reports for a token.
type GoogleProfile struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// GoogleVerifier resolves a client supplied Google token to a profile.
type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (*GoogleProfile, error)
}

// OIDCGoogleVerifier verifies Google tokens through OpenID discovery.
type OIDCGoogleVerifier struct {
	provider  *oidc.Provider
	verifiers []*oidc.IDTokenVerifier
	client    *http.Client
	timeout   time.Duration
}

// NewGoogleVerifier performs discovery against the issuer and returns a verifier.
func NewGoogleVerifier(ctx context.Context, cfg GoogleConfig) (*OIDCGoogleVerifier, error) {
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = GoogleIssuer
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGoogleTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	discoveryCtx, cancel := context.WithTimeout(oidc.ClientContext(ctx, client), timeout)
	defer cancel()

	provider, err := oidc.NewProvider(discoveryCtx, issuer)
	if err != nil {
		return nil, fmt.Errorf("google: discovery: %w", err)
	}

	v := &OIDCGoogleVerifier{provider: provider, client: client, timeout: timeout}
	for _, clientID := range cfg.ClientIDs {
		v.verifiers = append(v.verifiers, provider.Verifier(&oidc.Config{ClientID: clientID}))
	}
	return v, nil
}

// Verify accepts an OAuth access token, or an ID token when client IDs are configured.
func (v *OIDCGoogleVerifier) Verify(ctx context.Context, token string) (*GoogleProfile, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrGoogleTokenInvalid
	}

	ctx, cancel := context.WithTimeout(oidc.ClientContext(ctx, v.client), v.timeout)
	defer cancel()

	if len(v.verifiers) > 0 && strings.Count(token, ".") == 2 {
		return v.verifyIDToken(ctx, token)
	}
	return v.userInfo(ctx, token)
}

func (v *OIDCGoogleVerifier) userInfo(ctx context.Context, accessToken string) (*GoogleProfile, error) {
	info, err := v.provider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGoogleTokenInvalid, err)
	}

	var extra struct {
		Name string `json:"name"`
	}
	if err := info.Claims(&extra); err != nil {
		return nil, fmt.Errorf("google: decode userinfo: %w", err)
	}

	return &GoogleProfile{
		Subject:       info.Subject,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Name:          extra.Name,
	}, nil
}

func (v *OIDCGoogleVerifier) verifyIDToken(ctx context.Context, rawIDToken string) (*GoogleProfile, error) {
	var lastErr error
	for _, verifier := range v.verifiers {
		idToken, err := verifier.Verify(ctx, rawIDToken)
		if err != nil {
			lastErr = err
			continue
		}

		var claims struct {
			Email         string `json:"email"`
			EmailVerified bool   `json:"email_verified"`
			Name          string `json:"name"`
		}
		if err := idToken.Claims(&claims); err != nil {
			return nil, fmt.Errorf("google: decode id token: %w", err)
		}
		return &GoogleProfile{
			Subject:       idToken.Subject,
			Email:         claims.Email,
			EmailVerified: claims.EmailVerified,
			Name:          claims.Name,
		}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrGoogleTokenInvalid, lastErr)
}
