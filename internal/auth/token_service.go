package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/charlesng35/authhub/internal/models"
	appErrors "github.com/charlesng35/authhub/pkg/errors"
)

// DefaultLookupTimeout bounds the session lookup performed while validating a token.
const DefaultLookupTimeout = 3 * time.Second

// TokenConfig configures the TokenService.
type TokenConfig struct {
	LookupTimeout time.Duration
}

// SessionRegistry is the subset of SessionService used by token issuance and validation.
type SessionRegistry interface {
	Create(ctx context.Context, userID string, meta SessionMeta) (*models.Session, error)
	Invalidate(ctx context.Context, sessionID string) error
	IsLive(ctx context.Context, sessionID, userID string) (bool, error)
}

// Identity is the authenticated principal extracted from a valid token.
type Identity struct {
	UserID          string
	SessionID       string
	Email           string
	IsEmailVerified bool
}

// TokenService binds bearer tokens to sessions.
type TokenService struct {
	jwt      *JWTService
	sessions SessionRegistry
	timeout  time.Duration
}

// NewTokenService constructs a TokenService.
func NewTokenService(jwtSvc *JWTService, sessions SessionRegistry, cfg TokenConfig) (*TokenService, error) {
	if jwtSvc == nil {
		return nil, errors.New("token service: jwt service is required")
	}
	if sessions == nil {
		return nil, errors.New("token service: session registry is required")
	}

	timeout := cfg.LookupTimeout
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &TokenService{jwt: jwtSvc, sessions: sessions, timeout: timeout}, nil
}

// TTL reports how long issued tokens stay valid.
func (s *TokenService) TTL() time.Duration {
	return s.jwt.TTL()
}

// Issue creates a session for user and signs a token bound to it.
func (s *TokenService) Issue(ctx context.Context, user *models.User, meta SessionMeta) (string, *models.Session, error) {
	if user == nil || user.ID == "" {
		return "", nil, errors.New("token service: user is required")
	}

	session, err := s.sessions.Create(ctx, user.ID, meta)
	if err != nil {
		return "", nil, err
	}

	token, err := s.jwt.Sign(TokenInput{
		UserID:          user.ID,
		Email:           user.Email,
		IsEmailVerified: user.IsEmailVerified,
		SessionID:       session.ID,
	})
	if err != nil {
		// the session was never handed out, so it must not stay live
		if revokeErr := s.sessions.Invalidate(ctx, session.ID); revokeErr != nil {
			err = multierr.Append(err, fmt.Errorf("token service: revoke unsigned session: %w", revokeErr))
		}
		return "", nil, err
	}
	return token, session, nil
}

// Validate checks the token locally and then confirms its session is still live.
// It returns ErrTokenInvalid, ErrTokenExpired or ErrSessionInvalid on rejection.
func (s *TokenService) Validate(ctx context.Context, token string) (*Identity, error) {
	claims, err := s.jwt.Parse(token)
	if err != nil {
		return nil, err
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	live, err := s.sessions.IsLive(lookupCtx, claims.SessionID, claims.UserID)
	if err != nil {
		return nil, appErrors.ErrInternalServer.WithInternal(fmt.Errorf("token service: session lookup: %w", err))
	}
	if !live {
		return nil, ErrSessionInvalid
	}

	return &Identity{
		UserID:          claims.UserID,
		SessionID:       claims.SessionID,
		Email:           claims.Email,
		IsEmailVerified: claims.IsEmailVerified,
	}, nil
}

// Revoke invalidates the session behind a token.
func (s *TokenService) Revoke(ctx context.Context, sessionID string) error {
	return s.sessions.Invalidate(ctx, sessionID)
}
