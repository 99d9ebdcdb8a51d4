package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appErrors "github.com/charlesng35/authhub/pkg/errors"
)

// DefaultTokenTTL defines the fallback validity period for bearer tokens.
const DefaultTokenTTL = 30 * 24 * time.Hour

// Token validation failures. Callers distinguish them with errors.Is.
var (
	ErrTokenInvalid   = appErrors.ErrTokenInvalid
	ErrTokenExpired   = appErrors.ErrTokenExpired
	ErrSessionInvalid = appErrors.ErrSessionInvalid
)

// JWTConfig bundles the configuration required to build a JWTService.
type JWTConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
	Clock  func() time.Time
}

// Claims represents the custom claims embedded in issued JWTs.
type Claims struct {
	UserID          string `json:"id"`
	Email           string `json:"email"`
	IsEmailVerified bool   `json:"isEmailVerified"`
	SessionID       string `json:"sessionId"`
	jwt.RegisteredClaims
}

// TokenInput holds the parameters used when generating a new token.
type TokenInput struct {
	UserID          string
	Email           string
	IsEmailVerified bool
	SessionID       string
}

// JWTService is responsible for issuing and validating JSON Web Tokens.
type JWTService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTService constructs a JWTService instance when provided with the required configuration.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt: secret must be provided")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &JWTService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    now,
	}, nil
}

// TTL reports how long issued tokens stay valid.
func (s *JWTService) TTL() time.Duration {
	return s.ttl
}

// Sign issues an HS256 token for input.
func (s *JWTService) Sign(input TokenInput) (string, error) {
	if input.UserID == "" {
		return "", errors.New("jwt: user id is required")
	}
	if input.SessionID == "" {
		return "", errors.New("jwt: session id is required")
	}

	now := s.now()
	claims := &Claims{
		UserID:          input.UserID,
		Email:           input.Email,
		IsEmailVerified: input.IsEmailVerified,
		SessionID:       input.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   input.UserID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature, expiry and issuer of tokenString. It returns
// ErrTokenExpired for an expired token and ErrTokenInvalid for everything else.
func (s *JWTService) Parse(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenInvalid
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired.WithInternal(err)
		}
		return nil, ErrTokenInvalid.WithInternal(err)
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, ErrTokenInvalid.WithInternal(errors.New("jwt: invalid issuer"))
	}
	if claims.UserID == "" || claims.SessionID == "" {
		return nil, ErrTokenInvalid.WithInternal(errors.New("jwt: missing id or sessionId claim"))
	}

	return &claims, nil
}
