package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func newTestJWTService(t *testing.T, now *time.Time) *JWTService {
	t.Helper()
	svc, err := NewJWTService(JWTConfig{
		Secret: "super-secret",
		Issuer: "authhub",
		Clock:  func() time.Time { return *now },
	})
	require.NoError(t, err)
	return svc
}

func TestNewJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.EqualError(t, err, "jwt: secret must be provided")
}

func TestNewJWTServiceDefaultsTTL(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "s"})
	require.NoError(t, err)
	require.Equal(t, DefaultTokenTTL, svc.TTL())
}

func TestSignAndParse(t *testing.T) {
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestJWTService(t, &current)

	token, err := svc.Sign(TokenInput{
		UserID:          "user-123",
		Email:           "user@example.com",
		IsEmailVerified: true,
		SessionID:       "session-456",
	})
	require.NoError(t, err)

	claims, err := svc.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "user-123", claims.UserID)
	require.Equal(t, "user@example.com", claims.Email)
	require.True(t, claims.IsEmailVerified)
	require.Equal(t, "session-456", claims.SessionID)
	require.Equal(t, "authhub", claims.Issuer)
	require.True(t, claims.ExpiresAt.Time.Equal(current.Add(30*24*time.Hour)))
}

func TestSignUsesWireClaimNames(t *testing.T) {
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestJWTService(t, &current)

	token, err := svc.Sign(TokenInput{UserID: "u", Email: "e@example.com", SessionID: "s"})
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(payload, &raw))
	require.Equal(t, "u", raw["id"])
	require.Equal(t, "e@example.com", raw["email"])
	require.Equal(t, false, raw["isEmailVerified"])
	require.Equal(t, "s", raw["sessionId"])
}

func TestSignRequiresIDs(t *testing.T) {
	current := time.Now()
	svc := newTestJWTService(t, &current)

	_, err := svc.Sign(TokenInput{SessionID: "s"})
	require.Error(t, err)
	_, err = svc.Sign(TokenInput{UserID: "u"})
	require.Error(t, err)
}

func TestParseExpiredToken(t *testing.T) {
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestJWTService(t, &current)

	token, err := svc.Sign(TokenInput{UserID: "u", SessionID: "s"})
	require.NoError(t, err)

	current = current.Add(31 * 24 * time.Hour)
	_, err = svc.Parse(token)
	require.ErrorIs(t, err, ErrTokenExpired)
	require.NotErrorIs(t, err, ErrTokenInvalid)
}

func TestParseRejectsTamperedAndForeignTokens(t *testing.T) {
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestJWTService(t, &current)

	token, err := svc.Sign(TokenInput{UserID: "u", SessionID: "s"})
	require.NoError(t, err)

	_, err = svc.Parse(token + "x")
	require.ErrorIs(t, err, ErrTokenInvalid)

	_, err = svc.Parse("")
	require.ErrorIs(t, err, ErrTokenInvalid)

	other, err := NewJWTService(JWTConfig{Secret: "other", Issuer: "authhub", Clock: func() time.Time { return current }})
	require.NoError(t, err)
	foreign, err := other.Sign(TokenInput{UserID: "u", SessionID: "s"})
	require.NoError(t, err)
	_, err = svc.Parse(foreign)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParseRejectsWrongIssuerAndMissingClaims(t *testing.T) {
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestJWTService(t, &current)

	sign := func(claims jwt.Claims) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("super-secret"))
		require.NoError(t, err)
		return token
	}
	registered := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(current.Add(time.Hour))}

	wrongIssuer := registered
	wrongIssuer.Issuer = "someone-else"
	_, err := svc.Parse(sign(&Claims{UserID: "u", SessionID: "s", RegisteredClaims: wrongIssuer}))
	require.ErrorIs(t, err, ErrTokenInvalid)

	rightIssuer := registered
	rightIssuer.Issuer = "authhub"
	_, err = svc.Parse(sign(&Claims{UserID: "u", RegisteredClaims: rightIssuer}))
	require.ErrorIs(t, err, ErrTokenInvalid)

	_, err = svc.Parse(sign(&Claims{UserID: "u", SessionID: "s", RegisteredClaims: jwt.RegisteredClaims{Issuer: "authhub"}}))
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParseRejectsUnexpectedAlgorithm(t *testing.T) {
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestJWTService(t, &current)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, &Claims{
		UserID:    "u",
		SessionID: "s",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "authhub",
			ExpiresAt: jwt.NewNumericDate(current.Add(time.Hour)),
		},
	}).SignedString([]byte("super-secret"))
	require.NoError(t, err)

	_, err = svc.Parse(token)
	require.ErrorIs(t, err, ErrTokenInvalid)
}
