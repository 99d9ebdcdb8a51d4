package handlers_test

import (
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	iauth "github.com/charlesng35/authhub/internal/auth"
	"github.com/charlesng35/authhub/internal/handlers/testutil"
	"github.com/charlesng35/authhub/pkg/mail"
)

func TestAuthHandler_Register(t *testing.T) {
	env := testutil.NewEnv(t)

	user := env.Register("Ada Lovelace", "ada@example.com", "Secret123!")
	require.NotEmpty(t, user.ID)
	require.Equal(t, "ada@example.com", user.Email)
	require.False(t, user.IsEmailVerified)

	delivery := env.LastOTP("ada@example.com")
	require.Equal(t, mail.TemplateVerifyEmail, delivery.Template.Name)
	require.Len(t, delivery.OTP, 6)

	w := env.Request(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"fullname": "Ada Again",
		"email":    "ADA@example.com",
		"password": "Secret123!",
	}, "")
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	require.Equal(t, "User already exists", testutil.DecodeResponse(t, w).Message)
}

func TestAuthHandler_RegisterValidation(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"fullname": "Bad Email",
		"email":    "not-an-email",
		"password": "Secret123!",
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := testutil.DecodeResponse(t, w)
	require.False(t, resp.Success)
	require.Contains(t, resp.Message, "email must be a valid email address")
	require.Zero(t, env.Deliveries())
}

func TestAuthHandler_RejectsPasswordOverBcryptLimit(t *testing.T) {
	env := testutil.NewEnv(t)
	long := strings.Repeat("a", 80)

	w := env.Request(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"fullname": "Long Password",
		"email":    "long@example.com",
		"password": long,
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	require.Contains(t, testutil.DecodeResponse(t, w).Message, "password must be at most 72 characters")
	require.Zero(t, env.Deliveries())

	env.Register("Long Password", "long@example.com", testutil.DefaultPassword)
	w = env.Request(http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{
		"email": "long@example.com",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	code := env.LastOTP("long@example.com").OTP

	w = env.Request(http.MethodPost, "/api/v1/auth/reset-password", map[string]string{
		"email":    "long@example.com",
		"otp":      code,
		"password": long,
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = env.Request(http.MethodPost, "/api/v1/auth/reset-password", map[string]string{
		"email":    "long@example.com",
		"otp":      code,
		"password": "NewSecret456!",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestAuthHandler_LoginSetsCookie(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Register("Grace Hopper", "grace@example.com", testutil.DefaultPassword)

	w := env.Request(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "grace@example.com",
		"password": "wrong-password",
	}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.Request(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "grace@example.com",
		"password": testutil.DefaultPassword,
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, "Login successfully", resp.Message)
	var data testutil.TokenPayload
	testutil.DecodeInto(t, resp.Data, &data)
	require.NotEmpty(t, data.Token)

	cookie := testutil.TokenCookie(w)
	require.NotNil(t, cookie)
	require.Equal(t, data.Token, cookie.Value)
	require.True(t, cookie.HttpOnly)
	require.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	require.False(t, cookie.Secure)
}

func TestAuthHandler_LogoutInvalidatesSession(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.RegisterAndLogin("logout@example.com")

	w := env.Request(http.MethodGet, "/api/v1/user", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.Request(http.MethodPut, "/api/v1/auth/logout", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "Logout successfully", testutil.DecodeResponse(t, w).Message)
	cookie := testutil.TokenCookie(w)
	require.NotNil(t, cookie)
	require.Empty(t, cookie.Value)
	require.Less(t, cookie.MaxAge, 0)

	w = env.Request(http.MethodGet, "/api/v1/user", nil, token)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	_, err := env.Tokens.Validate(t.Context(), token)
	require.ErrorIs(t, err, iauth.ErrSessionInvalid)
}

func TestAuthHandler_LogoutRequiresToken(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPut, "/api/v1/auth/logout", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
}

func TestAuthHandler_VerifyEmail(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Register("Verify Me", "verify@example.com", testutil.DefaultPassword)
	code := env.LastOTP("verify@example.com").OTP

	wrong := "123456"
	if code == wrong {
		wrong = "654321"
	}
	wrongNumber, err := strconv.Atoi(wrong)
	require.NoError(t, err)

	w := env.Request(http.MethodPost, "/api/v1/auth/verify-email", map[string]any{
		"email": "verify@example.com",
		"otp":   wrongNumber,
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, "Invalid OTP", resp.Message)
	var invalid struct {
		IsValid *bool `json:"isValid"`
	}
	testutil.DecodeInto(t, resp.Data, &invalid)
	require.NotNil(t, invalid.IsValid)
	require.False(t, *invalid.IsValid)

	correct, err := strconv.Atoi(code)
	require.NoError(t, err)
	w = env.Request(http.MethodPost, "/api/v1/auth/verify-email", map[string]any{
		"email": "verify@example.com",
		"otp":   correct,
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp = testutil.DecodeResponse(t, w)
	require.Equal(t, "Email verification successfully", resp.Message)
	var data testutil.TokenPayload
	testutil.DecodeInto(t, resp.Data, &data)

	identity, err := env.Tokens.Validate(t.Context(), data.Token)
	require.NoError(t, err)
	require.True(t, identity.IsEmailVerified)

	// The code is single use.
	w = env.Request(http.MethodPost, "/api/v1/auth/verify-email", map[string]any{
		"email": "verify@example.com",
		"otp":   code,
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_ResendOTP(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Register("Resend", "resend@example.com", testutil.DefaultPassword)
	require.Equal(t, 1, env.Deliveries())

	w := env.Request(http.MethodPost, "/api/v1/auth/resend-email-verification?type=bogus", map[string]string{
		"email": "resend@example.com",
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Invalid OTP type", testutil.DecodeResponse(t, w).Message)

	w = env.Request(http.MethodPost, "/api/v1/auth/resend-email-verification?type=email-verification", map[string]string{
		"email": "resend@example.com",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "OTP sent to your email", testutil.DecodeResponse(t, w).Message)
	require.Equal(t, 2, env.Deliveries())

	w = env.Request(http.MethodPost, "/api/v1/auth/resend-email-verification?type=forgot-password", map[string]string{
		"email": "resend@example.com",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, mail.TemplateResetPassword, env.LastOTP("resend@example.com").Template.Name)
}

func TestAuthHandler_ForgotAndResetPassword(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Register("Forgetful", "forgot@example.com", testutil.DefaultPassword)

	w := env.Request(http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{
		"email": "nobody@example.com",
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, env.Deliveries())

	w = env.Request(http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{
		"email": "forgot@example.com",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "OTP sent to your email", testutil.DecodeResponse(t, w).Message)
	code := env.LastOTP("forgot@example.com").OTP

	w = env.Request(http.MethodPost, "/api/v1/auth/reset-password", map[string]string{
		"email":    "forgot@example.com",
		"otp":      "000000",
		"password": "NewSecret456!",
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Invalid OTP", testutil.DecodeResponse(t, w).Message)

	w = env.Request(http.MethodPost, "/api/v1/auth/reset-password", map[string]string{
		"email":    "forgot@example.com",
		"otp":      code,
		"password": "NewSecret456!",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "Password updated successfully", testutil.DecodeResponse(t, w).Message)

	w = env.Request(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "forgot@example.com",
		"password": testutil.DefaultPassword,
	}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotEmpty(t, env.Login("forgot@example.com", "NewSecret456!"))
}

func TestAuthHandler_GoogleLogin(t *testing.T) {
	env := testutil.NewEnv(t)
	existing := env.Register("Linked", "linked@example.com", testutil.DefaultPassword)
	env.Google.Profile = &iauth.GoogleProfile{
		Subject:       "google-sub-1",
		Email:         "linked@example.com",
		EmailVerified: true,
		Name:          "Linked",
	}

	w := env.Request(http.MethodPost, "/api/v1/auth/google", map[string]string{
		"access_token": "ya29.token",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "Login successfully", testutil.DecodeResponse(t, w).Message)
	require.Nil(t, testutil.TokenCookie(w))

	user, err := env.Users.GetByID(t.Context(), existing.ID)
	require.NoError(t, err)
	require.NotNil(t, user.GoogleID)
	require.Equal(t, "google-sub-1", *user.GoogleID)

	body := `{"access_token":"ya29.token"}`
	req, err := http.NewRequest(http.MethodPost, "/api/v1/auth/google", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-Type", "web")
	w = env.Do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, testutil.TokenCookie(w))
}

func TestAuthHandler_GoogleLoginRejected(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Google.Err = iauth.ErrGoogleTokenInvalid

	w := env.Request(http.MethodPost, "/api/v1/auth/google", map[string]string{
		"access_token": "bad",
	}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.Request(http.MethodPost, "/api/v1/auth/google", map[string]string{}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_RateLimit(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithRateLimit(2, time.Minute))

	body := map[string]string{"email": "limit@example.com", "password": "whatever"}
	require.Equal(t, http.StatusUnauthorized, env.Request(http.MethodPost, "/api/v1/auth/login", body, "").Code)
	require.Equal(t, http.StatusUnauthorized, env.Request(http.MethodPost, "/api/v1/auth/login", body, "").Code)
	require.Equal(t, http.StatusTooManyRequests, env.Request(http.MethodPost, "/api/v1/auth/login", body, "").Code)
}
