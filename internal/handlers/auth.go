package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authhub/internal/otp"
	"github.com/charlesng35/authhub/internal/services"
	appErrors "github.com/charlesng35/authhub/pkg/errors"
	"github.com/charlesng35/authhub/pkg/response"
)

// ClientTypeHeader marks browser clients that want the token cookie after Google login.
const ClientTypeHeader = "X-Client-Type"

// AuthHandler exposes registration, login and OTP flows.
type AuthHandler struct {
	auth    *services.AuthService
	cookies CookieConfig
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(svc *services.AuthService, cookies CookieConfig) (*AuthHandler, error) {
	if svc == nil {
		return nil, errors.New("auth handler: auth service is required")
	}
	return &AuthHandler{auth: svc, cookies: cookies}, nil
}

type registerRequest struct {
	Fullname string `json:"fullname" validate:"required,notblank"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type googleLoginRequest struct {
	AccessToken string `json:"access_token" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyEmailRequest struct {
	Email string   `json:"email" validate:"required,email"`
	OTP   otp.Code `json:"otp" validate:"required"`
}

type resetPasswordRequest struct {
	Email    string   `json:"email" validate:"required,email"`
	OTP      otp.Code `json:"otp" validate:"required"`
	Password string   `json:"password" validate:"required,min=6,max=72"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.auth.Register(requestContext(c), services.RegisterInput{
		Fullname: req.Fullname,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, "User registered successfully", gin.H{"user": user})
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.auth.Authenticate(requestContext(c), services.PasswordCredential{
		Email:    req.Email,
		Password: req.Password,
	}, sessionMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	setTokenCookie(c, h.cookies, result.Token)
	response.Success(c, http.StatusOK, "Login successfully", tokenResponse{Token: result.Token})
}

// POST /api/v1/auth/google
func (h *AuthHandler) Google(c *gin.Context) {
	var req googleLoginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.auth.Authenticate(requestContext(c), services.GoogleCredential{
		AccessToken: req.AccessToken,
	}, sessionMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	if strings.EqualFold(strings.TrimSpace(c.GetHeader(ClientTypeHeader)), "web") {
		setTokenCookie(c, h.cookies, result.Token)
	}
	response.Success(c, http.StatusOK, "Login successfully", tokenResponse{Token: result.Token})
}

// PUT /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}

	if err := h.auth.Logout(requestContext(c), identity.SessionID); err != nil {
		response.Error(c, err)
		return
	}

	clearTokenCookie(c, h.cookies)
	response.Success(c, http.StatusOK, "Logout successfully", nil)
}

// POST /api/v1/auth/verify-email
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.auth.VerifyEmail(requestContext(c), req.Email, req.OTP.String(), sessionMeta(c))
	if err != nil {
		if errors.Is(err, appErrors.ErrInvalidOTP) {
			response.Failure(c, appErrors.ErrInvalidOTP, gin.H{"isValid": false})
			return
		}
		response.Error(c, err)
		return
	}

	setTokenCookie(c, h.cookies, result.Token)
	response.Success(c, http.StatusOK, "Email verification successfully", tokenResponse{Token: result.Token})
}

// POST /api/v1/auth/resend-email-verification?type=<purpose>
func (h *AuthHandler) ResendOTP(c *gin.Context) {
	purpose := c.Query("type")
	if _, ok := otp.ParsePurpose(purpose); !ok {
		response.Error(c, services.ErrInvalidOTPType)
		return
	}

	var req emailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.auth.ResendOTP(requestContext(c), req.Email, purpose); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, "OTP sent to your email", gin.H{})
}

// POST /api/v1/auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.auth.ForgotPassword(requestContext(c), req.Email); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, "OTP sent to your email", gin.H{})
}

// POST /api/v1/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.auth.ResetPassword(requestContext(c), req.Email, req.OTP.String(), req.Password)
	if err != nil {
		if errors.Is(err, appErrors.ErrInvalidOTP) {
			response.Failure(c, appErrors.ErrInvalidOTP, gin.H{"isValid": false})
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, "Password updated successfully", nil)
}
