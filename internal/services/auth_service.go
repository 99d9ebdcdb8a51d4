package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/charlesng35/authhub/internal/auth"
	"github.com/charlesng35/authhub/internal/models"
	"github.com/charlesng35/authhub/internal/otp"
	"github.com/charlesng35/authhub/pkg/crypto"
	apperrors "github.com/charlesng35/authhub/pkg/errors"
	"github.com/charlesng35/authhub/pkg/logger"
	"github.com/charlesng35/authhub/pkg/mail"
	"github.com/charlesng35/authhub/pkg/metrics"
)

var (
	// ErrInvalidOTPType is returned for an OTP resend with an unknown purpose.
	ErrInvalidOTPType = apperrors.New("INVALID_OTP_TYPE", "Invalid OTP type", http.StatusBadRequest)
	// ErrGoogleNoEmail is returned when the Google profile carries no address.
	ErrGoogleNoEmail = apperrors.New("GOOGLE_EMAIL_MISSING", "Google account has no email", http.StatusBadRequest)
	// ErrGoogleTokenRejected is returned when Google does not accept the token.
	ErrGoogleTokenRejected = apperrors.New("GOOGLE_TOKEN_INVALID", "Invalid Google token", http.StatusUnauthorized)
	// ErrGoogleDisabled is returned when no Google verifier is configured.
	ErrGoogleDisabled = apperrors.New("GOOGLE_DISABLED", "Google login is not enabled", http.StatusServiceUnavailable)
	// ErrEmailTaken is returned when a Google identity maps onto an account with another email.
	ErrEmailTaken = apperrors.New("EMAIL_EXISTS", "Email already exists", http.StatusUnauthorized)
)

// Credential is one of PasswordCredential or GoogleCredential.
type Credential interface {
	flow() string
}

// PasswordCredential authenticates with an email and password.
type PasswordCredential struct {
	Email    string
	Password string
}

func (PasswordCredential) flow() string { return "password" }

// GoogleCredential authenticates with a Google access token or ID token.
type GoogleCredential struct {
	AccessToken string
}

func (GoogleCredential) flow() string { return "google" }

// RegisterInput carries the fields of a new password account.
type RegisterInput struct {
	Fullname string
	Email    string
	Password string
}

// AuthResult is returned by flows that log the user in.
type AuthResult struct {
	Token   string
	User    *models.User
	Session *models.Session
}

// OTPEngine issues and consumes one-time codes.
type OTPEngine interface {
	Issue(ctx context.Context, email string, purpose otp.Purpose, templateName string) error
	Verify(ctx context.Context, email string, code string, purpose otp.Purpose) (bool, error)
}

// AuthService orchestrates registration, login and the OTP backed flows.
type AuthService struct {
	users  *UserService
	tokens *auth.TokenService
	otp    OTPEngine
	google auth.GoogleVerifier
	log    *zap.Logger
}

// NewAuthService wires the orchestrator. google may be nil to disable Google login.
func NewAuthService(users *UserService, tokens *auth.TokenService, otpEngine OTPEngine, google auth.GoogleVerifier) (*AuthService, error) {
	if users == nil {
		return nil, errors.New("auth service: user service is required")
	}
	if tokens == nil {
		return nil, errors.New("auth service: token service is required")
	}
	if otpEngine == nil {
		return nil, errors.New("auth service: otp engine is required")
	}
	return &AuthService{
		users:  users,
		tokens: tokens,
		otp:    otpEngine,
		google: google,
		log:    logger.WithModule("auth"),
	}, nil
}

// Register creates a password account and sends the email verification code.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.users.Create(ctx, CreateUserInput{
		Fullname: input.Fullname,
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		return nil, err
	}

	// The account exists at this point; a failed issue is recoverable through resend.
	if err := s.otp.Issue(ctx, user.Email, otp.PurposeEmailVerification, mail.TemplateVerifyEmail); err != nil {
		s.log.Error("issue verification otp", zap.String("user_id", user.ID), zap.Error(err))
	}
	return user, nil
}

// Authenticate logs in with either credential kind and opens a new session.
func (s *AuthService) Authenticate(ctx context.Context, cred Credential, meta auth.SessionMeta) (*AuthResult, error) {
	ctx = ensureContext(ctx)
	if cred == nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	var (
		user *models.User
		err  error
	)
	switch c := cred.(type) {
	case PasswordCredential:
		user, err = s.passwordUser(ctx, c)
	case *PasswordCredential:
		user, err = s.passwordUser(ctx, *c)
	case GoogleCredential:
		user, err = s.googleUser(ctx, c)
	case *GoogleCredential:
		user, err = s.googleUser(ctx, *c)
	default:
		err = fmt.Errorf("auth service: unsupported credential %T", cred)
	}
	if err != nil {
		metrics.AuthAttempts.WithLabelValues(cred.flow(), "failure").Inc()
		return nil, err
	}

	result, err := s.issue(ctx, user, meta)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues(cred.flow(), "failure").Inc()
		return nil, err
	}
	metrics.AuthAttempts.WithLabelValues(cred.flow(), "success").Inc()
	return result, nil
}

// Logout invalidates the session behind the token.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.tokens.Revoke(ensureContext(ctx), sessionID)
}

// VerifyEmail consumes the verification code, flags the account and logs the user in.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string, meta auth.SessionMeta) (*AuthResult, error) {
	ctx = ensureContext(ctx)

	ok, err := s.otp.Verify(ctx, email, code, otp.PurposeEmailVerification)
	if err != nil {
		return nil, fmt.Errorf("auth service: verify otp: %w", err)
	}
	if !ok {
		metrics.AuthAttempts.WithLabelValues("verify_email", "failure").Inc()
		return nil, apperrors.ErrInvalidOTP
	}

	user, err := s.users.MarkEmailVerified(ctx, email)
	if err != nil {
		return nil, err
	}

	result, err := s.issue(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	metrics.AuthAttempts.WithLabelValues("verify_email", "success").Inc()
	return result, nil
}

// ResendOTP reissues a code for the given purpose string.
func (s *AuthService) ResendOTP(ctx context.Context, email, purpose string) error {
	ctx = ensureContext(ctx)

	p, ok := otp.ParsePurpose(purpose)
	if !ok {
		return ErrInvalidOTPType
	}

	if p == otp.PurposeForgotPassword {
		return s.ForgotPassword(ctx, email)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := s.otp.Issue(ctx, user.Email, otp.PurposeEmailVerification, mail.TemplateVerifyEmail); err != nil {
		return fmt.Errorf("auth service: issue otp: %w", err)
	}
	return nil
}

// ForgotPassword sends a reset code when the account exists. Unknown emails are ignored.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	ctx = ensureContext(ctx)

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.otp.Issue(ctx, user.Email, otp.PurposeForgotPassword, mail.TemplateResetPassword); err != nil {
		return fmt.Errorf("auth service: issue otp: %w", err)
	}
	return nil
}

// ResetPassword consumes the reset code and stores the new password. Sessions are left alone.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, password string) error {
	ctx = ensureContext(ctx)

	// reject before Verify consumes the code
	if len(password) > crypto.MaxPasswordBytes {
		return errPasswordTooLong
	}

	ok, err := s.otp.Verify(ctx, email, code, otp.PurposeForgotPassword)
	if err != nil {
		return fmt.Errorf("auth service: verify otp: %w", err)
	}
	if !ok {
		return apperrors.ErrInvalidOTP
	}
	return s.users.UpdatePassword(ctx, email, password)
}

func (s *AuthService) passwordUser(ctx context.Context, cred PasswordCredential) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, cred.Email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !crypto.VerifyPassword(user.Password, cred.Password) {
		return nil, apperrors.ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) googleUser(ctx context.Context, cred GoogleCredential) (*models.User, error) {
	if s.google == nil {
		return nil, ErrGoogleDisabled
	}
	token := strings.TrimSpace(cred.AccessToken)
	if token == "" {
		return nil, ErrGoogleTokenRejected
	}

	profile, err := s.google.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrGoogleTokenInvalid) {
			return nil, ErrGoogleTokenRejected.WithInternal(err)
		}
		return nil, fmt.Errorf("auth service: verify google token: %w", err)
	}
	if profile == nil || strings.TrimSpace(profile.Email) == "" {
		return nil, ErrGoogleNoEmail
	}

	user, err := s.users.FindByGoogleIDOrEmail(ctx, profile.Subject, profile.Email)
	if errors.Is(err, ErrUserNotFound) {
		return s.createGoogleUser(ctx, profile)
	}
	if err != nil {
		return nil, err
	}

	if models.NormalizeEmail(user.Email) != models.NormalizeEmail(profile.Email) {
		return nil, ErrEmailTaken
	}
	if user.HasGoogleID() {
		if *user.GoogleID != profile.Subject {
			return nil, ErrEmailTaken
		}
		return user, nil
	}

	if err := s.users.LinkGoogleID(ctx, user.ID, profile.Subject); err != nil {
		return nil, err
	}
	subject := profile.Subject
	user.GoogleID = &subject
	s.log.Info("linked google account", zap.String("user_id", user.ID))
	return user, nil
}

func (s *AuthService) createGoogleUser(ctx context.Context, profile *auth.GoogleProfile) (*models.User, error) {
	fullname := strings.TrimSpace(profile.Name)
	if fullname == "" {
		fullname = profile.Email
	}
	return s.users.Create(ctx, CreateUserInput{
		Fullname:        fullname,
		Email:           profile.Email,
		GoogleID:        profile.Subject,
		IsEmailVerified: profile.EmailVerified,
	})
}

func (s *AuthService) issue(ctx context.Context, user *models.User, meta auth.SessionMeta) (*AuthResult, error) {
	token, session, err := s.tokens.Issue(ctx, user, meta)
	if err != nil {
		return nil, fmt.Errorf("auth service: issue token: %w", err)
	}
	return &AuthResult{Token: token, User: user, Session: session}, nil
}
