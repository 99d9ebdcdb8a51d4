package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is an error that knows how it should be rendered to API clients.
// Internal is logged but never serialised.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches AppErrors by code and status so copies made by WithInternal or the
// New* constructors still satisfy errors.Is against the sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code && e.StatusCode == t.StatusCode
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Internal = err
	return &cpy
}

// Sentinels shared across services and handlers.
var (
	ErrUnauthorized       = New("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", "Invalid credentials", http.StatusUnauthorized)
	ErrTokenExpired       = New("TOKEN_EXPIRED", "Token has expired", http.StatusUnauthorized)
	ErrTokenInvalid       = New("TOKEN_INVALID", "Invalid token", http.StatusUnauthorized)
	ErrSessionInvalid     = New("SESSION_INVALID", "Session not found or no longer valid", http.StatusUnauthorized)
	ErrInvalidOTP         = New("INVALID_OTP", "Invalid OTP", http.StatusBadRequest)
	ErrForbidden          = New("FORBIDDEN", "Permission denied", http.StatusForbidden)
	ErrNotFound           = New("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrConflict           = New("CONFLICT", "Resource already exists", http.StatusConflict)
	ErrBadRequest         = New("BAD_REQUEST", "Invalid request", http.StatusBadRequest)
	ErrRateLimit          = New("RATE_LIMIT_EXCEEDED", "Too many requests, please slow down", http.StatusTooManyRequests)
	ErrInternalServer     = New("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
)

// New builds an application error.
func New(code, message string, statusCode int) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusCode}
}

// FromError returns the AppError in err's chain, or ErrInternalServer wrapping err.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServer.WithInternal(err)
}

// NewBadRequest reports a malformed or invalid payload.
func NewBadRequest(message string) *AppError {
	return withMessage(ErrBadRequest, message)
}

// NewNotFound reports a missing resource.
func NewNotFound(message string) *AppError {
	return withMessage(ErrNotFound, message)
}

// NewConflict reports a uniqueness violation such as a duplicate registration.
func NewConflict(message string) *AppError {
	return withMessage(ErrConflict, message)
}

func withMessage(base *AppError, message string) *AppError {
	return New(base.Code, message, base.StatusCode)
}
