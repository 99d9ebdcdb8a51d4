package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/charlesng35/authhub/pkg/errors"
	"github.com/charlesng35/authhub/pkg/logger"
)

// Response defines the base API payload.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo holds error details to send to clients.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success writes a JSON success response.
func Success(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Failure writes an unsuccessful envelope that still carries data, e.g. {isValid:false}.
func Failure(c *gin.Context, err *appErrors.AppError, data interface{}) {
	if err == nil {
		err = appErrors.ErrBadRequest
	}
	c.JSON(statusOf(err), Response{
		Success: false,
		Message: err.Message,
		Data:    data,
		Error: &ErrorInfo{
			Code:    err.Code,
			Message: err.Message,
		},
	})
}

// Error writes a JSON error response derived from an AppError. Errors that are not
// AppErrors are logged and rendered as a generic internal error.
func Error(c *gin.Context, err error) {
	if err == nil {
		err = appErrors.ErrInternalServer
	}

	appErr := appErrors.FromError(err)
	status := statusOf(appErr)
	if status >= http.StatusInternalServerError {
		logger.WithModule("http").Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	c.JSON(status, Response{
		Success: false,
		Message: appErr.Message,
		Error: &ErrorInfo{
			Code:    appErr.Code,
			Message: appErr.Message,
		},
	})
}

func statusOf(err *appErrors.AppError) int {
	if err.StatusCode == 0 {
		return http.StatusInternalServerError
	}
	return err.StatusCode
}
