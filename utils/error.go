package utils

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorKind classifies every failure the kiosk workflow can surface.
type ErrorKind string

const (
	KindNotFound           ErrorKind = "NotFound"
	KindExpired            ErrorKind = "Expired"
	KindInvalidInput       ErrorKind = "InvalidInput"
	KindNetworkError       ErrorKind = "NetworkError"
	KindServerRejected     ErrorKind = "ServerRejected"
	KindVerificationFailed ErrorKind = "VerificationFailed"
	KindGatewayFailure     ErrorKind = "GatewayFailure"
	KindCancelled          ErrorKind = "Cancelled"
)

// AppError carries a kind, an optional finer-grained code
// (e.g. "FileTooLarge") and a message fit for the user.
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewError builds an AppError whose code equals its kind.
func NewError(kind ErrorKind, message string, err error) *AppError {
	return &AppError{Kind: kind, Code: string(kind), Message: message, Err: err}
}

// NewCodedError builds an AppError with a specific code.
func NewCodedError(kind ErrorKind, code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message}
}

// KindOf returns the kind of the first AppError in err's chain.
// Errors outside the taxonomy are reported as ServerRejected.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindServerRejected
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// UserMessage returns the message meant for the notification area.
func UserMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}

// Severity is the notification severity for a failure of the given kind.
// A user backing out is a warning; everything else is an error.
func Severity(kind ErrorKind) string {
	if kind == KindCancelled {
		return "warning"
	}
	return "error"
}

// HTTPStatus maps a kind to the status used by the local kiosk API.
func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindExpired:
		return http.StatusGone
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNetworkError:
		return http.StatusBadGateway
	case KindVerificationFailed, KindGatewayFailure:
		return http.StatusPaymentRequired
	case KindCancelled:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

// ErrorResponse defines the structure of error responses
type ErrorResponse struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Code    string `json:"code,omitempty"`
}

// ErrorHandler is a middleware to catch panics and return structured errors
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				Logger := GetLogger()
				Logger.Error("Unhandled panic", zap.Any("error", err))

				c.JSON(http.StatusInternalServerError, ErrorResponse{
					Message: "Internal Server Error",
					Details: "An unexpected error occurred. Please try again later.",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// JSONError sends a standardized JSON error response
func JSONError(c *gin.Context, status int, message string, details string) {
	Logger := GetLogger()
	Logger.Warn(message, zap.String("details", details))
	c.JSON(status, ErrorResponse{Message: message, Details: details})
}

// JSONAppError sends err using the status derived from its kind.
func JSONAppError(c *gin.Context, err error) {
	kind := KindOf(err)
	GetLogger().Warn("request failed", zap.String("kind", string(kind)), zap.Error(err))
	c.JSON(HTTPStatus(kind), ErrorResponse{
		Message: UserMessage(err),
		Details: err.Error(),
		Kind:    string(kind),
		Code:    CodeOf(err),
	})
}
