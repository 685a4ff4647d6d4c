package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dtroode/identity-server/internal/model"
	"github.com/dtroode/identity-server/internal/validation"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Status     int                    `json:"status"`
	Error      string                 `json:"error"`
	Message    string                 `json:"message"`
	Timestamp  time.Time              `json:"timestamp"`
	Violations []validation.Violation `json:"violations,omitempty"`
}

// Classify maps a service error to an HTTP status, an error kind and a
// client-safe message.
func Classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, model.ErrAuthenticationFailed):
		return http.StatusUnauthorized, "AUTHENTICATION_FAILED", "Invalid credentials"
	case errors.Is(err, model.ErrInvalidToken):
		return http.StatusUnauthorized, "INVALID_JWT", "Invalid or expired token"
	case errors.Is(err, model.ErrInvalidRefreshToken):
		return http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Invalid or expired refresh token"
	case errors.Is(err, model.ErrValidationFailed):
		return http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed"
	case errors.Is(err, model.ErrUserAlreadyExists):
		return http.StatusConflict, "USER_ALREADY_EXISTS", "User already exists"
	case errors.Is(err, model.ErrTooManyAttempts):
		return http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS", "Too many failed login attempts"
	case errors.Is(err, model.ErrTransient):
		return http.StatusServiceUnavailable, "TRANSIENT", "Service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "INTERNAL", "Internal server error"
	}
}

// WriteError writes the structured error body for err and aborts the chain.
func WriteError(c *gin.Context, err error) {
	status, kind, message := Classify(err)

	body := ErrorResponse{
		Status:    status,
		Error:     kind,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}

	var violations validation.Errors
	if errors.As(err, &violations) {
		body.Violations = violations
	}

	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}

	c.AbortWithStatusJSON(status, body)
}

// NotFound answers unknown routes.
func NotFound(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{
		Status:    http.StatusNotFound,
		Error:     "NOT_FOUND",
		Message:   "Route not found",
		Timestamp: time.Now().UTC(),
	})
}
