package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/artifact"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/services"
)

// ErrorResponse defines the structure of an error response.
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Error represents an API error.
type Error struct {
	Message    string
	StatusCode int
	Code       string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Common API errors.
var (
	ErrInvalidRequest = &Error{Message: "Invalid request", StatusCode: http.StatusBadRequest, Code: "INVALID_REQUEST"}
	ErrNotFound       = &Error{Message: "Resource not found", StatusCode: http.StatusNotFound, Code: "NOT_FOUND"}
	ErrInternalServer = &Error{Message: "Internal server error", StatusCode: http.StatusInternalServerError, Code: "INTERNAL_ERROR"}
	ErrUnauthorized   = &Error{Message: "Unauthorized", StatusCode: http.StatusUnauthorized, Code: "UNAUTHORIZED"}
	ErrForbidden      = &Error{Message: "Forbidden", StatusCode: http.StatusForbidden, Code: "FORBIDDEN"}
)

// NewValidationError creates a validation error with a custom message.
func NewValidationError(message string) *Error {
	return &Error{
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Code:       "VALIDATION_ERROR",
	}
}

// RespondError maps an error onto the HTTP response. Service-level sentinel
// and validation errors get their proper status; anything else logs and maps
// to a 500 without leaking internals.
func RespondError(c *gin.Context, err error) {
	var apiError *Error
	if errors.As(err, &apiError) {
		c.JSON(apiError.StatusCode, ErrorResponse{Message: apiError.Message, Code: apiError.Code})
		return
	}

	var validationError *services.ValidationError
	if errors.As(err, &validationError) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: validationError.Error(), Code: "VALIDATION_ERROR"})
		return
	}

	switch {
	case errors.Is(err, services.ErrInvoiceNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Invoice not found", Code: "NOT_FOUND"})
	case errors.Is(err, artifact.ErrArtifactNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Artifact not found", Code: "NOT_FOUND"})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Unhandled error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal server error", Code: "INTERNAL_ERROR"})
	}
}
