// Package errors writes the API's JSON error envelope and maps domain
// failures onto HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/middleware"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/models"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/services"
)

// Error code constants for standardized error responses
const (
	ErrNotFound           = "NOT_FOUND"
	ErrBadRequest         = "BAD_REQUEST"
	ErrUnauthorized       = "UNAUTHORIZED"
	ErrForbidden          = "FORBIDDEN"
	ErrConflict           = "CONFLICT"
	ErrTooManyRequests    = "QUOTA_EXCEEDED"
	ErrInternalServer     = "INTERNAL_SERVER_ERROR"
	ErrValidation         = "VALIDATION_ERROR"
	ErrServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrPayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	ErrDatabaseConnection = "DATABASE_CONNECTION_ERROR"
)

// ErrorResponse is the top-level error response structure.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

func respond(c *gin.Context, status int, code, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: middleware.GetRequestID(c),
		},
	})
}

func warn(c *gin.Context, msg string, fields map[string]interface{}) {
	log := middleware.GetLogger(c)
	if log == nil {
		return
	}
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["path"] = c.Request.URL.Path
	log.Warn(msg, fields)
}

// NotFound returns a 404 Not Found error response.
func NotFound(c *gin.Context, message string) {
	warn(c, "Resource not found", map[string]interface{}{"message": message})
	respond(c, http.StatusNotFound, ErrNotFound, message, nil)
}

// PayloadTooLarge returns a 413 response for a body over the size limit.
func PayloadTooLarge(c *gin.Context, limit int64) {
	warn(c, "Request body too large", map[string]interface{}{"limit_bytes": limit})
	respond(c, http.StatusRequestEntityTooLarge, ErrPayloadTooLarge, "Request body is too large",
		map[string]interface{}{"limit_bytes": limit})
}

// ReadFailed answers a request whose body could not be read or decoded:
// 413 when the body ran past the size limit, 400 with message otherwise.
func ReadFailed(c *gin.Context, err error, message string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		PayloadTooLarge(c, tooLarge.Limit)
		return
	}
	BadRequest(c, message, nil)
}

// BadRequest returns a 400 Bad Request error response with optional details.
func BadRequest(c *gin.Context, message string, details map[string]interface{}) {
	fields := map[string]interface{}{"message": message}
	if details != nil {
		fields["details"] = details
	}
	warn(c, "Bad request", fields)
	respond(c, http.StatusBadRequest, ErrBadRequest, message, details)
}

// Unauthorized returns a 401 response.
func Unauthorized(c *gin.Context, message string) {
	warn(c, "Unauthorized", map[string]interface{}{"message": message})
	respond(c, http.StatusUnauthorized, ErrUnauthorized, message, nil)
}

// Forbidden returns a 403 response.
func Forbidden(c *gin.Context, message string) {
	warn(c, "Forbidden", map[string]interface{}{"message": message})
	respond(c, http.StatusForbidden, ErrForbidden, message, nil)
}

// Conflict returns a 409 response.
func Conflict(c *gin.Context, message string) {
	warn(c, "Conflict", map[string]interface{}{"message": message})
	respond(c, http.StatusConflict, ErrConflict, message, nil)
}

// TooManyRequests returns a 429 response.
func TooManyRequests(c *gin.Context, message string) {
	warn(c, "Quota exceeded", map[string]interface{}{"message": message})
	respond(c, http.StatusTooManyRequests, ErrTooManyRequests, message, nil)
}

// ServiceUnavailable returns a 503 response and logs err.
func ServiceUnavailable(c *gin.Context, message string, err error) {
	if log := middleware.GetLogger(c); log != nil {
		log.Error("Backend unavailable", err, map[string]interface{}{
			"message": message,
			"path":    c.Request.URL.Path,
		})
	}
	respond(c, http.StatusServiceUnavailable, ErrServiceUnavailable, message, nil)
}

// InternalServerError returns a 500 response. err is logged, never sent.
func InternalServerError(c *gin.Context, message string, err error) {
	if log := middleware.GetLogger(c); log != nil {
		log.Error("Internal server error", err, map[string]interface{}{
			"message": message,
			"path":    c.Request.URL.Path,
			"method":  c.Request.Method,
		})
	}
	respond(c, http.StatusInternalServerError, ErrInternalServer, message, nil)
}

// ValidationError returns a 400 response listing the fields rejected by
// request binding.
func ValidationError(c *gin.Context, validationErrors validator.ValidationErrors) {
	details := make(map[string]interface{}, len(validationErrors))
	for _, err := range validationErrors {
		details[err.Field()] = formatValidationError(err)
	}
	invalid(c, details)
}

// InvalidFields returns a 400 response for a domain validation failure.
func InvalidFields(c *gin.Context, verr *models.ValidationError) {
	details := make(map[string]interface{}, len(verr.Fields))
	for field, reason := range verr.Fields {
		details[field] = reason
	}
	invalid(c, details)
}

func invalid(c *gin.Context, details map[string]interface{}) {
	warn(c, "Validation error", map[string]interface{}{"fields": details})
	respond(c, http.StatusBadRequest, ErrValidation, "Validation failed for one or more fields", details)
}

// FromError writes the response for an error returned by a service call.
// Validation failures list their fields, a missing listing is a 404 and
// everything else is classified by what the caller can do about it.
func FromError(c *gin.Context, op string, err error) {
	var verr *models.ValidationError
	var bindErrs validator.ValidationErrors
	switch {
	case errors.As(err, &verr):
		InvalidFields(c, verr)
		return
	case errors.As(err, &bindErrs):
		ValidationError(c, bindErrs)
		return
	case errors.Is(err, services.ErrPropertyNotFound):
		NotFound(c, "Property not found")
		return
	}

	failure := services.Classify(op, err)
	switch failure.Class {
	case services.ClassAuth:
		Forbidden(c, failure.UserMessage())
	case services.ClassQuota:
		TooManyRequests(c, failure.UserMessage())
	case services.ClassNetwork:
		ServiceUnavailable(c, failure.UserMessage(), failure)
	default:
		if log := middleware.GetLogger(c); log != nil {
			log.Error("Unclassified backend failure", failure, map[string]interface{}{
				"op":   op,
				"path": c.Request.URL.Path,
			})
		}
		respond(c, http.StatusInternalServerError, ErrInternalServer, failure.UserMessage(), map[string]interface{}{
			"cause": failure.Err.Error(),
		})
	}
}

var validationMessages = map[string]string{
	"required": "This field is required",
	"email":    "Must be a valid email address",
	"min":      "Value is too short or small (minimum: %s)",
	"max":      "Value is too long or large (maximum: %s)",
	"len":      "Must have length of %s",
	"gt":       "Must be greater than %s",
	"gte":      "Must be greater than or equal to %s",
	"lt":       "Must be less than %s",
	"lte":      "Must be less than or equal to %s",
	"oneof":    "Must be one of: %s",
	"url":      "Must be a valid URL",
	"uuid":     "Must be a valid UUID",
}

// formatValidationError converts a validator.FieldError to a human-readable message.
func formatValidationError(err validator.FieldError) string {
	format, ok := validationMessages[err.Tag()]
	if !ok {
		return "Validation failed for tag: " + err.Tag()
	}
	if strings.Contains(format, "%s") {
		return fmt.Sprintf(format, err.Param())
	}
	return format
}
