package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"swiftpay/internal/repository"
	"swiftpay/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	var pushErr *service.STKPushError

	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidPhoneFormat),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrNotRetryable):
		return http.StatusBadRequest

	// Gateway outcomes: business rejection is the caller's problem,
	// transport failure is ours.
	case errors.As(err, &pushErr):
		if pushErr.Transport {
			return http.StatusInternalServerError
		}
		return http.StatusBadRequest

	// Configuration errors
	case errors.Is(err, service.ErrGatewayNotConfigured):
		return http.StatusInternalServerError

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
