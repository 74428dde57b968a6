// Package httpkit provides HTTP response utilities.
// This is part of the platform layer and contains no business logic.
package httpkit

import (
	"errors"
	"net/http"

	"fleetcrm_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

// OK sends a 200 OK response with the given payload.
func OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}

// Error sends an error response with the given status code and message.
func Error(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

// HandleError maps domain errors to HTTP responses.
// Typed *apperr.Error values use their Kind to pick a status code and expose
// their stable Code to clients; anything else is treated as an unexpected
// internal failure and its details are not leaked.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	var domainErr *apperr.Error
	if errors.As(err, &domainErr) {
		c.JSON(domainErr.HTTPStatus(), ErrorResponse{
			Error: domainErr.Message,
			Code:  domainErr.Code,
		})
		return true
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	return true
}
