// Package apierr standardizes the error envelope returned by the HTTP
// surface. User-visible failures (quota exhausted, invalid input, agent
// refusals) are reported with success=false in a 200 body so clients can
// render them inline; infrastructure failures map to real HTTP status codes.
package apierr

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIError is a standardized error with explicit HTTP mapping.
type APIError struct {
	HTTPStatus int    `json:"-"`
	Code       string `json:"code"`
	Type       string `json:"type"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string { return e.Message }

// New builds an APIError.
func New(status int, code, typ, message string) *APIError {
	return &APIError{HTTPStatus: status, Code: code, Type: typ, Message: message}
}

// Respond writes the error as a JSON envelope and aborts the request.
func Respond(c *gin.Context, err *APIError) {
	c.AbortWithStatusJSON(err.HTTPStatus, gin.H{
		"success": false,
		"error": gin.H{
			"message": err.Message,
			"type":    err.Type,
			"code":    err.Code,
		},
	})
}

// RespondSoft reports a user-visible failure with a 200 status so client
// UIs display the message instead of treating it as a transport error.
func RespondSoft(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"success": false, "error": message})
}

// Unauthorized is the common 401 envelope.
func Unauthorized(c *gin.Context, message string) {
	Respond(c, New(http.StatusUnauthorized, "unauthorized", "invalid_request_error", message))
}

// Internal is the common 500 envelope. The detailed cause belongs in logs,
// not in the response body.
func Internal(c *gin.Context) {
	Respond(c, New(http.StatusInternalServerError, "internal_error", "internal_error", "An internal server error occurred."))
}
