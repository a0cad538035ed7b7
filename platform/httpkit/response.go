// Package httpkit holds the gin helpers shared by every handler: the error
// body, apperr mapping, identity and auth, rate limiting.
package httpkit

import (
	"errors"
	"net/http"

	"github.com/Floop2Gare/ERPWASHGOHetzner-sub004/platform/apperr"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	// Details carries per-field validation failures.
	Details any `json:"details,omitempty"`
}

func JSON(c *gin.Context, status int, payload any) { c.JSON(status, payload) }

func OK(c *gin.Context, payload any) { c.JSON(http.StatusOK, payload) }

func Accepted(c *gin.Context, payload any) { c.JSON(http.StatusAccepted, payload) }

// Error writes an ErrorResponse with an explicit status.
func Error(c *gin.Context, status int, message string, details any) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}

// HandleError writes err and reports whether there was one. An *apperr.Error
// in the chain decides the status and its Message is shown; its cause never
// is. Anything else is a 500.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Kind: apperr.KindInternal.String()})
		return true
	}
	c.JSON(appErr.HTTPStatus(), ErrorResponse{Error: appErr.Message, Kind: appErr.Kind.String()})
	return true
}
