// Package httputils provides the HTTP response envelope.
package httputils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pharmakb/pharmakb/pkg/errors"
)

// Response is the wire envelope for every endpoint. Code 0 means
// success; any other value is a registered business error code.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// WriteResponse writes data or an error in the standard envelope. The
// HTTP status comes from the error's registration; unregistered errors
// map to 500.
func WriteResponse(c *gin.Context, err error, data any) {
	if err != nil {
		errno := errors.FromError(err)
		c.JSON(errno.HTTPStatus(), Response{
			Code:    errno.Code,
			Message: errno.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Code:    errors.OK.Code,
		Message: "success",
		Data:    data,
	})
}
