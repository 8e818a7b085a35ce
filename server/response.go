package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PixelPet-dev/xlayerslot/errors"
	"github.com/PixelPet-dev/xlayerslot/types"
)

const errUndefinedErrorCode = -99

// Success sends a success envelope.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, types.NewSuccess(statusCode, data))
}

// OK sends a 200 OK response.
func OK(c *gin.Context, data interface{}) {
	Success(c, http.StatusOK, data)
}

// Error sends an error envelope.
func Error(c *gin.Context, statusCode int, err error) {
	msg := err.Error()
	code := errUndefinedErrorCode
	if appErr, ok := err.(*errors.AppError); ok {
		msg = appErr.Message
		code = appErr.Code
	}
	c.JSON(statusCode, types.NewError(statusCode, c.Request.URL.Path, code, msg))
}

// BadRequest sends a 400 Bad Request response.
func BadRequest(c *gin.Context, err error) {
	Error(c, http.StatusBadRequest, err)
}

// HandleAppError maps an AppError's code to an HTTP status.
func HandleAppError(c *gin.Context, err error) {
	if appErr, ok := err.(*errors.AppError); ok {
		Error(c, errors.HTTPStatusFromCode(appErr.Code), appErr)
		return
	}
	Error(c, http.StatusInternalServerError, err)
}
