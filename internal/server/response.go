package server

import (
	"net/http"

	"compliance_checker/internal/apperr"
	"compliance_checker/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Code    int    `json:"code"`              // business code, 0 on success
	Message string `json:"message,omitempty"` // error text
	Data    any    `json:"data"`
}

// Success replies 200 with data.
func Success(c *gin.Context, data any) {
	if data == nil {
		data = struct{}{}
	}
	c.JSON(http.StatusOK, Response{Code: apperr.Success, Data: data})
}

// Created replies 201 with data.
func Created(c *gin.Context, data any) {
	if data == nil {
		data = struct{}{}
	}
	c.JSON(http.StatusCreated, Response{Code: apperr.Success, Data: data})
}

// HandleError classifies err and replies with its code and HTTP status.
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	appErr := classify(err)
	status := appErr.HTTPStatus()

	log := logger.FromContext(c.Request.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Int("code", appErr.Code), zap.Error(err))
	} else {
		log.Debug("request rejected", zap.Int("code", appErr.Code), zap.Error(err))
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, Response{
		Code:    appErr.Code,
		Message: apperr.FormatError(appErr.Code, apperr.GetDetails(appErr)),
		Data:    struct{}{},
	})
}

// ErrorWithCode replies with a code and optional details.
func ErrorWithCode(c *gin.Context, code int, details ...string) {
	c.AbortWithStatusJSON(apperr.GetHTTPStatus(code), Response{
		Code:    code,
		Message: apperr.FormatError(code, details...),
		Data:    struct{}{},
	})
}
