package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContextLoggerKey is where the request logger middleware stores its logger.
const ContextLoggerKey = "logger"

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// RequestLogger returns the request-scoped logger, or the process logger when
// the request has none.
func RequestLogger(c *gin.Context) *zap.Logger {
	if v, ok := c.Get(ContextLoggerKey); ok {
		if l, ok := v.(*zap.Logger); ok {
			return l
		}
	}
	return GetLogger()
}

// ErrorHandler turns a panic in a later handler into a 500 reply.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				RequestLogger(c).Error("panic while serving request",
					zap.String("method", c.Request.Method),
					zap.String("path", c.FullPath()),
					zap.Any("panic", rec),
					zap.Stack("stack"))

				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Message: "Internal Server Error",
					Details: "An unexpected error occurred. Please try again later.",
				})
			}
		}()
		c.Next()
	}
}

// JSONError writes an ErrorResponse. 5xx replies are logged at Error, the
// rest at Warn.
func JSONError(c *gin.Context, status int, message string, details string) {
	log := RequestLogger(c).Warn
	if status >= http.StatusInternalServerError {
		log = RequestLogger(c).Error
	}
	log(message, zap.Int("status", status), zap.String("details", details))
	c.JSON(status, ErrorResponse{Message: message, Details: details})
}
