package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse defines the structure of error responses
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorHandler is a middleware to catch panics and return structured errors
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				Logger := GetLogger()
				Logger.Error("Unhandled panic", zap.Any("error", err), zap.String("path", c.FullPath()))

				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Success: false,
					Message: "An unexpected error occurred. Please try again later.",
				})
			}
		}()
		c.Next()
	}
}

// JSONError sends a standardized JSON error response
func JSONError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Success: false, Message: message})
}

// RespondError maps an error onto its HTTP status and writes the failure envelope.
// Only the AppError message reaches the client; wrapped causes stay in the logs.
func RespondError(c *gin.Context, logger *zap.Logger, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		logger.Error("unclassified error", zap.String("path", c.FullPath()), zap.Error(err))
		JSONError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	status := appErr.Status()
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error(appErr.Message, zap.String("code", string(appErr.Code)), zap.String("path", c.FullPath()), zap.Error(appErr.Err))
	default:
		logger.Debug(appErr.Message, zap.String("code", string(appErr.Code)), zap.String("path", c.FullPath()))
	}
	JSONError(c, status, appErr.Message)
}
