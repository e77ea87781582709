package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "moneyminder/internal/errors"
	"moneyminder/internal/logger"
)

// ErrorHandler renders the last error a handler attached with c.Error as the
// standard {"error":{"code","message"}} envelope. Bind errors become
// INVALID_INPUT with the binder's message. Anything else that is not an
// AppError is reported as INTERNAL_ERROR; causes are logged, never sent.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		last := c.Errors.Last()
		if last.IsType(gin.ErrorTypeBind) {
			abortWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, last.Err.Error()))
			return
		}
		appErr := resolveError(c, last.Err)
		c.JSON(appErr.StatusCode, errorBody(appErr))
	}
}

func resolveError(c *gin.Context, err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		logger.Get().Errorw("unhandled error",
			"error", err, "method", c.Request.Method, "route", c.FullPath(), "request_id", c.GetString(requestIDKey))
		return apperrors.ErrInternalServer
	}
	if appErr.Internal != nil {
		logger.Get().Errorw("request error",
			"code", appErr.Code, "cause", appErr.Internal, "route", c.FullPath(), "request_id", c.GetString(requestIDKey))
	}
	return appErr
}

func errorBody(appErr *apperrors.AppError) gin.H {
	return gin.H{"error": gin.H{"code": appErr.Code, "message": appErr.Message}}
}

func abortWithError(c *gin.Context, appErr *apperrors.AppError) {
	c.AbortWithStatusJSON(appErr.StatusCode, errorBody(appErr))
}
