package middleware

import (
	"errors"

	"promowheel/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error renders the last error attached with c.Error. The wrapped cause is
// only exposed when debug is set.
func Error(debug bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		var be errutil.BaseError
		if !errors.As(last.Err, &be) {
			be = errutil.New(errutil.StatusInternal, "Internal server error", errutil.WithErr(last.Err)).(errutil.BaseError)
		}

		if be.Code.HTTPStatus() >= 500 {
			zap.L().Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Error(be),
			)
		}

		c.AbortWithStatusJSON(be.Code.HTTPStatus(), be.JSON(debug))
	}
}
