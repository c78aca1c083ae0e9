package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/members-only/internal/logging"
)

// ErrorHandler はハンドラーが c.Error で残したエラーをログに出し、
// まだ何も書き込まれていなければ 500 を返します。利用者には原因を見せません。
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		logger := logging.FromContext(c.Request.Context())
		logger.Error().Err(c.Errors.Last().Err).Msg("request failed")

		if c.Writer.Written() {
			return
		}
		c.Header("Content-Type", "text/plain; charset=utf-8")
		c.String(http.StatusInternalServerError, "Internal Server Error")
	}
}
