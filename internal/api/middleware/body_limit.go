package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	pkgerrors "moh-portal/pkg/errors"
	"moh-portal/pkg/response"
)

// BodyLimit 全局请求体大小限制中间件
// maxBytes: 允许的最大请求体字节数，需大于头像上限以容纳 multipart 开销
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil && maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()

		if c.Writer.Written() {
			return
		}
		for _, err := range c.Errors {
			var tooLarge *http.MaxBytesError
			if errors.As(err.Err, &tooLarge) {
				response.Error(c, http.StatusRequestEntityTooLarge, pkgerrors.CodeValidation, "Слишком большой запрос")
				return
			}
		}
	}
}
