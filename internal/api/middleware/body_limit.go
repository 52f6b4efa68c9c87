package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bigkaiyoh/Hinotama/pkg/response"
)

// BodyLimit リクエストボディサイズ制限ミドルウェア
// maxBytes: 許容する最大バイト数（手書き画像のアップロードを考慮して設定する）
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()

		if c.IsAborted() {
			return
		}
		for _, err := range c.Errors {
			if err.Err != nil && err.Err.Error() == "http: request body too large" {
				response.Error(c, http.StatusRequestEntityTooLarge, 10005, "リクエストボディが大きすぎます")
				return
			}
		}
	}
}
