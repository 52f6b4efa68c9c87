package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bigkaiyoh/Hinotama/pkg/redis"
	"github.com/bigkaiyoh/Hinotama/pkg/response"
)

// RateLimit Redis 固定ウィンドウ方式の速度制限ミドルウェア
// limit: ウィンドウ内で許可する最大リクエスト数
// window: ウィンドウ時間
// rdb が nil または Redis 障害時は縮退して通過させる
func RateLimit(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("rate_limit:%s:%s", c.ClientIP(), c.FullPath())
		allowed, err := rdb.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil {
			c.Next()
			return
		}

		if !allowed {
			response.Error(c, http.StatusTooManyRequests, 10004, "リクエストが多すぎます。しばらくしてからやり直してください")
			c.Abort()
			return
		}

		c.Next()
	}
}
