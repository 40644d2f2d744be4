package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"moh-portal/pkg/response"
)

// Limiter 滑动窗口限流接口，由 pkg/redis.Client 实现
type Limiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 按客户端 IP + 路由的限流中间件
// limiter 为 nil 时放行；存储出错时按 failOpen 放行或返回 503
func RateLimit(limiter Limiter, limit int, window time.Duration, failOpen bool, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limit <= 0 {
			c.Next()
			return
		}

		key := fmt.Sprintf("ip:%s:%s", c.ClientIP(), c.FullPath())
		allowed, err := limiter.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil {
			if failOpen {
				logger.Warn("限流检查失败，按配置放行", zap.String("key", key), zap.Error(err))
				c.Next()
				return
			}
			logger.Error("限流检查失败", zap.String("key", key), zap.Error(err))
			response.ServiceUnavailable(c, "Проверка лимита запросов недоступна, попробуйте позже")
			c.Abort()
			return
		}

		if !allowed {
			response.TooManyRequests(c, "Слишком много запросов, попробуйте позже")
			c.Abort()
			return
		}

		c.Next()
	}
}
