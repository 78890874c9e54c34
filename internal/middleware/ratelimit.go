// Package middleware 提供 HTTP 中间件
package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gogomarket/rental-backend/internal/common/cache"
	"github.com/gogomarket/rental-backend/internal/common/logger"
	"github.com/gogomarket/rental-backend/internal/common/response"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Store   *cache.Store
	Scope   string // 同一 IP 在不同 scope 下分别计数
	Limit   int
	Window  time.Duration
	KeyFunc func(*gin.Context) string
}

// RateLimit 固定窗口限流中间件
// Redis 不可用时放行，公开接口不因缓存故障而中断
func RateLimit(config *RateLimitConfig) gin.HandlerFunc {
	keyFunc := config.KeyFunc
	if keyFunc == nil {
		keyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}

	return func(c *gin.Context) {
		if !config.Store.Enabled() || config.Limit <= 0 {
			c.Next()
			return
		}

		key := cache.BuildKey(cache.KeyPrefixRateLimit, config.Scope, keyFunc(c))
		count, ttl, err := config.Store.Hit(c.Request.Context(), key, config.Window)
		if err != nil {
			logger.Warn("rate limit store unavailable", zap.Error(err))
			c.Next()
			return
		}

		remaining := config.Limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if int(count) > config.Limit {
			c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(ttl).Unix()))
			c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())))
			response.TooManyRequests(c, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}

		c.Next()
	}
}

// IPRateLimit 按 IP 限流
func IPRateLimit(store *cache.Store, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return RateLimit(&RateLimitConfig{Store: store, Scope: scope, Limit: limit, Window: window})
}
