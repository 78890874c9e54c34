// Package middleware 后台 API 的 gin 中间件
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gogomarket/rental-backend/internal/common/errors"
	"github.com/gogomarket/rental-backend/internal/common/response"
)

const (
	ContextKeyRequestID = "request_id"
	HeaderRequestID     = "X-Request-ID"

	// 与 operation_logs.request_id 列宽一致
	maxRequestIDLen = 64
)

// RequestID 沿用上游传入的请求 ID，缺失或过长时重新生成
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func GetRequestID(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}

// Recovery 捕获 panic，返回统一的 500 响应
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			fields := []zap.Field{
				zap.String("request_id", GetRequestID(c)),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			}
			if adminID := GetAdminID(c); adminID > 0 {
				fields = append(fields, zap.Int64("admin_id", adminID))
			}
			logger.Error("Panic recovered", fields...)

			appErr := errors.ErrInternalError
			response.Error(c, appErr.HTTPStatus(), appErr.Code, appErr.Message)
			c.Abort()
		}()
		c.Next()
	}
}

var noCacheHeaders = map[string]string{
	"Cache-Control": "no-cache, no-store, must-revalidate",
	"Pragma":        "no-cache",
	"Expires":       "0",
}

// NoCache 公开账单页禁止浏览器和代理缓存
func NoCache() gin.HandlerFunc {
	return func(c *gin.Context) {
		for k, v := range noCacheHeaders {
			c.Header(k, v)
		}
		c.Next()
	}
}

// RequestSizeLimiter 限制请求体大小，maxSize <= 0 时不限制
func RequestSizeLimiter(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxSize <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxSize {
			response.Error(c, http.StatusRequestEntityTooLarge, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("请求体过大，最大允许 %d 字节", maxSize))
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}
