package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gogomarket/rental-backend/internal/common/jwt"
	"github.com/gogomarket/rental-backend/internal/common/response"
)

// 上下文键
const (
	ContextKeyAdminID  = "admin_id"
	ContextKeyUsername = "admin_username"
	ContextKeyClaims   = "claims"
)

// AdminAuth 后台认证中间件
// enabled 为 false 时直接放行，兼容没有登录页的旧前端
func AdminAuth(manager *jwt.Manager, enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}

		token := extractToken(c)
		if token == "" {
			reject(c, "", "请先登录")
			return
		}

		claims, err := manager.ParseAccessToken(token)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				reject(c, "invalid_token", "登录已过期，请重新登录")
			} else {
				reject(c, "invalid_token", "无效的令牌")
			}
			return
		}

		c.Set(ContextKeyAdminID, claims.AdminID)
		c.Set(ContextKeyUsername, claims.Username)
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// reject 返回 401 并按 RFC 6750 设置 WWW-Authenticate
func reject(c *gin.Context, code, message string) {
	challenge := `Bearer realm="rental-admin"`
	if code != "" {
		challenge += `, error="` + code + `"`
	}
	c.Header("WWW-Authenticate", challenge)
	response.Unauthorized(c, message)
	c.Abort()
}

// extractToken 从 Authorization 头提取 Bearer 令牌
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// GetAdminID 从上下文获取管理员 ID，未登录返回 0
func GetAdminID(c *gin.Context) int64 {
	id, exists := c.Get(ContextKeyAdminID)
	if !exists {
		return 0
	}
	v, _ := id.(int64)
	return v
}

// GetClaims 从上下文获取完整的 Claims
func GetClaims(c *gin.Context) *jwt.Claims {
	claims, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	v, _ := claims.(*jwt.Claims)
	return v
}
