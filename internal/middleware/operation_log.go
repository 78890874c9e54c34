// Package middleware 提供 HTTP 中间件
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/gogomarket/rental-backend/internal/common/logger"
	"github.com/gogomarket/rental-backend/internal/models"
)

// OperationLogStore 操作日志存储
type OperationLogStore interface {
	Create(ctx context.Context, log *models.OperationLog) error
}

// OperationLogger 操作日志中间件
type OperationLogger struct {
	store OperationLogStore
	async bool
}

// NewOperationLogger 创建操作日志中间件，日志异步写入
func NewOperationLogger(store OperationLogStore) *OperationLogger {
	return &OperationLogger{store: store, async: true}
}

const maxLoggedBody = 8 << 10

var sensitiveFields = []string{"password", "token", "secret"}

// Log 只记录写操作；multipart 请求只记录路由，不读取文件内容
func (l *OperationLogger) Log() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.store == nil || !isWrite(c.Request.Method) {
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil && strings.HasPrefix(c.ContentType(), "application/json") {
			body, _ = io.ReadAll(io.LimitReader(c.Request.Body, maxLoggedBody+1))
			c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), c.Request.Body))
		}

		c.Next()

		// gin.Context 在请求结束后会被复用，必须在此处取值
		entry := l.build(c, body)
		if l.async {
			go l.save(entry)
			return
		}
		l.save(entry)
	}
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func (l *OperationLogger) build(c *gin.Context, body []byte) *models.OperationLog {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}

	entry := &models.OperationLog{
		Module:    moduleOf(path),
		Action:    actionOf(c.Request.Method, path),
		Method:    c.Request.Method,
		Path:      path,
		Status:    c.Writer.Status(),
		IP:        c.ClientIP(),
		UserAgent: truncate(c.Request.UserAgent(), 255),
		RequestID: GetRequestID(c),
	}
	if adminID := GetAdminID(c); adminID > 0 {
		entry.AdminID = &adminID
	}
	if id, err := strconv.ParseInt(c.Param("id"), 10, 64); err == nil {
		entry.TargetID = &id
	}
	if len(body) > 0 && len(body) <= maxLoggedBody {
		var data interface{}
		if err := json.Unmarshal(body, &data); err == nil {
			if filtered, err := json.Marshal(filterSensitive(data)); err == nil {
				entry.Request = datatypes.JSON(filtered)
			}
		}
	}
	return entry
}

func (l *OperationLogger) save(entry *models.OperationLog) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.store.Create(ctx, entry); err != nil {
		logger.Warn("failed to save operation log", zap.String("path", entry.Path), zap.Error(err))
	}
}

// moduleOf /api/contracts/:id/documents -> contract
func moduleOf(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/api/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "unknown"
	}
	m := strings.ReplaceAll(parts[0], "-", "_")
	return strings.TrimSuffix(m, "s")
}

func actionOf(method, path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	last := segments[len(segments)-1]
	if method == http.MethodPost && !strings.HasPrefix(last, ":") && len(segments) > 2 {
		return strings.ReplaceAll(last, "-", "_")
	}
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodDelete:
		return "delete"
	default:
		return "update"
	}
}

func filterSensitive(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			if isSensitive(key) {
				out[key] = "***"
				continue
			}
			out[key] = filterSensitive(value)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = filterSensitive(item)
		}
		return out
	default:
		return data
	}
}

func isSensitive(key string) bool {
	key = strings.ToLower(key)
	for _, f := range sensitiveFields {
		if strings.Contains(key, f) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
