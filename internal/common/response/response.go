// Package response 后台 API 的 JSON 响应包装
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 与 middleware.ContextKeyRequestID 相同，这里不能反向引用 middleware
const requestIDKey = "request_id"

// Response code 为 0 表示成功，其余为 errors 包中的业务码
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// PageData 列表接口的 data
type PageData struct {
	List     interface{} `json:"list"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

func write(c *gin.Context, status, code int, message string, data interface{}) {
	c.JSON(status, Response{
		Code:      code,
		Message:   message,
		Data:      data,
		RequestID: c.GetString(requestIDKey),
	})
}

func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, 0, "success", data)
}

func Created(c *gin.Context, data interface{}) {
	write(c, http.StatusCreated, 0, "success", data)
}

func SuccessPage(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	write(c, http.StatusOK, 0, "success", PageData{List: list, Total: total, Page: page, PageSize: pageSize})
}

// Error 业务错误，status 为 HTTP 状态码，code 为业务码
func Error(c *gin.Context, status, code int, message string) {
	write(c, status, code, message, nil)
}

// ErrorWithData 校验失败时附带字段明细
func ErrorWithData(c *gin.Context, status, code int, message string, data interface{}) {
	write(c, status, code, message, data)
}

// 没有业务码的错误直接用 HTTP 状态码作为 code
func statusError(c *gin.Context, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	write(c, status, status, message, nil)
}

func BadRequest(c *gin.Context, message string) {
	statusError(c, http.StatusBadRequest, message)
}

func Unauthorized(c *gin.Context, message string) {
	statusError(c, http.StatusUnauthorized, message)
}

func InternalError(c *gin.Context, message string) {
	statusError(c, http.StatusInternalServerError, message)
}

func TooManyRequests(c *gin.Context, message string) {
	statusError(c, http.StatusTooManyRequests, message)
}
