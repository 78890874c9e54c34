// Package errors 定义业务错误码和错误处理
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError 应用错误
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"` // HTTP 状态码
	Err     error  `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按错误码比较，WithMessage/WithError 派生出的错误仍然与原错误相等
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// HTTPStatus 返回对应的 HTTP 状态码
func (e *AppError) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusBadRequest
	}
	return e.Status
}

// New 创建新的应用错误，默认 400
func New(code int, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: http.StatusBadRequest}
}

// NewWithStatus 创建带 HTTP 状态码的应用错误
func NewWithStatus(code, status int, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

// Wrap 包装错误
func Wrap(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Status: http.StatusInternalServerError, Err: err}
}

// WithMessage 修改错误消息
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{Code: e.Code, Message: message, Status: e.Status, Err: e.Err}
}

// WithMessagef 格式化错误消息
func (e *AppError) WithMessagef(format string, args ...interface{}) *AppError {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// WithError 添加原始错误
func (e *AppError) WithError(err error) *AppError {
	return &AppError{Code: e.Code, Message: e.Message, Status: e.Status, Err: err}
}

// 通用错误码 (1000-1999)
var (
	ErrUnknown         = NewWithStatus(1000, http.StatusInternalServerError, "未知错误")
	ErrInvalidParams   = NewWithStatus(1001, http.StatusBadRequest, "参数错误")
	ErrNotFound        = NewWithStatus(1002, http.StatusNotFound, "资源不存在")
	ErrAlreadyExists   = NewWithStatus(1003, http.StatusConflict, "资源已存在")
	ErrDatabaseError   = NewWithStatus(1004, http.StatusInternalServerError, "数据库错误")
	ErrCacheError      = NewWithStatus(1005, http.StatusInternalServerError, "缓存错误")
	ErrInternalError   = NewWithStatus(1006, http.StatusInternalServerError, "内部错误")
	ErrExternalService = NewWithStatus(1007, http.StatusBadGateway, "外部服务错误")
	ErrRateLimitExceed = NewWithStatus(1008, http.StatusTooManyRequests, "请求过于频繁")
	ErrOperationFailed = NewWithStatus(1009, http.StatusInternalServerError, "操作失败")
)

// 认证错误码 (2000-2999)
var (
	ErrUnauthorized     = NewWithStatus(2000, http.StatusUnauthorized, "未登录")
	ErrTokenExpired     = NewWithStatus(2001, http.StatusUnauthorized, "登录已过期")
	ErrTokenInvalid     = NewWithStatus(2002, http.StatusUnauthorized, "无效的令牌")
	ErrPermissionDenied = NewWithStatus(2004, http.StatusForbidden, "权限不足")
	ErrAccountDisabled  = NewWithStatus(2005, http.StatusForbidden, "账号已禁用")
	ErrPasswordError    = NewWithStatus(2007, http.StatusUnauthorized, "用户名或密码错误")
)

// 租户、区域、锁位错误码 (3000-3999)
var (
	ErrTenantNotFound     = NewWithStatus(3000, http.StatusNotFound, "租户不存在")
	ErrTenantCodeNotFound = NewWithStatus(3001, http.StatusNotFound, "客户编号不存在")
	ErrZoneNotFound       = NewWithStatus(3010, http.StatusNotFound, "区域不存在")
	ErrLockNotFound       = NewWithStatus(3020, http.StatusNotFound, "锁位不存在")
	ErrLockNumberExists   = NewWithStatus(3021, http.StatusConflict, "锁位编号已存在")
	ErrReserveNotFound    = NewWithStatus(3030, http.StatusNotFound, "预订不存在")
	ErrLockReserved       = NewWithStatus(3031, http.StatusConflict, "锁位已被预订")
)

// 合同与绑定错误码 (4000-4999)
var (
	ErrContractNotFound      = NewWithStatus(4000, http.StatusNotFound, "合同不存在")
	ErrContractNumberExists  = NewWithStatus(4001, http.StatusConflict, "合同编号已存在")
	ErrContractDateInvalid   = NewWithStatus(4002, http.StatusBadRequest, "合同结束日期不能早于开始日期")
	ErrContractExpired       = NewWithStatus(4003, http.StatusBadRequest, "合同已过期")
	ErrLockAlreadyBound      = NewWithStatus(4010, http.StatusConflict, "锁位已绑定有效合同")
	ErrBindingNotFound       = NewWithStatus(4011, http.StatusNotFound, "没有有效的合同绑定")
	ErrContractAlreadyBound  = NewWithStatus(4012, http.StatusConflict, "合同已绑定该锁位")
	ErrDocumentNotFound      = NewWithStatus(4020, http.StatusNotFound, "文件不存在")
)

// 电表错误码 (5000-5999)
var (
	ErrMeterNotFound       = NewWithStatus(5000, http.StatusNotFound, "电表不存在")
	ErrAssetTagExists      = NewWithStatus(5001, http.StatusConflict, "资产标签已存在")
	ErrMeterUsageExists    = NewWithStatus(5010, http.StatusConflict, "本月已有抄表记录")
	ErrMeterReadingInvalid = NewWithStatus(5011, http.StatusBadRequest, "本期读数不能小于上期读数")
	ErrMeterUsageNotFound  = NewWithStatus(5012, http.StatusNotFound, "抄表记录不存在")
	ErrMeterAlreadyBound   = NewWithStatus(5020, http.StatusConflict, "电表已绑定锁位")
	ErrMeterBindNotFound   = NewWithStatus(5021, http.StatusNotFound, "电表未绑定该锁位")
)

// 账单错误码 (6000-6999)
var (
	ErrBillNotFound       = NewWithStatus(6000, http.StatusNotFound, "账单不存在")
	ErrBillExists         = NewWithStatus(6001, http.StatusConflict, "该合同本月账单已存在")
	ErrDiscountInvalid    = NewWithStatus(6002, http.StatusBadRequest, "折扣不能为负数或超过应收金额")
	ErrVatInvalid         = NewWithStatus(6003, http.StatusBadRequest, "税率不能为负数")
	ErrBillStatusInvalid  = NewWithStatus(6004, http.StatusConflict, "账单状态不允许该操作")
	ErrContractNotBilling = NewWithStatus(6005, http.StatusBadRequest, "合同在该月份没有有效的锁位绑定")
)

// 通知与存储错误码 (7000-7999)
var (
	ErrNotifyFailed      = NewWithStatus(7000, http.StatusBadGateway, "通知发送失败")
	ErrNotifyNoRecipient = NewWithStatus(7001, http.StatusBadRequest, "租户未绑定通知渠道")
	ErrFileTooLarge      = NewWithStatus(7010, http.StatusRequestEntityTooLarge, "文件过大")
	ErrFileTypeInvalid   = NewWithStatus(7011, http.StatusBadRequest, "不支持的文件类型")
	ErrUploadFailed      = NewWithStatus(7012, http.StatusInternalServerError, "文件上传失败")
)

// IsAppError 判断是否为应用错误
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError 获取应用错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrUnknown.WithError(err)
}
