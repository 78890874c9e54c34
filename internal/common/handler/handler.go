// Package handler 提供 API Handler 的通用辅助函数
// 统一错误处理、请求绑定、参数解析
package handler

import (
	stderrors "errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/gogomarket/rental-backend/internal/common/errors"
	"github.com/gogomarket/rental-backend/internal/common/logger"
	"github.com/gogomarket/rental-backend/internal/common/response"
	"github.com/gogomarket/rental-backend/internal/common/utils"
	"github.com/gogomarket/rental-backend/internal/middleware"
)

// ============================================================================
// 错误处理
// ============================================================================

// HandleError 处理错误并发送响应
// err 为 nil 时返回 false；否则已写入响应，调用方应该 return
//
// 使用示例:
//
//	result, err := service.DoSomething(ctx)
//	if handler.HandleError(c, err) {
//	    return
//	}
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		if appErr.HTTPStatus() >= http.StatusInternalServerError {
			logger.Error("request failed",
				logger.String("path", c.FullPath()),
				logger.Int("code", appErr.Code),
				logger.Err(err),
			)
		}
		response.Error(c, appErr.HTTPStatus(), appErr.Code, appErr.Message)
		return true
	}
	logger.Error("unexpected error", logger.String("path", c.FullPath()), logger.Err(err))
	response.InternalError(c, "")
	return true
}

// MustSucceed 有错误返回错误响应，否则返回成功响应
func MustSucceed(c *gin.Context, err error, data interface{}) {
	if HandleError(c, err) {
		return
	}
	response.Success(c, data)
}

// MustCreate 创建类接口，成功时返回 201
func MustCreate(c *gin.Context, err error, data interface{}) {
	if HandleError(c, err) {
		return
	}
	response.Created(c, data)
}

// MustSucceedPage 分页响应版本
func MustSucceedPage(c *gin.Context, err error, list interface{}, total int64, p utils.Pagination) {
	if HandleError(c, err) {
		return
	}
	response.SuccessPage(c, list, total, p.Page, p.PageSize)
}

// RequireAdminID 获取当前管理员ID，未登录时返回 401
// 返回 (0, false) 表示已发送响应，调用方应该 return
func RequireAdminID(c *gin.Context) (int64, bool) {
	adminID := middleware.GetAdminID(c)
	if adminID == 0 {
		response.Unauthorized(c, "请先登录")
		return 0, false
	}
	return adminID, true
}

// ============================================================================
// 请求绑定
// ============================================================================

// FieldError 单个字段的校验错误
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// BindJSON 绑定 JSON 请求体，校验失败时返回 400 并附带字段错误
func BindJSON(c *gin.Context, req interface{}) bool {
	return bindWith(c, req, binding.JSON)
}

// BindForm 绑定 multipart/form 表单
func BindForm(c *gin.Context, req interface{}) bool {
	return bindWith(c, req, binding.FormMultipart)
}

// BindQuery 绑定查询参数
func BindQuery(c *gin.Context, req interface{}) bool {
	return bindWith(c, req, binding.Query)
}

func bindWith(c *gin.Context, req interface{}, b binding.Binding) bool {
	if err := c.ShouldBindWith(req, b); err != nil {
		respondBindError(c, err)
		return false
	}
	return true
}

func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		fields := TranslateValidationErrors(verrs)
		response.ErrorWithData(c, http.StatusBadRequest, errors.ErrInvalidParams.Code, describe(fields), fields)
		return
	}
	response.Error(c, http.StatusBadRequest, errors.ErrInvalidParams.Code, errors.ErrInvalidParams.Message+": "+err.Error())
}

// TranslateValidationErrors 把 validator 错误转换为字段错误列表
func TranslateValidationErrors(verrs validator.ValidationErrors) []FieldError {
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field: toSnake(fe.Field()),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}

func describe(fields []FieldError) string {
	if len(fields) == 0 {
		return errors.ErrInvalidParams.Message
	}
	f := fields[0]
	switch f.Rule {
	case "required":
		return fmt.Sprintf("%s 不能为空", f.Field)
	case "yearmonth":
		return fmt.Sprintf("%s 必须是 YYYY-MM 格式", f.Field)
	case "min", "gte":
		return fmt.Sprintf("%s 不能小于 %s", f.Field, f.Param)
	case "max", "lte":
		return fmt.Sprintf("%s 不能大于 %s", f.Field, f.Param)
	case "oneof":
		return fmt.Sprintf("%s 必须是 [%s] 之一", f.Field, f.Param)
	}
	return fmt.Sprintf("%s 校验失败 (%s)", f.Field, f.Rule)
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// RegisterValidators 注册自定义校验规则，启动时调用一次
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	// 使用 json tag 作为字段名
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			name = strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		}
		if name == "-" {
			return ""
		}
		return name
	})
	return v.RegisterValidation("yearmonth", func(fl validator.FieldLevel) bool {
		_, _, err := utils.ParseYearMonth(fl.Field().String())
		return err == nil
	})
}

// ============================================================================
// 文件上传
// ============================================================================

// MaxUploadSize 单个上传文件的大小上限（字节），启动时按配置设置
var MaxUploadSize int64 = 10 << 20

// UploadedFile 已打开的上传文件
type UploadedFile struct {
	Name    string
	Size    int64
	Content multipart.File
}

// OpenFormFiles 打开 multipart 表单中指定字段的全部文件
// 没有上传文件时返回空列表；调用方处理完后需要 CloseFiles
func OpenFormFiles(c *gin.Context, fields ...string) ([]UploadedFile, bool) {
	form, err := c.MultipartForm()
	if err != nil {
		if stderrors.Is(err, http.ErrNotMultipart) {
			return nil, true
		}
		response.BadRequest(c, "无效的上传表单")
		return nil, false
	}

	var files []UploadedFile
	for _, field := range fields {
		for _, fh := range form.File[field] {
			if MaxUploadSize > 0 && fh.Size > MaxUploadSize {
				CloseFiles(files)
				HandleError(c, errors.ErrFileTooLarge.WithMessagef("文件 %s 超过 %d MB", fh.Filename, MaxUploadSize>>20))
				return nil, false
			}
			f, err := fh.Open()
			if err != nil {
				CloseFiles(files)
				HandleError(c, errors.ErrUploadFailed.WithError(err))
				return nil, false
			}
			files = append(files, UploadedFile{Name: fh.Filename, Size: fh.Size, Content: f})
		}
	}
	return files, true
}

// CloseFiles 关闭已打开的上传文件
func CloseFiles(files []UploadedFile) {
	for _, f := range files {
		_ = f.Content.Close()
	}
}

// ============================================================================
// 参数解析
// ============================================================================

// ParseID 解析路径参数 "id"
func ParseID(c *gin.Context, resourceName string) (int64, bool) {
	return ParseParamID(c, "id", resourceName)
}

// ParseParamID 解析指定路径参数为 int64
//
//	lockID, ok := handler.ParseParamID(c, "lock_id", "锁位")
//	if !ok {
//	    return
//	}
func ParseParamID(c *gin.Context, paramName, resourceName string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(paramName), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "无效的"+resourceName+"ID")
		return 0, false
	}
	return id, true
}

// ParseQueryID 解析可选的查询参数 ID，参数为空时返回 (nil, true)
func ParseQueryID(c *gin.Context, paramName, resourceName string) (*int64, bool) {
	idStr := c.Query(paramName)
	if idStr == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "无效的"+resourceName+"ID")
		return nil, false
	}
	return &id, true
}

// ParseYearMonth 解析查询参数中的月份
// 支持 month=YYYY-MM，或 year=YYYY&month=M 两种写法
func ParseYearMonth(c *gin.Context) (year, month int, ok bool) {
	m := c.Query("month")
	if strings.Contains(m, "-") {
		y, mo, err := utils.ParseYearMonth(m)
		if err != nil {
			response.BadRequest(c, "月份格式错误，应为 YYYY-MM")
			return 0, 0, false
		}
		return y, mo, true
	}

	y, errY := strconv.Atoi(c.Query("year"))
	mo, errM := strconv.Atoi(m)
	if errY != nil || errM != nil || !utils.ValidYearMonth(y, mo) {
		response.BadRequest(c, "请提供有效的 year 和 month")
		return 0, 0, false
	}
	return y, mo, true
}

// ParseQueryBool 解析布尔查询参数，无法解析时返回默认值
func ParseQueryBool(c *gin.Context, name string, def bool) bool {
	v, err := strconv.ParseBool(c.Query(name))
	if err != nil {
		return def
	}
	return v
}

// ============================================================================
// 时间解析
// ============================================================================

// DateFormat 日期格式
const DateFormat = "2006-01-02"

// ParseDate 解析日期字符串 (YYYY-MM-DD)
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, errors.ErrInvalidParams.WithMessagef("日期格式错误: %s", s)
	}
	return t, nil
}

// ============================================================================
// 分页
// ============================================================================

// BindPagination 从查询参数绑定并规范化分页参数
func BindPagination(c *gin.Context) utils.Pagination {
	var p utils.Pagination
	p.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	p.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	p.Normalize()
	return p
}
