// Package utils 提供通用工具函数
package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// TenantCode 生成租户编号
// 格式: C + 创建日期(YYMMDD) + "-" + 5位补零的ID
func TenantCode(createdAt time.Time, id int64) string {
	return fmt.Sprintf("C%s-%05d", createdAt.Format("060102"), id)
}

// DefaultContractNumber 生成默认合同编号
// 格式: QD-YYYYMMDD-HHMMSS
func DefaultContractNumber(now time.Time) string {
	return fmt.Sprintf("QD-%s-%s", now.Format("20060102"), now.Format("150405"))
}

// GenerateRandomNumber 生成指定长度的随机数字字符串
func GenerateRandomNumber(length int) string {
	var result strings.Builder
	for i := 0; i < length; i++ {
		n, _ := rand.Int(rand.Reader, big.NewInt(10))
		result.WriteString(strconv.Itoa(int(n.Int64())))
	}
	return result.String()
}

// MonthRange 返回指定月份的起止时间 [start, end)
func MonthRange(year, month int, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// ParseYearMonth 解析 YYYY-MM 格式的月份
func ParseYearMonth(s string) (year, month int, err error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return t.Year(), int(t.Month()), nil
}

// ValidYearMonth 校验年月取值
func ValidYearMonth(year, month int) bool {
	return year >= 2000 && year <= 9999 && month >= 1 && month <= 12
}

// CalendarDate 取 t 在 loc 时区下的日期，返回该日期的 UTC 零点
// 数据库中的 date 列按 UTC 零点存取，比较前统一成这种形式
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Int64Ptr 返回 int64 指针
func Int64Ptr(i int64) *int64 {
	return &i
}

// Pagination 分页参数
type Pagination struct {
	Page     int `form:"page" json:"page"`
	PageSize int `form:"page_size" json:"page_size"`
}

// GetOffset 获取偏移量
func (p *Pagination) GetOffset() int {
	return (p.Page - 1) * p.PageSize
}

// GetLimit 获取限制数量
func (p *Pagination) GetLimit() int {
	return p.PageSize
}

// Normalize 规范化分页参数
func (p *Pagination) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 200 {
		p.PageSize = 200
	}
}
