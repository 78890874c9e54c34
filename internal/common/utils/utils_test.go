// Package utils 工具函数单元测试
package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantCode(t *testing.T) {
	created := time.Date(2025, 1, 9, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, "C250109-00042", TenantCode(created, 42))
	assert.Equal(t, "C250109-123456", TenantCode(created, 123456))
}

func TestDefaultContractNumber(t *testing.T) {
	now := time.Date(2024, 12, 31, 23, 59, 1, 0, time.UTC)
	assert.Equal(t, "QD-20241231-235901", DefaultContractNumber(now))
}

func TestGenerateRandomNumber(t *testing.T) {
	n := GenerateRandomNumber(8)
	assert.Len(t, n, 8)
	for _, ch := range n {
		assert.True(t, ch >= '0' && ch <= '9')
	}
}

func TestMonthRange(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)

	start, end := MonthRange(2024, 12, loc)
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, loc), end)

	start, end = MonthRange(2024, 2, nil)
	assert.Equal(t, 29, end.Add(-time.Hour).Day())
	assert.Equal(t, time.UTC, start.Location())
}

func TestParseYearMonth(t *testing.T) {
	y, m, err := ParseYearMonth("2025-03")
	require.NoError(t, err)
	assert.Equal(t, 2025, y)
	assert.Equal(t, 3, m)

	_, _, err = ParseYearMonth("2025-13")
	assert.Error(t, err)
	_, _, err = ParseYearMonth("03/2025")
	assert.Error(t, err)
}

func TestValidYearMonth(t *testing.T) {
	assert.True(t, ValidYearMonth(2025, 1))
	assert.False(t, ValidYearMonth(2025, 0))
	assert.False(t, ValidYearMonth(1999, 5))
}

func TestCalendarDate(t *testing.T) {
	ict := time.FixedZone("ICT", 7*3600)
	// UTC 17:30 已经是曼谷次日
	d := CalendarDate(time.Date(2025, 1, 31, 17, 30, 0, 0, time.UTC), ict)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), d)

	d = CalendarDate(time.Date(2025, 1, 31, 17, 30, 0, 0, time.UTC), nil)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), d)
}

func TestPagination_Normalize(t *testing.T) {
	p := Pagination{Page: 0, PageSize: 1000}
	p.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 200, p.PageSize)
	assert.Equal(t, 0, p.GetOffset())

	p = Pagination{Page: 3, PageSize: 10}
	p.Normalize()
	assert.Equal(t, 20, p.GetOffset())
	assert.Equal(t, 10, p.GetLimit())
}

func TestPointers(t *testing.T) {
	assert.Equal(t, int64(5), *Int64Ptr(5))
}
