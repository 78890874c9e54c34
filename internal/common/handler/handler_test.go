package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogomarket/rental-backend/internal/common/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := RegisterValidators(); err != nil {
		panic(err)
	}
}

func createTestContext(method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func parseBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandleError(t *testing.T) {
	t.Run("nil 不处理", func(t *testing.T) {
		c, w := createTestContext(http.MethodGet, "/", nil)
		assert.False(t, HandleError(c, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("业务错误使用自身状态码", func(t *testing.T) {
		c, w := createTestContext(http.MethodGet, "/", nil)
		assert.True(t, HandleError(c, errors.ErrBillExists))
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, float64(errors.ErrBillExists.Code), parseBody(t, w)["code"])
	})

	t.Run("包装后的业务错误", func(t *testing.T) {
		c, w := createTestContext(http.MethodGet, "/", nil)
		err := fmt.Errorf("create bill: %w", errors.ErrContractNotFound)
		assert.True(t, HandleError(c, err))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("未知错误返回500且不暴露细节", func(t *testing.T) {
		c, w := createTestContext(http.MethodGet, "/", nil)
		assert.True(t, HandleError(c, fmt.Errorf("pq: connection refused")))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "connection refused")
	})
}

type sampleRequest struct {
	Month      string  `json:"month" binding:"required,yearmonth"`
	ContractID int64   `json:"contract_id" binding:"required,min=1"`
	Discount   float64 `json:"discount" binding:"gte=0"`
}

func TestBindJSON(t *testing.T) {
	t.Run("合法请求", func(t *testing.T) {
		c, _ := createTestContext(http.MethodPost, "/", []byte(`{"month":"2025-01","contract_id":3}`))
		var req sampleRequest
		assert.True(t, BindJSON(c, &req))
		assert.Equal(t, int64(3), req.ContractID)
	})

	t.Run("月份格式错误", func(t *testing.T) {
		c, w := createTestContext(http.MethodPost, "/", []byte(`{"month":"2025/01","contract_id":3}`))
		var req sampleRequest
		assert.False(t, BindJSON(c, &req))
		assert.Equal(t, http.StatusBadRequest, w.Code)

		resp := parseBody(t, w)
		assert.Equal(t, float64(errors.ErrInvalidParams.Code), resp["code"])
		fields := resp["data"].([]interface{})
		require.Len(t, fields, 1)
		assert.Equal(t, "month", fields[0].(map[string]interface{})["field"])
		assert.Equal(t, "yearmonth", fields[0].(map[string]interface{})["rule"])
	})

	t.Run("负数折扣", func(t *testing.T) {
		c, w := createTestContext(http.MethodPost, "/", []byte(`{"month":"2025-01","contract_id":3,"discount":-1}`))
		var req sampleRequest
		assert.False(t, BindJSON(c, &req))
		assert.Contains(t, parseBody(t, w)["message"], "discount")
	})

	t.Run("非法 JSON", func(t *testing.T) {
		c, w := createTestContext(http.MethodPost, "/", []byte(`{`))
		var req sampleRequest
		assert.False(t, BindJSON(c, &req))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestParseParamID(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"12", true},
		{"0", false},
		{"-3", false},
		{"abc", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			c, w := createTestContext(http.MethodGet, "/", nil)
			c.Params = gin.Params{{Key: "id", Value: tt.value}}
			_, ok := ParseID(c, "锁位")
			assert.Equal(t, tt.ok, ok)
			if !ok {
				assert.Equal(t, http.StatusBadRequest, w.Code)
			}
		})
	}
}

func TestParseQueryID(t *testing.T) {
	c, _ := createTestContext(http.MethodGet, "/?contract_id=9", nil)
	id, ok := ParseQueryID(c, "contract_id", "合同")
	require.True(t, ok)
	assert.Equal(t, int64(9), *id)

	c, _ = createTestContext(http.MethodGet, "/", nil)
	id, ok = ParseQueryID(c, "contract_id", "合同")
	assert.True(t, ok)
	assert.Nil(t, id)
}

func TestParseYearMonth(t *testing.T) {
	tests := []struct {
		name   string
		target string
		year   int
		month  int
		ok     bool
	}{
		{"YYYY-MM 写法", "/?month=2025-02", 2025, 2, true},
		{"year+month 写法", "/?year=2024&month=11", 2024, 11, true},
		{"月份越界", "/?year=2024&month=13", 0, 0, false},
		{"缺少参数", "/", 0, 0, false},
		{"格式错误", "/?month=2025-2x", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := createTestContext(http.MethodGet, tt.target, nil)
			y, m, ok := ParseYearMonth(c)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.year, y)
				assert.Equal(t, tt.month, m)
			} else {
				assert.Equal(t, http.StatusBadRequest, w.Code)
			}
		})
	}
}

func TestBindPagination(t *testing.T) {
	c, _ := createTestContext(http.MethodGet, "/?page=2&page_size=500", nil)
	p := BindPagination(c)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 200, p.PageSize)

	c, _ = createTestContext(http.MethodGet, "/", nil)
	p = BindPagination(c)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PageSize)
}

func TestParseQueryBool(t *testing.T) {
	c, _ := createTestContext(http.MethodGet, "/?non_expired=true", nil)
	assert.True(t, ParseQueryBool(c, "non_expired", false))
	assert.False(t, ParseQueryBool(c, "missing", false))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-31")
	require.NoError(t, err)
	assert.Equal(t, 31, d.Day())

	_, err = ParseDate("31/03/2025")
	assert.True(t, errors.ErrInvalidParams.Is(err))
}
