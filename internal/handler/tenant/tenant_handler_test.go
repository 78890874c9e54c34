package tenant

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogomarket/rental-backend/internal/common/errors"
	"github.com/gogomarket/rental-backend/internal/common/handler"
	"github.com/gogomarket/rental-backend/internal/models"
	"github.com/gogomarket/rental-backend/internal/repository"
	tenantService "github.com/gogomarket/rental-backend/internal/service/tenant"
	"github.com/gogomarket/rental-backend/tests/helpers"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := handler.RegisterValidators(); err != nil {
		panic(err)
	}
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type failingWelcomer struct{}

func (failingWelcomer) SendWelcome(context.Context, *models.Tenant) error {
	return stderrors.New("line unavailable")
}

func setupRouter(t *testing.T) *gin.Engine {
	db := helpers.SetupTestDB(t)
	h := NewHandler(tenantService.NewTenantService(db, repository.NewTenantRepository(db), failingWelcomer{}))
	r := gin.New()
	api := r.Group("/api")
	h.RegisterRoutes(api)
	h.RegisterPublicRoutes(api)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w, resp
}

func TestTenantFlow(t *testing.T) {
	r := setupRouter(t)

	w, resp := do(t, r, http.MethodPost, "/api/tenants", gin.H{"first_name": "Somchai", "phone": "0812345678"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var tenant models.Tenant
	require.NoError(t, json.Unmarshal(resp.Data, &tenant))
	require.NotEmpty(t, tenant.Code)

	w, _ = do(t, r, http.MethodPost, "/api/tenants", gin.H{"phone": "0812345678"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = do(t, r, http.MethodGet, "/api/tenants?keyword=0812", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &page))
	assert.Equal(t, int64(1), page.Total)

	id := strconv.FormatInt(tenant.ID, 10)
	w, resp = do(t, r, http.MethodPut, "/api/tenants/"+id, gin.H{"nick_name": "Chai"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &tenant))
	assert.Equal(t, "Chai", tenant.NickName)

	// 欢迎消息失败不影响绑定
	w, resp = do(t, r, http.MethodPost, "/api/tenants/line-link", gin.H{"customer_code": tenant.Code, "line_id": "U123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var linked tenantService.LinkLineResult
	require.NoError(t, json.Unmarshal(resp.Data, &linked))
	assert.False(t, linked.Notified)
	assert.Equal(t, "U123", linked.Tenant.LineID)

	w, resp = do(t, r, http.MethodPost, "/api/tenants/line-link", gin.H{"customer_code": "C000000-99999", "line_id": "U123"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errors.ErrTenantCodeNotFound.Code, resp.Code)
}
