package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gogomarket/rental-backend/internal/app"
	"github.com/gogomarket/rental-backend/internal/common/config"
	"github.com/gogomarket/rental-backend/internal/common/metrics"
	"github.com/gogomarket/rental-backend/tests/helpers"
)

type fakeMQTT struct{ connected bool }

func (f fakeMQTT) IsConnected() bool { return f.connected }

func newTestEngine(t *testing.T, authEnabled bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.Storage.LocalDir = t.TempDir()
	cfg.Auth.Enabled = authEnabled
	cfg.JWT.Secret = "test-secret"

	a, err := app.New(cfg, helpers.SetupTestDB(t), nil, metrics.Init("test"))
	require.NoError(t, err)

	engine := gin.New()
	setupRouter(engine, a, zap.NewNop(), nil, fakeMQTT{connected: false})
	return engine
}

func do(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	engine.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	engine := newTestEngine(t, true)

	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/health").Code)
	assert.Equal(t, "pong", do(engine, http.MethodGet, "/ping").Body.String())

	w := do(engine, http.MethodGet, "/ready")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"disabled"`)
	assert.Contains(t, w.Body.String(), `"mqtt":"disconnected"`)

	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/metrics").Code)
}

func TestRouter_AdminAuth(t *testing.T) {
	engine := newTestEngine(t, true)

	assert.Equal(t, http.StatusUnauthorized, do(engine, http.MethodGet, "/api/tenants").Code)
	assert.Equal(t, http.StatusUnauthorized, do(engine, http.MethodGet, "/api/bills").Code)

	// 公开接口不需要登录，缺少参数返回 400
	assert.Equal(t, http.StatusBadRequest, do(engine, http.MethodGet, "/api/get-bill-details").Code)
}

func TestRouter_AuthDisabled(t *testing.T) {
	engine := newTestEngine(t, false)

	w := do(engine, http.MethodGet, "/api/tenants")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/api/locks").Code)
	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/api/zones").Code)
}
