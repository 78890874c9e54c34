package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogomarket/rental-backend/tests/helpers"
)

func ready(t *testing.T, h gin.HandlerFunc) (int, HealthResponse) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ready", h)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func TestReadyHandler(t *testing.T) {
	db := helpers.SetupTestDB(t)
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	code, resp := ready(t, readyHandler(db, client, fakeMQTT{connected: true}))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]string{"database": "ok", "redis": "ok", "mqtt": "ok"}, resp.Checks)

	// Redis 不可用时不再就绪
	s.Close()
	code, resp = ready(t, readyHandler(db, client, nil))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready", resp.Status)
	assert.Contains(t, resp.Checks["redis"], "error")
	assert.Equal(t, "disabled", resp.Checks["mqtt"])

	// 数据库断开
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	code, resp = ready(t, readyHandler(db, nil, fakeMQTT{}))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, resp.Checks["database"], "error")
	assert.Equal(t, "disconnected", resp.Checks["mqtt"])
}
