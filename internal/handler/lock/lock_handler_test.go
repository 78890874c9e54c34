package lock

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/common/errors"
	"github.com/gogomarket/rental-backend/internal/common/handler"
	"github.com/gogomarket/rental-backend/internal/models"
	"github.com/gogomarket/rental-backend/internal/repository"
	lockService "github.com/gogomarket/rental-backend/internal/service/lock"
	"github.com/gogomarket/rental-backend/pkg/oss"
	"github.com/gogomarket/rental-backend/tests/helpers"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := handler.RegisterValidators(); err != nil {
		panic(err)
	}
}

func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	db := helpers.SetupTestDB(t)
	lockRepo := repository.NewLockRepository(db)
	zoneRepo := repository.NewZoneRepository(db)
	bindingRepo := repository.NewBindingRepository(db)
	meterRepo := repository.NewMeterRepository(db)
	reserveRepo := repository.NewLockReserveRepository(db)

	r := gin.New()
	api := r.Group("/api")
	NewZoneHandler(lockService.NewZoneService(zoneRepo)).RegisterRoutes(api)
	NewHandler(lockService.NewLockService(lockRepo, zoneRepo, bindingRepo, meterRepo, reserveRepo)).RegisterRoutes(api)
	NewReserveHandler(lockService.NewReserveService(reserveRepo, lockRepo, bindingRepo, oss.NewMockUploader())).RegisterRoutes(api)
	return r, db
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
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

func TestZoneCRUD(t *testing.T) {
	r, db := setupRouter(t)

	w, resp := doJSON(t, r, http.MethodPost, "/api/zones", gin.H{"name": "A"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var zone models.Zone
	require.NoError(t, json.Unmarshal(resp.Data, &zone))
	assert.Equal(t, "A", zone.Name)

	w, _ = doJSON(t, r, http.MethodPost, "/api/zones", gin.H{"pic": "x.png"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	id := strconv.FormatInt(zone.ID, 10)
	w, resp = doJSON(t, r, http.MethodPut, "/api/zones/"+id, gin.H{"name": "A1", "status": "inactive"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(resp.Data, &zone))
	assert.Equal(t, "A1", zone.Name)

	lock := helpers.CreateLock(t, db, "L-01", &zone.ID)
	w, _ = doJSON(t, r, http.MethodDelete, "/api/zones/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// 区域删除后锁位保留
	var got models.Lock
	require.NoError(t, db.First(&got, lock.ID).Error)
	assert.Nil(t, got.ZoneID)

	w, resp = doJSON(t, r, http.MethodGet, "/api/zones/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errors.ErrZoneNotFound.Code, resp.Code)

	w, _ = doJSON(t, r, http.MethodGet, "/api/zones/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLockMeters(t *testing.T) {
	r, db := setupRouter(t)

	w, resp := doJSON(t, r, http.MethodPost, "/api/locks", gin.H{"lock_number": "L-01", "lock_name": "Front"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var lock models.Lock
	require.NoError(t, json.Unmarshal(resp.Data, &lock))

	water := helpers.CreateMeter(t, db, "WM-01", models.MeterTypeWater)
	helpers.CreateMeter(t, db, "EM-01", models.MeterTypeElectric)

	path := "/api/locks/" + strconv.FormatInt(lock.ID, 10) + "/meters"
	w, _ = doJSON(t, r, http.MethodPost, path, gin.H{"meter_id": water.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// 同一块表不能挂两个锁位
	other := helpers.CreateLock(t, db, "L-02", nil)
	w, resp = doJSON(t, r, http.MethodPost, "/api/lock_has_meters", gin.H{"lock_id": other.ID, "meter_id": water.ID})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, errors.ErrMeterAlreadyBound.Code, resp.Code)

	w, resp = doJSON(t, r, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var meters []models.Meter
	require.NoError(t, json.Unmarshal(resp.Data, &meters))
	require.Len(t, meters, 1)
	assert.Equal(t, "WM-01", meters[0].AssetTag)

	w, resp = doJSON(t, r, http.MethodGet, "/api/locks/available-meters", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &meters))
	require.Len(t, meters, 1)
	assert.Equal(t, "EM-01", meters[0].AssetTag)

	w, _ = doJSON(t, r, http.MethodDelete, path+"/"+strconv.FormatInt(water.ID, 10), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(t, r, http.MethodDelete, path+"/"+strconv.FormatInt(water.ID, 10), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReserveLifecycle(t *testing.T) {
	r, db := setupRouter(t)
	lock := helpers.CreateLock(t, db, "L-09", nil)

	w, resp := doJSON(t, r, http.MethodPost, "/api/lock-reserves", gin.H{"lock_id": lock.ID, "reserver_name": "Nok"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var reserve models.LockReserve
	require.NoError(t, json.Unmarshal(resp.Data, &reserve))
	id := strconv.FormatInt(reserve.ID, 10)

	// 附件
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", "deposit.pdf")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("%PDF-1.4"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/lock-reserves/"+id+"/attachments", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	w, resp = doJSON(t, r, http.MethodGet, "/api/locks-reserves", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var active []models.LockReserve
	require.NoError(t, json.Unmarshal(resp.Data, &active))
	assert.Len(t, active, 1)

	// 旧前端写 deleted_at 取消
	w, _ = doJSON(t, r, http.MethodPut, "/api/lock-reserves/"+id, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = doJSON(t, r, http.MethodPut, "/api/lock-reserves/"+id, gin.H{"deleted_at": "2025-07-01T00:00:00Z"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, resp = doJSON(t, r, http.MethodGet, "/api/lock-reserves", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &active))
	assert.Empty(t, active)

	w, resp = doJSON(t, r, http.MethodGet, "/api/locks-reserves/"+strconv.FormatInt(lock.ID, 10)+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []models.LockReserve
	require.NoError(t, json.Unmarshal(resp.Data, &history))
	assert.Len(t, history, 1)
}
