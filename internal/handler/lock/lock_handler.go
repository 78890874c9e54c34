// Package lock 提供区域、锁位和锁位预订的 HTTP Handler
package lock

import (
	"github.com/gin-gonic/gin"

	"github.com/gogomarket/rental-backend/internal/common/handler"
	lockService "github.com/gogomarket/rental-backend/internal/service/lock"
)

// Handler 锁位处理器
type Handler struct {
	lockService *lockService.LockService
}

// NewHandler 创建锁位处理器
func NewHandler(lockSvc *lockService.LockService) *Handler {
	return &Handler{lockService: lockSvc}
}

// Create 创建锁位
// @Summary 创建锁位
// @Tags 锁位
// @Accept json
// @Produce json
// @Param request body lockService.CreateLockRequest true "请求参数"
// @Success 201 {object} response.Response{data=models.Lock}
// @Router /api/locks [post]
func (h *Handler) Create(c *gin.Context) {
	var req lockService.CreateLockRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	lock, err := h.lockService.Create(c.Request.Context(), &req)
	handler.MustCreate(c, err, lock)
}

// List 锁位列表
// @Summary 锁位列表
// @Tags 锁位
// @Produce json
// @Param zone_id query int false "区域ID"
// @Param status query string false "状态"
// @Param keyword query string false "编号/名称"
// @Success 200 {object} response.Response{data=[]models.Lock}
// @Router /api/locks [get]
func (h *Handler) List(c *gin.Context) {
	var req lockService.ListLocksRequest
	if !handler.BindQuery(c, &req) {
		return
	}

	locks, err := h.lockService.List(c.Request.Context(), &req)
	handler.MustSucceed(c, err, locks)
}

// ListWithContracts 锁位及当前合同
// @Summary 锁位及当前合同
// @Tags 锁位
// @Produce json
// @Param zone_id query int false "区域ID"
// @Param status query string false "状态"
// @Param keyword query string false "编号/名称"
// @Success 200 {object} response.Response{data=[]lockService.LockWithContract}
// @Router /api/locks/with-contracts [get]
func (h *Handler) ListWithContracts(c *gin.Context) {
	var req lockService.ListLocksRequest
	if !handler.BindQuery(c, &req) {
		return
	}

	locks, err := h.lockService.ListWithContracts(c.Request.Context(), &req)
	handler.MustSucceed(c, err, locks)
}

// Get 锁位详情
// @Summary 锁位详情
// @Tags 锁位
// @Produce json
// @Param id path int true "锁位ID"
// @Success 200 {object} response.Response{data=models.Lock}
// @Router /api/locks/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	id, ok := handler.ParseID(c, "锁位")
	if !ok {
		return
	}

	lock, err := h.lockService.Get(c.Request.Context(), id)
	handler.MustSucceed(c, err, lock)
}

// Update 更新锁位
// @Summary 更新锁位
// @Tags 锁位
// @Accept json
// @Produce json
// @Param id path int true "锁位ID"
// @Param request body lockService.UpdateLockRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Lock}
// @Router /api/locks/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	id, ok := handler.ParseID(c, "锁位")
	if !ok {
		return
	}
	var req lockService.UpdateLockRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	lock, err := h.lockService.Update(c.Request.Context(), id, &req)
	handler.MustSucceed(c, err, lock)
}

// BindMeterRequest 挂表请求
type BindMeterRequest struct {
	MeterID int64 `json:"meter_id" binding:"required,gt=0"`
}

// BindMeter 把表挂到锁位
// @Summary 锁位挂表
// @Tags 锁位
// @Accept json
// @Produce json
// @Param id path int true "锁位ID"
// @Param request body BindMeterRequest true "请求参数"
// @Success 201 {object} response.Response{data=models.LockHasMeter}
// @Router /api/locks/{id}/meters [post]
func (h *Handler) BindMeter(c *gin.Context) {
	id, ok := handler.ParseID(c, "锁位")
	if !ok {
		return
	}
	var req BindMeterRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	lhm, err := h.lockService.BindMeter(c.Request.Context(), id, req.MeterID)
	handler.MustCreate(c, err, lhm)
}

// LockMeterRequest 锁位挂表请求（扁平路径）
type LockMeterRequest struct {
	LockID  int64 `json:"lock_id" binding:"required,gt=0"`
	MeterID int64 `json:"meter_id" binding:"required,gt=0"`
}

// CreateLockMeter 锁位挂表
// @Summary 锁位挂表
// @Tags 锁位
// @Accept json
// @Produce json
// @Param request body LockMeterRequest true "请求参数"
// @Success 201 {object} response.Response{data=models.LockHasMeter}
// @Router /api/lock_has_meters [post]
func (h *Handler) CreateLockMeter(c *gin.Context) {
	var req LockMeterRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	lhm, err := h.lockService.BindMeter(c.Request.Context(), req.LockID, req.MeterID)
	handler.MustCreate(c, err, lhm)
}

// UnbindMeter 从锁位摘下表
// @Summary 锁位摘表
// @Tags 锁位
// @Produce json
// @Param id path int true "锁位ID"
// @Param meter_id path int true "表ID"
// @Success 200 {object} response.Response
// @Router /api/locks/{id}/meters/{meter_id} [delete]
func (h *Handler) UnbindMeter(c *gin.Context) {
	id, ok := handler.ParseID(c, "锁位")
	if !ok {
		return
	}
	meterID, ok := handler.ParseParamID(c, "meter_id", "表")
	if !ok {
		return
	}

	handler.MustSucceed(c, h.lockService.UnbindMeter(c.Request.Context(), id, meterID), nil)
}

// ListMeters 锁位下的表
// @Summary 锁位下的表
// @Tags 锁位
// @Produce json
// @Param id path int true "锁位ID"
// @Success 200 {object} response.Response{data=[]models.Meter}
// @Router /api/locks/{id}/meters [get]
func (h *Handler) ListMeters(c *gin.Context) {
	id, ok := handler.ParseID(c, "锁位")
	if !ok {
		return
	}

	meters, err := h.lockService.ListMeters(c.Request.Context(), id)
	handler.MustSucceed(c, err, meters)
}

// AvailableMeters 未挂到锁位的表
// @Summary 可挂载的表
// @Tags 锁位
// @Produce json
// @Param meter_type query string false "表类型"
// @Success 200 {object} response.Response{data=[]models.Meter}
// @Router /api/locks/available-meters [get]
func (h *Handler) AvailableMeters(c *gin.Context) {
	meters, err := h.lockService.AvailableMeters(c.Request.Context(), c.Query("meter_type"))
	handler.MustSucceed(c, err, meters)
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	locks := r.Group("/locks")
	{
		locks.POST("", h.Create)
		locks.GET("", h.List)
		locks.GET("/with-contracts", h.ListWithContracts)
		locks.GET("/available-meters", h.AvailableMeters)
		locks.GET("/:id", h.Get)
		locks.PUT("/:id", h.Update)
		locks.GET("/:id/meters", h.ListMeters)
		locks.POST("/:id/meters", h.BindMeter)
		locks.DELETE("/:id/meters/:meter_id", h.UnbindMeter)
	}

	r.POST("/lock_has_meters", h.CreateLockMeter)
}
