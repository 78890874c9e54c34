// Package meter 提供水电表和抄表记录的 HTTP Handler
package meter

import (
	"github.com/gin-gonic/gin"

	"github.com/gogomarket/rental-backend/internal/common/handler"
	meterService "github.com/gogomarket/rental-backend/internal/service/meter"
)

// Handler 表处理器
type Handler struct {
	meterService *meterService.MeterService
	usageService *meterService.UsageService
}

// NewHandler 创建表处理器
func NewHandler(meterSvc *meterService.MeterService, usageSvc *meterService.UsageService) *Handler {
	return &Handler{
		meterService: meterSvc,
		usageService: usageSvc,
	}
}

// Create 创建表
// @Summary 创建表
// @Tags 水电表
// @Accept json
// @Produce json
// @Param request body meterService.CreateMeterRequest true "请求参数"
// @Success 201 {object} response.Response{data=models.Meter}
// @Router /api/meters [post]
func (h *Handler) Create(c *gin.Context) {
	var req meterService.CreateMeterRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	meter, err := h.meterService.Create(c.Request.Context(), &req)
	handler.MustCreate(c, err, meter)
}

// List 表列表
// @Summary 表列表
// @Tags 水电表
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Param meter_type query string false "表类型"
// @Param status query string false "状态"
// @Param keyword query string false "编号/资产标签"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/meters [get]
func (h *Handler) List(c *gin.Context) {
	var req meterService.ListMetersRequest
	if !handler.BindQuery(c, &req) {
		return
	}
	p := handler.BindPagination(c)
	req.Page, req.PageSize = p.Page, p.PageSize

	list, total, err := h.meterService.List(c.Request.Context(), &req)
	handler.MustSucceedPage(c, err, list, total, p)
}

// Get 表详情
// @Summary 表详情
// @Tags 水电表
// @Produce json
// @Param id path int true "表ID"
// @Success 200 {object} response.Response{data=models.Meter}
// @Router /api/meters/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	id, ok := handler.ParseID(c, "表")
	if !ok {
		return
	}

	meter, err := h.meterService.Get(c.Request.Context(), id)
	handler.MustSucceed(c, err, meter)
}

// Update 更新表
// @Summary 更新表
// @Tags 水电表
// @Accept json
// @Produce json
// @Param id path int true "表ID"
// @Param request body meterService.UpdateMeterRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Meter}
// @Router /api/meters/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	id, ok := handler.ParseID(c, "表")
	if !ok {
		return
	}
	var req meterService.UpdateMeterRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	meter, err := h.meterService.Update(c.Request.Context(), id, &req)
	handler.MustSucceed(c, err, meter)
}

// Delete 删除表
// @Summary 删除表
// @Tags 水电表
// @Produce json
// @Param id path int true "表ID"
// @Success 200 {object} response.Response
// @Router /api/meters/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	id, ok := handler.ParseID(c, "表")
	if !ok {
		return
	}

	handler.MustSucceed(c, h.meterService.Delete(c.Request.Context(), id), nil)
}

// Binding 表当前挂载的锁位
// @Summary 表挂载的锁位
// @Tags 水电表
// @Produce json
// @Param id path int true "表ID"
// @Success 200 {object} response.Response{data=models.LockHasMeter}
// @Router /api/meters/{id}/binding [get]
func (h *Handler) Binding(c *gin.Context) {
	id, ok := handler.ParseID(c, "表")
	if !ok {
		return
	}

	lhm, err := h.meterService.Binding(c.Request.Context(), id)
	handler.MustSucceed(c, err, lhm)
}

// History 表的抄表历史
// @Summary 抄表历史
// @Tags 水电表
// @Produce json
// @Param id path int true "表ID"
// @Success 200 {object} response.Response{data=[]models.MeterUsage}
// @Router /api/meters/{id}/usages [get]
func (h *Handler) History(c *gin.Context) {
	id, ok := handler.ParseID(c, "表")
	if !ok {
		return
	}

	usages, err := h.usageService.History(c.Request.Context(), id)
	handler.MustSucceed(c, err, usages)
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	meters := r.Group("/meters")
	{
		meters.POST("", h.Create)
		meters.GET("", h.List)
		meters.GET("/:id", h.Get)
		meters.PUT("/:id", h.Update)
		meters.DELETE("/:id", h.Delete)
		meters.GET("/:id/binding", h.Binding)
		meters.GET("/:id/usages", h.History)
	}

	usages := r.Group("/meter_usages")
	{
		usages.GET("", h.MonthlySheet)
		usages.POST("", h.BulkUpsert)
		usages.PUT("/update", h.BulkUpsert)
		usages.POST("/capture", h.Capture)
		usages.GET("/:id", h.Latest)
		usages.GET("/:id/:month", h.ByMonth)
	}
}
