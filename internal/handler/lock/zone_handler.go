package lock

import (
	"github.com/gin-gonic/gin"

	"github.com/gogomarket/rental-backend/internal/common/handler"
	lockService "github.com/gogomarket/rental-backend/internal/service/lock"
)

// ZoneHandler 区域处理器
type ZoneHandler struct {
	zoneService *lockService.ZoneService
}

// NewZoneHandler 创建区域处理器
func NewZoneHandler(zoneSvc *lockService.ZoneService) *ZoneHandler {
	return &ZoneHandler{zoneService: zoneSvc}
}

// Create 创建区域
// @Summary 创建区域
// @Tags 区域
// @Accept json
// @Produce json
// @Param request body lockService.ZoneRequest true "请求参数"
// @Success 201 {object} response.Response{data=models.Zone}
// @Router /api/zones [post]
func (h *ZoneHandler) Create(c *gin.Context) {
	var req lockService.ZoneRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	zone, err := h.zoneService.Create(c.Request.Context(), &req)
	handler.MustCreate(c, err, zone)
}

// List 区域列表
// @Summary 区域列表
// @Tags 区域
// @Produce json
// @Param status query string false "状态"
// @Success 200 {object} response.Response{data=[]models.Zone}
// @Router /api/zones [get]
func (h *ZoneHandler) List(c *gin.Context) {
	zones, err := h.zoneService.List(c.Request.Context(), c.Query("status"))
	handler.MustSucceed(c, err, zones)
}

// Get 区域详情
// @Summary 区域详情
// @Tags 区域
// @Produce json
// @Param id path int true "区域ID"
// @Success 200 {object} response.Response{data=models.Zone}
// @Router /api/zones/{id} [get]
func (h *ZoneHandler) Get(c *gin.Context) {
	id, ok := handler.ParseID(c, "区域")
	if !ok {
		return
	}

	zone, err := h.zoneService.Get(c.Request.Context(), id)
	handler.MustSucceed(c, err, zone)
}

// Update 更新区域
// @Summary 更新区域
// @Tags 区域
// @Accept json
// @Produce json
// @Param id path int true "区域ID"
// @Param request body lockService.ZoneRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Zone}
// @Router /api/zones/{id} [put]
func (h *ZoneHandler) Update(c *gin.Context) {
	id, ok := handler.ParseID(c, "区域")
	if !ok {
		return
	}
	var req lockService.ZoneRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	zone, err := h.zoneService.Update(c.Request.Context(), id, &req)
	handler.MustSucceed(c, err, zone)
}

// Delete 删除区域
// @Summary 删除区域
// @Tags 区域
// @Produce json
// @Param id path int true "区域ID"
// @Success 200 {object} response.Response
// @Router /api/zones/{id} [delete]
func (h *ZoneHandler) Delete(c *gin.Context) {
	id, ok := handler.ParseID(c, "区域")
	if !ok {
		return
	}

	handler.MustSucceed(c, h.zoneService.Delete(c.Request.Context(), id), nil)
}

// RegisterRoutes 注册路由
func (h *ZoneHandler) RegisterRoutes(r *gin.RouterGroup) {
	zones := r.Group("/zones")
	{
		zones.POST("", h.Create)
		zones.GET("", h.List)
		zones.GET("/:id", h.Get)
		zones.PUT("/:id", h.Update)
		zones.DELETE("/:id", h.Delete)
	}
}
