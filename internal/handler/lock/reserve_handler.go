package lock

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gogomarket/rental-backend/internal/common/handler"
	"github.com/gogomarket/rental-backend/internal/common/response"
	"github.com/gogomarket/rental-backend/internal/middleware"
	lockService "github.com/gogomarket/rental-backend/internal/service/lock"
)

// ReserveHandler 锁位预订处理器
type ReserveHandler struct {
	reserveService *lockService.ReserveService
}

// NewReserveHandler 创建锁位预订处理器
func NewReserveHandler(reserveSvc *lockService.ReserveService) *ReserveHandler {
	return &ReserveHandler{reserveService: reserveSvc}
}

// List 有效预订列表
// @Summary 有效预订列表
// @Tags 锁位预订
// @Produce json
// @Success 200 {object} response.Response{data=[]models.LockReserve}
// @Router /api/lock-reserves [get]
func (h *ReserveHandler) List(c *gin.Context) {
	reserves, err := h.reserveService.ListActive(c.Request.Context())
	handler.MustSucceed(c, err, reserves)
}

// Create 创建预订
// @Summary 创建预订
// @Tags 锁位预订
// @Accept json
// @Produce json
// @Param request body lockService.CreateReserveRequest true "请求参数"
// @Success 201 {object} response.Response{data=models.LockReserve}
// @Router /api/lock-reserves [post]
func (h *ReserveHandler) Create(c *gin.Context) {
	var req lockService.CreateReserveRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	reserve, err := h.reserveService.Create(c.Request.Context(), middleware.GetAdminID(c), &req)
	handler.MustCreate(c, err, reserve)
}

// Get 预订详情
// @Summary 预订详情
// @Tags 锁位预订
// @Produce json
// @Param id path int true "预订ID"
// @Success 200 {object} response.Response{data=models.LockReserve}
// @Router /api/lock-reserves/{id} [get]
func (h *ReserveHandler) Get(c *gin.Context) {
	id, ok := handler.ParseID(c, "预订")
	if !ok {
		return
	}

	reserve, err := h.reserveService.Get(c.Request.Context(), id)
	handler.MustSucceed(c, err, reserve)
}

// Cancel 取消预订
// @Summary 取消预订
// @Tags 锁位预订
// @Produce json
// @Param id path int true "预订ID"
// @Success 200 {object} response.Response
// @Router /api/lock-reserves/{id} [delete]
func (h *ReserveHandler) Cancel(c *gin.Context) {
	id, ok := handler.ParseID(c, "预订")
	if !ok {
		return
	}

	handler.MustSucceed(c, h.reserveService.Cancel(c.Request.Context(), id), nil)
}

// UpdateReserveRequest 旧前端通过写 deleted_at 取消预订
type UpdateReserveRequest struct {
	DeletedAt *time.Time `json:"deleted_at"`
}

// Update 更新预订，目前只支持取消
// @Summary 更新预订
// @Tags 锁位预订
// @Accept json
// @Produce json
// @Param id path int true "预订ID"
// @Param request body UpdateReserveRequest true "请求参数"
// @Success 200 {object} response.Response
// @Router /api/lock-reserves/{id} [put]
func (h *ReserveHandler) Update(c *gin.Context) {
	id, ok := handler.ParseID(c, "预订")
	if !ok {
		return
	}
	var req UpdateReserveRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	if req.DeletedAt == nil {
		response.BadRequest(c, "仅支持通过 deleted_at 取消预订")
		return
	}

	handler.MustSucceed(c, h.reserveService.Cancel(c.Request.Context(), id), nil)
}

// AddAttachment 上传预订附件
// @Summary 上传预订附件
// @Tags 锁位预订
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "预订ID"
// @Param file formData file true "附件"
// @Success 201 {object} response.Response{data=models.LockReserveAttachment}
// @Router /api/lock-reserves/{id}/attachments [post]
func (h *ReserveHandler) AddAttachment(c *gin.Context) {
	id, ok := handler.ParseID(c, "预订")
	if !ok {
		return
	}
	files, ok := handler.OpenFormFiles(c, "file")
	if !ok {
		return
	}
	defer handler.CloseFiles(files)
	if len(files) == 0 {
		response.BadRequest(c, "请选择要上传的文件")
		return
	}

	att, err := h.reserveService.AddAttachment(c.Request.Context(), id, files[0].Name, files[0].Content)
	handler.MustCreate(c, err, att)
}

// History 锁位的预订历史
// @Summary 锁位预订历史
// @Tags 锁位预订
// @Produce json
// @Param lock_id path int true "锁位ID"
// @Success 200 {object} response.Response{data=[]models.LockReserve}
// @Router /api/locks-reserves/{lock_id}/history [get]
func (h *ReserveHandler) History(c *gin.Context) {
	lockID, ok := handler.ParseParamID(c, "lock_id", "锁位")
	if !ok {
		return
	}

	reserves, err := h.reserveService.History(c.Request.Context(), lockID)
	handler.MustSucceed(c, err, reserves)
}

// RegisterRoutes 注册路由
// /locks-reserves 为旧前端使用的路径
func (h *ReserveHandler) RegisterRoutes(r *gin.RouterGroup) {
	reserves := r.Group("/lock-reserves")
	{
		reserves.GET("", h.List)
		reserves.POST("", h.Create)
		reserves.GET("/:id", h.Get)
		reserves.PUT("/:id", h.Update)
		reserves.DELETE("/:id", h.Cancel)
		reserves.POST("/:id/attachments", h.AddAttachment)
	}

	legacy := r.Group("/locks-reserves")
	{
		legacy.GET("", h.List)
		legacy.GET("/:lock_id/history", h.History)
	}
}
