// Package tenant 提供租户相关的 HTTP Handler
package tenant

import (
	"github.com/gin-gonic/gin"

	"github.com/gogomarket/rental-backend/internal/common/handler"
	tenantService "github.com/gogomarket/rental-backend/internal/service/tenant"
)

// Handler 租户处理器
type Handler struct {
	tenantService *tenantService.TenantService
}

// NewHandler 创建租户处理器
func NewHandler(tenantSvc *tenantService.TenantService) *Handler {
	return &Handler{tenantService: tenantSvc}
}

// Create 创建租户
// @Summary 创建租户
// @Tags 租户
// @Accept json
// @Produce json
// @Param request body tenantService.CreateTenantRequest true "请求参数"
// @Success 201 {object} response.Response{data=models.Tenant}
// @Router /api/tenants [post]
func (h *Handler) Create(c *gin.Context) {
	var req tenantService.CreateTenantRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	tenant, err := h.tenantService.Create(c.Request.Context(), &req)
	handler.MustCreate(c, err, tenant)
}

// List 租户列表
// @Summary 租户列表
// @Tags 租户
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Param keyword query string false "姓名/编号/电话"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/tenants [get]
func (h *Handler) List(c *gin.Context) {
	p := handler.BindPagination(c)

	list, total, err := h.tenantService.List(c.Request.Context(), p.Page, p.PageSize, c.Query("keyword"))
	handler.MustSucceedPage(c, err, list, total, p)
}

// Get 租户详情
// @Summary 租户详情
// @Tags 租户
// @Produce json
// @Param id path int true "租户ID"
// @Success 200 {object} response.Response{data=models.Tenant}
// @Router /api/tenants/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	id, ok := handler.ParseID(c, "租户")
	if !ok {
		return
	}

	tenant, err := h.tenantService.Get(c.Request.Context(), id)
	handler.MustSucceed(c, err, tenant)
}

// Update 更新租户
// @Summary 更新租户
// @Tags 租户
// @Accept json
// @Produce json
// @Param id path int true "租户ID"
// @Param request body tenantService.UpdateTenantRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Tenant}
// @Router /api/tenants/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	id, ok := handler.ParseID(c, "租户")
	if !ok {
		return
	}
	var req tenantService.UpdateTenantRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	tenant, err := h.tenantService.Update(c.Request.Context(), id, &req)
	handler.MustSucceed(c, err, tenant)
}

// LinkLine 客户通过编号绑定 LINE 账号
// @Summary 绑定 LINE 账号
// @Tags 租户
// @Accept json
// @Produce json
// @Param request body tenantService.LinkLineRequest true "请求参数"
// @Success 200 {object} response.Response{data=tenantService.LinkLineResult}
// @Router /api/tenants/line-link [post]
func (h *Handler) LinkLine(c *gin.Context) {
	var req tenantService.LinkLineRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	result, err := h.tenantService.LinkLine(c.Request.Context(), &req)
	handler.MustSucceed(c, err, result)
}

// RegisterRoutes 注册后台路由
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	tenants := r.Group("/tenants")
	{
		tenants.POST("", h.Create)
		tenants.GET("", h.List)
		tenants.GET("/:id", h.Get)
		tenants.PUT("/:id", h.Update)
	}
}

// RegisterPublicRoutes 注册公开路由
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/tenants/line-link", h.LinkLine)
}
