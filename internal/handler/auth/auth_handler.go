// Package auth 提供后台管理员认证的 HTTP Handler
package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/gogomarket/rental-backend/internal/common/handler"
	authService "github.com/gogomarket/rental-backend/internal/service/auth"
)

// Handler 认证处理器
type Handler struct {
	authService  *authService.AuthService
	auditService *authService.AuditService
}

// NewHandler 创建认证处理器，auditSvc 为空时不注册日志查询接口
func NewHandler(authSvc *authService.AuthService, auditSvc *authService.AuditService) *Handler {
	return &Handler{authService: authSvc, auditService: auditSvc}
}

// Login 管理员登录
// @Summary 管理员登录
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body authService.LoginRequest true "请求参数"
// @Success 200 {object} response.Response{data=authService.LoginResponse}
// @Router /api/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req authService.LoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	req.IP = c.ClientIP()

	result, err := h.authService.Login(c.Request.Context(), &req)
	handler.MustSucceed(c, err, result)
}

// RefreshTokenRequest 刷新 Token 请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RefreshToken 刷新 Token
// @Summary 刷新 Token
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body RefreshTokenRequest true "请求参数"
// @Success 200 {object} response.Response{data=jwt.TokenPair}
// @Router /api/auth/refresh [post]
func (h *Handler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	tokenPair, err := h.authService.RefreshToken(c.Request.Context(), req.RefreshToken)
	handler.MustSucceed(c, err, tokenPair)
}

// Me 获取当前管理员
// @Summary 获取当前管理员信息
// @Tags 认证
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=authService.AdminInfo}
// @Router /api/auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	adminID, ok := handler.RequireAdminID(c)
	if !ok {
		return
	}

	info, err := h.authService.Me(c.Request.Context(), adminID)
	handler.MustSucceed(c, err, info)
}

// ChangePassword 修改密码
// @Summary 修改密码
// @Tags 认证
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body authService.ChangePasswordRequest true "请求参数"
// @Success 200 {object} response.Response
// @Router /api/auth/password [put]
func (h *Handler) ChangePassword(c *gin.Context) {
	adminID, ok := handler.RequireAdminID(c)
	if !ok {
		return
	}
	var req authService.ChangePasswordRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	handler.MustSucceed(c, h.authService.ChangePassword(c.Request.Context(), adminID, &req), nil)
}

// ListOperationLogs 操作日志
// @Summary 后台操作日志
// @Tags 认证
// @Produce json
// @Security Bearer
// @Param admin_id query int false "管理员ID"
// @Param module query string false "模块，如 contract、bill"
// @Param target_id query int false "目标ID"
// @Param from query string false "开始日期 YYYY-MM-DD"
// @Param to query string false "结束日期 YYYY-MM-DD（含）"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/operation-logs [get]
func (h *Handler) ListOperationLogs(c *gin.Context) {
	var req authService.ListLogsRequest
	if !handler.BindQuery(c, &req) {
		return
	}
	list, total, p, err := h.auditService.List(c.Request.Context(), &req)
	handler.MustSucceedPage(c, err, list, total, p)
}

// RegisterRoutes 注册公开路由
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.RefreshToken)
	}
}

// RegisterProtectedRoutes 注册需要登录的路由
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.GET("/me", h.Me)
		auth.PUT("/password", h.ChangePassword)
	}
	if h.auditService != nil {
		r.GET("/operation-logs", h.ListOperationLogs)
	}
}
