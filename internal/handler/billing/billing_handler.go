// Package billing 提供账单、付款凭证和导出的 HTTP Handler
package billing

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gogomarket/rental-backend/internal/common/handler"
	"github.com/gogomarket/rental-backend/internal/middleware"
	billingService "github.com/gogomarket/rental-backend/internal/service/billing"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler 账单处理器
type Handler struct {
	billingService *billingService.BillingService
}

// NewHandler 创建账单处理器
func NewHandler(billingSvc *billingService.BillingService) *Handler {
	return &Handler{billingService: billingSvc}
}

// Eligible 可出账合同
// @Summary 可出账合同
// @Description 指定月份有有效绑定的合同，附带用量、金额试算和已有账单
// @Tags 账单
// @Produce json
// @Param year query int true "年"
// @Param month query int true "月"
// @Success 200 {object} response.Response{data=[]billingService.EligibleContract}
// @Router /api/eligible-locks-for-billing [get]
func (h *Handler) Eligible(c *gin.Context) {
	year, month, ok := handler.ParseYearMonth(c)
	if !ok {
		return
	}

	list, err := h.billingService.Eligible(c.Request.Context(), year, month)
	handler.MustSucceed(c, err, list)
}

// CreateBills 批量出账
// @Summary 批量出账
// @Description 每份合同独立出账，返回逐项结果；send_notification_via_line 默认 true
// @Tags 账单
// @Accept json
// @Produce json
// @Param created_by query int false "操作人"
// @Param send_notification_via_line query bool false "出账后通知租户"
// @Param request body []billingService.CreateBillItem true "出账列表"
// @Success 200 {object} response.Response{data=[]billingService.CreateBillResult}
// @Router /api/create-bills [post]
func (h *Handler) CreateBills(c *gin.Context) {
	var items []billingService.CreateBillItem
	if !handler.BindJSON(c, &items) {
		return
	}

	createdBy := middleware.GetAdminID(c)
	if createdBy == 0 {
		createdBy, _ = strconv.ParseInt(c.Query("created_by"), 10, 64)
	}

	results, err := h.billingService.CreateBills(c.Request.Context(), &billingService.CreateBillsRequest{
		Items:     items,
		CreatedBy: createdBy,
		Notify:    handler.ParseQueryBool(c, "send_notification_via_line", true),
	})
	handler.MustSucceed(c, err, results)
}

// List 账单列表
// @Summary 账单列表
// @Tags 账单
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Param year query int false "年"
// @Param month query int false "月"
// @Param status query string false "状态"
// @Param contract_id query int false "合同ID"
// @Param tenant_id query int false "租户ID"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/bills [get]
func (h *Handler) List(c *gin.Context) {
	var req billingService.ListBillsRequest
	if !handler.BindQuery(c, &req) {
		return
	}
	p := handler.BindPagination(c)
	req.Page, req.PageSize = p.Page, p.PageSize

	list, total, err := h.billingService.List(c.Request.Context(), &req)
	handler.MustSucceedPage(c, err, list, total, p)
}

// Get 账单详情
// @Summary 账单详情
// @Tags 账单
// @Produce json
// @Param id path int true "账单ID"
// @Success 200 {object} response.Response{data=models.Bill}
// @Router /api/bills/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	id, ok := handler.ParseID(c, "账单")
	if !ok {
		return
	}

	bill, err := h.billingService.Get(c.Request.Context(), id)
	handler.MustSucceed(c, err, bill)
}

// Cancel 作废账单
// @Summary 作废账单
// @Tags 账单
// @Produce json
// @Param id path int true "账单ID"
// @Success 200 {object} response.Response
// @Router /api/bills/{id} [delete]
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := handler.ParseID(c, "账单")
	if !ok {
		return
	}

	handler.MustSucceed(c, h.billingService.Cancel(c.Request.Context(), id), nil)
}

// ConfirmPayment 确认收款
// @Summary 确认收款
// @Tags 账单
// @Accept json
// @Produce json
// @Param id path int true "账单ID"
// @Param request body billingService.ConfirmPaymentRequest false "请求参数"
// @Success 200 {object} response.Response{data=models.Bill}
// @Router /api/bills/{id}/confirm [post]
func (h *Handler) ConfirmPayment(c *gin.Context) {
	id, ok := handler.ParseID(c, "账单")
	if !ok {
		return
	}
	var req billingService.ConfirmPaymentRequest
	if c.Request.ContentLength > 0 && !handler.BindJSON(c, &req) {
		return
	}

	bill, err := h.billingService.ConfirmPayment(c.Request.Context(), id, &req)
	handler.MustSucceed(c, err, bill)
}

// Export 导出月度账单
// @Summary 导出月度账单
// @Tags 账单
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param month query string true "月份 YYYY-MM"
// @Success 200 {file} file
// @Router /api/bills/export [get]
func (h *Handler) Export(c *gin.Context) {
	year, month, ok := handler.ParseYearMonth(c)
	if !ok {
		return
	}

	data, filename, err := h.billingService.ExportMonth(c.Request.Context(), year, month)
	if handler.HandleError(c, err) {
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

// RegisterRoutes 注册后台路由
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	bills := r.Group("/bills")
	{
		bills.GET("", h.List)
		bills.GET("/eligible", h.Eligible)
		bills.GET("/export", h.Export)
		bills.POST("/batch", h.CreateBills)
		bills.GET("/:id", h.Get)
		bills.DELETE("/:id", h.Cancel)
		bills.POST("/:id/confirm", h.ConfirmPayment)
	}

	r.GET("/eligible-locks-for-billing", h.Eligible)
	r.POST("/create-bills", h.CreateBills)
}
