package billing

import (
	"github.com/gin-gonic/gin"

	"github.com/gogomarket/rental-backend/internal/common/handler"
	"github.com/gogomarket/rental-backend/internal/common/response"
	billingService "github.com/gogomarket/rental-backend/internal/service/billing"
)

// GetBillDetails 租户查看账单
// @Summary 公开账单详情
// @Description 租户通过通知里的链接，凭账单号和参考号查看账单
// @Tags 账单公开接口
// @Produce json
// @Param bill_number query string true "账单号"
// @Param ref_number query string true "参考号"
// @Success 200 {object} response.Response{data=billingService.PublicBill}
// @Router /api/get-bill-details [get]
func (h *Handler) GetBillDetails(c *gin.Context) {
	billNumber := c.Query("bill_number")
	refNumber := c.Query("ref_number")
	if billNumber == "" || refNumber == "" {
		response.BadRequest(c, "bill_number 和 ref_number 不能为空")
		return
	}

	bill, err := h.billingService.PublicDetails(c.Request.Context(), billNumber, refNumber)
	handler.MustSucceed(c, err, bill)
}

// SendPaymentSlip 租户上传付款凭证
// @Summary 上传付款凭证
// @Tags 账单公开接口
// @Accept multipart/form-data
// @Produce json
// @Param bill_number formData string true "账单号"
// @Param ref_number formData string true "参考号"
// @Param transaction_type formData string false "付款方式"
// @Param amount formData string false "金额，默认账单总额"
// @Param transaction_date formData string false "付款日期 YYYY-MM-DD"
// @Param files formData file true "付款凭证"
// @Success 201 {object} response.Response{data=models.BillTransaction}
// @Router /api/send-payment-slip [post]
func (h *Handler) SendPaymentSlip(c *gin.Context) {
	var req billingService.PaymentSlipRequest
	if !handler.BindForm(c, &req) {
		return
	}
	files, ok := handler.OpenFormFiles(c, "files", "files[]", "file")
	if !ok {
		return
	}
	defer handler.CloseFiles(files)

	slips := make([]billingService.File, 0, len(files))
	for _, f := range files {
		slips = append(slips, billingService.File{Name: f.Name, Size: f.Size, Content: f.Content})
	}

	txn, err := h.billingService.SendPaymentSlip(c.Request.Context(), &req, slips)
	handler.MustCreate(c, err, txn)
}

// RegisterPublicRoutes 注册公开路由
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.GET("/get-bill-details", h.GetBillDetails)
	r.POST("/send-payment-slip", h.SendPaymentSlip)
}
