package meter

import (
	"github.com/gin-gonic/gin"

	"github.com/gogomarket/rental-backend/internal/common/handler"
	"github.com/gogomarket/rental-backend/internal/common/response"
	"github.com/gogomarket/rental-backend/internal/common/utils"
	meterService "github.com/gogomarket/rental-backend/internal/service/meter"
)

// MonthlySheet 月度抄表表格
// @Summary 月度抄表表格
// @Tags 抄表
// @Produce json
// @Param month query string true "月份 YYYY-MM"
// @Success 200 {object} response.Response{data=[]meterService.SheetRow}
// @Router /api/meter_usages [get]
func (h *Handler) MonthlySheet(c *gin.Context) {
	year, month, ok := handler.ParseYearMonth(c)
	if !ok {
		return
	}

	rows, err := h.usageService.MonthlySheet(c.Request.Context(), year, month)
	handler.MustSucceed(c, err, rows)
}

// BulkUpsert 批量修正并确认读数
// @Summary 批量录入读数
// @Description 带 meter_usage_id 的行修正后确认，其余行直接新增为已确认
// @Tags 抄表
// @Accept json
// @Produce json
// @Param request body meterService.BulkUpsertRequest true "请求参数"
// @Success 200 {object} response.Response{data=meterService.BulkResult}
// @Router /api/meter_usages [post]
func (h *Handler) BulkUpsert(c *gin.Context) {
	var req meterService.BulkUpsertRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	year, month, err := utils.ParseYearMonth(req.Month)
	if err != nil {
		response.BadRequest(c, "月份格式错误，应为 YYYY-MM")
		return
	}

	result, err := h.usageService.BulkUpsert(c.Request.Context(), year, month, req.Data)
	handler.MustSucceed(c, err, result)
}

// Capture 按资产标签录入本月读数
// @Summary 录入本月读数
// @Tags 抄表
// @Accept multipart/form-data
// @Produce json
// @Param meter_asset_tag formData string true "资产标签"
// @Param meter_end formData string true "本期读数"
// @Param note formData string false "备注"
// @Param img formData file false "抄表照片"
// @Success 201 {object} response.Response{data=models.MeterUsage}
// @Router /api/meter_usages/capture [post]
func (h *Handler) Capture(c *gin.Context) {
	var req meterService.CaptureRequest
	if !handler.BindForm(c, &req) {
		return
	}
	files, ok := handler.OpenFormFiles(c, "img", "file")
	if !ok {
		return
	}
	defer handler.CloseFiles(files)

	var photo *meterService.Photo
	if len(files) > 0 {
		photo = &meterService.Photo{Name: files[0].Name, Content: files[0].Content}
	}

	usage, err := h.usageService.Capture(c.Request.Context(), &req, photo)
	handler.MustCreate(c, err, usage)
}

// Latest 表最近一次抄表记录
// @Summary 最近一次抄表记录
// @Tags 抄表
// @Produce json
// @Param id path int true "表ID"
// @Success 200 {object} response.Response{data=models.MeterUsage}
// @Router /api/meter_usages/{id} [get]
func (h *Handler) Latest(c *gin.Context) {
	id, ok := handler.ParseID(c, "表")
	if !ok {
		return
	}

	usage, err := h.usageService.Latest(c.Request.Context(), id)
	handler.MustSucceed(c, err, usage)
}

// ByMonth 表在指定月份的抄表记录
// @Summary 指定月份抄表记录
// @Tags 抄表
// @Produce json
// @Param id path int true "表ID"
// @Param month path string true "月份 YYYY-MM"
// @Success 200 {object} response.Response{data=models.MeterUsage}
// @Router /api/meter_usages/{id}/{month} [get]
func (h *Handler) ByMonth(c *gin.Context) {
	id, ok := handler.ParseID(c, "表")
	if !ok {
		return
	}
	year, month, err := utils.ParseYearMonth(c.Param("month"))
	if err != nil {
		response.BadRequest(c, "月份格式错误，应为 YYYY-MM")
		return
	}

	usage, err := h.usageService.ByMonth(c.Request.Context(), id, year, month)
	handler.MustSucceed(c, err, usage)
}
