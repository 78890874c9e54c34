// Package contract 提供合同、附件和锁位绑定的 HTTP Handler
package contract

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/gogomarket/rental-backend/internal/common/handler"
	contractService "github.com/gogomarket/rental-backend/internal/service/contract"
)

// 上传字段，兼容 files 和 files[] 两种写法
var fileFields = []string{"files", "files[]"}

// Handler 合同处理器
type Handler struct {
	contractService *contractService.ContractService
}

// NewHandler 创建合同处理器
func NewHandler(contractSvc *contractService.ContractService) *Handler {
	return &Handler{contractService: contractSvc}
}

// Create 创建合同
// @Summary 创建合同
// @Description multipart 表单，files 为合同附件；传 lock_id 时同时绑定锁位
// @Tags 合同
// @Accept multipart/form-data
// @Produce json
// @Param tenant_id formData int true "租户ID"
// @Param lock_id formData int false "锁位ID"
// @Param start_date formData string true "开始日期 YYYY-MM-DD"
// @Param end_date formData string true "结束日期 YYYY-MM-DD"
// @Param rent_rate formData string false "月租"
// @Param water_rate formData string false "水费单价"
// @Param electric_rate formData string false "电费单价"
// @Param files formData file false "附件"
// @Success 201 {object} response.Response{data=models.Contract}
// @Router /api/contracts [post]
func (h *Handler) Create(c *gin.Context) {
	var req contractService.CreateContractRequest
	if c.ContentType() == binding.MIMEJSON {
		if !handler.BindJSON(c, &req) {
			return
		}
		contract, err := h.contractService.Create(c.Request.Context(), &req, nil)
		handler.MustCreate(c, err, contract)
		return
	}

	if !handler.BindForm(c, &req) {
		return
	}
	// 表单里空的 lock_id 会被解析成 0
	if req.LockID != nil && *req.LockID == 0 {
		req.LockID = nil
	}
	files, ok := handler.OpenFormFiles(c, fileFields...)
	if !ok {
		return
	}
	defer handler.CloseFiles(files)

	contract, err := h.contractService.Create(c.Request.Context(), &req, toFiles(files))
	handler.MustCreate(c, err, contract)
}

// List 合同列表
// @Summary 合同列表
// @Tags 合同
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Param non_expired query bool false "只看未到期"
// @Param tenant_id query int false "租户ID"
// @Param keyword query string false "合同编号"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/contracts [get]
func (h *Handler) List(c *gin.Context) {
	h.list(c, false)
}

// ListNonExpired 未到期合同
// @Summary 未到期合同列表
// @Tags 合同
// @Produce json
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/contracts/non_expired [get]
func (h *Handler) ListNonExpired(c *gin.Context) {
	h.list(c, true)
}

func (h *Handler) list(c *gin.Context, nonExpired bool) {
	var req contractService.ListContractsRequest
	if !handler.BindQuery(c, &req) {
		return
	}
	p := handler.BindPagination(c)
	req.Page, req.PageSize = p.Page, p.PageSize
	if nonExpired {
		req.NonExpired = true
	}

	list, total, err := h.contractService.List(c.Request.Context(), &req)
	handler.MustSucceedPage(c, err, list, total, p)
}

// Get 合同详情
// @Summary 合同详情
// @Tags 合同
// @Produce json
// @Param id path int true "合同ID"
// @Success 200 {object} response.Response{data=models.Contract}
// @Router /api/contracts/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	id, ok := handler.ParseID(c, "合同")
	if !ok {
		return
	}

	contract, err := h.contractService.Get(c.Request.Context(), id)
	handler.MustSucceed(c, err, contract)
}

// Update 更新合同
// @Summary 更新合同
// @Tags 合同
// @Accept json
// @Produce json
// @Param id path int true "合同ID"
// @Param request body contractService.UpdateContractRequest true "请求参数"
// @Success 200 {object} response.Response{data=models.Contract}
// @Router /api/contracts/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	id, ok := handler.ParseID(c, "合同")
	if !ok {
		return
	}
	var req contractService.UpdateContractRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	contract, err := h.contractService.Update(c.Request.Context(), id, &req)
	handler.MustSucceed(c, err, contract)
}

// ListByTenant 租户的合同
// @Summary 租户的合同
// @Tags 合同
// @Produce json
// @Param id path int true "租户ID"
// @Success 200 {object} response.Response{data=[]models.Contract}
// @Router /api/contracts/tenant/{id} [get]
func (h *Handler) ListByTenant(c *gin.Context) {
	tenantID, ok := handler.ParseID(c, "租户")
	if !ok {
		return
	}

	contracts, err := h.contractService.ListByTenant(c.Request.Context(), tenantID)
	handler.MustSucceed(c, err, contracts)
}

// AddDocuments 追加合同附件
// @Summary 追加合同附件
// @Tags 合同
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "合同ID"
// @Param contract_type formData string false "附件类型"
// @Param files formData file true "附件"
// @Success 201 {object} response.Response{data=[]models.Document}
// @Router /api/contracts/{id}/documents [post]
func (h *Handler) AddDocuments(c *gin.Context) {
	id, ok := handler.ParseID(c, "合同")
	if !ok {
		return
	}
	files, ok := handler.OpenFormFiles(c, fileFields...)
	if !ok {
		return
	}
	defer handler.CloseFiles(files)

	docs, err := h.contractService.AddDocuments(c.Request.Context(), id, c.PostForm("contract_type"), toFiles(files))
	handler.MustCreate(c, err, docs)
}

// ListDocuments 合同附件列表
// @Summary 合同附件列表
// @Tags 合同
// @Produce json
// @Param id path int true "合同ID"
// @Success 200 {object} response.Response{data=[]models.Document}
// @Router /api/contracts/{id}/documents [get]
func (h *Handler) ListDocuments(c *gin.Context) {
	id, ok := handler.ParseID(c, "合同")
	if !ok {
		return
	}

	docs, err := h.contractService.ListDocuments(c.Request.Context(), id)
	handler.MustSucceed(c, err, docs)
}

func toFiles(files []handler.UploadedFile) []contractService.File {
	out := make([]contractService.File, 0, len(files))
	for _, f := range files {
		out = append(out, contractService.File{Name: f.Name, Size: f.Size, Content: f.Content})
	}
	return out
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	contracts := r.Group("/contracts")
	{
		contracts.POST("", h.Create)
		contracts.GET("", h.List)
		contracts.GET("/non_expired", h.ListNonExpired)
		contracts.GET("/tenant/:id", h.ListByTenant)
		contracts.GET("/:id", h.Get)
		contracts.PUT("/:id", h.Update)
		contracts.GET("/:id/documents", h.ListDocuments)
		contracts.POST("/:id/documents", h.AddDocuments)
		contracts.GET("/:id/bindings", h.Bindings)
		contracts.POST("/:id/cancel", h.Cancel)
	}

	r.POST("/lock_has_contracts", h.Bind)
	r.GET("/locks/:id/contracts", h.History)
}
