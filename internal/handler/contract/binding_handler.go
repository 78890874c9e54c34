package contract

import (
	"github.com/gin-gonic/gin"

	"github.com/gogomarket/rental-backend/internal/common/handler"
	contractService "github.com/gogomarket/rental-backend/internal/service/contract"
)

// Bind 锁位绑定合同
// @Summary 锁位绑定合同
// @Tags 合同
// @Accept json
// @Produce json
// @Param request body contractService.BindRequest true "请求参数"
// @Success 201 {object} response.Response{data=models.LockHasContract}
// @Router /api/lock_has_contracts [post]
func (h *Handler) Bind(c *gin.Context) {
	var req contractService.BindRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	binding, err := h.contractService.Bind(c.Request.Context(), &req)
	handler.MustCreate(c, err, binding)
}

// Cancel 解约
// @Summary 解约
// @Description 不传 lock_id 时解除合同的全部有效绑定
// @Tags 合同
// @Accept json
// @Produce json
// @Param id path int true "合同ID"
// @Param request body contractService.CancelRequest false "请求参数"
// @Success 200 {object} response.Response
// @Router /api/contracts/{id}/cancel [post]
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := handler.ParseID(c, "合同")
	if !ok {
		return
	}
	var req contractService.CancelRequest
	if c.Request.ContentLength > 0 && !handler.BindJSON(c, &req) {
		return
	}

	n, err := h.contractService.Cancel(c.Request.Context(), id, &req)
	handler.MustSucceed(c, err, gin.H{"cancelled": n})
}

// Bindings 合同的绑定
// @Summary 合同的锁位绑定
// @Tags 合同
// @Produce json
// @Param id path int true "合同ID"
// @Success 200 {object} response.Response{data=[]models.LockHasContract}
// @Router /api/contracts/{id}/bindings [get]
func (h *Handler) Bindings(c *gin.Context) {
	id, ok := handler.ParseID(c, "合同")
	if !ok {
		return
	}

	bindings, err := h.contractService.Bindings(c.Request.Context(), id)
	handler.MustSucceed(c, err, bindings)
}

// History 锁位的绑定历史
// @Summary 锁位合同历史
// @Tags 合同
// @Produce json
// @Param id path int true "锁位ID"
// @Success 200 {object} response.Response{data=[]models.LockHasContract}
// @Router /api/locks/{id}/contracts [get]
func (h *Handler) History(c *gin.Context) {
	lockID, ok := handler.ParseID(c, "锁位")
	if !ok {
		return
	}

	history, err := h.contractService.History(c.Request.Context(), lockID)
	handler.MustSucceed(c, err, history)
}
