package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/gogomarket/rental-backend/internal/common/logger"
	"github.com/gogomarket/rental-backend/internal/common/metrics"
	"github.com/gogomarket/rental-backend/internal/repository"
	contractService "github.com/gogomarket/rental-backend/internal/service/contract"
)

var errPanic = errors.New("task panicked")

// 任务名
const (
	TaskExpireBindings    = "expire_bindings"
	TaskActiveBindings    = "active_bindings_gauge"
	TaskOperationLogPurge = "operation_log_purge"
)

// 操作日志保留时长
const operationLogRetention = 90 * 24 * time.Hour

// TaskHandler 任务处理器
type TaskHandler struct {
	contractService *contractService.ContractService
	operationLogs   *repository.OperationLogRepository
	metrics         *metrics.Metrics
	now             func() time.Time
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(
	contractSvc *contractService.ContractService,
	operationLogs *repository.OperationLogRepository,
	m *metrics.Metrics,
) *TaskHandler {
	return &TaskHandler{
		contractService: contractSvc,
		operationLogs:   operationLogs,
		metrics:         m,
		now:             time.Now,
	}
}

// ExpireBindings 把合同已结束的绑定标记为 expired
func (h *TaskHandler) ExpireBindings(ctx context.Context) error {
	n, err := h.contractService.ExpireBindings(ctx)
	if err != nil {
		return err
	}
	logger.Info("expire bindings task done", logger.Module("scheduler"), logger.Int64("expired", n))
	return h.RefreshActiveBindings(ctx)
}

// RefreshActiveBindings 刷新有效绑定数指标
func (h *TaskHandler) RefreshActiveBindings(ctx context.Context) error {
	n, err := h.contractService.CountActiveBindings(ctx)
	if err != nil {
		return err
	}
	h.metrics.SetActiveBindings(n)
	return nil
}

// PurgeOperationLogs 删除超过保留期的操作日志
func (h *TaskHandler) PurgeOperationLogs(ctx context.Context) error {
	if h.operationLogs == nil {
		return nil
	}
	n, err := h.operationLogs.DeleteBefore(ctx, h.now().Add(-operationLogRetention))
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Info("operation logs purged", logger.Module("scheduler"), logger.Int64("deleted", n))
	}
	return nil
}

// Register 注册全部任务
func (h *TaskHandler) Register(s *Scheduler, expireBindingsAt string) error {
	if expireBindingsAt == "" {
		expireBindingsAt = "0 5 0 * * *"
	}
	if err := s.AddTask(TaskExpireBindings, expireBindingsAt, h.ExpireBindings); err != nil {
		return err
	}
	if err := s.AddTask(TaskActiveBindings, "0 */10 * * * *", h.RefreshActiveBindings); err != nil {
		return err
	}
	return s.AddTask(TaskOperationLogPurge, "0 30 3 * * *", h.PurgeOperationLogs)
}
