package contract

import (
	"context"

	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/common/database"
	"github.com/gogomarket/rental-backend/internal/common/errors"
	"github.com/gogomarket/rental-backend/internal/common/logger"
	"github.com/gogomarket/rental-backend/internal/common/tracing"
	"github.com/gogomarket/rental-backend/internal/models"
)

// BindRequest 锁位绑定合同请求
type BindRequest struct {
	LockID     int64 `json:"lock_id" binding:"required,gt=0"`
	ContractID int64 `json:"contract_id" binding:"required,gt=0"`
}

// CancelRequest 解约请求，LockID 为空时解除合同的全部有效绑定
type CancelRequest struct {
	LockID *int64 `json:"lock_id"`
}

// Bind 锁位绑定合同
// 锁位上已有未到期合同时拒绝；已有合同到期时先把旧绑定标记为 expired
func (s *ContractService) Bind(ctx context.Context, req *BindRequest) (binding *models.LockHasContract, err error) {
	ctx, span := tracing.Start(ctx, "contract.Bind",
		tracing.AttrLockID.Int64(req.LockID),
		tracing.AttrContractID.Int64(req.ContractID),
	)
	defer func() { tracing.End(span, err) }()

	contract, err := s.contractRepo.GetPlain(ctx, req.ContractID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrContractNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if err := s.checkLock(ctx, req.LockID); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		binding, err = s.bindInTx(ctx, tx, req.LockID, contract)
		return err
	})
	if err != nil {
		return nil, wrapDBError(err)
	}

	s.metrics.RecordBinding("bind", 1)
	logger.Info("lock bound to contract", logger.LockID(req.LockID), logger.ContractID(req.ContractID))
	return binding, nil
}

// bindInTx 在事务内完成绑定检查和写入
// 并发绑定同一锁位时由 (lock_id) WHERE status='active' 的部分唯一索引兜底
func (s *ContractService) bindInTx(ctx context.Context, tx *gorm.DB, lockID int64, contract *models.Contract) (*models.LockHasContract, error) {
	today := s.today()
	if contract.IsExpired(today) {
		return nil, errors.ErrContractExpired
	}

	repo := s.bindingRepo.WithTx(tx)
	current, err := repo.GetActiveByLock(ctx, lockID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}
	if current != nil {
		if current.ContractID == contract.ID {
			return nil, errors.ErrContractAlreadyBound
		}
		if current.Contract != nil && !current.Contract.IsExpired(today) {
			return nil, errors.ErrLockAlreadyBound
		}
		if err := repo.UpdateStatus(ctx, current.ID, models.BindingStatusExpired); err != nil {
			return nil, err
		}
		s.metrics.RecordBinding("expire", 1)
		logger.Info("previous binding expired",
			logger.LockID(lockID),
			logger.ContractID(current.ContractID),
		)
	}

	binding := &models.LockHasContract{
		LockID:     lockID,
		ContractID: contract.ID,
		Status:     models.BindingStatusActive,
	}
	if err := repo.Create(ctx, binding); err != nil {
		if database.IsDuplicateKey(err) {
			return nil, errors.ErrLockAlreadyBound
		}
		return nil, err
	}
	return binding, nil
}

// Cancel 解约：有效绑定置为 cancelled 并写入删除时间，合同和锁位本身不变
func (s *ContractService) Cancel(ctx context.Context, contractID int64, req *CancelRequest) (int, error) {
	if _, err := s.contractRepo.GetPlain(ctx, contractID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, errors.ErrContractNotFound
		}
		return 0, errors.ErrDatabaseError.WithError(err)
	}

	cancelled := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.bindingRepo.WithTx(tx)
		bindings, err := repo.ListByContract(ctx, contractID)
		if err != nil {
			return err
		}
		at := s.now()
		for _, b := range bindings {
			if b.Status != models.BindingStatusActive {
				continue
			}
			if req != nil && req.LockID != nil && b.LockID != *req.LockID {
				continue
			}
			if err := repo.Cancel(ctx, b.ID, at); err != nil {
				return err
			}
			cancelled++
		}
		if cancelled == 0 {
			return errors.ErrBindingNotFound
		}
		return nil
	})
	if err != nil {
		return 0, wrapDBError(err)
	}

	s.metrics.RecordBinding("cancel", cancelled)
	logger.Info("contract cancelled", logger.ContractID(contractID), logger.Int("bindings", cancelled))
	return cancelled, nil
}

// Bindings 合同当前未解约的绑定
func (s *ContractService) Bindings(ctx context.Context, contractID int64) ([]*models.LockHasContract, error) {
	bindings, err := s.bindingRepo.ListByContract(ctx, contractID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return bindings, nil
}

// History 锁位的绑定历史，包含已解约记录
func (s *ContractService) History(ctx context.Context, lockID int64) ([]*models.LockHasContract, error) {
	if err := s.checkLock(ctx, lockID); err != nil {
		return nil, err
	}
	bindings, err := s.bindingRepo.HistoryByLock(ctx, lockID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return bindings, nil
}

// ExpireBindings 把合同已结束的 active 绑定标记为 expired，返回处理条数
func (s *ContractService) ExpireBindings(ctx context.Context) (int64, error) {
	n, err := s.bindingRepo.ExpireEnded(ctx, s.today())
	if err != nil {
		return 0, errors.ErrDatabaseError.WithError(err)
	}
	if n > 0 {
		s.metrics.RecordBinding("expire", int(n))
		logger.Info("expired bindings swept", logger.Int64("count", n))
	}
	return n, nil
}

// CountActiveBindings 当前 active 绑定数量
func (s *ContractService) CountActiveBindings(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.LockHasContract{}).
		Where("status = ?", models.BindingStatusActive).
		Count(&n).Error
	if err != nil {
		return 0, errors.ErrDatabaseError.WithError(err)
	}
	return n, nil
}
