package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/models"
)

// BindingRepository 锁位与合同绑定仓储
type BindingRepository struct {
	db *gorm.DB
}

// NewBindingRepository 创建绑定仓储
func NewBindingRepository(db *gorm.DB) *BindingRepository {
	return &BindingRepository{db: db}
}

// WithTx 返回绑定事务的仓储
func (r *BindingRepository) WithTx(tx *gorm.DB) *BindingRepository {
	return &BindingRepository{db: tx}
}

// Create 创建绑定
func (r *BindingRepository) Create(ctx context.Context, b *models.LockHasContract) error {
	return r.db.WithContext(ctx).Create(b).Error
}

// GetActiveByLock 获取锁位当前的 active 绑定（包含合同）
func (r *BindingRepository) GetActiveByLock(ctx context.Context, lockID int64) (*models.LockHasContract, error) {
	var b models.LockHasContract
	err := r.db.WithContext(ctx).
		Preload("Contract").
		Where("lock_id = ? AND status = ?", lockID, models.BindingStatusActive).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetActiveByContract 获取合同的 active 绑定
func (r *BindingRepository) GetActiveByContract(ctx context.Context, contractID int64) (*models.LockHasContract, error) {
	var b models.LockHasContract
	err := r.db.WithContext(ctx).
		Where("contract_id = ? AND status = ?", contractID, models.BindingStatusActive).
		Order("id DESC").
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateStatus 更新绑定状态
func (r *BindingRepository) UpdateStatus(ctx context.Context, id int64, status models.BindingStatus) error {
	return r.db.WithContext(ctx).Model(&models.LockHasContract{}).Where("id = ?", id).Update("status", status).Error
}

// Cancel 解约：状态置为 cancelled 并写入删除时间
func (r *BindingRepository) Cancel(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.LockHasContract{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.BindingStatusCancelled,
			"deleted_at": at,
		}).Error
}

// ExpireEnded 把合同已结束的 active 绑定标记为 expired
func (r *BindingRepository) ExpireEnded(ctx context.Context, today time.Time) (int64, error) {
	ended := r.db.Model(&models.Contract{}).Select("id").Where("end_date < ?", today)
	res := r.db.WithContext(ctx).Model(&models.LockHasContract{}).
		Where("status = ? AND contract_id IN (?)", models.BindingStatusActive, ended).
		Update("status", models.BindingStatusExpired)
	return res.RowsAffected, res.Error
}

// ListActiveByLocks 获取多个锁位的 active 绑定（包含合同与租户）
func (r *BindingRepository) ListActiveByLocks(ctx context.Context, lockIDs []int64) ([]*models.LockHasContract, error) {
	var bindings []*models.LockHasContract
	if len(lockIDs) == 0 {
		return bindings, nil
	}
	err := r.db.WithContext(ctx).
		Preload("Contract.Tenant").
		Where("lock_id IN ? AND status = ?", lockIDs, models.BindingStatusActive).
		Find(&bindings).Error
	return bindings, err
}

// ListByContract 获取合同的绑定（不含已解约）
func (r *BindingRepository) ListByContract(ctx context.Context, contractID int64) ([]*models.LockHasContract, error) {
	var bindings []*models.LockHasContract
	err := r.db.WithContext(ctx).
		Preload("Lock").
		Where("contract_id = ?", contractID).
		Order("id ASC").
		Find(&bindings).Error
	return bindings, err
}

// HistoryByLock 获取锁位的全部绑定历史（包含已解约）
func (r *BindingRepository) HistoryByLock(ctx context.Context, lockID int64) ([]*models.LockHasContract, error) {
	var bindings []*models.LockHasContract
	err := r.db.WithContext(ctx).Unscoped().
		Preload("Contract.Tenant").
		Where("lock_id = ?", lockID).
		Order("id DESC").
		Find(&bindings).Error
	return bindings, err
}
