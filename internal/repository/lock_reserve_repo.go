package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/models"
)

// LockReserveRepository 锁位预订仓储
type LockReserveRepository struct {
	db *gorm.DB
}

// NewLockReserveRepository 创建预订仓储
func NewLockReserveRepository(db *gorm.DB) *LockReserveRepository {
	return &LockReserveRepository{db: db}
}

// Create 创建预订，锁位已有有效预订时返回唯一约束错误
func (r *LockReserveRepository) Create(ctx context.Context, reserve *models.LockReserve) error {
	return r.db.WithContext(ctx).Create(reserve).Error
}

// GetByID 根据 ID 获取预订
func (r *LockReserveRepository) GetByID(ctx context.Context, id int64) (*models.LockReserve, error) {
	var reserve models.LockReserve
	err := r.db.WithContext(ctx).Preload("Lock.Zone").Preload("Attachments").First(&reserve, id).Error
	if err != nil {
		return nil, err
	}
	return &reserve, nil
}

// ListActive 获取全部有效预订
func (r *LockReserveRepository) ListActive(ctx context.Context) ([]*models.LockReserve, error) {
	var reserves []*models.LockReserve
	err := r.db.WithContext(ctx).
		Preload("Lock.Zone").
		Preload("Attachments").
		Order("id DESC").
		Find(&reserves).Error
	return reserves, err
}

// Delete 取消预订（软删除）
func (r *LockReserveRepository) Delete(ctx context.Context, id int64) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.LockReserve{}, id)
	return res.RowsAffected, res.Error
}

// CreateAttachment 添加预订附件
func (r *LockReserveRepository) CreateAttachment(ctx context.Context, att *models.LockReserveAttachment) error {
	return r.db.WithContext(ctx).Create(att).Error
}

// HistoryByLock 获取锁位的预订历史（包含已取消）
func (r *LockReserveRepository) HistoryByLock(ctx context.Context, lockID int64) ([]*models.LockReserve, error) {
	var reserves []*models.LockReserve
	err := r.db.WithContext(ctx).Unscoped().
		Preload("Attachments").
		Where("lock_id = ?", lockID).
		Order("id DESC").
		Find(&reserves).Error
	return reserves, err
}

// ActiveLockIDs 获取存在有效预订的锁位 ID
func (r *LockReserveRepository) ActiveLockIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&models.LockReserve{}).Pluck("lock_id", &ids).Error
	return ids, err
}
