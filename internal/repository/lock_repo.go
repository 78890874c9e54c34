package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/models"
)

// LockRepository 锁位仓储
type LockRepository struct {
	db *gorm.DB
}

// NewLockRepository 创建锁位仓储
func NewLockRepository(db *gorm.DB) *LockRepository {
	return &LockRepository{db: db}
}

// Create 创建锁位
func (r *LockRepository) Create(ctx context.Context, lock *models.Lock) error {
	return r.db.WithContext(ctx).Create(lock).Error
}

// GetByID 根据 ID 获取锁位（包含区域）
func (r *LockRepository) GetByID(ctx context.Context, id int64) (*models.Lock, error) {
	var lock models.Lock
	if err := r.db.WithContext(ctx).Preload("Zone").First(&lock, id).Error; err != nil {
		return nil, err
	}
	return &lock, nil
}

// UpdateFields 更新指定字段
func (r *LockRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Lock{}).Where("id = ?", id).Updates(fields).Error
}

// List 获取锁位列表
func (r *LockRepository) List(ctx context.Context, filters map[string]interface{}) ([]*models.Lock, error) {
	var locks []*models.Lock
	query := r.db.WithContext(ctx).Preload("Zone")

	if zoneID, ok := filters["zone_id"].(int64); ok && zoneID > 0 {
		query = query.Where("zone_id = ?", zoneID)
	}
	if status, ok := filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if active, ok := filters["active"].(bool); ok {
		query = query.Where("active = ?", active)
	}
	if keyword, ok := filters["keyword"].(string); ok && keyword != "" {
		like := "%" + keyword + "%"
		query = query.Where("lock_number LIKE ? OR name LIKE ?", like, like)
	}

	err := query.Order("lock_number ASC").Find(&locks).Error
	return locks, err
}

// Exists 检查锁位是否存在
func (r *LockRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Lock{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// BindMeter 绑定表到锁位，表已绑定时返回唯一约束错误
func (r *LockRepository) BindMeter(ctx context.Context, lockID, meterID int64) (*models.LockHasMeter, error) {
	lhm := &models.LockHasMeter{LockID: lockID, MeterID: meterID}
	if err := r.db.WithContext(ctx).Create(lhm).Error; err != nil {
		return nil, err
	}
	return lhm, nil
}

// UnbindMeter 解绑表（软删除）
func (r *LockRepository) UnbindMeter(ctx context.Context, lockID, meterID int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("lock_id = ? AND meter_id = ?", lockID, meterID).
		Delete(&models.LockHasMeter{})
	return res.RowsAffected, res.Error
}

// ListMeters 获取锁位下的表
func (r *LockRepository) ListMeters(ctx context.Context, lockID int64) ([]*models.Meter, error) {
	var meters []*models.Meter
	err := r.db.WithContext(ctx).
		Joins("JOIN lock_has_meters lhm ON lhm.meter_id = meters.id AND lhm.deleted_at IS NULL").
		Where("lhm.lock_id = ?", lockID).
		Order("meters.meter_type ASC, meters.id ASC").
		Find(&meters).Error
	return meters, err
}

// ListMetersByLocks 批量获取多个锁位的表，返回 lock_id -> meters
func (r *LockRepository) ListMetersByLocks(ctx context.Context, lockIDs []int64) (map[int64][]models.Meter, error) {
	result := make(map[int64][]models.Meter, len(lockIDs))
	if len(lockIDs) == 0 {
		return result, nil
	}
	var rows []models.LockHasMeter
	err := r.db.WithContext(ctx).Preload("Meter").Where("lock_id IN ?", lockIDs).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.Meter != nil {
			result[row.LockID] = append(result[row.LockID], *row.Meter)
		}
	}
	return result, nil
}
