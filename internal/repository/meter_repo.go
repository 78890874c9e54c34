package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/models"
)

// MeterRepository 水电表仓储
type MeterRepository struct {
	db *gorm.DB
}

// NewMeterRepository 创建水电表仓储
func NewMeterRepository(db *gorm.DB) *MeterRepository {
	return &MeterRepository{db: db}
}

// Create 创建表
func (r *MeterRepository) Create(ctx context.Context, meter *models.Meter) error {
	return r.db.WithContext(ctx).Create(meter).Error
}

// GetByID 根据 ID 获取表
func (r *MeterRepository) GetByID(ctx context.Context, id int64) (*models.Meter, error) {
	var meter models.Meter
	if err := r.db.WithContext(ctx).First(&meter, id).Error; err != nil {
		return nil, err
	}
	return &meter, nil
}

// GetByAssetTag 根据资产标签获取表
func (r *MeterRepository) GetByAssetTag(ctx context.Context, tag string) (*models.Meter, error) {
	var meter models.Meter
	if err := r.db.WithContext(ctx).Where("asset_tag = ?", tag).First(&meter).Error; err != nil {
		return nil, err
	}
	return &meter, nil
}

// UpdateFields 更新指定字段
func (r *MeterRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Meter{}).Where("id = ?", id).Updates(fields).Error
}

// Delete 删除表（软删除），同时解除锁位绑定
func (r *MeterRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("meter_id = ?", id).Delete(&models.LockHasMeter{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Meter{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// List 获取表列表
func (r *MeterRepository) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Meter, int64, error) {
	var meters []*models.Meter
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Meter{})
	if meterType, ok := filters["meter_type"].(string); ok && meterType != "" {
		query = query.Where("meter_type = ?", meterType)
	}
	if status, ok := filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if keyword, ok := filters["keyword"].(string); ok && keyword != "" {
		like := "%" + keyword + "%"
		query = query.Where("asset_tag LIKE ? OR meter_number LIKE ? OR meter_serial LIKE ?", like, like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&meters).Error; err != nil {
		return nil, 0, err
	}
	return meters, total, nil
}

// ListUnbound 获取未绑定任何锁位的表
func (r *MeterRepository) ListUnbound(ctx context.Context, meterType string) ([]*models.Meter, error) {
	var meters []*models.Meter
	bound := r.db.Model(&models.LockHasMeter{}).Select("meter_id")
	query := r.db.WithContext(ctx).Where("id NOT IN (?)", bound)
	if meterType != "" {
		query = query.Where("meter_type = ?", meterType)
	}
	err := query.Order("asset_tag ASC").Find(&meters).Error
	return meters, err
}

// GetBinding 获取表当前的锁位绑定
func (r *MeterRepository) GetBinding(ctx context.Context, meterID int64) (*models.LockHasMeter, error) {
	var lhm models.LockHasMeter
	if err := r.db.WithContext(ctx).Preload("Lock").Where("meter_id = ?", meterID).First(&lhm).Error; err != nil {
		return nil, err
	}
	return &lhm, nil
}

// ListAll 获取全部未删除的表
func (r *MeterRepository) ListAll(ctx context.Context) ([]*models.Meter, error) {
	var meters []*models.Meter
	err := r.db.WithContext(ctx).Order("meter_type ASC, asset_tag ASC").Find(&meters).Error
	return meters, err
}
