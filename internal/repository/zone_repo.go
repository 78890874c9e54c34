package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/models"
)

// ZoneRepository 区域仓储
type ZoneRepository struct {
	db *gorm.DB
}

// NewZoneRepository 创建区域仓储
func NewZoneRepository(db *gorm.DB) *ZoneRepository {
	return &ZoneRepository{db: db}
}

// Create 创建区域
func (r *ZoneRepository) Create(ctx context.Context, zone *models.Zone) error {
	return r.db.WithContext(ctx).Create(zone).Error
}

// GetByID 根据 ID 获取区域
func (r *ZoneRepository) GetByID(ctx context.Context, id int64) (*models.Zone, error) {
	var zone models.Zone
	if err := r.db.WithContext(ctx).First(&zone, id).Error; err != nil {
		return nil, err
	}
	return &zone, nil
}

// UpdateFields 更新指定字段
func (r *ZoneRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Zone{}).Where("id = ?", id).Updates(fields).Error
}

// List 获取全部区域
func (r *ZoneRepository) List(ctx context.Context, status string) ([]*models.Zone, error) {
	var zones []*models.Zone
	query := r.db.WithContext(ctx)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("name ASC").Find(&zones).Error
	return zones, err
}

// Delete 删除区域，区域内锁位的 zone_id 置空
func (r *ZoneRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Lock{}).Where("zone_id = ?", id).Update("zone_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Zone{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
