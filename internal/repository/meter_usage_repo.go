package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/models"
)

// MeterUsageRepository 抄表记录仓储
type MeterUsageRepository struct {
	db *gorm.DB
}

// NewMeterUsageRepository 创建抄表记录仓储
func NewMeterUsageRepository(db *gorm.DB) *MeterUsageRepository {
	return &MeterUsageRepository{db: db}
}

// WithTx 返回绑定事务的仓储
func (r *MeterUsageRepository) WithTx(tx *gorm.DB) *MeterUsageRepository {
	return &MeterUsageRepository{db: tx}
}

// Create 创建抄表记录
func (r *MeterUsageRepository) Create(ctx context.Context, usage *models.MeterUsage) error {
	return r.db.WithContext(ctx).Create(usage).Error
}

// GetByID 根据 ID 获取抄表记录
func (r *MeterUsageRepository) GetByID(ctx context.Context, id int64) (*models.MeterUsage, error) {
	var usage models.MeterUsage
	if err := r.db.WithContext(ctx).First(&usage, id).Error; err != nil {
		return nil, err
	}
	return &usage, nil
}

// GetByMeterMonth 获取表在指定月份的抄表记录
func (r *MeterUsageRepository) GetByMeterMonth(ctx context.Context, meterID int64, year, month int) (*models.MeterUsage, error) {
	var usage models.MeterUsage
	err := r.db.WithContext(ctx).
		Where("meter_id = ? AND year = ? AND month = ?", meterID, year, month).
		First(&usage).Error
	if err != nil {
		return nil, err
	}
	return &usage, nil
}

// GetLatest 获取表最近一次抄表记录
func (r *MeterUsageRepository) GetLatest(ctx context.Context, meterID int64) (*models.MeterUsage, error) {
	var usage models.MeterUsage
	err := r.db.WithContext(ctx).
		Where("meter_id = ?", meterID).
		Order("year DESC, month DESC").
		First(&usage).Error
	if err != nil {
		return nil, err
	}
	return &usage, nil
}

// GetPrevious 获取指定月份之前最近的一条抄表记录
func (r *MeterUsageRepository) GetPrevious(ctx context.Context, meterID int64, year, month int) (*models.MeterUsage, error) {
	var usage models.MeterUsage
	err := r.db.WithContext(ctx).
		Where("meter_id = ?", meterID).
		Where("year < ? OR (year = ? AND month < ?)", year, year, month).
		Order("year DESC, month DESC").
		First(&usage).Error
	if err != nil {
		return nil, err
	}
	return &usage, nil
}

// UpdateFields 更新指定字段
func (r *MeterUsageRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.MeterUsage{}).Where("id = ?", id).Updates(fields).Error
}

// ListByMonth 获取某月全部抄表记录（包含表信息）
func (r *MeterUsageRepository) ListByMonth(ctx context.Context, year, month int) ([]*models.MeterUsage, error) {
	var usages []*models.MeterUsage
	err := r.db.WithContext(ctx).
		Preload("Meter").
		Where("year = ? AND month = ?", year, month).
		Order("meter_id ASC").
		Find(&usages).Error
	return usages, err
}

// ListConfirmedForContract 获取合同所绑锁位下全部表在某月已确认的抄表记录
func (r *MeterUsageRepository) ListConfirmedForContract(ctx context.Context, contractID int64, year, month int) ([]*models.MeterUsage, error) {
	var usages []*models.MeterUsage
	linked := r.db.Table("lock_has_meters AS lhm").
		Select("lhm.meter_id").
		Joins("JOIN lock_has_contracts AS lhc ON lhc.lock_id = lhm.lock_id").
		Where("lhc.contract_id = ?", contractID).
		Where("lhc.deleted_at IS NULL AND lhm.deleted_at IS NULL")
	err := r.db.WithContext(ctx).
		Preload("Meter").
		Where("meter_id IN (?)", linked).
		Where("year = ? AND month = ? AND status = ?", year, month, models.MeterUsageConfirmed).
		Order("meter_id ASC").
		Find(&usages).Error
	return usages, err
}

// ListByMeter 获取表的全部抄表记录，按月份倒序
func (r *MeterUsageRepository) ListByMeter(ctx context.Context, meterID int64) ([]*models.MeterUsage, error) {
	var usages []*models.MeterUsage
	err := r.db.WithContext(ctx).
		Where("meter_id = ?", meterID).
		Order("year DESC, month DESC").
		Find(&usages).Error
	return usages, err
}
