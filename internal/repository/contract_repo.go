package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/models"
)

// ContractRepository 合同仓储
type ContractRepository struct {
	db *gorm.DB
}

// NewContractRepository 创建合同仓储
func NewContractRepository(db *gorm.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// WithTx 返回绑定事务的仓储
func (r *ContractRepository) WithTx(tx *gorm.DB) *ContractRepository {
	return &ContractRepository{db: tx}
}

// 预加载全部绑定（包含已解约），用于推导合同状态
func withAllBindings(db *gorm.DB) *gorm.DB {
	return db.Preload("Bindings", func(tx *gorm.DB) *gorm.DB {
		return tx.Unscoped().Order("id ASC")
	}).Preload("Bindings.Lock")
}

// Create 创建合同
func (r *ContractRepository) Create(ctx context.Context, contract *models.Contract) error {
	return r.db.WithContext(ctx).Create(contract).Error
}

// GetByID 根据 ID 获取合同（包含租户、附件、绑定历史）
func (r *ContractRepository) GetByID(ctx context.Context, id int64) (*models.Contract, error) {
	var contract models.Contract
	err := r.db.WithContext(ctx).
		Scopes(withAllBindings).
		Preload("Tenant").
		Preload("Documents").
		First(&contract, id).Error
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

// GetPlain 根据 ID 获取合同，不加载关联
func (r *ContractRepository) GetPlain(ctx context.Context, id int64) (*models.Contract, error) {
	var contract models.Contract
	if err := r.db.WithContext(ctx).First(&contract, id).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

// UpdateFields 更新指定字段
func (r *ContractRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Contract{}).Where("id = ?", id).Updates(fields).Error
}

// List 获取合同列表
// non_expired 传入当天日期时只返回 end_date >= 当天的合同
func (r *ContractRepository) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Contract, int64, error) {
	var contracts []*models.Contract
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Contract{})

	if today, ok := filters["non_expired"].(time.Time); ok {
		query = query.Where("end_date >= ?", today)
	}
	if tenantID, ok := filters["tenant_id"].(int64); ok && tenantID > 0 {
		query = query.Where("tenant_id = ?", tenantID)
	}
	if keyword, ok := filters["keyword"].(string); ok && keyword != "" {
		query = query.Where("contract_number LIKE ?", "%"+keyword+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Scopes(withAllBindings).Preload("Tenant").
		Order("id DESC").Offset(offset).Limit(limit).
		Find(&contracts).Error
	if err != nil {
		return nil, 0, err
	}
	return contracts, total, nil
}

// ListByTenant 获取租户的全部合同
func (r *ContractRepository) ListByTenant(ctx context.Context, tenantID int64) ([]*models.Contract, error) {
	var contracts []*models.Contract
	err := r.db.WithContext(ctx).
		Scopes(withAllBindings).
		Preload("Documents").
		Where("tenant_id = ?", tenantID).
		Order("start_date DESC").
		Find(&contracts).Error
	return contracts, err
}

// ListBillable 获取指定月份可出账的合同
// 条件：存在未删除的绑定（active 或 expired），且合同期与月份重叠
func (r *ContractRepository) ListBillable(ctx context.Context, monthStart, monthEnd time.Time) ([]*models.Contract, error) {
	var contracts []*models.Contract
	bound := r.db.Model(&models.LockHasContract{}).Select("contract_id").
		Where("status IN ?", []models.BindingStatus{models.BindingStatusActive, models.BindingStatusExpired})
	err := r.db.WithContext(ctx).
		Scopes(withAllBindings).
		Preload("Tenant").
		Where("id IN (?)", bound).
		Where("start_date < ? AND end_date >= ?", monthEnd, monthStart).
		Order("contract_number ASC").
		Find(&contracts).Error
	return contracts, err
}

// ExistsByNumber 检查合同编号是否存在
func (r *ContractRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Contract{}).Where("contract_number = ?", number).Count(&count).Error
	return count > 0, err
}

// CreateDocuments 批量创建合同附件
func (r *ContractRepository) CreateDocuments(ctx context.Context, docs []*models.Document) error {
	if len(docs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&docs).Error
}

// ListDocuments 获取合同附件
func (r *ContractRepository) ListDocuments(ctx context.Context, contractID int64) ([]*models.Document, error) {
	var docs []*models.Document
	err := r.db.WithContext(ctx).Where("contract_id = ?", contractID).Order("id ASC").Find(&docs).Error
	return docs, err
}
