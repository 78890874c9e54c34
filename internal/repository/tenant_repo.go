package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/models"
)

// TenantRepository 租户仓储
type TenantRepository struct {
	db *gorm.DB
}

// NewTenantRepository 创建租户仓储
func NewTenantRepository(db *gorm.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

// WithTx 返回绑定事务的仓储
func (r *TenantRepository) WithTx(tx *gorm.DB) *TenantRepository {
	return &TenantRepository{db: tx}
}

// Create 创建租户
func (r *TenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	return r.db.WithContext(ctx).Create(tenant).Error
}

// GetByID 根据 ID 获取租户
func (r *TenantRepository) GetByID(ctx context.Context, id int64) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := r.db.WithContext(ctx).First(&tenant, id).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

// GetByCode 根据客户编号获取租户
func (r *TenantRepository) GetByCode(ctx context.Context, code string) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&tenant).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

// UpdateFields 更新指定字段
func (r *TenantRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Tenant{}).Where("id = ?", id).Updates(fields).Error
}

// List 获取租户列表
// keyword 同时匹配姓名、昵称、编号、电话
func (r *TenantRepository) List(ctx context.Context, offset, limit int, keyword string) ([]*models.Tenant, int64, error) {
	var tenants []*models.Tenant
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Tenant{})
	if keyword != "" {
		like := "%" + keyword + "%"
		query = query.Where(
			"first_name LIKE ? OR last_name LIKE ? OR nick_name LIKE ? OR code LIKE ? OR phone LIKE ?",
			like, like, like, like, like,
		)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&tenants).Error; err != nil {
		return nil, 0, err
	}
	return tenants, total, nil
}
