package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/models"
)

// AdminRepository 管理员仓储
type AdminRepository struct {
	db *gorm.DB
}

func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

func (r *AdminRepository) Create(ctx context.Context, admin *models.Admin) error {
	return r.db.WithContext(ctx).Create(admin).Error
}

func (r *AdminRepository) findOne(ctx context.Context, query string, args ...interface{}) (*models.Admin, error) {
	var admin models.Admin
	if err := r.db.WithContext(ctx).Where(query, args...).First(&admin).Error; err != nil {
		return nil, err
	}
	return &admin, nil
}

func (r *AdminRepository) GetByID(ctx context.Context, id int64) (*models.Admin, error) {
	return r.findOne(ctx, "id = ?", id)
}

// GetByUsername 用户名不区分大小写
func (r *AdminRepository) GetByUsername(ctx context.Context, username string) (*models.Admin, error) {
	return r.findOne(ctx, "LOWER(username) = ?", strings.ToLower(username))
}

// List 按创建顺序列出全部管理员
func (r *AdminRepository) List(ctx context.Context) ([]*models.Admin, error) {
	var admins []*models.Admin
	err := r.db.WithContext(ctx).Order("id ASC").Find(&admins).Error
	return admins, err
}

func (r *AdminRepository) updateColumns(ctx context.Context, id int64, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Admin{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *AdminRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return r.updateColumns(ctx, id, map[string]interface{}{"password_hash": passwordHash})
}

func (r *AdminRepository) UpdateStatus(ctx context.Context, id int64, status models.AdminStatus) error {
	return r.updateColumns(ctx, id, map[string]interface{}{"status": status})
}

// RecordLogin 记录最近一次登录
func (r *AdminRepository) RecordLogin(ctx context.Context, id int64, ip string, at time.Time) error {
	return r.updateColumns(ctx, id, map[string]interface{}{
		"last_login_at": at,
		"last_login_ip": ip,
	})
}
