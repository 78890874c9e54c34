package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/models"
)

// OperationLogFilter 审计日志查询条件，零值字段不参与过滤
type OperationLogFilter struct {
	AdminID  int64
	Module   string
	TargetID int64
	From     time.Time
	To       time.Time // 不含
}

func (f OperationLogFilter) apply(q *gorm.DB) *gorm.DB {
	if f.AdminID > 0 {
		q = q.Where("admin_id = ?", f.AdminID)
	}
	if f.Module != "" {
		q = q.Where("module = ?", f.Module)
	}
	if f.TargetID > 0 {
		q = q.Where("target_id = ?", f.TargetID)
	}
	if !f.From.IsZero() {
		q = q.Where("created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("created_at < ?", f.To)
	}
	return q
}

// OperationLogRepository 后台写操作审计日志
type OperationLogRepository struct {
	db *gorm.DB
}

func NewOperationLogRepository(db *gorm.DB) *OperationLogRepository {
	return &OperationLogRepository{db: db}
}

// Create 实现 middleware.OperationLogStore
func (r *OperationLogRepository) Create(ctx context.Context, entry *models.OperationLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// List 按时间倒序分页
func (r *OperationLogRepository) List(ctx context.Context, offset, limit int, f OperationLogFilter) ([]*models.OperationLog, int64, error) {
	q := f.apply(r.db.WithContext(ctx).Model(&models.OperationLog{}))

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var entries []*models.OperationLog
	if err := q.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// DeleteBefore 清理过期日志，返回删除条数
func (r *OperationLogRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", before).Delete(&models.OperationLog{})
	return result.RowsAffected, result.Error
}
