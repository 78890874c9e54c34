package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/models"
)

// BillRepository 账单仓储
type BillRepository struct {
	db *gorm.DB
}

// NewBillRepository 创建账单仓储
func NewBillRepository(db *gorm.DB) *BillRepository {
	return &BillRepository{db: db}
}

// WithTx 返回绑定事务的仓储
func (r *BillRepository) WithTx(tx *gorm.DB) *BillRepository {
	return &BillRepository{db: tx}
}

// Create 创建账单
func (r *BillRepository) Create(ctx context.Context, bill *models.Bill) error {
	return r.db.WithContext(ctx).Create(bill).Error
}

// GetByID 根据 ID 获取账单（包含合同、租户、通知、流水、附件）
func (r *BillRepository) GetByID(ctx context.Context, id int64) (*models.Bill, error) {
	var bill models.Bill
	err := r.db.WithContext(ctx).
		Preload("Contract").
		Preload("Tenant").
		Preload("Notifications", func(tx *gorm.DB) *gorm.DB { return tx.Order("id ASC") }).
		Preload("Transactions.Attachments").
		Preload("Attachments").
		First(&bill, id).Error
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

// GetByNumberAndRef 根据账单号和参考号获取账单
func (r *BillRepository) GetByNumberAndRef(ctx context.Context, billNumber, refNumber string) (*models.Bill, error) {
	var bill models.Bill
	err := r.db.WithContext(ctx).
		Preload("Contract").
		Preload("Tenant").
		Preload("Transactions").
		Where("bill_number = ? AND ref_number = ?", billNumber, refNumber).
		First(&bill).Error
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

// ExistsForContractMonth 检查合同在指定月份是否已有账单
func (r *BillRepository) ExistsForContractMonth(ctx context.Context, contractID int64, year, month int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Bill{}).
		Where("contract_id = ? AND year = ? AND month = ?", contractID, year, month).
		Count(&count).Error
	return count > 0, err
}

// CountAll 统计全部账单数量（包含已取消），用于生成账单号序号
func (r *BillRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&models.Bill{}).Count(&count).Error
	return count, err
}

// UpdateFields 更新指定字段
func (r *BillRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Bill{}).Where("id = ?", id).Updates(fields).Error
}

// UpdateStatusFrom 仅当当前状态在 from 中时更新状态，返回影响行数
func (r *BillRepository) UpdateStatusFrom(ctx context.Context, id int64, from []string, fields map[string]interface{}) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Bill{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	return res.RowsAffected, res.Error
}

// Delete 取消账单（软删除）
func (r *BillRepository) Delete(ctx context.Context, id int64) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.Bill{}, id)
	return res.RowsAffected, res.Error
}

// List 获取账单列表
func (r *BillRepository) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Bill, int64, error) {
	var bills []*models.Bill
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Bill{})
	if year, ok := filters["year"].(int); ok && year > 0 {
		query = query.Where("year = ?", year)
	}
	if month, ok := filters["month"].(int); ok && month > 0 {
		query = query.Where("month = ?", month)
	}
	if status, ok := filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if contractID, ok := filters["contract_id"].(int64); ok && contractID > 0 {
		query = query.Where("contract_id = ?", contractID)
	}
	if tenantID, ok := filters["tenant_id"].(int64); ok && tenantID > 0 {
		query = query.Where("tenant_id = ?", tenantID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Preload("Contract").Preload("Tenant").
		Order("id DESC").Offset(offset).Limit(limit).
		Find(&bills).Error
	if err != nil {
		return nil, 0, err
	}
	return bills, total, nil
}

// ListByMonth 获取某月全部账单
func (r *BillRepository) ListByMonth(ctx context.Context, year, month int) ([]*models.Bill, error) {
	var bills []*models.Bill
	err := r.db.WithContext(ctx).
		Preload("Contract").
		Preload("Tenant").
		Where("year = ? AND month = ?", year, month).
		Order("bill_number ASC").
		Find(&bills).Error
	return bills, err
}

// MapByContracts 获取指定月份多个合同的账单，返回 contract_id -> bill
func (r *BillRepository) MapByContracts(ctx context.Context, contractIDs []int64, year, month int) (map[int64]*models.Bill, error) {
	result := make(map[int64]*models.Bill, len(contractIDs))
	if len(contractIDs) == 0 {
		return result, nil
	}
	var bills []*models.Bill
	err := r.db.WithContext(ctx).
		Where("contract_id IN ? AND year = ? AND month = ?", contractIDs, year, month).
		Find(&bills).Error
	if err != nil {
		return nil, err
	}
	for _, b := range bills {
		result[b.ContractID] = b
	}
	return result, nil
}

// CreateNotification 记录通知结果
func (r *BillRepository) CreateNotification(ctx context.Context, n *models.BillNotification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// CreateTransaction 创建支付流水
func (r *BillRepository) CreateTransaction(ctx context.Context, t *models.BillTransaction) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// ConfirmTransactions 确认账单下全部待确认流水
func (r *BillRepository) ConfirmTransactions(ctx context.Context, billID int64) error {
	return r.db.WithContext(ctx).Model(&models.BillTransaction{}).
		Where("bill_id = ? AND status = ?", billID, models.TransactionStatusPending).
		Update("status", models.TransactionStatusConfirmed).Error
}

// CreateAttachments 批量创建账单附件
func (r *BillRepository) CreateAttachments(ctx context.Context, atts []*models.BillAttachment) error {
	if len(atts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&atts).Error
}
