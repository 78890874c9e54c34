package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Contract 租赁合同
// 合同本身不保存状态，状态由结束日期和锁位绑定推导，见 ComputeStatus
type Contract struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ContractNumber string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"contract_number"`
	TenantID       int64           `gorm:"index;not null" json:"tenant_id"`
	StartDate      time.Time       `gorm:"type:date;not null" json:"start_date"`
	EndDate        time.Time       `gorm:"type:date;not null;index" json:"end_date"`
	RentRate       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"rent_rate"`
	WaterRate      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"water_rate"`
	ElectricRate   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"electric_rate"`
	Advance        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"advance"`
	Deposit        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"deposit"`
	Note           string          `gorm:"type:text" json:"note"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	// 计算字段
	Status ContractStatus `gorm:"-" json:"status"`

	// 关联
	Tenant    *Tenant           `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`
	Documents []Document        `gorm:"foreignKey:ContractID" json:"documents,omitempty"`
	Bindings  []LockHasContract `gorm:"foreignKey:ContractID" json:"bindings,omitempty"`
}

// TableName 表名
func (Contract) TableName() string {
	return "contracts"
}

// ContractStatus 合同状态（推导值）
type ContractStatus string

const (
	ContractStatusActive    ContractStatus = "active"    // 有效
	ContractStatusExpired   ContractStatus = "expired"   // 已到期
	ContractStatusCancelled ContractStatus = "cancelled" // 已解约
)

// IsExpired 合同结束日期早于 today 所在日期即视为到期
func (c *Contract) IsExpired(today time.Time) bool {
	y, m, d := today.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	ey, em, ed := c.EndDate.Date()
	end := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return end.Before(day)
}

// ComputeStatus 根据结束日期和已加载的绑定记录推导合同状态
// Bindings 需要包含已软删除（解约）的记录，调用方使用 Unscoped 预加载
func (c *Contract) ComputeStatus(today time.Time) ContractStatus {
	if c.IsExpired(today) {
		return ContractStatusExpired
	}

	var latest *LockHasContract
	for i := range c.Bindings {
		b := &c.Bindings[i]
		if b.Status == BindingStatusActive && !b.DeletedAt.Valid {
			return ContractStatusActive
		}
		if latest == nil || b.ID > latest.ID {
			latest = b
		}
	}
	if latest != nil && latest.Status == BindingStatusCancelled {
		return ContractStatusCancelled
	}
	return ContractStatusActive
}

// CoversMonth 合同期是否与 [start, end) 月份区间重叠
func (c *Contract) CoversMonth(start, end time.Time) bool {
	return c.StartDate.Before(end) && !c.EndDate.Before(start)
}

// BindingStatus 锁位与合同绑定状态，绑定状态的唯一来源
type BindingStatus string

const (
	BindingStatusActive    BindingStatus = "active"    // 生效中
	BindingStatusExpired   BindingStatus = "expired"   // 合同到期
	BindingStatusCancelled BindingStatus = "cancelled" // 已解约
)

// Valid 是否为合法的绑定状态
func (s BindingStatus) Valid() bool {
	switch s {
	case BindingStatusActive, BindingStatusExpired, BindingStatusCancelled:
		return true
	}
	return false
}

// LockHasContract 锁位与合同的绑定历史
// 同一锁位最多一条未删除的 active 绑定，由部分唯一索引保证
type LockHasContract struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	LockID     int64          `gorm:"not null;index;uniqueIndex:idx_lhc_lock_active,where:status = 'active' AND deleted_at IS NULL" json:"lock_id"`
	ContractID int64          `gorm:"not null;index" json:"contract_id"`
	Status     BindingStatus  `gorm:"type:varchar(16);not null;default:'active'" json:"status"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// 关联
	Lock     *Lock     `gorm:"foreignKey:LockID" json:"lock,omitempty"`
	Contract *Contract `gorm:"foreignKey:ContractID" json:"contract,omitempty"`
}

// TableName 表名
func (LockHasContract) TableName() string {
	return "lock_has_contracts"
}

// Document 合同附件
type Document struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ContractID   int64     `gorm:"index;not null" json:"contract_id"`
	ContractType string    `gorm:"type:varchar(32);not null;default:'general'" json:"contract_type"`
	FileName     string    `gorm:"type:varchar(255);not null" json:"filename"`
	Path         string    `gorm:"type:varchar(500);not null" json:"path"`
	URL          string    `gorm:"type:varchar(500)" json:"url"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (Document) TableName() string {
	return "documents"
}

// DocumentType 附件类型
const (
	DocumentTypeGeneral = "general"
)
