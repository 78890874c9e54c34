package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Bill 月度账单，每份合同每月一张
type Bill struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	BillNumber    string          `gorm:"type:varchar(128);uniqueIndex;not null" json:"bill_number"`
	RefNumber     string          `gorm:"type:varchar(16);not null;index" json:"ref_number"`
	ContractID    int64           `gorm:"not null;index;uniqueIndex:idx_bills_contract_month,where:deleted_at IS NULL" json:"contract_id"`
	TenantID      int64           `gorm:"not null;index" json:"tenant_id"`
	Year          int             `gorm:"not null;uniqueIndex:idx_bills_contract_month;index:idx_bills_year_month" json:"year"`
	Month         int             `gorm:"not null;uniqueIndex:idx_bills_contract_month;index:idx_bills_year_month" json:"month"`
	Rent          decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"rent"`
	WaterUsage    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"water_usage"`
	Water         decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"water"`
	ElectricUsage decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"electric_usage"`
	Electric      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"electric"`
	Discount      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"subtotal"`
	VatPercent    decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"vat_percent"`
	Vat           decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"vat"`
	TotalVat      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_vat"`
	Status        string          `gorm:"type:varchar(20);not null;default:'UNPAID';index" json:"status"`
	QRCodeURL     string          `gorm:"type:varchar(500)" json:"qrcode_url"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	CreatedBy     int64           `json:"created_by"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`

	// 关联
	Contract      *Contract          `gorm:"foreignKey:ContractID" json:"contract,omitempty"`
	Tenant        *Tenant            `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`
	Notifications []BillNotification `gorm:"foreignKey:BillID" json:"notifications,omitempty"`
	Transactions  []BillTransaction  `gorm:"foreignKey:BillID" json:"transactions,omitempty"`
	Attachments   []BillAttachment   `gorm:"foreignKey:BillID" json:"attachments,omitempty"`
}

// TableName 表名
func (Bill) TableName() string {
	return "bills"
}

// BillStatus 账单状态
const (
	BillStatusUnpaid        = "UNPAID"         // 未支付
	BillStatusPendingReview = "PENDING_REVIEW" // 已上传凭证待确认
	BillStatusPaid          = "PAID"           // 已支付
)

// IsValidBillStatus 是否为合法账单状态
func IsValidBillStatus(s string) bool {
	switch s {
	case BillStatusUnpaid, BillStatusPendingReview, BillStatusPaid:
		return true
	}
	return false
}

// BillNotification 账单通知记录
type BillNotification struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	BillID    int64          `gorm:"not null;index" json:"bill_id"`
	TenantID  int64          `gorm:"not null;index" json:"tenant_id"`
	Channel   string         `gorm:"type:varchar(16);not null" json:"channel"`
	Recipient string         `gorm:"type:varchar(128)" json:"recipient"`
	Status    string         `gorm:"type:varchar(16);not null" json:"status"`
	Payload   datatypes.JSON `json:"payload,omitempty"`
	Error     string         `gorm:"type:text" json:"error,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (BillNotification) TableName() string {
	return "bill_notifications"
}

// NotificationChannel 通知渠道
const (
	NotificationChannelLine = "line"
	NotificationChannelSMS  = "sms"
)

// NotificationStatus 通知状态
const (
	NotificationStatusSent    = "sent"
	NotificationStatusFailed  = "failed"
	NotificationStatusSkipped = "skipped"
)

// BillTransaction 账单支付流水
type BillTransaction struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	BillID          int64           `gorm:"not null;index" json:"bill_id"`
	TransactionType string          `gorm:"type:varchar(32);not null" json:"transaction_type"`
	Amount          decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount"`
	TransactionDate time.Time       `gorm:"not null" json:"transaction_date"`
	Status          string          `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	Note            string          `gorm:"type:text" json:"note"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	Attachments []BillAttachment `gorm:"foreignKey:TransactionID" json:"attachments,omitempty"`
}

// TableName 表名
func (BillTransaction) TableName() string {
	return "bill_transactions"
}

// TransactionType 流水类型
const (
	TransactionTypeTransfer = "TRANSFER"
	TransactionTypeCash     = "CASH"
)

// TransactionStatus 流水状态
const (
	TransactionStatusPending   = "PENDING"
	TransactionStatusConfirmed = "CONFIRMED"
)

// BillAttachment 支付凭证附件
type BillAttachment struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	BillID        int64     `gorm:"not null;index" json:"bill_id"`
	TransactionID *int64    `gorm:"index" json:"transaction_id,omitempty"`
	FileName      string    `gorm:"type:varchar(255);not null" json:"filename"`
	Path          string    `gorm:"type:varchar(500);not null" json:"path"`
	URL           string    `gorm:"type:varchar(500)" json:"url"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (BillAttachment) TableName() string {
	return "bill_attachments"
}
