package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Meter 水电表
type Meter struct {
	ID          int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	MeterType   string            `gorm:"type:varchar(32);not null;index" json:"meter_type"`
	MeterNumber string            `gorm:"type:varchar(64)" json:"meter_number"`
	MeterSerial string            `gorm:"type:varchar(64)" json:"meter_serial"`
	AssetTag    string            `gorm:"type:varchar(64);not null;uniqueIndex:idx_meters_asset_tag,where:deleted_at IS NULL" json:"meter_asset_tag"`
	Note        string            `gorm:"type:text" json:"note"`
	Status      string            `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	Attributes  datatypes.JSONMap `json:"attributes,omitempty"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt    `gorm:"index" json:"-"`
}

// TableName 表名
func (Meter) TableName() string {
	return "meters"
}

// MeterType 表类型
const (
	MeterTypeWater    = "Water Meter"
	MeterTypeElectric = "Electric Meter"
)

// MeterStatus 表状态
const (
	MeterStatusActive   = "active"
	MeterStatusInactive = "inactive"
)

// IsValidMeterType 是否为支持的表类型
func IsValidMeterType(t string) bool {
	return t == MeterTypeWater || t == MeterTypeElectric
}

// LockHasMeter 锁位与表的绑定，同一块表只能挂在一个锁位上
type LockHasMeter struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	LockID    int64          `gorm:"not null;index" json:"lock_id"`
	MeterID   int64          `gorm:"not null;uniqueIndex:idx_lhm_meter,where:deleted_at IS NULL" json:"meter_id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// 关联
	Lock  *Lock  `gorm:"foreignKey:LockID" json:"lock,omitempty"`
	Meter *Meter `gorm:"foreignKey:MeterID" json:"meter,omitempty"`
}

// TableName 表名
func (LockHasMeter) TableName() string {
	return "lock_has_meters"
}

// MeterUsage 月度抄表记录，每块表每月一条
type MeterUsage struct {
	ID         int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	MeterID    int64           `gorm:"not null;index;uniqueIndex:idx_usage_meter_month,where:deleted_at IS NULL" json:"meter_id"`
	Year       int             `gorm:"not null;uniqueIndex:idx_usage_meter_month" json:"year"`
	Month      int             `gorm:"not null;uniqueIndex:idx_usage_meter_month" json:"month"`
	MeterStart decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"meter_start"`
	MeterEnd   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"meter_end"`
	MeterUsage decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"meter_usage"`
	ImgPath    string          `gorm:"type:varchar(500)" json:"img_path"`
	Status     string          `gorm:"type:varchar(16);not null;default:'UNCONFIRMED'" json:"status"`
	Note       string          `gorm:"type:text" json:"note"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt  `gorm:"index" json:"-"`

	// 关联
	Meter *Meter `gorm:"foreignKey:MeterID" json:"meter,omitempty"`
}

// TableName 表名
func (MeterUsage) TableName() string {
	return "meter_usages"
}

// MeterUsageStatus 抄表状态
const (
	MeterUsageUnconfirmed = "UNCONFIRMED"
	MeterUsageConfirmed   = "CONFIRMED"
)
