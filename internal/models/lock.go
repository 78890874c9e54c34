package models

import (
	"time"
)

// Lock 可出租的锁位（仓储单元）
type Lock struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string    `gorm:"type:varchar(100)" json:"lock_name"`
	LockNumber string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"lock_number"`
	ZoneID     *int64    `gorm:"index" json:"zone_id"`
	Size       string    `gorm:"type:varchar(50)" json:"size"`
	Status     string    `gorm:"type:varchar(20);not null;default:'available'" json:"status"`
	Active     bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Zone *Zone `gorm:"foreignKey:ZoneID" json:"zone,omitempty"`
}

// TableName 表名
func (Lock) TableName() string {
	return "locks"
}

// LockStatus 锁位状态
const (
	LockStatusAvailable   = "available"   // 空闲
	LockStatusMaintenance = "maintenance" // 维护中
)
