package models

import (
	"time"
)

// Zone 区域，锁位按物理区域分组
type Zone struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	Pic       string    `gorm:"type:varchar(500)" json:"pic"`
	Status    string    `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (Zone) TableName() string {
	return "zones"
}

// ZoneStatus 区域状态
const (
	ZoneStatusActive   = "active"
	ZoneStatusInactive = "inactive"
)
