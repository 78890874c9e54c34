package models

import (
	"time"

	"gorm.io/gorm"
)

// LockReserve 签约前的锁位预订，同一锁位同时只能有一条有效预订
type LockReserve struct {
	ID            int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	LockID        int64          `gorm:"not null;index;uniqueIndex:idx_reserve_lock_active,where:deleted_at IS NULL" json:"lock_id"`
	ReserverName  string         `gorm:"type:varchar(100);not null" json:"reserver_name"`
	Phone         string         `gorm:"type:varchar(32)" json:"phone"`
	Note          string         `gorm:"type:text" json:"note"`
	ReservedFrom  *time.Time     `json:"reserved_from,omitempty"`
	ReservedUntil *time.Time     `json:"reserved_until,omitempty"`
	CreatedBy     int64          `json:"created_by"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// 关联
	Lock        *Lock                   `gorm:"foreignKey:LockID" json:"lock,omitempty"`
	Attachments []LockReserveAttachment `gorm:"foreignKey:LockReserveID" json:"attachments,omitempty"`
}

// TableName 表名
func (LockReserve) TableName() string {
	return "lock_reserves"
}

// LockReserveAttachment 预订附件
type LockReserveAttachment struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	LockReserveID int64     `gorm:"index;not null" json:"lock_reserve_id"`
	FileName      string    `gorm:"type:varchar(255);not null" json:"filename"`
	Path          string    `gorm:"type:varchar(500);not null" json:"path"`
	URL           string    `gorm:"type:varchar(500)" json:"url"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (LockReserveAttachment) TableName() string {
	return "lock_reserve_attachments"
}
