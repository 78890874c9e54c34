package models

import "time"

// AdminStatus 管理员状态
type AdminStatus int8

const (
	AdminStatusDisabled AdminStatus = 0
	AdminStatusActive   AdminStatus = 1
)

// Admin 后台管理员，账号由 rentalctl create-admin 创建
type Admin struct {
	ID           int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string      `gorm:"type:varchar(50);uniqueIndex;not null" json:"username"`
	PasswordHash string      `gorm:"type:varchar(255);not null" json:"-"`
	Name         string      `gorm:"type:varchar(100);not null" json:"name"`
	Status       AdminStatus `gorm:"type:smallint;not null;default:1" json:"status"`
	LastLoginAt  *time.Time  `json:"last_login_at,omitempty"`
	LastLoginIP  *string     `gorm:"type:varchar(45)" json:"last_login_ip,omitempty"`
	CreatedAt    time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Admin) TableName() string {
	return "admins"
}

// IsActive 是否可登录
func (a *Admin) IsActive() bool {
	return a.Status == AdminStatusActive
}
