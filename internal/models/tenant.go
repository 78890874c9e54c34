package models

import (
	"strings"
	"time"
)

// Tenant 租户
// Code 在插入后由创建日期和 ID 生成，插入时为空串，部分唯一索引只约束非空编号
type Tenant struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Code         string    `gorm:"type:varchar(32);not null;default:'';uniqueIndex:idx_tenants_code,where:code <> ''" json:"code"`
	Prefix       string    `gorm:"type:varchar(20)" json:"prefix"`
	FirstName    string    `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName     string    `gorm:"type:varchar(100)" json:"last_name"`
	NickName     string    `gorm:"type:varchar(100)" json:"nick_name"`
	Contact      string    `gorm:"type:varchar(255)" json:"contact"`
	Phone        string    `gorm:"type:varchar(32);index" json:"phone"`
	Address      string    `gorm:"type:text" json:"address"`
	ProfileImage string    `gorm:"type:varchar(500)" json:"profile_image"`
	LineID       string    `gorm:"type:varchar(64);index" json:"line_id"`
	LineName     string    `gorm:"type:varchar(100)" json:"line_name"`
	LineImage    string    `gorm:"type:varchar(500)" json:"line_img"`
	Note         string    `gorm:"type:text" json:"note"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Contracts []Contract `gorm:"foreignKey:TenantID" json:"contracts,omitempty"`
}

// TableName 表名
func (Tenant) TableName() string {
	return "tenants"
}

// FullName 返回 前缀 + 名 + 姓
func (t *Tenant) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{t.Prefix, t.FirstName, t.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// HasLine 是否已绑定 LINE
func (t *Tenant) HasLine() bool {
	return t.LineID != ""
}
