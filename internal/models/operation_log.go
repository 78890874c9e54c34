package models

import (
	"time"

	"gorm.io/datatypes"
)

// OperationLog 后台写操作审计日志
type OperationLog struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	AdminID   *int64         `gorm:"index" json:"admin_id,omitempty"`
	Module    string         `gorm:"type:varchar(50);index;not null" json:"module"`
	Action    string         `gorm:"type:varchar(50);not null" json:"action"`
	Method    string         `gorm:"type:varchar(10);not null" json:"method"`
	Path      string         `gorm:"type:varchar(255);not null" json:"path"`
	TargetID  *int64         `json:"target_id,omitempty"`
	Status    int            `gorm:"not null" json:"status"`
	IP        string         `gorm:"type:varchar(45)" json:"ip"`
	UserAgent string         `gorm:"type:varchar(255)" json:"user_agent,omitempty"`
	RequestID string         `gorm:"type:varchar(64)" json:"request_id,omitempty"`
	Request   datatypes.JSON `json:"request,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName 表名
func (OperationLog) TableName() string {
	return "operation_logs"
}
