package models

import "gorm.io/gorm"

// All 返回需要迁移的全部模型
func All() []interface{} {
	return []interface{}{
		&Admin{},
		&Tenant{},
		&Zone{},
		&Lock{},
		&Contract{},
		&Document{},
		&LockHasContract{},
		&Meter{},
		&LockHasMeter{},
		&MeterUsage{},
		&LockReserve{},
		&LockReserveAttachment{},
		&Bill{},
		&BillNotification{},
		&BillTransaction{},
		&BillAttachment{},
		&OperationLog{},
	}
}

// AutoMigrate 自动迁移表结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
