// Package helpers 提供测试辅助工具
package helpers

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gogomarket/rental-backend/internal/common/database"
	"github.com/gogomarket/rental-backend/internal/models"
)

// SetupTestDB 创建独立的 sqlite 内存库并迁移全部模型
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig(logger.Default.LogMode(logger.Silent)))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db
}

// Day 返回 UTC 零点日期
func Day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FixedClock 返回固定时间的时钟函数
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// RandomString 生成随机字符串
func RandomString(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}

// RandomPhone 生成随机泰国手机号
func RandomPhone() string {
	return fmt.Sprintf("08%08d", rand.Intn(100000000))
}

// CreateTenant 创建测试租户，编号按创建日期和 ID 生成
func CreateTenant(t *testing.T, db *gorm.DB, firstName string, opts ...func(*models.Tenant)) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{FirstName: firstName, LastName: "Test", Phone: RandomPhone()}
	for _, opt := range opts {
		opt(tenant)
	}
	require.NoError(t, db.Create(tenant).Error)
	tenant.Code = fmt.Sprintf("C%s-%05d", tenant.CreatedAt.Format("060102"), tenant.ID)
	require.NoError(t, db.Model(tenant).Update("code", tenant.Code).Error)
	return tenant
}

// WithLine 设置租户的 LINE ID
func WithLine(lineID string) func(*models.Tenant) {
	return func(t *models.Tenant) {
		t.LineID = lineID
		t.LineName = "line-" + lineID
	}
}

// CreateZone 创建测试区域
func CreateZone(t *testing.T, db *gorm.DB, name string) *models.Zone {
	t.Helper()
	zone := &models.Zone{Name: name, Status: models.ZoneStatusActive}
	require.NoError(t, db.Create(zone).Error)
	return zone
}

// CreateLock 创建测试锁位
func CreateLock(t *testing.T, db *gorm.DB, number string, zoneID *int64) *models.Lock {
	t.Helper()
	lock := &models.Lock{
		LockNumber: number,
		Name:       "Lock " + number,
		ZoneID:     zoneID,
		Status:     models.LockStatusAvailable,
		Active:     true,
	}
	require.NoError(t, db.Create(lock).Error)
	return lock
}

// CreateContract 创建测试合同，租金 3000，水费 18，电费 7
func CreateContract(t *testing.T, db *gorm.DB, tenantID int64, number string, start, end time.Time) *models.Contract {
	t.Helper()
	c := &models.Contract{
		ContractNumber: number,
		TenantID:       tenantID,
		StartDate:      start,
		EndDate:        end,
		RentRate:       decimal.NewFromInt(3000),
		WaterRate:      decimal.NewFromInt(18),
		ElectricRate:   decimal.NewFromInt(7),
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

// Bind 创建锁位与合同的绑定
func Bind(t *testing.T, db *gorm.DB, lockID, contractID int64, status models.BindingStatus) *models.LockHasContract {
	t.Helper()
	b := &models.LockHasContract{LockID: lockID, ContractID: contractID, Status: status}
	require.NoError(t, db.Create(b).Error)
	return b
}

// CreateMeter 创建测试表
func CreateMeter(t *testing.T, db *gorm.DB, tag, meterType string) *models.Meter {
	t.Helper()
	m := &models.Meter{AssetTag: tag, MeterType: meterType, Status: models.MeterStatusActive}
	require.NoError(t, db.Create(m).Error)
	return m
}

// AttachMeter 把表挂到锁位上
func AttachMeter(t *testing.T, db *gorm.DB, lockID, meterID int64) {
	t.Helper()
	require.NoError(t, db.Create(&models.LockHasMeter{LockID: lockID, MeterID: meterID}).Error)
}

// CreateUsage 创建抄表记录
func CreateUsage(t *testing.T, db *gorm.DB, meterID int64, year, month int, start, end int64, status string) *models.MeterUsage {
	t.Helper()
	u := &models.MeterUsage{
		MeterID:    meterID,
		Year:       year,
		Month:      month,
		MeterStart: decimal.NewFromInt(start),
		MeterEnd:   decimal.NewFromInt(end),
		MeterUsage: decimal.NewFromInt(end - start),
		Status:     status,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}
