package repository

import (
	"fmt"
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

// setupTestDB 每个测试独立的内存数据库
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig(logger.Default.LogMode(logger.Silent)))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func createTestTenant(t *testing.T, db *gorm.DB, name string) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{FirstName: name, Phone: "0812345678"}
	require.NoError(t, db.Create(tenant).Error)
	return tenant
}

func createTestLock(t *testing.T, db *gorm.DB, number string) *models.Lock {
	t.Helper()
	lock := &models.Lock{LockNumber: number, Name: "Lock " + number, Status: models.LockStatusAvailable, Active: true}
	require.NoError(t, db.Create(lock).Error)
	return lock
}

func createTestContract(t *testing.T, db *gorm.DB, tenantID int64, number string, start, end time.Time) *models.Contract {
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

func createTestMeter(t *testing.T, db *gorm.DB, tag, meterType string) *models.Meter {
	t.Helper()
	m := &models.Meter{AssetTag: tag, MeterType: meterType, Status: models.MeterStatusActive}
	require.NoError(t, db.Create(m).Error)
	return m
}
