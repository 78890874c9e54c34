package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogomarket/rental-backend/internal/common/database"
	"github.com/gogomarket/rental-backend/internal/models"
)

func newUsage(meterID int64, year, month int, start, end int64, status string) *models.MeterUsage {
	return &models.MeterUsage{
		MeterID:    meterID,
		Year:       year,
		Month:      month,
		MeterStart: decimal.NewFromInt(start),
		MeterEnd:   decimal.NewFromInt(end),
		MeterUsage: decimal.NewFromInt(end - start),
		Status:     status,
	}
}

func TestMeterUsageRepository_OnePerMonth(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMeterUsageRepository(db)
	ctx := context.Background()

	meter := createTestMeter(t, db, "W-001", models.MeterTypeWater)
	require.NoError(t, repo.Create(ctx, newUsage(meter.ID, 2025, 1, 0, 10, models.MeterUsageUnconfirmed)))

	err := repo.Create(ctx, newUsage(meter.ID, 2025, 1, 10, 12, models.MeterUsageUnconfirmed))
	assert.True(t, database.IsDuplicateKey(err))

	require.NoError(t, repo.Create(ctx, newUsage(meter.ID, 2025, 2, 10, 25, models.MeterUsageUnconfirmed)))
}

func TestMeterUsageRepository_PreviousAndLatest(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMeterUsageRepository(db)
	ctx := context.Background()

	meter := createTestMeter(t, db, "E-001", models.MeterTypeElectric)
	require.NoError(t, repo.Create(ctx, newUsage(meter.ID, 2024, 11, 0, 40, models.MeterUsageConfirmed)))
	require.NoError(t, repo.Create(ctx, newUsage(meter.ID, 2024, 12, 40, 90, models.MeterUsageConfirmed)))
	require.NoError(t, repo.Create(ctx, newUsage(meter.ID, 2025, 2, 90, 130, models.MeterUsageConfirmed)))

	prev, err := repo.GetPrevious(ctx, meter.ID, 2025, 2)
	require.NoError(t, err)
	assert.Equal(t, 2024, prev.Year)
	assert.Equal(t, 12, prev.Month)
	assert.True(t, prev.MeterEnd.Equal(decimal.NewFromInt(90)))

	_, err = repo.GetPrevious(ctx, meter.ID, 2024, 11)
	assert.True(t, database.IsNotFound(err))

	latest, err := repo.GetLatest(ctx, meter.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Month)
}

func TestMeterUsageRepository_ListConfirmedForContract(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMeterUsageRepository(db)
	locks := NewLockRepository(db)
	bindings := NewBindingRepository(db)
	ctx := context.Background()

	tenant := createTestTenant(t, db, "Meter")
	lock := createTestLock(t, db, "E-10")
	other := createTestLock(t, db, "E-11")
	c := createTestContract(t, db, tenant.ID, "QD-M", day(2025, 1, 1), day(2025, 12, 31))
	require.NoError(t, bindings.Create(ctx, &models.LockHasContract{LockID: lock.ID, ContractID: c.ID, Status: models.BindingStatusActive}))

	water := createTestMeter(t, db, "W-10", models.MeterTypeWater)
	elec := createTestMeter(t, db, "E-10", models.MeterTypeElectric)
	foreign := createTestMeter(t, db, "W-11", models.MeterTypeWater)
	_, err := locks.BindMeter(ctx, lock.ID, water.ID)
	require.NoError(t, err)
	_, err = locks.BindMeter(ctx, lock.ID, elec.ID)
	require.NoError(t, err)
	_, err = locks.BindMeter(ctx, other.ID, foreign.ID)
	require.NoError(t, err)

	require.NoError(t, repo.Create(ctx, newUsage(water.ID, 2025, 3, 0, 10, models.MeterUsageConfirmed)))
	require.NoError(t, repo.Create(ctx, newUsage(elec.ID, 2025, 3, 100, 150, models.MeterUsageUnconfirmed)))
	require.NoError(t, repo.Create(ctx, newUsage(foreign.ID, 2025, 3, 0, 99, models.MeterUsageConfirmed)))

	usages, err := repo.ListConfirmedForContract(ctx, c.ID, 2025, 3)
	require.NoError(t, err)
	require.Len(t, usages, 1)
	assert.Equal(t, water.ID, usages[0].MeterID)
	require.NotNil(t, usages[0].Meter)
	assert.Equal(t, models.MeterTypeWater, usages[0].Meter.MeterType)

	sheet, err := repo.ListByMonth(ctx, 2025, 3)
	require.NoError(t, err)
	assert.Len(t, sheet, 3)
}
