package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogomarket/rental-backend/internal/common/database"
	"github.com/gogomarket/rental-backend/internal/models"
)

func TestLockRepository_MeterBinding(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLockRepository(db)
	meters := NewMeterRepository(db)
	ctx := context.Background()

	l1 := createTestLock(t, db, "M-01")
	l2 := createTestLock(t, db, "M-02")
	water := createTestMeter(t, db, "W-100", models.MeterTypeWater)
	elec := createTestMeter(t, db, "E-100", models.MeterTypeElectric)

	_, err := repo.BindMeter(ctx, l1.ID, water.ID)
	require.NoError(t, err)

	// 同一块表不能挂到两个锁位
	_, err = repo.BindMeter(ctx, l2.ID, water.ID)
	assert.True(t, database.IsDuplicateKey(err))

	unbound, err := meters.ListUnbound(ctx, "")
	require.NoError(t, err)
	require.Len(t, unbound, 1)
	assert.Equal(t, elec.ID, unbound[0].ID)

	list, err := repo.ListMeters(ctx, l1.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "W-100", list[0].AssetTag)

	byLock, err := repo.ListMetersByLocks(ctx, []int64{l1.ID, l2.ID})
	require.NoError(t, err)
	assert.Len(t, byLock[l1.ID], 1)
	assert.Empty(t, byLock[l2.ID])

	n, err := repo.UnbindMeter(ctx, l1.ID, water.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.BindMeter(ctx, l2.ID, water.ID)
	require.NoError(t, err)

	binding, err := meters.GetBinding(ctx, water.ID)
	require.NoError(t, err)
	assert.Equal(t, l2.ID, binding.LockID)
}

func TestMeterRepository_AssetTagAndDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMeterRepository(db)
	locks := NewLockRepository(db)
	ctx := context.Background()

	meter := createTestMeter(t, db, "TAG-1", models.MeterTypeWater)
	err := repo.Create(ctx, &models.Meter{AssetTag: "TAG-1", MeterType: models.MeterTypeElectric})
	assert.True(t, database.IsDuplicateKey(err))

	lock := createTestLock(t, db, "M-10")
	_, err = locks.BindMeter(ctx, lock.ID, meter.ID)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, meter.ID))
	_, err = repo.GetByAssetTag(ctx, "TAG-1")
	assert.True(t, database.IsNotFound(err))

	list, err := locks.ListMeters(ctx, lock.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	// 删除后资产标签可以复用
	require.NoError(t, repo.Create(ctx, &models.Meter{AssetTag: "TAG-1", MeterType: models.MeterTypeWater}))

	_, total, err := repo.List(ctx, 0, 10, map[string]interface{}{"keyword": "TAG"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestLockReserveRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLockReserveRepository(db)
	ctx := context.Background()

	lock := createTestLock(t, db, "R-01")
	first := &models.LockReserve{LockID: lock.ID, ReserverName: "Kanya"}
	require.NoError(t, repo.Create(ctx, first))

	err := repo.Create(ctx, &models.LockReserve{LockID: lock.ID, ReserverName: "Other"})
	assert.True(t, database.IsDuplicateKey(err))

	require.NoError(t, repo.CreateAttachment(ctx, &models.LockReserveAttachment{LockReserveID: first.ID, FileName: "id.jpg", Path: "reserves/id.jpg"}))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Len(t, active[0].Attachments, 1)
	require.NotNil(t, active[0].Lock)

	ids, err := repo.ActiveLockIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{lock.ID}, ids)

	n, err := repo.Delete(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, repo.Create(ctx, &models.LockReserve{LockID: lock.ID, ReserverName: "Second"}))

	history, err := repo.HistoryByLock(ctx, lock.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Second", history[0].ReserverName)
	assert.True(t, history[1].DeletedAt.Valid)
}
