package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogomarket/rental-backend/internal/common/database"
	"github.com/gogomarket/rental-backend/internal/models"
)

func TestTenantRepository_CodeUnique(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTenantRepository(db)
	ctx := context.Background()

	// 空编号不受唯一约束
	a := &models.Tenant{FirstName: "A"}
	b := &models.Tenant{FirstName: "B"}
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	require.NoError(t, repo.UpdateFields(ctx, a.ID, map[string]interface{}{"code": "C250101-00001"}))
	err := repo.UpdateFields(ctx, b.ID, map[string]interface{}{"code": "C250101-00001"})
	assert.True(t, database.IsDuplicateKey(err))

	got, err := repo.GetByCode(ctx, "C250101-00001")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
}

func TestTenantRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTenantRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Tenant{FirstName: "Somchai", Phone: "0811111111"}))
	require.NoError(t, repo.Create(ctx, &models.Tenant{FirstName: "Malee", NickName: "Mali", Phone: "0822222222"}))
	require.NoError(t, repo.Create(ctx, &models.Tenant{FirstName: "Anan", Phone: "0833333333"}))

	list, total, err := repo.List(ctx, 0, 10, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, "Anan", list[0].FirstName)

	list, total, err = repo.List(ctx, 0, 10, "Mali")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Malee", list[0].FirstName)

	_, total, err = repo.List(ctx, 0, 10, "0811")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestZoneRepository_DeleteDetachesLocks(t *testing.T) {
	db := setupTestDB(t)
	repo := NewZoneRepository(db)
	locks := NewLockRepository(db)
	ctx := context.Background()

	zone := &models.Zone{Name: "Zone A", Status: models.ZoneStatusActive}
	require.NoError(t, repo.Create(ctx, zone))
	lock := createTestLock(t, db, "Z-01")
	require.NoError(t, locks.UpdateFields(ctx, lock.ID, map[string]interface{}{"zone_id": zone.ID}))

	list, err := locks.List(ctx, map[string]interface{}{"zone_id": zone.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Zone)
	assert.Equal(t, "Zone A", list[0].Zone.Name)

	require.NoError(t, repo.Delete(ctx, zone.ID))

	got, err := locks.GetByID(ctx, lock.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ZoneID)

	assert.True(t, database.IsNotFound(repo.Delete(ctx, zone.ID)))
}
