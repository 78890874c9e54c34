package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogomarket/rental-backend/internal/models"
	"github.com/gogomarket/rental-backend/internal/repository"
	contractService "github.com/gogomarket/rental-backend/internal/service/contract"
	"github.com/gogomarket/rental-backend/pkg/oss"
	"github.com/gogomarket/rental-backend/tests/helpers"
)

func TestScheduler_AddTask(t *testing.T) {
	s := NewScheduler(time.UTC, nil)

	require.NoError(t, s.AddTask("nightly", "0 5 0 * * *", func(ctx context.Context) error { return nil }))
	assert.Error(t, s.AddTask("bad", "every day", func(ctx context.Context) error { return nil }))
	assert.Len(t, s.Tasks(), 1)

	s.Start()
	defer s.Stop()

	next, ok := s.Next("nightly")
	require.True(t, ok)
	assert.Equal(t, 0, next.Hour())
	assert.Equal(t, 5, next.Minute())

	_, ok = s.Next("missing")
	assert.False(t, ok)
}

func TestScheduler_RunNow(t *testing.T) {
	s := NewScheduler(nil, nil)
	var calls int32
	require.NoError(t, s.AddTask("count", "0 0 * * * *", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))
	require.NoError(t, s.AddTask("fail", "0 0 * * * *", func(ctx context.Context) error {
		return errors.New("boom")
	}))
	require.NoError(t, s.AddTask("panic", "0 0 * * * *", func(ctx context.Context) error {
		panic("boom")
	}))

	assert.True(t, s.RunNow("count"))
	assert.True(t, s.RunNow("fail"))
	assert.True(t, s.RunNow("panic"))
	assert.False(t, s.RunNow("missing"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTaskHandler(t *testing.T) {
	db := helpers.SetupTestDB(t)
	ctx := context.Background()

	contractSvc := contractService.NewContractService(
		db,
		repository.NewContractRepository(db),
		repository.NewBindingRepository(db),
		repository.NewTenantRepository(db),
		repository.NewLockRepository(db),
		oss.NewMockUploader(),
		nil,
		time.UTC,
	)
	logRepo := repository.NewOperationLogRepository(db)
	h := NewTaskHandler(contractSvc, logRepo, nil)

	tenant := helpers.CreateTenant(t, db, "Niran")
	lock := helpers.CreateLock(t, db, "S-1", nil)
	ended := helpers.CreateContract(t, db, tenant.ID, "OLD", helpers.Day(2020, 1, 1), helpers.Day(2020, 12, 31))
	binding := helpers.Bind(t, db, lock.ID, ended.ID, models.BindingStatusActive)

	require.NoError(t, h.ExpireBindings(ctx))

	var reloaded models.LockHasContract
	require.NoError(t, db.First(&reloaded, binding.ID).Error)
	assert.Equal(t, models.BindingStatusExpired, reloaded.Status)

	old := &models.OperationLog{Module: "bills", Action: "create", Method: "POST", Path: "/api/bills", Status: 200, CreatedAt: time.Now().AddDate(-1, 0, 0)}
	recent := &models.OperationLog{Module: "bills", Action: "create", Method: "POST", Path: "/api/bills", Status: 200}
	require.NoError(t, db.Create(old).Error)
	require.NoError(t, db.Create(recent).Error)

	require.NoError(t, h.PurgeOperationLogs(ctx))

	var count int64
	require.NoError(t, db.Model(&models.OperationLog{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	s := NewScheduler(time.UTC, nil)
	require.NoError(t, h.Register(s, ""))
	assert.Len(t, s.Tasks(), 3)
}
