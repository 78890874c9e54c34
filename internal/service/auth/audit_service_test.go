package auth

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogomarket/rental-backend/internal/common/errors"
	"github.com/gogomarket/rental-backend/internal/common/utils"
	"github.com/gogomarket/rental-backend/internal/models"
	"github.com/gogomarket/rental-backend/internal/repository"
	"github.com/gogomarket/rental-backend/tests/helpers"
)

func TestAuditService_List(t *testing.T) {
	db := helpers.SetupTestDB(t)
	repo := repository.NewOperationLogRepository(db)
	svc := NewAuditService(repo, time.UTC)
	ctx := context.Background()

	entries := []*models.OperationLog{
		{AdminID: utils.Int64Ptr(1), Module: "bill", Action: "create", Method: "POST", Path: "/api/bills", Status: 200,
			CreatedAt: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)},
		{AdminID: utils.Int64Ptr(1), Module: "contract", Action: "update", Method: "PUT", Path: "/api/contracts/:id", Status: 200,
			TargetID: utils.Int64Ptr(3), CreatedAt: time.Date(2025, 6, 2, 23, 30, 0, 0, time.UTC)},
		{AdminID: utils.Int64Ptr(2), Module: "contract", Action: "delete", Method: "DELETE", Path: "/api/contracts/:id", Status: 200,
			CreatedAt: time.Date(2025, 6, 5, 8, 0, 0, 0, time.UTC)},
	}
	for _, e := range entries {
		require.NoError(t, repo.Create(ctx, e))
	}

	list, total, p, err := svc.List(ctx, &ListLogsRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, "delete", list[0].Action)

	// to 当天整天都包含
	list, total, _, err = svc.List(ctx, &ListLogsRequest{Module: "contract", From: "2025-06-02", To: "2025-06-02"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "update", list[0].Action)

	_, total, _, err = svc.List(ctx, &ListLogsRequest{AdminID: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, _, _, err = svc.List(ctx, &ListLogsRequest{From: "06/01/2025"})
	assert.True(t, stderrors.Is(err, errors.ErrInvalidParams))

	_, _, _, err = svc.List(ctx, &ListLogsRequest{From: "2025-06-05", To: "2025-06-01"})
	assert.True(t, stderrors.Is(err, errors.ErrInvalidParams))
}
