// Package errors 错误码和错误处理单元测试
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(1001, "参数错误")
	require.NotNil(t, err)
	assert.Equal(t, 1001, err.Code)
	assert.Equal(t, "参数错误", err.Message)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus())
	assert.Nil(t, err.Err)
}

func TestWrap(t *testing.T) {
	originalErr := stderrors.New("database connection failed")
	err := Wrap(1004, "数据库错误", originalErr)

	assert.Equal(t, 1004, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus())
	assert.Equal(t, originalErr, err.Err)
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{"不带原始错误", New(1001, "参数错误"), "[1001] 参数错误"},
		{"带原始错误", Wrap(1004, "数据库错误", stderrors.New("connection timeout")), "[1004] 数据库错误: connection timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.appError.Error())
		})
	}
}

func TestAppError_IsByCode(t *testing.T) {
	derived := ErrLockAlreadyBound.WithMessage("锁位 A-01 已绑定合同 QD-1")
	assert.True(t, stderrors.Is(derived, ErrLockAlreadyBound))
	assert.False(t, stderrors.Is(derived, ErrBillExists))

	wrapped := fmt.Errorf("bind: %w", derived)
	assert.True(t, stderrors.Is(wrapped, ErrLockAlreadyBound))
}

func TestAppError_WithError(t *testing.T) {
	cause := stderrors.New("duplicate key")
	err := ErrBillExists.WithError(cause)

	assert.Equal(t, ErrBillExists.Code, err.Code)
	assert.Equal(t, http.StatusConflict, err.HTTPStatus())
	assert.ErrorIs(t, err, cause)
	// 原错误不被修改
	assert.Nil(t, ErrBillExists.Err)
}

func TestAppError_WithMessagef(t *testing.T) {
	err := ErrMeterNotFound.WithMessagef("资产标签 %s 不存在", "WM-001")
	assert.Equal(t, "资产标签 WM-001 不存在", err.Message)
	assert.Equal(t, http.StatusNotFound, err.HTTPStatus())
}

func TestGetAppError(t *testing.T) {
	t.Run("包装的应用错误", func(t *testing.T) {
		err := fmt.Errorf("ctx: %w", ErrTenantNotFound)
		assert.True(t, IsAppError(err))
		assert.Equal(t, ErrTenantNotFound.Code, GetAppError(err).Code)
	})

	t.Run("普通错误转为未知错误", func(t *testing.T) {
		err := stderrors.New("boom")
		assert.False(t, IsAppError(err))
		appErr := GetAppError(err)
		assert.Equal(t, ErrUnknown.Code, appErr.Code)
		assert.Equal(t, err, appErr.Err)
	})
}

func TestErrorCodes_Unique(t *testing.T) {
	all := []*AppError{
		ErrUnknown, ErrInvalidParams, ErrNotFound, ErrAlreadyExists, ErrDatabaseError,
		ErrCacheError, ErrInternalError, ErrExternalService, ErrRateLimitExceed, ErrOperationFailed,
		ErrUnauthorized, ErrTokenExpired, ErrTokenInvalid, ErrPermissionDenied, ErrAccountDisabled, ErrPasswordError,
		ErrTenantNotFound, ErrTenantCodeNotFound, ErrZoneNotFound, ErrLockNotFound, ErrLockNumberExists,
		ErrReserveNotFound, ErrLockReserved,
		ErrContractNotFound, ErrContractNumberExists, ErrContractDateInvalid, ErrContractExpired,
		ErrLockAlreadyBound, ErrBindingNotFound, ErrContractAlreadyBound, ErrDocumentNotFound,
		ErrMeterNotFound, ErrAssetTagExists, ErrMeterUsageExists, ErrMeterReadingInvalid,
		ErrMeterUsageNotFound, ErrMeterAlreadyBound, ErrMeterBindNotFound,
		ErrBillNotFound, ErrBillExists, ErrDiscountInvalid, ErrVatInvalid, ErrBillStatusInvalid, ErrContractNotBilling,
		ErrNotifyFailed, ErrNotifyNoRecipient, ErrFileTooLarge, ErrFileTypeInvalid, ErrUploadFailed,
	}
	seen := make(map[int]string)
	for _, e := range all {
		prev, dup := seen[e.Code]
		assert.False(t, dup, "code %d used by %q and %q", e.Code, prev, e.Message)
		seen[e.Code] = e.Message
	}
}
