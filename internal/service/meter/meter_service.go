// Package meter 提供水电表、月度抄表和读数上报服务
package meter

import (
	"context"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/common/database"
	"github.com/gogomarket/rental-backend/internal/common/errors"
	"github.com/gogomarket/rental-backend/internal/common/logger"
	"github.com/gogomarket/rental-backend/internal/common/utils"
	"github.com/gogomarket/rental-backend/internal/models"
	"github.com/gogomarket/rental-backend/internal/repository"
)

// MeterService 水电表服务
type MeterService struct {
	meterRepo *repository.MeterRepository
}

// NewMeterService 创建水电表服务
func NewMeterService(meterRepo *repository.MeterRepository) *MeterService {
	return &MeterService{meterRepo: meterRepo}
}

// CreateMeterRequest 创建表请求
type CreateMeterRequest struct {
	MeterType   string                 `json:"meter_type" binding:"required"`
	MeterNumber string                 `json:"meter_number" binding:"max=64"`
	MeterSerial string                 `json:"meter_serial" binding:"max=64"`
	AssetTag    string                 `json:"meter_asset_tag" binding:"required,max=64"`
	Note        string                 `json:"note"`
	Attributes  map[string]interface{} `json:"attributes"`
}

// UpdateMeterRequest 更新表请求
type UpdateMeterRequest struct {
	MeterType   *string                `json:"meter_type"`
	MeterNumber *string                `json:"meter_number"`
	MeterSerial *string                `json:"meter_serial"`
	AssetTag    *string                `json:"meter_asset_tag"`
	Note        *string                `json:"note"`
	Status      *string                `json:"status" binding:"omitempty,oneof=active inactive"`
	Attributes  map[string]interface{} `json:"attributes"`
}

// ListMetersRequest 表列表筛选
type ListMetersRequest struct {
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	MeterType string `form:"meter_type"`
	Status    string `form:"status"`
	Keyword   string `form:"keyword"`
}

// Create 创建表
func (s *MeterService) Create(ctx context.Context, req *CreateMeterRequest) (*models.Meter, error) {
	if !models.IsValidMeterType(req.MeterType) {
		return nil, errors.ErrInvalidParams.WithMessagef("不支持的表类型: %s", req.MeterType)
	}
	meter := &models.Meter{
		MeterType:   req.MeterType,
		MeterNumber: strings.TrimSpace(req.MeterNumber),
		MeterSerial: strings.TrimSpace(req.MeterSerial),
		AssetTag:    strings.TrimSpace(req.AssetTag),
		Note:        req.Note,
		Status:      models.MeterStatusActive,
	}
	if len(req.Attributes) > 0 {
		meter.Attributes = datatypes.JSONMap(req.Attributes)
	}
	if err := s.meterRepo.Create(ctx, meter); err != nil {
		if database.IsDuplicateKey(err) {
			return nil, errors.ErrAssetTagExists
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	logger.Info("meter created", logger.AssetTag(meter.AssetTag), logger.String("meter_type", meter.MeterType))
	return meter, nil
}

// Get 获取表
func (s *MeterService) Get(ctx context.Context, id int64) (*models.Meter, error) {
	meter, err := s.meterRepo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrMeterNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return meter, nil
}

// GetByAssetTag 根据资产标签获取表
func (s *MeterService) GetByAssetTag(ctx context.Context, tag string) (*models.Meter, error) {
	meter, err := s.meterRepo.GetByAssetTag(ctx, strings.TrimSpace(tag))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrMeterNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return meter, nil
}

// List 表列表
func (s *MeterService) List(ctx context.Context, req *ListMetersRequest) ([]*models.Meter, int64, error) {
	p := utils.Pagination{Page: req.Page, PageSize: req.PageSize}
	p.Normalize()
	filters := map[string]interface{}{
		"meter_type": req.MeterType,
		"status":     req.Status,
		"keyword":    strings.TrimSpace(req.Keyword),
	}
	meters, total, err := s.meterRepo.List(ctx, p.GetOffset(), p.GetLimit(), filters)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return meters, total, nil
}

// Update 更新表
func (s *MeterService) Update(ctx context.Context, id int64, req *UpdateMeterRequest) (*models.Meter, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	if req.MeterType != nil {
		if !models.IsValidMeterType(*req.MeterType) {
			return nil, errors.ErrInvalidParams.WithMessagef("不支持的表类型: %s", *req.MeterType)
		}
		fields["meter_type"] = *req.MeterType
	}
	if req.MeterNumber != nil {
		fields["meter_number"] = strings.TrimSpace(*req.MeterNumber)
	}
	if req.MeterSerial != nil {
		fields["meter_serial"] = strings.TrimSpace(*req.MeterSerial)
	}
	if req.AssetTag != nil {
		tag := strings.TrimSpace(*req.AssetTag)
		if tag == "" {
			return nil, errors.ErrInvalidParams.WithMessage("meter_asset_tag 不能为空")
		}
		fields["asset_tag"] = tag
	}
	if req.Note != nil {
		fields["note"] = *req.Note
	}
	if req.Status != nil {
		fields["status"] = *req.Status
	}
	if req.Attributes != nil {
		fields["attributes"] = datatypes.JSONMap(req.Attributes)
	}

	if len(fields) > 0 {
		if err := s.meterRepo.UpdateFields(ctx, id, fields); err != nil {
			if database.IsDuplicateKey(err) {
				return nil, errors.ErrAssetTagExists
			}
			return nil, errors.ErrDatabaseError.WithError(err)
		}
	}
	return s.Get(ctx, id)
}

// Delete 删除表（软删除），同时解除锁位绑定
func (s *MeterService) Delete(ctx context.Context, id int64) error {
	if err := s.meterRepo.Delete(ctx, id); err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.ErrMeterNotFound
		}
		return errors.ErrDatabaseError.WithError(err)
	}
	logger.Info("meter deleted", logger.Int64("meter_id", id))
	return nil
}

// Binding 表当前挂载的锁位，未绑定时返回 nil
func (s *MeterService) Binding(ctx context.Context, id int64) (*models.LockHasMeter, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	lhm, err := s.meterRepo.GetBinding(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return lhm, nil
}
