// Package lock 提供区域、锁位和锁位预订服务
package lock

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/common/errors"
	"github.com/gogomarket/rental-backend/internal/models"
	"github.com/gogomarket/rental-backend/internal/repository"
)

// ZoneService 区域服务
type ZoneService struct {
	zoneRepo *repository.ZoneRepository
}

// NewZoneService 创建区域服务
func NewZoneService(zoneRepo *repository.ZoneRepository) *ZoneService {
	return &ZoneService{zoneRepo: zoneRepo}
}

// ZoneRequest 创建/更新区域请求
type ZoneRequest struct {
	Name   string `json:"name" binding:"required,max=100"`
	Pic    string `json:"pic"`
	Status string `json:"status" binding:"omitempty,oneof=active inactive"`
}

// Create 创建区域
func (s *ZoneService) Create(ctx context.Context, req *ZoneRequest) (*models.Zone, error) {
	zone := &models.Zone{
		Name:   strings.TrimSpace(req.Name),
		Pic:    req.Pic,
		Status: req.Status,
	}
	if zone.Status == "" {
		zone.Status = models.ZoneStatusActive
	}
	if err := s.zoneRepo.Create(ctx, zone); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return zone, nil
}

// Get 获取区域
func (s *ZoneService) Get(ctx context.Context, id int64) (*models.Zone, error) {
	zone, err := s.zoneRepo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrZoneNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return zone, nil
}

// List 区域列表
func (s *ZoneService) List(ctx context.Context, status string) ([]*models.Zone, error) {
	zones, err := s.zoneRepo.List(ctx, status)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return zones, nil
}

// Update 更新区域
func (s *ZoneService) Update(ctx context.Context, id int64, req *ZoneRequest) (*models.Zone, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	fields := map[string]interface{}{
		"name": strings.TrimSpace(req.Name),
		"pic":  req.Pic,
	}
	if req.Status != "" {
		fields["status"] = req.Status
	}
	if err := s.zoneRepo.UpdateFields(ctx, id, fields); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return s.Get(ctx, id)
}

// Delete 删除区域，区域内锁位保留但不再属于任何区域
func (s *ZoneService) Delete(ctx context.Context, id int64) error {
	if err := s.zoneRepo.Delete(ctx, id); err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.ErrZoneNotFound
		}
		return errors.ErrDatabaseError.WithError(err)
	}
	return nil
}
