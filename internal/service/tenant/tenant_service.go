// Package tenant 提供租户管理服务
package tenant

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/common/errors"
	"github.com/gogomarket/rental-backend/internal/common/logger"
	"github.com/gogomarket/rental-backend/internal/common/utils"
	"github.com/gogomarket/rental-backend/internal/models"
	"github.com/gogomarket/rental-backend/internal/repository"
)

// Welcomer 租户绑定 LINE 后发送欢迎消息
type Welcomer interface {
	SendWelcome(ctx context.Context, tenant *models.Tenant) error
}

// TenantService 租户服务
type TenantService struct {
	db         *gorm.DB
	tenantRepo *repository.TenantRepository
	welcomer   Welcomer
}

// NewTenantService 创建租户服务，welcomer 可以为 nil
func NewTenantService(db *gorm.DB, tenantRepo *repository.TenantRepository, welcomer Welcomer) *TenantService {
	return &TenantService{
		db:         db,
		tenantRepo: tenantRepo,
		welcomer:   welcomer,
	}
}

// CreateTenantRequest 创建租户请求
type CreateTenantRequest struct {
	Prefix       string `json:"prefix" binding:"max=20"`
	FirstName    string `json:"first_name" binding:"required,max=100"`
	LastName     string `json:"last_name" binding:"max=100"`
	NickName     string `json:"nick_name" binding:"max=100"`
	Contact      string `json:"contact"`
	Phone        string `json:"phone" binding:"max=32"`
	Address      string `json:"address"`
	ProfileImage string `json:"profile_image"`
	LineID       string `json:"line_id"`
	LineName     string `json:"line_name"`
	LineImage    string `json:"line_img"`
	Note         string `json:"note"`
}

// UpdateTenantRequest 更新租户请求，nil 字段不修改
type UpdateTenantRequest struct {
	Prefix       *string `json:"prefix"`
	FirstName    *string `json:"first_name"`
	LastName     *string `json:"last_name"`
	NickName     *string `json:"nick_name"`
	Contact      *string `json:"contact"`
	Phone        *string `json:"phone"`
	Address      *string `json:"address"`
	ProfileImage *string `json:"profile_image"`
	LineID       *string `json:"line_id"`
	LineName     *string `json:"line_name"`
	LineImage    *string `json:"line_img"`
	Note         *string `json:"note"`
}

// LinkLineRequest 客户通过编号绑定 LINE 账号
type LinkLineRequest struct {
	CustomerCode string `json:"customer_code" binding:"required"`
	LineID       string `json:"line_id" binding:"required"`
	LineName     string `json:"line_name"`
	LineImage    string `json:"line_img"`
}

// LinkLineResult 绑定结果
type LinkLineResult struct {
	Tenant   *models.Tenant `json:"tenant"`
	Notified bool           `json:"notified"`
}

// Create 创建租户
// 编号依赖自增 ID，插入后在同一事务内生成并回写
func (s *TenantService) Create(ctx context.Context, req *CreateTenantRequest) (*models.Tenant, error) {
	tenant := &models.Tenant{
		Prefix:       strings.TrimSpace(req.Prefix),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		NickName:     req.NickName,
		Contact:      req.Contact,
		Phone:        strings.TrimSpace(req.Phone),
		Address:      req.Address,
		ProfileImage: req.ProfileImage,
		LineID:       req.LineID,
		LineName:     req.LineName,
		LineImage:    req.LineImage,
		Note:         req.Note,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.tenantRepo.WithTx(tx)
		if err := repo.Create(ctx, tenant); err != nil {
			return err
		}
		tenant.Code = utils.TenantCode(tenant.CreatedAt, tenant.ID)
		return repo.UpdateFields(ctx, tenant.ID, map[string]interface{}{"code": tenant.Code})
	})
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	logger.Info("tenant created", logger.TenantID(tenant.ID), logger.String("code", tenant.Code))
	return tenant, nil
}

// Get 获取租户
func (s *TenantService) Get(ctx context.Context, id int64) (*models.Tenant, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrTenantNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return tenant, nil
}

// List 租户列表
func (s *TenantService) List(ctx context.Context, page, pageSize int, keyword string) ([]*models.Tenant, int64, error) {
	p := utils.Pagination{Page: page, PageSize: pageSize}
	p.Normalize()
	tenants, total, err := s.tenantRepo.List(ctx, p.GetOffset(), p.GetLimit(), strings.TrimSpace(keyword))
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return tenants, total, nil
}

// Update 更新租户
func (s *TenantService) Update(ctx context.Context, id int64, req *UpdateTenantRequest) (*models.Tenant, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	setString(fields, "prefix", req.Prefix)
	setString(fields, "first_name", req.FirstName)
	setString(fields, "last_name", req.LastName)
	setString(fields, "nick_name", req.NickName)
	setString(fields, "contact", req.Contact)
	setString(fields, "phone", req.Phone)
	setString(fields, "address", req.Address)
	setString(fields, "profile_image", req.ProfileImage)
	setString(fields, "line_id", req.LineID)
	setString(fields, "line_name", req.LineName)
	setString(fields, "line_image", req.LineImage)
	setString(fields, "note", req.Note)

	if name, ok := fields["first_name"].(string); ok && strings.TrimSpace(name) == "" {
		return nil, errors.ErrInvalidParams.WithMessage("first_name 不能为空")
	}

	if len(fields) > 0 {
		if err := s.tenantRepo.UpdateFields(ctx, id, fields); err != nil {
			return nil, errors.ErrDatabaseError.WithError(err)
		}
	}
	return s.Get(ctx, id)
}

// LinkLine 根据客户编号绑定 LINE 账号并发送欢迎消息
// 欢迎消息发送失败不影响绑定结果，通过 Notified 返回
func (s *TenantService) LinkLine(ctx context.Context, req *LinkLineRequest) (*LinkLineResult, error) {
	tenant, err := s.tenantRepo.GetByCode(ctx, strings.TrimSpace(req.CustomerCode))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrTenantCodeNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	fields := map[string]interface{}{
		"line_id":    req.LineID,
		"line_name":  req.LineName,
		"line_image": req.LineImage,
	}
	if err := s.tenantRepo.UpdateFields(ctx, tenant.ID, fields); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	tenant.LineID = req.LineID
	tenant.LineName = req.LineName
	tenant.LineImage = req.LineImage

	result := &LinkLineResult{Tenant: tenant}
	if s.welcomer == nil {
		return result, nil
	}
	if err := s.welcomer.SendWelcome(ctx, tenant); err != nil {
		logger.Warn("send welcome message failed", logger.TenantID(tenant.ID), logger.Err(err))
		return result, nil
	}
	result.Notified = true
	return result, nil
}

func setString(fields map[string]interface{}, column string, v *string) {
	if v != nil {
		fields[column] = strings.TrimSpace(*v)
	}
}
