// Package auth 提供后台管理员登录和令牌服务
package auth

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/common/crypto"
	"github.com/gogomarket/rental-backend/internal/common/database"
	"github.com/gogomarket/rental-backend/internal/common/errors"
	"github.com/gogomarket/rental-backend/internal/common/jwt"
	"github.com/gogomarket/rental-backend/internal/common/logger"
	"github.com/gogomarket/rental-backend/internal/models"
	"github.com/gogomarket/rental-backend/internal/repository"
)

// AuthService 管理员认证服务
type AuthService struct {
	adminRepo  *repository.AdminRepository
	jwtManager *jwt.Manager
	now        func() time.Time
}

// NewAuthService 创建管理员认证服务
func NewAuthService(adminRepo *repository.AdminRepository, jwtManager *jwt.Manager) *AuthService {
	return &AuthService{
		adminRepo:  adminRepo,
		jwtManager: jwtManager,
		now:        time.Now,
	}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	IP       string `json:"-"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Admin     *AdminInfo     `json:"admin"`
	TokenPair *jwt.TokenPair `json:"token"`
}

// AdminInfo 管理员信息（不含敏感字段）
type AdminInfo struct {
	ID          int64              `json:"id"`
	Username    string             `json:"username"`
	Name        string             `json:"name"`
	Status      models.AdminStatus `json:"status"`
	LastLoginAt *time.Time         `json:"last_login_at,omitempty"`
}

// Login 管理员登录
// 用户名不存在和密码错误返回同一个错误
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	admin, err := s.adminRepo.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrPasswordError
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if !crypto.VerifyPassword(req.Password, admin.PasswordHash) {
		return nil, errors.ErrPasswordError
	}
	if !admin.IsActive() {
		return nil, errors.ErrAccountDisabled
	}

	pair, err := s.jwtManager.GenerateTokenPair(admin.ID, admin.Username)
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}

	if err := s.adminRepo.RecordLogin(ctx, admin.ID, req.IP, s.now()); err != nil {
		logger.Warn("update admin login info failed", logger.Int64("admin_id", admin.ID), logger.Err(err))
	}
	logger.Info("admin logged in", logger.Module("auth"), logger.String("username", admin.Username), logger.String("ip", req.IP))

	return &LoginResponse{Admin: toAdminInfo(admin), TokenPair: pair}, nil
}

// Me 获取当前管理员信息
func (s *AuthService) Me(ctx context.Context, adminID int64) (*AdminInfo, error) {
	admin, err := s.adminRepo.GetByID(ctx, adminID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrUnauthorized
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if !admin.IsActive() {
		return nil, errors.ErrAccountDisabled
	}
	return toAdminInfo(admin), nil
}

// RefreshToken 用刷新令牌换取新的令牌对
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*jwt.TokenPair, error) {
	pair, err := s.jwtManager.RefreshToken(refreshToken)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.ErrTokenExpired
		}
		return nil, errors.ErrTokenInvalid
	}
	return pair, nil
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6,max=64"`
}

// ChangePassword 修改密码
func (s *AuthService) ChangePassword(ctx context.Context, adminID int64, req *ChangePasswordRequest) error {
	admin, err := s.adminRepo.GetByID(ctx, adminID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.ErrUnauthorized
		}
		return errors.ErrDatabaseError.WithError(err)
	}
	if !crypto.VerifyPassword(req.OldPassword, admin.PasswordHash) {
		return errors.ErrPasswordError.WithMessage("原密码错误")
	}
	hash, err := crypto.HashPassword(req.NewPassword)
	if err != nil {
		return errors.ErrInternalError.WithError(err)
	}
	if err := s.adminRepo.UpdatePassword(ctx, adminID, hash); err != nil {
		return errors.ErrDatabaseError.WithError(err)
	}
	return nil
}

// CreateAdminRequest 创建管理员请求
type CreateAdminRequest struct {
	Username string
	Password string
	Name     string
}

// CreateAdmin 创建管理员，供命令行初始化使用
func (s *AuthService) CreateAdmin(ctx context.Context, req *CreateAdminRequest) (*AdminInfo, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || len(req.Password) < 6 {
		return nil, errors.ErrInvalidParams.WithMessage("用户名不能为空，密码至少 6 位")
	}
	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return nil, errors.ErrInternalError.WithError(err)
	}
	name := req.Name
	if name == "" {
		name = username
	}
	admin := &models.Admin{
		Username:     username,
		PasswordHash: hash,
		Name:         name,
		Status:       models.AdminStatusActive,
	}
	if err := s.adminRepo.Create(ctx, admin); err != nil {
		if database.IsDuplicateKey(err) {
			return nil, errors.ErrAlreadyExists.WithMessagef("用户名 %s 已存在", username)
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return toAdminInfo(admin), nil
}

// ListAdmins 管理员列表
func (s *AuthService) ListAdmins(ctx context.Context) ([]*AdminInfo, error) {
	admins, err := s.adminRepo.List(ctx)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	infos := make([]*AdminInfo, 0, len(admins))
	for _, admin := range admins {
		infos = append(infos, toAdminInfo(admin))
	}
	return infos, nil
}

// SetAdminStatus 启用或禁用管理员，已签发的令牌在 Me 校验时失效
func (s *AuthService) SetAdminStatus(ctx context.Context, username string, active bool) (*AdminInfo, error) {
	admin, err := s.adminRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrNotFound.WithMessagef("管理员 %s 不存在", username)
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	status := models.AdminStatusDisabled
	if active {
		status = models.AdminStatusActive
	}
	if err := s.adminRepo.UpdateStatus(ctx, admin.ID, status); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	admin.Status = status
	logger.Info("admin status changed", logger.Module("auth"), logger.String("username", admin.Username), logger.Bool("active", active))
	return toAdminInfo(admin), nil
}

func toAdminInfo(admin *models.Admin) *AdminInfo {
	return &AdminInfo{
		ID:          admin.ID,
		Username:    admin.Username,
		Name:        admin.Name,
		Status:      admin.Status,
		LastLoginAt: admin.LastLoginAt,
	}
}
