package lock

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/common/database"
	"github.com/gogomarket/rental-backend/internal/common/errors"
	"github.com/gogomarket/rental-backend/internal/common/logger"
	"github.com/gogomarket/rental-backend/internal/models"
	"github.com/gogomarket/rental-backend/internal/repository"
	"github.com/gogomarket/rental-backend/pkg/oss"
)

// ReserveService 锁位预订服务
type ReserveService struct {
	reserveRepo *repository.LockReserveRepository
	lockRepo    *repository.LockRepository
	bindingRepo *repository.BindingRepository
	uploader    oss.Uploader
	now         func() time.Time
}

// NewReserveService 创建锁位预订服务
func NewReserveService(
	reserveRepo *repository.LockReserveRepository,
	lockRepo *repository.LockRepository,
	bindingRepo *repository.BindingRepository,
	uploader oss.Uploader,
) *ReserveService {
	return &ReserveService{
		reserveRepo: reserveRepo,
		lockRepo:    lockRepo,
		bindingRepo: bindingRepo,
		uploader:    uploader,
		now:         time.Now,
	}
}

// CreateReserveRequest 创建预订请求
type CreateReserveRequest struct {
	LockID        int64      `json:"lock_id" binding:"required,gt=0"`
	ReserverName  string     `json:"reserver_name" binding:"required,max=100"`
	Phone         string     `json:"phone" binding:"max=32"`
	Note          string     `json:"note"`
	ReservedFrom  *time.Time `json:"reserved_from"`
	ReservedUntil *time.Time `json:"reserved_until"`
}

// Create 创建预订
// 锁位正在出租时不允许预订；同一锁位的有效预订由唯一索引保证只有一条
func (s *ReserveService) Create(ctx context.Context, adminID int64, req *CreateReserveRequest) (*models.LockReserve, error) {
	if req.ReservedFrom != nil && req.ReservedUntil != nil && req.ReservedUntil.Before(*req.ReservedFrom) {
		return nil, errors.ErrInvalidParams.WithMessage("reserved_until 不能早于 reserved_from")
	}

	if _, err := s.lockRepo.GetByID(ctx, req.LockID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrLockNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	active, err := s.bindingRepo.GetActiveByLock(ctx, req.LockID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if active != nil && active.Contract != nil && !active.Contract.IsExpired(s.now()) {
		return nil, errors.ErrLockAlreadyBound
	}

	reserve := &models.LockReserve{
		LockID:        req.LockID,
		ReserverName:  strings.TrimSpace(req.ReserverName),
		Phone:         strings.TrimSpace(req.Phone),
		Note:          req.Note,
		ReservedFrom:  req.ReservedFrom,
		ReservedUntil: req.ReservedUntil,
		CreatedBy:     adminID,
	}
	if err := s.reserveRepo.Create(ctx, reserve); err != nil {
		if database.IsDuplicateKey(err) {
			return nil, errors.ErrLockReserved
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	logger.Info("lock reserved", logger.LockID(req.LockID), logger.Int64("reserve_id", reserve.ID))
	return s.Get(ctx, reserve.ID)
}

// Get 获取预订
func (s *ReserveService) Get(ctx context.Context, id int64) (*models.LockReserve, error) {
	reserve, err := s.reserveRepo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrReserveNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return reserve, nil
}

// ListActive 有效预订列表
func (s *ReserveService) ListActive(ctx context.Context) ([]*models.LockReserve, error) {
	reserves, err := s.reserveRepo.ListActive(ctx)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return reserves, nil
}

// Cancel 取消预订（软删除）
func (s *ReserveService) Cancel(ctx context.Context, id int64) error {
	rows, err := s.reserveRepo.Delete(ctx, id)
	if err != nil {
		return errors.ErrDatabaseError.WithError(err)
	}
	if rows == 0 {
		return errors.ErrReserveNotFound
	}
	return nil
}

// History 锁位的预订历史，包含已取消的记录
func (s *ReserveService) History(ctx context.Context, lockID int64) ([]*models.LockReserve, error) {
	reserves, err := s.reserveRepo.HistoryByLock(ctx, lockID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return reserves, nil
}

// AddAttachment 上传预订附件
func (s *ReserveService) AddAttachment(ctx context.Context, reserveID int64, filename string, r io.Reader) (*models.LockReserveAttachment, error) {
	if _, err := s.Get(ctx, reserveID); err != nil {
		return nil, err
	}
	if err := oss.ValidateExt(filename, oss.DocumentExts); err != nil {
		return nil, errors.ErrFileTypeInvalid.WithError(err)
	}

	key := oss.GenerateObjectKey(fmt.Sprintf("reserves/%d", reserveID), filename)
	url, err := s.uploader.Upload(ctx, key, r)
	if err != nil {
		return nil, errors.ErrUploadFailed.WithError(err)
	}

	att := &models.LockReserveAttachment{
		LockReserveID: reserveID,
		FileName:      filename,
		Path:          key,
		URL:           url,
	}
	if err := s.reserveRepo.CreateAttachment(ctx, att); err != nil {
		_ = s.uploader.Delete(ctx, key)
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return att, nil
}
