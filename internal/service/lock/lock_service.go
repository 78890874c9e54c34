package lock

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/common/database"
	"github.com/gogomarket/rental-backend/internal/common/errors"
	"github.com/gogomarket/rental-backend/internal/common/logger"
	"github.com/gogomarket/rental-backend/internal/models"
	"github.com/gogomarket/rental-backend/internal/repository"
)

// LockService 锁位服务
type LockService struct {
	lockRepo    *repository.LockRepository
	zoneRepo    *repository.ZoneRepository
	bindingRepo *repository.BindingRepository
	meterRepo   *repository.MeterRepository
	reserveRepo *repository.LockReserveRepository
	now         func() time.Time
}

// NewLockService 创建锁位服务
func NewLockService(
	lockRepo *repository.LockRepository,
	zoneRepo *repository.ZoneRepository,
	bindingRepo *repository.BindingRepository,
	meterRepo *repository.MeterRepository,
	reserveRepo *repository.LockReserveRepository,
) *LockService {
	return &LockService{
		lockRepo:    lockRepo,
		zoneRepo:    zoneRepo,
		bindingRepo: bindingRepo,
		meterRepo:   meterRepo,
		reserveRepo: reserveRepo,
		now:         time.Now,
	}
}

// CreateLockRequest 创建锁位请求
type CreateLockRequest struct {
	LockNumber string `json:"lock_number" binding:"required,max=50"`
	Name       string `json:"lock_name" binding:"max=100"`
	ZoneID     *int64 `json:"zone_id"`
	Size       string `json:"size"`
	Status     string `json:"status" binding:"omitempty,oneof=available maintenance"`
	Active     *bool  `json:"active"`
}

// UpdateLockRequest 更新锁位请求
type UpdateLockRequest struct {
	LockNumber *string `json:"lock_number"`
	Name       *string `json:"lock_name"`
	ZoneID     *int64  `json:"zone_id"`
	ClearZone  bool    `json:"clear_zone"`
	Size       *string `json:"size"`
	Status     *string `json:"status" binding:"omitempty,oneof=available maintenance"`
	Active     *bool   `json:"active"`
}

// ListLocksRequest 锁位列表筛选
type ListLocksRequest struct {
	ZoneID  int64  `form:"zone_id"`
	Status  string `form:"status"`
	Keyword string `form:"keyword"`
}

// LockWithContract 锁位及其当前合同
type LockWithContract struct {
	*models.Lock
	ZoneName       string                `json:"zone_name"`
	ZonePic        string                `json:"zone_pic"`
	BindingID      *int64                `json:"lock_has_contract_id"`
	ContractID     *int64                `json:"contract_id"`
	ContractNumber string                `json:"contract_number"`
	TenantID       *int64                `json:"tenant_id"`
	TenantName     string                `json:"tenant_name"`
	StartDate      *time.Time            `json:"start_date"`
	EndDate        *time.Time            `json:"end_date"`
	ContractStatus models.ContractStatus `json:"contract_status,omitempty"`
	Reserved       bool                  `json:"reserved"`
	Meters         []models.Meter        `json:"meters"`
}

// Create 创建锁位
func (s *LockService) Create(ctx context.Context, req *CreateLockRequest) (*models.Lock, error) {
	if err := s.checkZone(ctx, req.ZoneID); err != nil {
		return nil, err
	}

	lock := &models.Lock{
		LockNumber: strings.TrimSpace(req.LockNumber),
		Name:       strings.TrimSpace(req.Name),
		ZoneID:     req.ZoneID,
		Size:       req.Size,
		Status:     req.Status,
		Active:     true,
	}
	if lock.Status == "" {
		lock.Status = models.LockStatusAvailable
	}
	if req.Active != nil {
		lock.Active = *req.Active
	}

	if err := s.lockRepo.Create(ctx, lock); err != nil {
		if database.IsDuplicateKey(err) {
			return nil, errors.ErrLockNumberExists
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return s.Get(ctx, lock.ID)
}

// Get 获取锁位
func (s *LockService) Get(ctx context.Context, id int64) (*models.Lock, error) {
	lock, err := s.lockRepo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrLockNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return lock, nil
}

// List 锁位列表
func (s *LockService) List(ctx context.Context, req *ListLocksRequest) ([]*models.Lock, error) {
	filters := map[string]interface{}{
		"zone_id": req.ZoneID,
		"status":  req.Status,
		"keyword": strings.TrimSpace(req.Keyword),
	}
	locks, err := s.lockRepo.List(ctx, filters)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return locks, nil
}

// Update 更新锁位
func (s *LockService) Update(ctx context.Context, id int64, req *UpdateLockRequest) (*models.Lock, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	if req.LockNumber != nil {
		number := strings.TrimSpace(*req.LockNumber)
		if number == "" {
			return nil, errors.ErrInvalidParams.WithMessage("lock_number 不能为空")
		}
		fields["lock_number"] = number
	}
	if req.Name != nil {
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.ClearZone {
		fields["zone_id"] = nil
	} else if req.ZoneID != nil {
		if err := s.checkZone(ctx, req.ZoneID); err != nil {
			return nil, err
		}
		fields["zone_id"] = *req.ZoneID
	}
	if req.Size != nil {
		fields["size"] = *req.Size
	}
	if req.Status != nil {
		fields["status"] = *req.Status
	}
	if req.Active != nil {
		fields["active"] = *req.Active
	}

	if len(fields) > 0 {
		if err := s.lockRepo.UpdateFields(ctx, id, fields); err != nil {
			if database.IsDuplicateKey(err) {
				return nil, errors.ErrLockNumberExists
			}
			return nil, errors.ErrDatabaseError.WithError(err)
		}
	}
	return s.Get(ctx, id)
}

// ListWithContracts 锁位列表，附带当前有效合同、预订标记和已挂的表
func (s *LockService) ListWithContracts(ctx context.Context, req *ListLocksRequest) ([]*LockWithContract, error) {
	locks, err := s.List(ctx, req)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(locks))
	for _, l := range locks {
		ids = append(ids, l.ID)
	}

	bindings, err := s.bindingRepo.ListActiveByLocks(ctx, ids)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	byLock := make(map[int64]*models.LockHasContract, len(bindings))
	for _, b := range bindings {
		byLock[b.LockID] = b
	}

	reservedIDs, err := s.reserveRepo.ActiveLockIDs(ctx)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	reserved := make(map[int64]bool, len(reservedIDs))
	for _, id := range reservedIDs {
		reserved[id] = true
	}

	meters, err := s.lockRepo.ListMetersByLocks(ctx, ids)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	today := s.now()
	result := make([]*LockWithContract, 0, len(locks))
	for _, l := range locks {
		item := &LockWithContract{
			Lock:     l,
			Reserved: reserved[l.ID],
			Meters:   meters[l.ID],
		}
		if item.Meters == nil {
			item.Meters = []models.Meter{}
		}
		if l.Zone != nil {
			item.ZoneName = l.Zone.Name
			item.ZonePic = l.Zone.Pic
		}
		if b, ok := byLock[l.ID]; ok && b.Contract != nil {
			c := b.Contract
			item.BindingID = &b.ID
			item.ContractID = &c.ID
			item.ContractNumber = c.ContractNumber
			item.TenantID = &c.TenantID
			item.StartDate = &c.StartDate
			item.EndDate = &c.EndDate
			item.ContractStatus = models.ContractStatusActive
			if c.IsExpired(today) {
				item.ContractStatus = models.ContractStatusExpired
			}
			if c.Tenant != nil {
				item.TenantName = c.Tenant.FullName()
			}
		}
		result = append(result, item)
	}
	return result, nil
}

// BindMeter 把表挂到锁位，同一块表只能挂在一个锁位上
func (s *LockService) BindMeter(ctx context.Context, lockID, meterID int64) (*models.LockHasMeter, error) {
	if _, err := s.Get(ctx, lockID); err != nil {
		return nil, err
	}
	if _, err := s.meterRepo.GetByID(ctx, meterID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrMeterNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	lhm, err := s.lockRepo.BindMeter(ctx, lockID, meterID)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return nil, errors.ErrMeterAlreadyBound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	logger.Info("meter bound to lock", logger.LockID(lockID), logger.Int64("meter_id", meterID))
	return lhm, nil
}

// UnbindMeter 从锁位上摘下表
func (s *LockService) UnbindMeter(ctx context.Context, lockID, meterID int64) error {
	rows, err := s.lockRepo.UnbindMeter(ctx, lockID, meterID)
	if err != nil {
		return errors.ErrDatabaseError.WithError(err)
	}
	if rows == 0 {
		return errors.ErrMeterBindNotFound
	}
	return nil
}

// ListMeters 锁位下的表
func (s *LockService) ListMeters(ctx context.Context, lockID int64) ([]*models.Meter, error) {
	if _, err := s.Get(ctx, lockID); err != nil {
		return nil, err
	}
	meters, err := s.lockRepo.ListMeters(ctx, lockID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return meters, nil
}

// AvailableMeters 尚未挂到任何锁位的表
func (s *LockService) AvailableMeters(ctx context.Context, meterType string) ([]*models.Meter, error) {
	if meterType != "" && !models.IsValidMeterType(meterType) {
		return nil, errors.ErrInvalidParams.WithMessagef("不支持的表类型: %s", meterType)
	}
	meters, err := s.meterRepo.ListUnbound(ctx, meterType)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return meters, nil
}

func (s *LockService) checkZone(ctx context.Context, zoneID *int64) error {
	if zoneID == nil {
		return nil
	}
	if _, err := s.zoneRepo.GetByID(ctx, *zoneID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.ErrZoneNotFound
		}
		return errors.ErrDatabaseError.WithError(err)
	}
	return nil
}
