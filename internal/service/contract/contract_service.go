// Package contract 提供合同、合同附件和锁位绑定服务
package contract

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/common/database"
	"github.com/gogomarket/rental-backend/internal/common/errors"
	"github.com/gogomarket/rental-backend/internal/common/logger"
	"github.com/gogomarket/rental-backend/internal/common/metrics"
	"github.com/gogomarket/rental-backend/internal/common/money"
	"github.com/gogomarket/rental-backend/internal/common/utils"
	"github.com/gogomarket/rental-backend/internal/models"
	"github.com/gogomarket/rental-backend/internal/repository"
	"github.com/gogomarket/rental-backend/pkg/oss"
)

// ContractService 合同服务
type ContractService struct {
	db           *gorm.DB
	contractRepo *repository.ContractRepository
	bindingRepo  *repository.BindingRepository
	tenantRepo   *repository.TenantRepository
	lockRepo     *repository.LockRepository
	uploader     oss.Uploader
	metrics      *metrics.Metrics
	loc          *time.Location
	now          func() time.Time
}

// NewContractService 创建合同服务
func NewContractService(
	db *gorm.DB,
	contractRepo *repository.ContractRepository,
	bindingRepo *repository.BindingRepository,
	tenantRepo *repository.TenantRepository,
	lockRepo *repository.LockRepository,
	uploader oss.Uploader,
	m *metrics.Metrics,
	loc *time.Location,
) *ContractService {
	if loc == nil {
		loc = time.UTC
	}
	return &ContractService{
		db:           db,
		contractRepo: contractRepo,
		bindingRepo:  bindingRepo,
		tenantRepo:   tenantRepo,
		lockRepo:     lockRepo,
		uploader:     uploader,
		metrics:      m,
		loc:          loc,
		now:          time.Now,
	}
}

// File 上传的文件
type File struct {
	Name    string
	Size    int64
	Content io.Reader
}

// CreateContractRequest 创建合同请求（multipart 表单）
type CreateContractRequest struct {
	TenantID       int64  `form:"tenant_id" json:"tenant_id" binding:"required,gt=0"`
	LockID         *int64 `form:"lock_id" json:"lock_id"`
	ContractNumber string `form:"contract_number" json:"contract_number" binding:"max=64"`
	StartDate      string `form:"start_date" json:"start_date" binding:"required"`
	EndDate        string `form:"end_date" json:"end_date" binding:"required"`
	RentRate       string `form:"rent_rate" json:"rent_rate"`
	WaterRate      string `form:"water_rate" json:"water_rate"`
	ElectricRate   string `form:"electric_rate" json:"electric_rate"`
	Advance        string `form:"advance" json:"advance"`
	Deposit        string `form:"deposit" json:"deposit"`
	Note           string `form:"note" json:"note"`
	ContractType   string `form:"contract_type" json:"contract_type"`
}

// UpdateContractRequest 更新合同请求
type UpdateContractRequest struct {
	StartDate    *string          `json:"start_date"`
	EndDate      *string          `json:"end_date"`
	RentRate     *decimal.Decimal `json:"rent_rate"`
	WaterRate    *decimal.Decimal `json:"water_rate"`
	ElectricRate *decimal.Decimal `json:"electric_rate"`
	Advance      *decimal.Decimal `json:"advance"`
	Deposit      *decimal.Decimal `json:"deposit"`
	Note         *string          `json:"note"`
}

// ListContractsRequest 合同列表筛选
type ListContractsRequest struct {
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
	NonExpired bool   `form:"non_expired"`
	TenantID   int64  `form:"tenant_id"`
	Keyword    string `form:"keyword"`
}

// Create 创建合同
// 附件先上传，合同、绑定和附件记录在同一事务内写入，事务失败时删除已上传的文件
func (s *ContractService) Create(ctx context.Context, req *CreateContractRequest, files []File) (*models.Contract, error) {
	start, end, err := parseTerm(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	amounts, err := parseAmounts(map[string]string{
		"rent_rate":     req.RentRate,
		"water_rate":    req.WaterRate,
		"electric_rate": req.ElectricRate,
		"advance":       req.Advance,
		"deposit":       req.Deposit,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.tenantRepo.GetByID(ctx, req.TenantID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrTenantNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if req.LockID != nil {
		if err := s.checkLock(ctx, *req.LockID); err != nil {
			return nil, err
		}
	}

	number := strings.TrimSpace(req.ContractNumber)
	if number == "" {
		number = utils.DefaultContractNumber(s.now().In(s.loc))
	}

	contract := &models.Contract{
		ContractNumber: number,
		TenantID:       req.TenantID,
		StartDate:      start,
		EndDate:        end,
		RentRate:       amounts["rent_rate"],
		WaterRate:      amounts["water_rate"],
		ElectricRate:   amounts["electric_rate"],
		Advance:        amounts["advance"],
		Deposit:        amounts["deposit"],
		Note:           req.Note,
	}

	docs, err := s.uploadDocuments(ctx, contract, req.ContractType, files)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.contractRepo.WithTx(tx)
		if err := repo.Create(ctx, contract); err != nil {
			if database.IsDuplicateKey(err) {
				return errors.ErrContractNumberExists
			}
			return err
		}
		if req.LockID != nil {
			if _, err := s.bindInTx(ctx, tx, *req.LockID, contract); err != nil {
				return err
			}
		}
		for _, d := range docs {
			d.ContractID = contract.ID
		}
		return repo.CreateDocuments(ctx, docs)
	})
	if err != nil {
		s.removeDocuments(ctx, docs)
		return nil, wrapDBError(err)
	}

	if req.LockID != nil {
		s.metrics.RecordBinding("bind", 1)
	}
	logger.Info("contract created",
		logger.ContractID(contract.ID),
		logger.TenantID(contract.TenantID),
		logger.String("contract_number", contract.ContractNumber),
		logger.Int("documents", len(docs)),
	)
	return s.Get(ctx, contract.ID)
}

// Get 获取合同（包含租户、附件、绑定历史和推导状态）
func (s *ContractService) Get(ctx context.Context, id int64) (*models.Contract, error) {
	contract, err := s.contractRepo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrContractNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	contract.Status = contract.ComputeStatus(s.today())
	return contract, nil
}

// List 合同列表
func (s *ContractService) List(ctx context.Context, req *ListContractsRequest) ([]*models.Contract, int64, error) {
	p := utils.Pagination{Page: req.Page, PageSize: req.PageSize}
	p.Normalize()

	today := s.today()
	filters := map[string]interface{}{
		"tenant_id": req.TenantID,
		"keyword":   strings.TrimSpace(req.Keyword),
	}
	if req.NonExpired {
		filters["non_expired"] = today
	}

	contracts, total, err := s.contractRepo.List(ctx, p.GetOffset(), p.GetLimit(), filters)
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	for _, c := range contracts {
		c.Status = c.ComputeStatus(today)
	}
	return contracts, total, nil
}

// ListByTenant 租户的全部合同
func (s *ContractService) ListByTenant(ctx context.Context, tenantID int64) ([]*models.Contract, error) {
	if _, err := s.tenantRepo.GetByID(ctx, tenantID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrTenantNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	contracts, err := s.contractRepo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	today := s.today()
	for _, c := range contracts {
		c.Status = c.ComputeStatus(today)
	}
	return contracts, nil
}

// Update 更新合同
func (s *ContractService) Update(ctx context.Context, id int64, req *UpdateContractRequest) (*models.Contract, error) {
	contract, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	startStr := contract.StartDate.Format(dateLayout)
	endStr := contract.EndDate.Format(dateLayout)
	if req.StartDate != nil {
		startStr = *req.StartDate
	}
	if req.EndDate != nil {
		endStr = *req.EndDate
	}
	start, end, err := parseTerm(startStr, endStr)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"start_date": start,
		"end_date":   end,
	}
	rates := map[string]*decimal.Decimal{
		"rent_rate":     req.RentRate,
		"water_rate":    req.WaterRate,
		"electric_rate": req.ElectricRate,
		"advance":       req.Advance,
		"deposit":       req.Deposit,
	}
	for column, v := range rates {
		if v == nil {
			continue
		}
		if v.IsNegative() {
			return nil, errors.ErrInvalidParams.WithMessagef("%s 不能为负数", column)
		}
		fields[column] = *v
	}
	if req.Note != nil {
		fields["note"] = *req.Note
	}

	if err := s.contractRepo.UpdateFields(ctx, id, fields); err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return s.Get(ctx, id)
}

// AddDocuments 为合同追加附件
func (s *ContractService) AddDocuments(ctx context.Context, contractID int64, contractType string, files []File) ([]*models.Document, error) {
	if len(files) == 0 {
		return nil, errors.ErrInvalidParams.WithMessage("请至少上传一个文件")
	}
	contract, err := s.contractRepo.GetPlain(ctx, contractID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrContractNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	docs, err := s.uploadDocuments(ctx, contract, contractType, files)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		d.ContractID = contract.ID
	}
	if err := s.contractRepo.CreateDocuments(ctx, docs); err != nil {
		s.removeDocuments(ctx, docs)
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return docs, nil
}

// ListDocuments 合同附件列表
func (s *ContractService) ListDocuments(ctx context.Context, contractID int64) ([]*models.Document, error) {
	if _, err := s.contractRepo.GetPlain(ctx, contractID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrContractNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	docs, err := s.contractRepo.ListDocuments(ctx, contractID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return docs, nil
}

// uploadDocuments 上传附件，存放在 contracts/{tenant_id}/{contract_number}/ 下
func (s *ContractService) uploadDocuments(ctx context.Context, contract *models.Contract, contractType string, files []File) ([]*models.Document, error) {
	if contractType == "" {
		contractType = models.DocumentTypeGeneral
	}
	prefix := oss.JoinKey("contracts", fmt.Sprintf("%d", contract.TenantID), contract.ContractNumber)

	docs := make([]*models.Document, 0, len(files))
	for _, f := range files {
		if err := oss.ValidateExt(f.Name, oss.DocumentExts); err != nil {
			s.removeDocuments(ctx, docs)
			return nil, errors.ErrFileTypeInvalid.WithError(err)
		}
		key := oss.GenerateObjectKey(prefix, f.Name)
		url, err := s.uploader.Upload(ctx, key, f.Content)
		if err != nil {
			s.removeDocuments(ctx, docs)
			return nil, errors.ErrUploadFailed.WithError(err)
		}
		docs = append(docs, &models.Document{
			ContractType: contractType,
			FileName:     f.Name,
			Path:         key,
			URL:          url,
			Size:         f.Size,
		})
	}
	return docs, nil
}

func (s *ContractService) removeDocuments(ctx context.Context, docs []*models.Document) {
	for _, d := range docs {
		if err := s.uploader.Delete(ctx, d.Path); err != nil {
			logger.Warn("remove uploaded document failed", logger.String("path", d.Path), logger.Err(err))
		}
	}
}

func (s *ContractService) checkLock(ctx context.Context, lockID int64) error {
	exists, err := s.lockRepo.Exists(ctx, lockID)
	if err != nil {
		return errors.ErrDatabaseError.WithError(err)
	}
	if !exists {
		return errors.ErrLockNotFound
	}
	return nil
}

// today 业务时区的当天日期
func (s *ContractService) today() time.Time {
	return utils.CalendarDate(s.now(), s.loc)
}

const dateLayout = "2006-01-02"

func parseTerm(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, strings.TrimSpace(startStr))
	if err != nil {
		return time.Time{}, time.Time{}, errors.ErrInvalidParams.WithMessagef("start_date 格式错误: %s", startStr)
	}
	end, err := time.Parse(dateLayout, strings.TrimSpace(endStr))
	if err != nil {
		return time.Time{}, time.Time{}, errors.ErrInvalidParams.WithMessagef("end_date 格式错误: %s", endStr)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.ErrContractDateInvalid
	}
	return start, end, nil
}

// parseAmounts 解析表单中的金额字段，空串按 0 处理
func parseAmounts(raw map[string]string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(raw))
	for name, v := range raw {
		v = strings.TrimSpace(v)
		if v == "" {
			out[name] = decimal.Zero
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, errors.ErrInvalidParams.WithMessagef("%s 不是有效金额: %s", name, v)
		}
		if d.IsNegative() {
			return nil, errors.ErrInvalidParams.WithMessagef("%s 不能为负数", name)
		}
		out[name] = money.Round2(d)
	}
	return out, nil
}

// wrapDBError 业务错误原样返回，其他错误包装为数据库错误
func wrapDBError(err error) error {
	if errors.IsAppError(err) {
		return err
	}
	return errors.ErrDatabaseError.WithError(err)
}
