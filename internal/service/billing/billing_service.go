// Package billing 提供月度账单计算、出账、付款凭证和导出服务
package billing

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/common/cache"
	"github.com/gogomarket/rental-backend/internal/common/database"
	"github.com/gogomarket/rental-backend/internal/common/errors"
	"github.com/gogomarket/rental-backend/internal/common/logger"
	"github.com/gogomarket/rental-backend/internal/common/metrics"
	"github.com/gogomarket/rental-backend/internal/common/tracing"
	"github.com/gogomarket/rental-backend/internal/common/utils"
	"github.com/gogomarket/rental-backend/internal/models"
	"github.com/gogomarket/rental-backend/internal/repository"
	"github.com/gogomarket/rental-backend/pkg/oss"
)

const (
	refNumberLength  = 8
	billSeqWidth     = 5
	createLockTTL    = 30 * time.Second
	defaultPublicTTL = 5 * time.Minute
)

// Notifier 账单通知
type Notifier interface {
	NotifyBill(ctx context.Context, bill *models.Bill, tenant *models.Tenant) []*models.BillNotification
}

// Config 账单服务配置
type Config struct {
	BillNumberPrefix  string
	DefaultVatPercent decimal.Decimal
	PublicCacheTTL    time.Duration
}

// BillingService 账单服务
type BillingService struct {
	db           *gorm.DB
	billRepo     *repository.BillRepository
	contractRepo *repository.ContractRepository
	usageRepo    *repository.MeterUsageRepository
	notifier     Notifier
	uploader     oss.Uploader
	cache        *cache.Store
	metrics      *metrics.Metrics
	cfg          Config
	loc          *time.Location
	now          func() time.Time
}

// NewBillingService 创建账单服务
func NewBillingService(
	db *gorm.DB,
	billRepo *repository.BillRepository,
	contractRepo *repository.ContractRepository,
	usageRepo *repository.MeterUsageRepository,
	notifier Notifier,
	uploader oss.Uploader,
	store *cache.Store,
	m *metrics.Metrics,
	cfg Config,
	loc *time.Location,
) *BillingService {
	if loc == nil {
		loc = time.UTC
	}
	if cfg.PublicCacheTTL <= 0 {
		cfg.PublicCacheTTL = defaultPublicTTL
	}
	return &BillingService{
		db:           db,
		billRepo:     billRepo,
		contractRepo: contractRepo,
		usageRepo:    usageRepo,
		notifier:     notifier,
		uploader:     uploader,
		cache:        store,
		metrics:      m,
		cfg:          cfg,
		loc:          loc,
		now:          time.Now,
	}
}

// EligibleLock 可出账合同绑定的锁位
type EligibleLock struct {
	LockID     int64  `json:"lock_id"`
	LockName   string `json:"lock_name"`
	LockNumber string `json:"lock_number"`
	Status     string `json:"binding_status"`
}

// MeterLine 表的月度用量
type MeterLine struct {
	MeterID      int64           `json:"meter_id"`
	MeterType    string          `json:"meter_type"`
	AssetTag     string          `json:"meter_asset_tag"`
	MeterUsageID int64           `json:"meter_usage_id"`
	MeterStart   decimal.Decimal `json:"meter_start"`
	MeterEnd     decimal.Decimal `json:"meter_end"`
	MeterUsage   decimal.Decimal `json:"meter_usage"`
}

// Calculations 未计折扣和税的应收金额
type Calculations struct {
	TotalRent         decimal.Decimal `json:"total_rent"`
	TotalWater        decimal.Decimal `json:"total_water"`
	TotalWaterBill    decimal.Decimal `json:"total_water_bill"`
	TotalElectric     decimal.Decimal `json:"total_electric"`
	TotalElectricBill decimal.Decimal `json:"total_electric_bill"`
	TotalBill         decimal.Decimal `json:"total_bill"`
}

// BillSummary 已出账单摘要
type BillSummary struct {
	ID         int64           `json:"id"`
	BillNumber string          `json:"bill_number"`
	Status     string          `json:"status"`
	TotalVat   decimal.Decimal `json:"total_vat"`
}

// EligibleContract 某月可出账的合同
type EligibleContract struct {
	ContractID     int64           `json:"contract_id"`
	ContractNumber string          `json:"contract_name"`
	TenantID       int64           `json:"tenant_id"`
	TenantCode     string          `json:"tenant_code"`
	TenantName     string          `json:"tenant_name"`
	LockName       string          `json:"lock_name"`
	Locks          []EligibleLock  `json:"locks"`
	Meters         []MeterLine     `json:"meters"`
	RentRate       decimal.Decimal `json:"rent_rate"`
	WaterRate      decimal.Decimal `json:"water_rate"`
	ElectricRate   decimal.Decimal `json:"electric_rate"`
	Calculations   Calculations    `json:"calculations"`
	Bill           *BillSummary    `json:"bill,omitempty"`
}

// Eligible 列出某月可出账的合同及其用量和应收金额
func (s *BillingService) Eligible(ctx context.Context, year, month int) ([]*EligibleContract, error) {
	if err := validatePeriod(year, month); err != nil {
		return nil, err
	}
	ctx, span := tracing.Start(ctx, "billing.Eligible", tracing.Period(year, month))
	var spanErr error
	defer func() { tracing.End(span, spanErr) }()

	start, end := utils.MonthRange(year, month, time.UTC)
	contracts, err := s.contractRepo.ListBillable(ctx, start, end)
	if err != nil {
		spanErr = err
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	ids := make([]int64, 0, len(contracts))
	for _, c := range contracts {
		ids = append(ids, c.ID)
	}
	existing, err := s.billRepo.MapByContracts(ctx, ids, year, month)
	if err != nil {
		spanErr = err
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	result := make([]*EligibleContract, 0, len(contracts))
	for _, c := range contracts {
		usages, err := s.usageRepo.ListConfirmedForContract(ctx, c.ID, year, month)
		if err != nil {
			spanErr = err
			return nil, errors.ErrDatabaseError.WithError(err)
		}
		item := newEligibleContract(c, usages)
		if b, ok := existing[c.ID]; ok {
			item.Bill = &BillSummary{ID: b.ID, BillNumber: b.BillNumber, Status: b.Status, TotalVat: b.TotalVat}
		}
		result = append(result, item)
	}
	return result, nil
}

func newEligibleContract(c *models.Contract, usages []*models.MeterUsage) *EligibleContract {
	item := &EligibleContract{
		ContractID:     c.ID,
		ContractNumber: c.ContractNumber,
		TenantID:       c.TenantID,
		RentRate:       c.RentRate,
		WaterRate:      c.WaterRate,
		ElectricRate:   c.ElectricRate,
		Locks:          billableLocks(c),
		Meters:         make([]MeterLine, 0, len(usages)),
	}
	if c.Tenant != nil {
		item.TenantCode = c.Tenant.Code
		item.TenantName = c.Tenant.FullName()
	}
	if len(item.Locks) > 0 {
		item.LockName = item.Locks[0].LockName
	}
	for _, u := range usages {
		line := MeterLine{
			MeterID:      u.MeterID,
			MeterUsageID: u.ID,
			MeterStart:   u.MeterStart,
			MeterEnd:     u.MeterEnd,
			MeterUsage:   u.MeterUsage,
		}
		if u.Meter != nil {
			line.MeterType = u.Meter.MeterType
			line.AssetTag = u.Meter.AssetTag
		}
		item.Meters = append(item.Meters, line)
	}

	water, electric := SumUsage(usages)
	// 折扣为零、税率为零时计算不会失败
	r, _ := Calculate(CalcInput{
		Rent:          c.RentRate,
		WaterUsage:    water,
		WaterRate:     c.WaterRate,
		ElectricUsage: electric,
		ElectricRate:  c.ElectricRate,
	})
	item.Calculations = Calculations{
		TotalRent:         r.Rent,
		TotalWater:        r.WaterUsage,
		TotalWaterBill:    r.Water,
		TotalElectric:     r.ElectricUsage,
		TotalElectricBill: r.Electric,
		TotalBill:         r.Charges,
	}
	return item
}

// billableLocks 未删除的 active/expired 绑定对应的锁位
func billableLocks(c *models.Contract) []EligibleLock {
	locks := make([]EligibleLock, 0, len(c.Bindings))
	for _, b := range c.Bindings {
		if b.DeletedAt.Valid || b.Status == models.BindingStatusCancelled {
			continue
		}
		l := EligibleLock{LockID: b.LockID, Status: string(b.Status)}
		if b.Lock != nil {
			l.LockName = b.Lock.Name
			l.LockNumber = b.Lock.LockNumber
		}
		locks = append(locks, l)
	}
	return locks
}

// CreateBillItem 单份合同的出账参数
type CreateBillItem struct {
	ContractID int64            `json:"contract_id" binding:"required,gt=0"`
	Year       int              `json:"year" binding:"required,gte=2000,lte=2100"`
	Month      int              `json:"month" binding:"required,gte=1,lte=12"`
	Discount   decimal.Decimal  `json:"discount"`
	VatPercent *decimal.Decimal `json:"vat_percent"`
}

// CreateBillsRequest 批量出账请求
type CreateBillsRequest struct {
	Items     []CreateBillItem
	CreatedBy int64
	Notify    bool
}

// CreateBillResult 单份合同的出账结果
// 某一项失败不影响其他项
type CreateBillResult struct {
	ContractID    int64                      `json:"contract_id"`
	Bill          *models.Bill               `json:"bill,omitempty"`
	Notifications []*models.BillNotification `json:"notifications,omitempty"`
	Code          int                        `json:"code"`
	Error         string                     `json:"error,omitempty"`
}

// CreateBills 批量出账，每份合同独立事务
func (s *BillingService) CreateBills(ctx context.Context, req *CreateBillsRequest) ([]*CreateBillResult, error) {
	if len(req.Items) == 0 {
		return nil, errors.ErrInvalidParams.WithMessage("请至少选择一份合同")
	}

	results := make([]*CreateBillResult, 0, len(req.Items))
	for i := range req.Items {
		item := req.Items[i]
		res := &CreateBillResult{ContractID: item.ContractID}
		bill, err := s.CreateBill(ctx, &item, req.CreatedBy)
		if err != nil {
			appErr := errors.GetAppError(err)
			res.Code = appErr.Code
			res.Error = appErr.Message
			results = append(results, res)
			continue
		}
		res.Bill = bill
		if req.Notify && s.notifier != nil && bill.Tenant != nil {
			res.Notifications = s.notifier.NotifyBill(ctx, bill, bill.Tenant)
		}
		results = append(results, res)
	}
	return results, nil
}

// CreateBill 为一份合同生成某月账单
func (s *BillingService) CreateBill(ctx context.Context, item *CreateBillItem, createdBy int64) (bill *models.Bill, err error) {
	if err := validatePeriod(item.Year, item.Month); err != nil {
		return nil, err
	}
	vat := s.cfg.DefaultVatPercent
	if item.VatPercent != nil {
		vat = *item.VatPercent
	}

	ctx, span := tracing.Start(ctx, "billing.CreateBill",
		tracing.AttrContractID.Int64(item.ContractID),
		tracing.Period(item.Year, item.Month),
	)
	defer func() {
		tracing.End(span, err)
		if err != nil {
			s.metrics.RecordBillCreated("failed", 0)
		}
	}()

	period := fmt.Sprintf("%04d-%02d", item.Year, item.Month)
	unlock, err := s.cache.TryLock(ctx, cache.BuildKey(cache.KeyPrefixLock, "bill", strconv.FormatInt(item.ContractID, 10), period), createLockTTL)
	if err != nil {
		if stderrors.Is(err, cache.ErrLockHeld) {
			return nil, errors.ErrBillExists.WithMessage("该合同本月账单正在生成")
		}
		return nil, errors.ErrCacheError.WithError(err)
	}
	defer unlock()

	start, end := utils.MonthRange(item.Year, item.Month, time.UTC)
	var contract *models.Contract
	bill = &models.Bill{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		billRepo := s.billRepo.WithTx(tx)

		c, err := s.contractRepo.WithTx(tx).GetByID(ctx, item.ContractID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.ErrContractNotFound
			}
			return err
		}
		contract = c
		if len(billableLocks(c)) == 0 || !c.CoversMonth(start, end) {
			return errors.ErrContractNotBilling
		}

		exists, err := billRepo.ExistsForContractMonth(ctx, c.ID, item.Year, item.Month)
		if err != nil {
			return err
		}
		if exists {
			return errors.ErrBillExists
		}

		usages, err := s.usageRepo.WithTx(tx).ListConfirmedForContract(ctx, c.ID, item.Year, item.Month)
		if err != nil {
			return err
		}
		water, electric := SumUsage(usages)
		r, err := Calculate(CalcInput{
			Rent:          c.RentRate,
			WaterUsage:    water,
			WaterRate:     c.WaterRate,
			ElectricUsage: electric,
			ElectricRate:  c.ElectricRate,
			Discount:      item.Discount,
			VatPercent:    vat,
		})
		if err != nil {
			return err
		}

		count, err := billRepo.CountAll(ctx)
		if err != nil {
			return err
		}
		tenantCode := ""
		if c.Tenant != nil {
			tenantCode = c.Tenant.Code
		}

		*bill = models.Bill{
			BillNumber:    BillNumber(s.cfg.BillNumberPrefix, item.Year, item.Month, tenantCode, c.ContractNumber, count+1),
			RefNumber:     utils.GenerateRandomNumber(refNumberLength),
			ContractID:    c.ID,
			TenantID:      c.TenantID,
			Year:          item.Year,
			Month:         item.Month,
			Rent:          r.Rent,
			WaterUsage:    r.WaterUsage,
			Water:         r.Water,
			ElectricUsage: r.ElectricUsage,
			Electric:      r.Electric,
			Discount:      r.Discount,
			Subtotal:      r.Subtotal,
			VatPercent:    r.VatPercent,
			Vat:           r.Vat,
			TotalVat:      r.TotalVat,
			Status:        models.BillStatusUnpaid,
			CreatedBy:     createdBy,
		}
		if err := billRepo.Create(ctx, bill); err != nil {
			if database.IsDuplicateKey(err) {
				return errors.ErrBillExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, wrapDBError(err)
	}

	bill.Contract = contract
	bill.Tenant = contract.Tenant
	span.SetAttributes(tracing.AttrBillNumber.String(bill.BillNumber))
	s.metrics.RecordBillCreated("success", bill.TotalVat.InexactFloat64())
	logger.Info("bill created",
		logger.Module("billing"),
		logger.BillNumber(bill.BillNumber),
		logger.ContractID(bill.ContractID),
		logger.TenantID(bill.TenantID),
		logger.String("total_vat", bill.TotalVat.StringFixed(2)),
	)
	return bill, nil
}

// BillNumber 账单号：{前缀}{YYYY}{MM}-{客户编号}-{合同编号}-{序号}
func BillNumber(prefix string, year, month int, tenantCode, contractNumber string, seq int64) string {
	return fmt.Sprintf("%s%04d%02d-%s-%s-%0*d", prefix, year, month, tenantCode, contractNumber, billSeqWidth, seq)
}

// ListBillsRequest 账单列表筛选
type ListBillsRequest struct {
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
	Year       int    `form:"year"`
	Month      int    `form:"month"`
	Status     string `form:"status"`
	ContractID int64  `form:"contract_id"`
	TenantID   int64  `form:"tenant_id"`
}

// List 账单列表
func (s *BillingService) List(ctx context.Context, req *ListBillsRequest) ([]*models.Bill, int64, error) {
	if req.Status != "" && !models.IsValidBillStatus(req.Status) {
		return nil, 0, errors.ErrInvalidParams.WithMessagef("未知的账单状态 %s", req.Status)
	}
	p := utils.Pagination{Page: req.Page, PageSize: req.PageSize}
	p.Normalize()

	bills, total, err := s.billRepo.List(ctx, p.GetOffset(), p.GetLimit(), map[string]interface{}{
		"year":        req.Year,
		"month":       req.Month,
		"status":      req.Status,
		"contract_id": req.ContractID,
		"tenant_id":   req.TenantID,
	})
	if err != nil {
		return nil, 0, errors.ErrDatabaseError.WithError(err)
	}
	return bills, total, nil
}

// Get 获取账单详情（包含通知、流水和附件）
func (s *BillingService) Get(ctx context.Context, id int64) (*models.Bill, error) {
	bill, err := s.billRepo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrBillNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return bill, nil
}

// Cancel 取消账单（软删除），已支付的账单不能取消
func (s *BillingService) Cancel(ctx context.Context, id int64) error {
	bill, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if bill.Status == models.BillStatusPaid {
		return errors.ErrBillStatusInvalid.WithMessage("已支付的账单不能取消")
	}
	rows, err := s.billRepo.Delete(ctx, id)
	if err != nil {
		return errors.ErrDatabaseError.WithError(err)
	}
	if rows == 0 {
		return errors.ErrBillNotFound
	}
	s.invalidatePublic(ctx, bill)
	logger.Info("bill cancelled", logger.Module("billing"), logger.BillNumber(bill.BillNumber))
	return nil
}

// PublicBill 公开账单详情，租户凭账单号和参考号查看
type PublicBill struct {
	BillNumber     string          `json:"bill_number"`
	RefNumber      string          `json:"ref_number"`
	Year           int             `json:"year"`
	Month          int             `json:"month"`
	TenantName     string          `json:"tenant_name"`
	ContractNumber string          `json:"contract_number"`
	Rent           decimal.Decimal `json:"rent"`
	WaterUsage     decimal.Decimal `json:"water_usage"`
	Water          decimal.Decimal `json:"water"`
	ElectricUsage  decimal.Decimal `json:"electric_usage"`
	Electric       decimal.Decimal `json:"electric"`
	Discount       decimal.Decimal `json:"discount"`
	VatPercent     decimal.Decimal `json:"vat_percent"`
	Vat            decimal.Decimal `json:"vat"`
	TotalVat       decimal.Decimal `json:"total_vat"`
	Status         string          `json:"status"`
	QRCodeURL      string          `json:"qrcode_url,omitempty"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
}

// PublicDetails 按账单号和参考号查询账单，结果缓存
func (s *BillingService) PublicDetails(ctx context.Context, billNumber, refNumber string) (*PublicBill, error) {
	if billNumber == "" || refNumber == "" {
		return nil, errors.ErrInvalidParams.WithMessage("缺少账单号或参考号")
	}
	key := publicKey(billNumber, refNumber)
	var cached PublicBill
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
		logger.Warn("read bill cache failed", logger.BillNumber(billNumber), logger.Err(err))
	} else if hit {
		return &cached, nil
	}

	bill, err := s.billRepo.GetByNumberAndRef(ctx, billNumber, refNumber)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrBillNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	pb := toPublicBill(bill)
	if err := s.cache.SetJSON(ctx, key, pb, s.cfg.PublicCacheTTL); err != nil {
		logger.Warn("write bill cache failed", logger.BillNumber(billNumber), logger.Err(err))
	}
	return pb, nil
}

func toPublicBill(b *models.Bill) *PublicBill {
	pb := &PublicBill{
		BillNumber:    b.BillNumber,
		RefNumber:     b.RefNumber,
		Year:          b.Year,
		Month:         b.Month,
		Rent:          b.Rent,
		WaterUsage:    b.WaterUsage,
		Water:         b.Water,
		ElectricUsage: b.ElectricUsage,
		Electric:      b.Electric,
		Discount:      b.Discount,
		VatPercent:    b.VatPercent,
		Vat:           b.Vat,
		TotalVat:      b.TotalVat,
		Status:        b.Status,
		QRCodeURL:     b.QRCodeURL,
		PaidAt:        b.PaidAt,
	}
	if b.Tenant != nil {
		pb.TenantName = b.Tenant.FullName()
	}
	if b.Contract != nil {
		pb.ContractNumber = b.Contract.ContractNumber
	}
	return pb
}

func publicKey(billNumber, refNumber string) string {
	return cache.BuildKey(cache.KeyPrefixBillPublic, billNumber, refNumber)
}

func (s *BillingService) invalidatePublic(ctx context.Context, bill *models.Bill) {
	if err := s.cache.Delete(ctx, publicKey(bill.BillNumber, bill.RefNumber)); err != nil {
		logger.Warn("invalidate bill cache failed", logger.BillNumber(bill.BillNumber), logger.Err(err))
	}
}

func validatePeriod(year, month int) error {
	if year < 2000 || year > 2100 || month < 1 || month > 12 {
		return errors.ErrInvalidParams.WithMessagef("无效的账期 %d-%02d", year, month)
	}
	return nil
}

func wrapDBError(err error) error {
	if errors.IsAppError(err) {
		return err
	}
	return errors.ErrDatabaseError.WithError(err)
}
