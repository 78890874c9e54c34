package meter

import (
	"context"
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
	"github.com/gogomarket/rental-backend/internal/models"
	"github.com/gogomarket/rental-backend/internal/repository"
	"github.com/gogomarket/rental-backend/pkg/oss"
)

// 读数来源
const (
	SourceAPI  = "api"
	SourceMQTT = "mqtt"
	SourceBulk = "bulk"
)

// UsageService 月度抄表服务
type UsageService struct {
	db        *gorm.DB
	meterRepo *repository.MeterRepository
	usageRepo *repository.MeterUsageRepository
	uploader  oss.Uploader
	metrics   *metrics.Metrics
	loc       *time.Location
	now       func() time.Time
}

// NewUsageService 创建抄表服务
func NewUsageService(
	db *gorm.DB,
	meterRepo *repository.MeterRepository,
	usageRepo *repository.MeterUsageRepository,
	uploader oss.Uploader,
	m *metrics.Metrics,
	loc *time.Location,
) *UsageService {
	if loc == nil {
		loc = time.UTC
	}
	return &UsageService{
		db:        db,
		meterRepo: meterRepo,
		usageRepo: usageRepo,
		uploader:  uploader,
		metrics:   m,
		loc:       loc,
		now:       time.Now,
	}
}

// CaptureRequest 按资产标签录入本月读数（multipart 表单）
type CaptureRequest struct {
	AssetTag string `form:"meter_asset_tag" json:"meter_asset_tag" binding:"required"`
	MeterEnd string `form:"meter_end" json:"meter_end" binding:"required"`
	Note     string `form:"note" json:"note"`
}

// Photo 抄表照片
type Photo struct {
	Name    string
	Content io.Reader
}

// Capture 录入本月读数
func (s *UsageService) Capture(ctx context.Context, req *CaptureRequest, photo *Photo) (*models.MeterUsage, error) {
	end, err := decimal.NewFromString(strings.TrimSpace(req.MeterEnd))
	if err != nil {
		return nil, errors.ErrInvalidParams.WithMessagef("meter_end 不是有效读数: %s", req.MeterEnd)
	}
	return s.capture(ctx, req.AssetTag, end, req.Note, photo, SourceAPI)
}

// CaptureReading 录入设备上报的读数
func (s *UsageService) CaptureReading(ctx context.Context, assetTag string, reading decimal.Decimal) (*models.MeterUsage, error) {
	return s.capture(ctx, assetTag, reading, "", nil, SourceMQTT)
}

// capture 当月已有记录时拒绝，期初读数取上一条记录的期末读数
// 同一表同一月份的唯一索引兜底并发录入
func (s *UsageService) capture(ctx context.Context, assetTag string, end decimal.Decimal, note string, photo *Photo, source string) (usage *models.MeterUsage, err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = "rejected"
		}
		s.metrics.RecordMeterReading(source, result)
	}()

	meter, err := s.meterRepo.GetByAssetTag(ctx, strings.TrimSpace(assetTag))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrMeterNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	year, month := s.currentMonth()
	if _, err := s.usageRepo.GetByMeterMonth(ctx, meter.ID, year, month); err == nil {
		return nil, errors.ErrMeterUsageExists
	} else if err != gorm.ErrRecordNotFound {
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	start, err := s.previousEnd(ctx, meter.ID, year, month)
	if err != nil {
		return nil, err
	}
	end = money.Round2(end)
	if end.LessThan(start) {
		return nil, errors.ErrMeterReadingInvalid.WithMessagef("本期读数 %s 小于上期读数 %s", end.String(), start.String())
	}

	usage = &models.MeterUsage{
		MeterID:    meter.ID,
		Year:       year,
		Month:      month,
		MeterStart: start,
		MeterEnd:   end,
		MeterUsage: end.Sub(start),
		Status:     models.MeterUsageUnconfirmed,
		Note:       note,
	}

	if photo != nil {
		if err := oss.ValidateExt(photo.Name, oss.ImageExts); err != nil {
			return nil, errors.ErrFileTypeInvalid.WithError(err)
		}
		key := oss.GenerateObjectKey(oss.JoinKey("meters", meter.AssetTag), photo.Name)
		if _, err := s.uploader.Upload(ctx, key, photo.Content); err != nil {
			return nil, errors.ErrUploadFailed.WithError(err)
		}
		usage.ImgPath = key
	}

	if err := s.usageRepo.Create(ctx, usage); err != nil {
		if usage.ImgPath != "" {
			_ = s.uploader.Delete(ctx, usage.ImgPath)
		}
		if database.IsDuplicateKey(err) {
			return nil, errors.ErrMeterUsageExists
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	logger.Info("meter reading captured",
		logger.AssetTag(meter.AssetTag),
		logger.String("source", source),
		logger.Int("year", year),
		logger.Int("month", month),
		logger.String("usage", usage.MeterUsage.String()),
	)
	usage.Meter = meter
	return usage, nil
}

// UsageEntry 批量录入的一行
// 带 meter_usage_id 的行修正已有记录，否则为 meter_id 新建记录
type UsageEntry struct {
	MeterUsageID *int64           `json:"meter_usage_id"`
	MeterID      *int64           `json:"meter_id"`
	MeterStart   *decimal.Decimal `json:"meter_start"`
	MeterEnd     decimal.Decimal  `json:"meter_end"`
	Note         *string          `json:"note"`
}

// BulkUpsertRequest 批量录入请求
type BulkUpsertRequest struct {
	Month string       `json:"month" binding:"required,yearmonth"`
	Data  []UsageEntry `json:"data" binding:"required,min=1"`
}

// BulkResult 批量录入结果
type BulkResult struct {
	Updated int `json:"updated"`
	Created int `json:"created"`
}

// BulkUpsert 批量修正并确认读数，全部行在一个事务内写入
func (s *UsageService) BulkUpsert(ctx context.Context, year, month int, entries []UsageEntry) (*BulkResult, error) {
	if len(entries) == 0 {
		return nil, errors.ErrInvalidParams.WithMessage("data 不能为空")
	}

	result := &BulkResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.usageRepo.WithTx(tx)
		for i, e := range entries {
			if e.MeterUsageID != nil && *e.MeterUsageID > 0 {
				if err := s.confirmExisting(ctx, repo, *e.MeterUsageID, e); err != nil {
					return err
				}
				result.Updated++
				continue
			}
			if e.MeterID == nil || *e.MeterID <= 0 {
				return errors.ErrInvalidParams.WithMessagef("第 %d 行缺少 meter_id 或 meter_usage_id", i+1)
			}
			if err := s.insertConfirmed(ctx, tx, repo, *e.MeterID, year, month, e); err != nil {
				return err
			}
			result.Created++
		}
		return nil
	})
	if err != nil {
		if errors.IsAppError(err) {
			return nil, err
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}

	s.metrics.RecordMeterReading(SourceBulk, "ok")
	logger.Info("meter usages confirmed",
		logger.Int("year", year),
		logger.Int("month", month),
		logger.Int("updated", result.Updated),
		logger.Int("created", result.Created),
	)
	return result, nil
}

func (s *UsageService) confirmExisting(ctx context.Context, repo *repository.MeterUsageRepository, id int64, e UsageEntry) error {
	usage, err := repo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.ErrMeterUsageNotFound.WithMessagef("抄表记录不存在: %d", id)
		}
		return err
	}

	start := usage.MeterStart
	if e.MeterStart != nil {
		start = money.Round2(*e.MeterStart)
	}
	end := money.Round2(e.MeterEnd)
	if err := validateReading(start, end); err != nil {
		return err
	}

	fields := map[string]interface{}{
		"meter_start": start,
		"meter_end":   end,
		"meter_usage": end.Sub(start),
		"status":      models.MeterUsageConfirmed,
	}
	if e.Note != nil {
		fields["note"] = *e.Note
	}
	return repo.UpdateFields(ctx, id, fields)
}

func (s *UsageService) insertConfirmed(ctx context.Context, tx *gorm.DB, repo *repository.MeterUsageRepository, meterID int64, year, month int, e UsageEntry) error {
	var meter models.Meter
	if err := tx.WithContext(ctx).First(&meter, meterID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.ErrMeterNotFound.WithMessagef("表不存在: %d", meterID)
		}
		return err
	}

	var start decimal.Decimal
	if e.MeterStart != nil {
		start = money.Round2(*e.MeterStart)
	} else {
		prev, err := repo.GetPrevious(ctx, meterID, year, month)
		if err != nil && err != gorm.ErrRecordNotFound {
			return err
		}
		if prev != nil {
			start = prev.MeterEnd
		}
	}
	end := money.Round2(e.MeterEnd)
	if err := validateReading(start, end); err != nil {
		return err
	}

	usage := &models.MeterUsage{
		MeterID:    meterID,
		Year:       year,
		Month:      month,
		MeterStart: start,
		MeterEnd:   end,
		MeterUsage: end.Sub(start),
		Status:     models.MeterUsageConfirmed,
	}
	if e.Note != nil {
		usage.Note = *e.Note
	}
	if err := repo.Create(ctx, usage); err != nil {
		if database.IsDuplicateKey(err) {
			return errors.ErrMeterUsageExists.WithMessagef("表 %s 本月已有抄表记录", meter.AssetTag)
		}
		return err
	}
	return nil
}

func validateReading(start, end decimal.Decimal) error {
	if start.IsNegative() || end.IsNegative() {
		return errors.ErrInvalidParams.WithMessage("读数不能为负数")
	}
	if end.LessThan(start) {
		return errors.ErrMeterReadingInvalid.WithMessagef("本期读数 %s 小于上期读数 %s", end.String(), start.String())
	}
	return nil
}

// SheetRow 月度抄表表格的一行，每块表一行
type SheetRow struct {
	MeterID      int64           `json:"meter_id"`
	MeterType    string          `json:"meter_type"`
	MeterNumber  string          `json:"meter_number"`
	MeterSerial  string          `json:"meter_serial"`
	AssetTag     string          `json:"meter_asset_tag"`
	MeterUsageID *int64          `json:"meter_usage_id"`
	MeterStart   decimal.Decimal `json:"meter_start"`
	MeterEnd     decimal.Decimal `json:"meter_end"`
	MeterUsage   decimal.Decimal `json:"meter_usage"`
	ImgPath      string          `json:"img_path"`
	Status       string          `json:"status"`
	Note         string          `json:"note"`
}

// MonthlySheet 某月全部表的抄表情况
// 没有记录的表 status 为空，meter_start 预填上一条记录的期末读数
func (s *UsageService) MonthlySheet(ctx context.Context, year, month int) ([]SheetRow, error) {
	meters, err := s.meterRepo.ListAll(ctx)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	usages, err := s.usageRepo.ListByMonth(ctx, year, month)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	byMeter := make(map[int64]*models.MeterUsage, len(usages))
	for _, u := range usages {
		byMeter[u.MeterID] = u
	}

	rows := make([]SheetRow, 0, len(meters))
	for _, m := range meters {
		row := SheetRow{
			MeterID:     m.ID,
			MeterType:   m.MeterType,
			MeterNumber: m.MeterNumber,
			MeterSerial: m.MeterSerial,
			AssetTag:    m.AssetTag,
		}
		if u, ok := byMeter[m.ID]; ok {
			id := u.ID
			row.MeterUsageID = &id
			row.MeterStart = u.MeterStart
			row.MeterEnd = u.MeterEnd
			row.MeterUsage = u.MeterUsage
			row.ImgPath = u.ImgPath
			row.Status = u.Status
			row.Note = u.Note
		} else {
			start, err := s.previousEnd(ctx, m.ID, year, month)
			if err != nil {
				return nil, err
			}
			row.MeterStart = start
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Latest 表最近一次抄表记录
func (s *UsageService) Latest(ctx context.Context, meterID int64) (*models.MeterUsage, error) {
	if err := s.checkMeter(ctx, meterID); err != nil {
		return nil, err
	}
	usage, err := s.usageRepo.GetLatest(ctx, meterID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrMeterUsageNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return usage, nil
}

// ByMonth 表在指定月份的抄表记录
func (s *UsageService) ByMonth(ctx context.Context, meterID int64, year, month int) (*models.MeterUsage, error) {
	if err := s.checkMeter(ctx, meterID); err != nil {
		return nil, err
	}
	usage, err := s.usageRepo.GetByMeterMonth(ctx, meterID, year, month)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrMeterUsageNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return usage, nil
}

// History 表的全部抄表记录
func (s *UsageService) History(ctx context.Context, meterID int64) ([]*models.MeterUsage, error) {
	if err := s.checkMeter(ctx, meterID); err != nil {
		return nil, err
	}
	usages, err := s.usageRepo.ListByMeter(ctx, meterID)
	if err != nil {
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	return usages, nil
}

func (s *UsageService) checkMeter(ctx context.Context, meterID int64) error {
	if _, err := s.meterRepo.GetByID(ctx, meterID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.ErrMeterNotFound
		}
		return errors.ErrDatabaseError.WithError(err)
	}
	return nil
}

// previousEnd 指定月份之前最近一条记录的期末读数，没有记录时为 0
func (s *UsageService) previousEnd(ctx context.Context, meterID int64, year, month int) (decimal.Decimal, error) {
	prev, err := s.usageRepo.GetPrevious(ctx, meterID, year, month)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return decimal.Zero, nil
		}
		return decimal.Zero, errors.ErrDatabaseError.WithError(err)
	}
	return prev.MeterEnd, nil
}

// currentMonth 业务时区的当前年月
func (s *UsageService) currentMonth() (int, int) {
	t := s.now().In(s.loc)
	return t.Year(), int(t.Month())
}
