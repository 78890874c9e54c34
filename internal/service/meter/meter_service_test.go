package meter

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/common/errors"
	"github.com/gogomarket/rental-backend/internal/models"
	"github.com/gogomarket/rental-backend/internal/repository"
	"github.com/gogomarket/rental-backend/pkg/mqtt"
	"github.com/gogomarket/rental-backend/pkg/oss"
	"github.com/gogomarket/rental-backend/tests/helpers"
)

type fixture struct {
	db       *gorm.DB
	meters   *MeterService
	usages   *UsageService
	uploader *oss.MockUploader
}

func setup(t *testing.T, now time.Time) *fixture {
	db := helpers.SetupTestDB(t)
	meterRepo := repository.NewMeterRepository(db)
	uploader := oss.NewMockUploader()
	usages := NewUsageService(db, meterRepo, repository.NewMeterUsageRepository(db), uploader, nil, time.UTC)
	usages.now = helpers.FixedClock(now)
	return &fixture{
		db:       db,
		meters:   NewMeterService(meterRepo),
		usages:   usages,
		uploader: uploader,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestMeterService_CRUD(t *testing.T) {
	f := setup(t, helpers.Day(2025, 6, 15))
	ctx := context.Background()

	m, err := f.meters.Create(ctx, &CreateMeterRequest{
		MeterType:  models.MeterTypeWater,
		AssetTag:   " WM-001 ",
		Attributes: map[string]interface{}{"brand": "Asahi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "WM-001", m.AssetTag)
	assert.Equal(t, models.MeterStatusActive, m.Status)

	_, err = f.meters.Create(ctx, &CreateMeterRequest{MeterType: models.MeterTypeElectric, AssetTag: "WM-001"})
	assert.True(t, stderrors.Is(err, errors.ErrAssetTagExists))

	_, err = f.meters.Create(ctx, &CreateMeterRequest{MeterType: "Gas Meter", AssetTag: "G-1"})
	assert.True(t, stderrors.Is(err, errors.ErrInvalidParams))

	note := "replaced"
	status := models.MeterStatusInactive
	updated, err := f.meters.Update(ctx, m.ID, &UpdateMeterRequest{Note: &note, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "replaced", updated.Note)
	assert.Equal(t, models.MeterStatusInactive, updated.Status)

	got, err := f.meters.GetByAssetTag(ctx, "WM-001")
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)

	list, total, err := f.meters.List(ctx, &ListMetersRequest{Keyword: "WM"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)

	lock := helpers.CreateLock(t, f.db, "A-1", nil)
	helpers.AttachMeter(t, f.db, lock.ID, m.ID)
	binding, err := f.meters.Binding(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, binding)
	assert.Equal(t, lock.ID, binding.LockID)

	require.NoError(t, f.meters.Delete(ctx, m.ID))
	_, err = f.meters.Get(ctx, m.ID)
	assert.True(t, stderrors.Is(err, errors.ErrMeterNotFound))
	assert.True(t, stderrors.Is(f.meters.Delete(ctx, m.ID), errors.ErrMeterNotFound))

	// 软删除后资产标签可以复用
	_, err = f.meters.Create(ctx, &CreateMeterRequest{MeterType: models.MeterTypeWater, AssetTag: "WM-001"})
	assert.NoError(t, err)
}

func TestUsageService_Capture(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	t.Run("期初读数取上月期末读数", func(t *testing.T) {
		f := setup(t, now)
		m := helpers.CreateMeter(t, f.db, "EM-1", models.MeterTypeElectric)
		helpers.CreateUsage(t, f.db, m.ID, 2025, 5, 100, 180, models.MeterUsageConfirmed)

		photo := &Photo{Name: "reading.jpg", Content: strings.NewReader("jpg")}
		u, err := f.usages.Capture(context.Background(), &CaptureRequest{AssetTag: "EM-1", MeterEnd: "230.5"}, photo)
		require.NoError(t, err)
		assert.Equal(t, 2025, u.Year)
		assert.Equal(t, 6, u.Month)
		assert.True(t, u.MeterStart.Equal(dec("180")))
		assert.True(t, u.MeterUsage.Equal(dec("50.5")))
		assert.Equal(t, models.MeterUsageUnconfirmed, u.Status)
		assert.True(t, f.uploader.Has(u.ImgPath))
		assert.True(t, strings.HasPrefix(u.ImgPath, "meters/EM-1/"))
	})

	t.Run("没有历史记录时期初为 0", func(t *testing.T) {
		f := setup(t, now)
		helpers.CreateMeter(t, f.db, "WM-1", models.MeterTypeWater)
		u, err := f.usages.Capture(context.Background(), &CaptureRequest{AssetTag: "WM-1", MeterEnd: "12"}, nil)
		require.NoError(t, err)
		assert.True(t, u.MeterStart.IsZero())
		assert.True(t, u.MeterUsage.Equal(dec("12")))
	})

	t.Run("本月已有记录", func(t *testing.T) {
		f := setup(t, now)
		m := helpers.CreateMeter(t, f.db, "WM-2", models.MeterTypeWater)
		helpers.CreateUsage(t, f.db, m.ID, 2025, 6, 0, 10, models.MeterUsageUnconfirmed)
		_, err := f.usages.Capture(context.Background(), &CaptureRequest{AssetTag: "WM-2", MeterEnd: "20"}, nil)
		assert.True(t, stderrors.Is(err, errors.ErrMeterUsageExists))
	})

	t.Run("读数小于期初", func(t *testing.T) {
		f := setup(t, now)
		m := helpers.CreateMeter(t, f.db, "WM-3", models.MeterTypeWater)
		helpers.CreateUsage(t, f.db, m.ID, 2025, 4, 0, 50, models.MeterUsageConfirmed)
		_, err := f.usages.Capture(context.Background(), &CaptureRequest{AssetTag: "WM-3", MeterEnd: "49.99"}, nil)
		assert.True(t, stderrors.Is(err, errors.ErrMeterReadingInvalid))
	})

	t.Run("资产标签不存在或读数非法", func(t *testing.T) {
		f := setup(t, now)
		_, err := f.usages.Capture(context.Background(), &CaptureRequest{AssetTag: "NOPE", MeterEnd: "1"}, nil)
		assert.True(t, stderrors.Is(err, errors.ErrMeterNotFound))
		_, err = f.usages.Capture(context.Background(), &CaptureRequest{AssetTag: "NOPE", MeterEnd: "abc"}, nil)
		assert.True(t, stderrors.Is(err, errors.ErrInvalidParams))
	})

	t.Run("照片类型不支持", func(t *testing.T) {
		f := setup(t, now)
		helpers.CreateMeter(t, f.db, "WM-4", models.MeterTypeWater)
		_, err := f.usages.Capture(context.Background(), &CaptureRequest{AssetTag: "WM-4", MeterEnd: "1"},
			&Photo{Name: "a.pdf", Content: strings.NewReader("x")})
		assert.True(t, stderrors.Is(err, errors.ErrFileTypeInvalid))
		assert.Empty(t, f.uploader.Files)
	})

	t.Run("按业务时区计算当前月份", func(t *testing.T) {
		f := setup(t, time.Date(2025, 6, 30, 18, 0, 0, 0, time.UTC))
		f.usages.loc = time.FixedZone("ICT", 7*3600)
		helpers.CreateMeter(t, f.db, "WM-5", models.MeterTypeWater)
		u, err := f.usages.Capture(context.Background(), &CaptureRequest{AssetTag: "WM-5", MeterEnd: "1"}, nil)
		require.NoError(t, err)
		assert.Equal(t, 7, u.Month)
	})
}

func TestUsageService_BulkUpsert(t *testing.T) {
	f := setup(t, helpers.Day(2025, 6, 15))
	ctx := context.Background()

	m1 := helpers.CreateMeter(t, f.db, "WM-1", models.MeterTypeWater)
	m2 := helpers.CreateMeter(t, f.db, "EM-1", models.MeterTypeElectric)
	helpers.CreateUsage(t, f.db, m2.ID, 2025, 5, 0, 300, models.MeterUsageConfirmed)
	existing := helpers.CreateUsage(t, f.db, m1.ID, 2025, 6, 10, 25, models.MeterUsageUnconfirmed)

	note := "corrected"
	corrected := dec("12")
	res, err := f.usages.BulkUpsert(ctx, 2025, 6, []UsageEntry{
		{MeterUsageID: &existing.ID, MeterStart: &corrected, MeterEnd: dec("30"), Note: &note},
		{MeterID: &m2.ID, MeterEnd: dec("345.5")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Created)

	u1, err := f.usages.ByMonth(ctx, m1.ID, 2025, 6)
	require.NoError(t, err)
	assert.Equal(t, models.MeterUsageConfirmed, u1.Status)
	assert.True(t, u1.MeterUsage.Equal(dec("18")))
	assert.Equal(t, "corrected", u1.Note)

	u2, err := f.usages.ByMonth(ctx, m2.ID, 2025, 6)
	require.NoError(t, err)
	assert.Equal(t, models.MeterUsageConfirmed, u2.Status)
	assert.True(t, u2.MeterStart.Equal(dec("300")))
	assert.True(t, u2.MeterUsage.Equal(dec("45.5")))

	t.Run("任一行非法时整批回滚", func(t *testing.T) {
		m3 := helpers.CreateMeter(t, f.db, "WM-3", models.MeterTypeWater)
		_, err := f.usages.BulkUpsert(ctx, 2025, 6, []UsageEntry{
			{MeterID: &m3.ID, MeterEnd: dec("5")},
			{MeterUsageID: &existing.ID, MeterEnd: dec("1")},
		})
		assert.True(t, stderrors.Is(err, errors.ErrMeterReadingInvalid))

		_, err = f.usages.ByMonth(ctx, m3.ID, 2025, 6)
		assert.True(t, stderrors.Is(err, errors.ErrMeterUsageNotFound))
	})

	t.Run("同月重复新建", func(t *testing.T) {
		_, err := f.usages.BulkUpsert(ctx, 2025, 6, []UsageEntry{{MeterID: &m2.ID, MeterEnd: dec("400")}})
		assert.True(t, stderrors.Is(err, errors.ErrMeterUsageExists))
	})

	t.Run("缺少表或记录 ID", func(t *testing.T) {
		_, err := f.usages.BulkUpsert(ctx, 2025, 6, []UsageEntry{{MeterEnd: dec("1")}})
		assert.True(t, stderrors.Is(err, errors.ErrInvalidParams))
		_, err = f.usages.BulkUpsert(ctx, 2025, 6, nil)
		assert.True(t, stderrors.Is(err, errors.ErrInvalidParams))
	})
}

func TestUsageService_SheetAndQueries(t *testing.T) {
	f := setup(t, helpers.Day(2025, 6, 15))
	ctx := context.Background()

	m1 := helpers.CreateMeter(t, f.db, "WM-1", models.MeterTypeWater)
	m2 := helpers.CreateMeter(t, f.db, "WM-2", models.MeterTypeWater)
	helpers.CreateUsage(t, f.db, m1.ID, 2025, 5, 0, 40, models.MeterUsageConfirmed)
	helpers.CreateUsage(t, f.db, m1.ID, 2025, 6, 40, 55, models.MeterUsageUnconfirmed)
	helpers.CreateUsage(t, f.db, m2.ID, 2025, 4, 0, 70, models.MeterUsageConfirmed)

	rows, err := f.usages.MonthlySheet(ctx, 2025, 6)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	byTag := map[string]SheetRow{}
	for _, r := range rows {
		byTag[r.AssetTag] = r
	}
	require.NotNil(t, byTag["WM-1"].MeterUsageID)
	assert.Equal(t, models.MeterUsageUnconfirmed, byTag["WM-1"].Status)
	assert.True(t, byTag["WM-1"].MeterUsage.Equal(dec("15")))
	assert.Nil(t, byTag["WM-2"].MeterUsageID)
	assert.Empty(t, byTag["WM-2"].Status)
	assert.True(t, byTag["WM-2"].MeterStart.Equal(dec("70")))

	latest, err := f.usages.Latest(ctx, m1.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, latest.Month)

	history, err := f.usages.History(ctx, m1.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	_, err = f.usages.ByMonth(ctx, m2.ID, 2025, 6)
	assert.True(t, stderrors.Is(err, errors.ErrMeterUsageNotFound))
	_, err = f.usages.Latest(ctx, 999)
	assert.True(t, stderrors.Is(err, errors.ErrMeterNotFound))
}

func TestIngestService_OnReading(t *testing.T) {
	f := setup(t, helpers.Day(2025, 6, 15))
	helpers.CreateMeter(t, f.db, "EM-9", models.MeterTypeElectric)
	ingest := NewIngestService(f.usages, nil)

	id, err := ingest.OnReading(context.Background(), "EM-9", &mqtt.ReadingPayload{Reading: dec("88")})
	require.NoError(t, err)
	assert.NotZero(t, id)

	_, err = ingest.OnReading(context.Background(), "EM-9", &mqtt.ReadingPayload{Reading: dec("90")})
	assert.True(t, stderrors.Is(err, errors.ErrMeterUsageExists))
}
