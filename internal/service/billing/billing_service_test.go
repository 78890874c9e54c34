package billing

import (
	"bytes"
	"context"
	stderrors "errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/common/cache"
	"github.com/gogomarket/rental-backend/internal/common/errors"
	"github.com/gogomarket/rental-backend/internal/models"
	"github.com/gogomarket/rental-backend/internal/repository"
	"github.com/gogomarket/rental-backend/pkg/oss"
	"github.com/gogomarket/rental-backend/tests/helpers"
)

type fakeNotifier struct {
	mu    sync.Mutex
	bills []string
}

func (n *fakeNotifier) NotifyBill(_ context.Context, bill *models.Bill, tenant *models.Tenant) []*models.BillNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bills = append(n.bills, bill.BillNumber)
	return []*models.BillNotification{{
		BillID:   bill.ID,
		TenantID: tenant.ID,
		Channel:  models.NotificationChannelLine,
		Status:   models.NotificationStatusSent,
	}}
}

type fixture struct {
	db       *gorm.DB
	svc      *BillingService
	notifier *fakeNotifier
	uploader *oss.MockUploader
	redis    *miniredis.Miniredis
}

var now = time.Date(2025, 7, 2, 10, 0, 0, 0, time.UTC)

func setup(t *testing.T) *fixture {
	db := helpers.SetupTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		db:       db,
		notifier: &fakeNotifier{},
		uploader: oss.NewMockUploader(),
		redis:    mr,
	}
	f.svc = NewBillingService(
		db,
		repository.NewBillRepository(db),
		repository.NewContractRepository(db),
		repository.NewMeterUsageRepository(db),
		f.notifier,
		f.uploader,
		cache.NewStore(client),
		nil,
		Config{BillNumberPrefix: "INV", DefaultVatPercent: decimal.NewFromInt(7)},
		time.UTC,
	)
	f.svc.now = helpers.FixedClock(now)
	return f
}

// billable 创建一份绑定锁位、带水电表和六月已确认读数的合同
func billable(t *testing.T, db *gorm.DB, name string) (*models.Tenant, *models.Contract, *models.Lock) {
	tenant := helpers.CreateTenant(t, db, name, helpers.WithLine("U-"+name))
	c := helpers.CreateContract(t, db, tenant.ID, "QD-"+name, helpers.Day(2025, 1, 1), helpers.Day(2025, 12, 31))
	lock := helpers.CreateLock(t, db, "L-"+name, nil)
	helpers.Bind(t, db, lock.ID, c.ID, models.BindingStatusActive)

	water := helpers.CreateMeter(t, db, "WM-"+name, models.MeterTypeWater)
	electric := helpers.CreateMeter(t, db, "EM-"+name, models.MeterTypeElectric)
	helpers.AttachMeter(t, db, lock.ID, water.ID)
	helpers.AttachMeter(t, db, lock.ID, electric.ID)
	helpers.CreateUsage(t, db, water.ID, 2025, 6, 100, 110, models.MeterUsageConfirmed)
	helpers.CreateUsage(t, db, electric.ID, 2025, 6, 1000, 1050, models.MeterUsageConfirmed)
	// 未确认和其他月份的读数不计入
	helpers.CreateUsage(t, db, water.ID, 2025, 7, 110, 200, models.MeterUsageUnconfirmed)
	return tenant, c, lock
}

func item(contractID int64, discount string) CreateBillItem {
	return CreateBillItem{ContractID: contractID, Year: 2025, Month: 6, Discount: decimal.RequireFromString(discount)}
}

func TestEligible(t *testing.T) {
	f := setup(t)
	tenant, c, lock := billable(t, f.db, "Somchai")

	// 已解约的合同不出现
	other := helpers.CreateContract(t, f.db, tenant.ID, "QD-CANCELLED", helpers.Day(2025, 1, 1), helpers.Day(2025, 12, 31))
	b := helpers.Bind(t, f.db, helpers.CreateLock(t, f.db, "L-X", nil).ID, other.ID, models.BindingStatusCancelled)
	require.NoError(t, f.db.Delete(b).Error)

	list, err := f.svc.Eligible(context.Background(), 2025, 6)
	require.NoError(t, err)
	require.Len(t, list, 1)

	e := list[0]
	assert.Equal(t, c.ID, e.ContractID)
	assert.Equal(t, "QD-Somchai", e.ContractNumber)
	assert.Equal(t, tenant.FullName(), e.TenantName)
	assert.Equal(t, lock.Name, e.LockName)
	require.Len(t, e.Locks, 1)
	assert.Equal(t, lock.ID, e.Locks[0].LockID)
	assert.Len(t, e.Meters, 2)
	assert.Equal(t, "10.00", e.Calculations.TotalWater.StringFixed(2))
	assert.Equal(t, "180.00", e.Calculations.TotalWaterBill.StringFixed(2))
	assert.Equal(t, "350.00", e.Calculations.TotalElectricBill.StringFixed(2))
	assert.Equal(t, "3530.00", e.Calculations.TotalBill.StringFixed(2))
	assert.Nil(t, e.Bill)

	_, err = f.svc.CreateBill(context.Background(), &CreateBillItem{ContractID: c.ID, Year: 2025, Month: 6}, 1)
	require.NoError(t, err)
	list, err = f.svc.Eligible(context.Background(), 2025, 6)
	require.NoError(t, err)
	require.NotNil(t, list[0].Bill)
	assert.Equal(t, models.BillStatusUnpaid, list[0].Bill.Status)

	// 合同期外的月份
	list, err = f.svc.Eligible(context.Background(), 2026, 1)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.svc.Eligible(context.Background(), 2025, 13)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidParams))
}

func TestCreateBill(t *testing.T) {
	f := setup(t)
	tenant, c, _ := billable(t, f.db, "Somsak")

	vat := decimal.NewFromInt(7)
	in := item(c.ID, "100")
	in.VatPercent = &vat
	bill, err := f.svc.CreateBill(context.Background(), &in, 9)
	require.NoError(t, err)

	assert.Equal(t, "INV202506-"+tenant.Code+"-QD-Somsak-00001", bill.BillNumber)
	assert.Len(t, bill.RefNumber, 8)
	assert.Equal(t, models.BillStatusUnpaid, bill.Status)
	assert.Equal(t, int64(9), bill.CreatedBy)
	assert.Equal(t, "3430.00", bill.Subtotal.StringFixed(2))
	assert.Equal(t, "240.10", bill.Vat.StringFixed(2))
	assert.Equal(t, "3670.10", bill.TotalVat.StringFixed(2))
	require.NotNil(t, bill.Tenant)
	assert.Equal(t, tenant.ID, bill.Tenant.ID)

	// 同一合同同月第二张账单
	_, err = f.svc.CreateBill(context.Background(), &in, 9)
	assert.True(t, stderrors.Is(err, errors.ErrBillExists))

	// 取消后可以重新出账，序号包含已取消的账单
	require.NoError(t, f.svc.Cancel(context.Background(), bill.ID))
	again, err := f.svc.CreateBill(context.Background(), &in, 9)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(again.BillNumber, "-00002"))
}

func TestCreateBill_DefaultVatAndValidation(t *testing.T) {
	f := setup(t)
	_, c, _ := billable(t, f.db, "Malee")

	bad := item(c.ID, "5000")
	_, err := f.svc.CreateBill(context.Background(), &bad, 1)
	assert.True(t, stderrors.Is(err, errors.ErrDiscountInvalid))

	neg := decimal.NewFromInt(-1)
	badVat := item(c.ID, "0")
	badVat.VatPercent = &neg
	_, err = f.svc.CreateBill(context.Background(), &badVat, 1)
	assert.True(t, stderrors.Is(err, errors.ErrVatInvalid))

	var count int64
	require.NoError(t, f.db.Unscoped().Model(&models.Bill{}).Count(&count).Error)
	assert.Zero(t, count)

	ok := item(c.ID, "0")
	bill, err := f.svc.CreateBill(context.Background(), &ok, 1)
	require.NoError(t, err)
	assert.Equal(t, "7", bill.VatPercent.String())
	assert.Equal(t, "3777.10", bill.TotalVat.StringFixed(2))
}

func TestCreateBill_NotBillable(t *testing.T) {
	f := setup(t)
	tenant := helpers.CreateTenant(t, f.db, "Unbound")
	c := helpers.CreateContract(t, f.db, tenant.ID, "QD-UNBOUND", helpers.Day(2025, 1, 1), helpers.Day(2025, 12, 31))

	in := item(c.ID, "0")
	_, err := f.svc.CreateBill(context.Background(), &in, 1)
	assert.True(t, stderrors.Is(err, errors.ErrContractNotBilling))

	// 绑定存在但月份不在合同期内
	helpers.Bind(t, f.db, helpers.CreateLock(t, f.db, "L-UB", nil).ID, c.ID, models.BindingStatusActive)
	out := CreateBillItem{ContractID: c.ID, Year: 2026, Month: 2}
	_, err = f.svc.CreateBill(context.Background(), &out, 1)
	assert.True(t, stderrors.Is(err, errors.ErrContractNotBilling))

	missing := item(999, "0")
	_, err = f.svc.CreateBill(context.Background(), &missing, 1)
	assert.True(t, stderrors.Is(err, errors.ErrContractNotFound))
}

func TestCreateBill_LockHeld(t *testing.T) {
	f := setup(t)
	_, c, _ := billable(t, f.db, "Busy")
	require.NoError(t, f.redis.Set("lock:bill:"+strconv.FormatInt(c.ID, 10)+":2025-06", "other"))

	in := item(c.ID, "0")
	_, err := f.svc.CreateBill(context.Background(), &in, 1)
	assert.True(t, stderrors.Is(err, errors.ErrBillExists))
}

func TestCreateBills_Batch(t *testing.T) {
	f := setup(t)
	_, c1, _ := billable(t, f.db, "One")
	_, c2, _ := billable(t, f.db, "Two")

	results, err := f.svc.CreateBills(context.Background(), &CreateBillsRequest{
		Items:     []CreateBillItem{item(c1.ID, "0"), item(c2.ID, "99999"), item(c1.ID, "0")},
		CreatedBy: 1,
		Notify:    true,
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.NotNil(t, results[0].Bill)
	assert.Len(t, results[0].Notifications, 1)
	assert.Nil(t, results[1].Bill)
	assert.Equal(t, errors.ErrDiscountInvalid.Code, results[1].Code)
	assert.Equal(t, errors.ErrBillExists.Code, results[2].Code)
	assert.Equal(t, []string{results[0].Bill.BillNumber}, f.notifier.bills)

	_, err = f.svc.CreateBills(context.Background(), &CreateBillsRequest{})
	assert.True(t, stderrors.Is(err, errors.ErrInvalidParams))
}

func TestListGetCancel(t *testing.T) {
	f := setup(t)
	_, c, _ := billable(t, f.db, "Lister")
	in := item(c.ID, "0")
	bill, err := f.svc.CreateBill(context.Background(), &in, 1)
	require.NoError(t, err)

	list, total, err := f.svc.List(context.Background(), &ListBillsRequest{Year: 2025, Month: 6, Status: models.BillStatusUnpaid})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, bill.ID, list[0].ID)

	_, total, err = f.svc.List(context.Background(), &ListBillsRequest{Status: models.BillStatusPaid})
	require.NoError(t, err)
	assert.Zero(t, total)

	_, _, err = f.svc.List(context.Background(), &ListBillsRequest{Status: "UNKNOWN"})
	assert.True(t, stderrors.Is(err, errors.ErrInvalidParams))

	got, err := f.svc.Get(context.Background(), bill.ID)
	require.NoError(t, err)
	assert.Equal(t, bill.BillNumber, got.BillNumber)

	require.NoError(t, f.svc.Cancel(context.Background(), bill.ID))
	_, err = f.svc.Get(context.Background(), bill.ID)
	assert.True(t, stderrors.Is(err, errors.ErrBillNotFound))
	assert.True(t, stderrors.Is(f.svc.Cancel(context.Background(), bill.ID), errors.ErrBillNotFound))
}

func TestPublicDetails_Cached(t *testing.T) {
	f := setup(t)
	tenant, c, _ := billable(t, f.db, "Public")
	in := item(c.ID, "0")
	bill, err := f.svc.CreateBill(context.Background(), &in, 1)
	require.NoError(t, err)

	pb, err := f.svc.PublicDetails(context.Background(), bill.BillNumber, bill.RefNumber)
	require.NoError(t, err)
	assert.Equal(t, tenant.FullName(), pb.TenantName)
	assert.Equal(t, "QD-Public", pb.ContractNumber)
	assert.Equal(t, bill.TotalVat.StringFixed(2), pb.TotalVat.StringFixed(2))
	assert.True(t, f.redis.Exists("bill:public:"+bill.BillNumber+":"+bill.RefNumber))

	_, err = f.svc.PublicDetails(context.Background(), bill.BillNumber, "00000000")
	assert.True(t, stderrors.Is(err, errors.ErrBillNotFound))
	_, err = f.svc.PublicDetails(context.Background(), "", "")
	assert.True(t, stderrors.Is(err, errors.ErrInvalidParams))
}

func TestSendPaymentSlip(t *testing.T) {
	f := setup(t)
	_, c, _ := billable(t, f.db, "Payer")
	in := item(c.ID, "0")
	bill, err := f.svc.CreateBill(context.Background(), &in, 1)
	require.NoError(t, err)

	// 先读一次让缓存生效，上传凭证后缓存失效
	_, err = f.svc.PublicDetails(context.Background(), bill.BillNumber, bill.RefNumber)
	require.NoError(t, err)

	txn, err := f.svc.SendPaymentSlip(context.Background(), &PaymentSlipRequest{
		BillNumber:      bill.BillNumber,
		RefNumber:       bill.RefNumber,
		TransactionType: "Payment Slip",
	}, []File{{Name: "slip.jpg", Content: strings.NewReader("jpeg")}})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeTransfer, txn.TransactionType)
	assert.Equal(t, models.TransactionStatusPending, txn.Status)
	assert.True(t, txn.Amount.Equal(bill.TotalVat))
	assert.Equal(t, helpers.Day(2025, 7, 2), txn.TransactionDate)
	require.Len(t, txn.Attachments, 1)
	assert.True(t, f.uploader.Has(txn.Attachments[0].Path))
	assert.False(t, f.redis.Exists("bill:public:"+bill.BillNumber+":"+bill.RefNumber))

	pb, err := f.svc.PublicDetails(context.Background(), bill.BillNumber, bill.RefNumber)
	require.NoError(t, err)
	assert.Equal(t, models.BillStatusPendingReview, pb.Status)

	got, err := f.svc.Get(context.Background(), bill.ID)
	require.NoError(t, err)
	require.Len(t, got.Transactions, 1)
	require.Len(t, got.Transactions[0].Attachments, 1)
	assert.Len(t, got.Attachments, 1)
}

func TestSendPaymentSlip_Invalid(t *testing.T) {
	f := setup(t)
	_, c, _ := billable(t, f.db, "Bad")
	in := item(c.ID, "0")
	bill, err := f.svc.CreateBill(context.Background(), &in, 1)
	require.NoError(t, err)
	req := &PaymentSlipRequest{BillNumber: bill.BillNumber, RefNumber: bill.RefNumber}
	slip := []File{{Name: "slip.png", Content: strings.NewReader("png")}}

	_, err = f.svc.SendPaymentSlip(context.Background(), req, nil)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidParams))

	_, err = f.svc.SendPaymentSlip(context.Background(), req, []File{{Name: "slip.exe", Content: strings.NewReader("x")}})
	assert.True(t, stderrors.Is(err, errors.ErrFileTypeInvalid))

	wrongRef := *req
	wrongRef.RefNumber = "99999999"
	_, err = f.svc.SendPaymentSlip(context.Background(), &wrongRef, slip)
	assert.True(t, stderrors.Is(err, errors.ErrBillNotFound))

	badAmount := *req
	badAmount.Amount = "-5"
	_, err = f.svc.SendPaymentSlip(context.Background(), &badAmount, slip)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidParams))

	badDate := *req
	badDate.TransactionDate = "02/07/2025"
	_, err = f.svc.SendPaymentSlip(context.Background(), &badDate, slip)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidParams))

	var count int64
	require.NoError(t, f.db.Model(&models.BillTransaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestConfirmPayment(t *testing.T) {
	f := setup(t)
	_, c, _ := billable(t, f.db, "Confirm")
	in := item(c.ID, "0")
	bill, err := f.svc.CreateBill(context.Background(), &in, 1)
	require.NoError(t, err)

	_, err = f.svc.SendPaymentSlip(context.Background(), &PaymentSlipRequest{
		BillNumber:      bill.BillNumber,
		RefNumber:       bill.RefNumber,
		Amount:          "3777.10",
		TransactionDate: "2025-07-01",
	}, []File{{Name: "slip.pdf", Content: strings.NewReader("%PDF")}})
	require.NoError(t, err)

	paid, err := f.svc.ConfirmPayment(context.Background(), bill.ID, &ConfirmPaymentRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.BillStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	require.Len(t, paid.Transactions, 1)
	assert.Equal(t, models.TransactionStatusConfirmed, paid.Transactions[0].Status)

	_, err = f.svc.ConfirmPayment(context.Background(), bill.ID, &ConfirmPaymentRequest{})
	assert.True(t, stderrors.Is(err, errors.ErrBillStatusInvalid))

	_, err = f.svc.SendPaymentSlip(context.Background(), &PaymentSlipRequest{BillNumber: bill.BillNumber, RefNumber: bill.RefNumber},
		[]File{{Name: "late.png", Content: strings.NewReader("png")}})
	assert.True(t, stderrors.Is(err, errors.ErrBillStatusInvalid))

	assert.True(t, stderrors.Is(f.svc.Cancel(context.Background(), bill.ID), errors.ErrBillStatusInvalid))
}

func TestConfirmPayment_Cash(t *testing.T) {
	f := setup(t)
	_, c, _ := billable(t, f.db, "Cash")
	in := item(c.ID, "0")
	bill, err := f.svc.CreateBill(context.Background(), &in, 1)
	require.NoError(t, err)

	paid, err := f.svc.ConfirmPayment(context.Background(), bill.ID, &ConfirmPaymentRequest{Note: "counter"})
	require.NoError(t, err)
	require.Len(t, paid.Transactions, 1)
	assert.Equal(t, models.TransactionTypeCash, paid.Transactions[0].TransactionType)
	assert.True(t, paid.Transactions[0].Amount.Equal(bill.TotalVat))

	_, err = f.svc.ConfirmPayment(context.Background(), 999, &ConfirmPaymentRequest{})
	assert.True(t, stderrors.Is(err, errors.ErrBillNotFound))
}

func TestExportMonth(t *testing.T) {
	f := setup(t)
	_, c1, _ := billable(t, f.db, "ExA")
	_, c2, _ := billable(t, f.db, "ExB")
	for _, id := range []int64{c1.ID, c2.ID} {
		in := item(id, "0")
		_, err := f.svc.CreateBill(context.Background(), &in, 1)
		require.NoError(t, err)
	}

	data, name, err := f.svc.ExportMonth(context.Background(), 2025, 6)
	require.NoError(t, err)
	assert.Equal(t, "bills-2025-06.xlsx", name)

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, ExportHeader, rows[0])
	assert.Equal(t, "UNPAID", rows[1][13])
	assert.Equal(t, "Total", rows[3][11])

	_, _, err = f.svc.ExportMonth(context.Background(), 2025, 0)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidParams))
}
