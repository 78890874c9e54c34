package billing

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/common/errors"
	"github.com/gogomarket/rental-backend/internal/common/logger"
	"github.com/gogomarket/rental-backend/internal/common/utils"
	"github.com/gogomarket/rental-backend/internal/models"
	"github.com/gogomarket/rental-backend/pkg/oss"
)

const dateLayout = "2006-01-02"

// 付款凭证允许的文件类型
var slipExts = []string{".jpg", ".jpeg", ".png", ".webp", ".pdf"}

// File 上传的文件
type File struct {
	Name    string
	Size    int64
	Content io.Reader
}

// PaymentSlipRequest 上传付款凭证请求（multipart 表单）
type PaymentSlipRequest struct {
	BillNumber      string `form:"bill_number" binding:"required"`
	RefNumber       string `form:"ref_number" binding:"required"`
	TransactionType string `form:"transaction_type"`
	Amount          string `form:"amount"`
	TransactionDate string `form:"transaction_date"`
	Note            string `form:"note"`
}

// SendPaymentSlip 租户上传付款凭证
// 创建待确认流水和附件，账单进入 PENDING_REVIEW
func (s *BillingService) SendPaymentSlip(ctx context.Context, req *PaymentSlipRequest, files []File) (*models.BillTransaction, error) {
	if len(files) == 0 {
		return nil, errors.ErrInvalidParams.WithMessage("请上传付款凭证")
	}

	bill, err := s.billRepo.GetByNumberAndRef(ctx, req.BillNumber, req.RefNumber)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrBillNotFound
		}
		return nil, errors.ErrDatabaseError.WithError(err)
	}
	if bill.Status == models.BillStatusPaid {
		return nil, errors.ErrBillStatusInvalid.WithMessage("账单已支付")
	}

	amount := bill.TotalVat
	if v := strings.TrimSpace(req.Amount); v != "" {
		amount, err = decimal.NewFromString(v)
		if err != nil || amount.IsNegative() {
			return nil, errors.ErrInvalidParams.WithMessage("金额格式错误")
		}
	}
	date := utils.CalendarDate(s.now(), s.loc)
	if v := strings.TrimSpace(req.TransactionDate); v != "" {
		date, err = time.Parse(dateLayout, v)
		if err != nil {
			return nil, errors.ErrInvalidParams.WithMessage("日期格式应为 YYYY-MM-DD")
		}
	}

	atts, err := s.uploadSlips(ctx, bill, files)
	if err != nil {
		return nil, err
	}

	txn := &models.BillTransaction{
		BillID:          bill.ID,
		TransactionType: transactionType(req.TransactionType),
		Amount:          amount.Round(2),
		TransactionDate: date,
		Status:          models.TransactionStatusPending,
		Note:            req.Note,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.billRepo.WithTx(tx)
		if err := repo.CreateTransaction(ctx, txn); err != nil {
			return err
		}
		for _, a := range atts {
			a.TransactionID = &txn.ID
		}
		if err := repo.CreateAttachments(ctx, atts); err != nil {
			return err
		}
		rows, err := repo.UpdateStatusFrom(ctx, bill.ID,
			[]string{models.BillStatusUnpaid, models.BillStatusPendingReview},
			map[string]interface{}{"status": models.BillStatusPendingReview},
		)
		if err != nil {
			return err
		}
		if rows == 0 {
			return errors.ErrBillStatusInvalid.WithMessage("账单已支付")
		}
		return nil
	})
	if err != nil {
		s.removeSlips(ctx, atts)
		return nil, wrapDBError(err)
	}

	txn.Attachments = make([]models.BillAttachment, 0, len(atts))
	for _, a := range atts {
		txn.Attachments = append(txn.Attachments, *a)
	}
	s.invalidatePublic(ctx, bill)
	s.metrics.RecordPayment("slip_submitted")
	logger.Info("payment slip received",
		logger.Module("billing"),
		logger.BillNumber(bill.BillNumber),
		logger.String("amount", txn.Amount.StringFixed(2)),
		logger.Int("files", len(atts)),
	)
	return txn, nil
}

// ConfirmPaymentRequest 确认收款请求
type ConfirmPaymentRequest struct {
	Note string `json:"note"`
}

// ConfirmPayment 管理员确认收款，账单进入 PAID
// 未上传凭证直接确认时记一笔现金流水
func (s *BillingService) ConfirmPayment(ctx context.Context, id int64, req *ConfirmPaymentRequest) (*models.Bill, error) {
	bill, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if bill.Status == models.BillStatusPaid {
		return nil, errors.ErrBillStatusInvalid.WithMessage("账单已支付")
	}

	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.billRepo.WithTx(tx)
		if len(bill.Transactions) == 0 {
			cash := &models.BillTransaction{
				BillID:          bill.ID,
				TransactionType: models.TransactionTypeCash,
				Amount:          bill.TotalVat,
				TransactionDate: utils.CalendarDate(now, s.loc),
				Status:          models.TransactionStatusConfirmed,
				Note:            req.Note,
			}
			if err := repo.CreateTransaction(ctx, cash); err != nil {
				return err
			}
		}
		rows, err := repo.UpdateStatusFrom(ctx, bill.ID,
			[]string{models.BillStatusUnpaid, models.BillStatusPendingReview},
			map[string]interface{}{"status": models.BillStatusPaid, "paid_at": now},
		)
		if err != nil {
			return err
		}
		if rows == 0 {
			return errors.ErrBillStatusInvalid.WithMessage("账单已支付")
		}
		return repo.ConfirmTransactions(ctx, bill.ID)
	})
	if err != nil {
		return nil, wrapDBError(err)
	}

	s.invalidatePublic(ctx, bill)
	s.metrics.RecordPayment("confirmed")
	logger.Info("bill paid", logger.Module("billing"), logger.BillNumber(bill.BillNumber))
	return s.Get(ctx, id)
}

func (s *BillingService) uploadSlips(ctx context.Context, bill *models.Bill, files []File) ([]*models.BillAttachment, error) {
	prefix := oss.JoinKey("slips", bill.BillNumber)
	atts := make([]*models.BillAttachment, 0, len(files))
	for _, f := range files {
		if err := oss.ValidateExt(f.Name, slipExts); err != nil {
			s.removeSlips(ctx, atts)
			return nil, errors.ErrFileTypeInvalid.WithError(err)
		}
		key := oss.GenerateObjectKey(prefix, f.Name)
		url, err := s.uploader.Upload(ctx, key, f.Content)
		if err != nil {
			s.removeSlips(ctx, atts)
			return nil, errors.ErrUploadFailed.WithError(err)
		}
		atts = append(atts, &models.BillAttachment{
			BillID:   bill.ID,
			FileName: f.Name,
			Path:     key,
			URL:      url,
		})
	}
	return atts, nil
}

func (s *BillingService) removeSlips(ctx context.Context, atts []*models.BillAttachment) {
	for _, a := range atts {
		if err := s.uploader.Delete(ctx, a.Path); err != nil {
			logger.Warn("remove payment slip failed", logger.String("path", a.Path), logger.Err(err))
		}
	}
}

// transactionType 前端提交 "Payment Slip" 等自由文本，统一归为转账
func transactionType(v string) string {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case models.TransactionTypeCash:
		return models.TransactionTypeCash
	default:
		return models.TransactionTypeTransfer
	}
}
