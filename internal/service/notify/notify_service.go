// Package notify 提供 LINE 和短信通知服务
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/gogomarket/rental-backend/internal/common/crypto"
	"github.com/gogomarket/rental-backend/internal/common/errors"
	"github.com/gogomarket/rental-backend/internal/common/logger"
	"github.com/gogomarket/rental-backend/internal/common/metrics"
	"github.com/gogomarket/rental-backend/internal/common/money"
	"github.com/gogomarket/rental-backend/internal/common/qrcode"
	"github.com/gogomarket/rental-backend/internal/common/tracing"
	"github.com/gogomarket/rental-backend/internal/models"
	"github.com/gogomarket/rental-backend/internal/repository"
	"github.com/gogomarket/rental-backend/pkg/line"
	"github.com/gogomarket/rental-backend/pkg/oss"
	"github.com/gogomarket/rental-backend/pkg/sms"
)

// Config 通知配置
type Config struct {
	ShopName        string
	BannerURL       string
	PublicBaseURL   string
	SMSTemplateCode string
}

// NotifyService 通知服务
// line 或 sms 为 nil 表示对应渠道未启用
type NotifyService struct {
	billRepo *repository.BillRepository
	line     line.Pusher
	sms      sms.Sender
	uploader oss.Uploader
	qr       *qrcode.Generator
	metrics  *metrics.Metrics
	cfg      Config
}

// NewNotifyService 创建通知服务
func NewNotifyService(
	billRepo *repository.BillRepository,
	pusher line.Pusher,
	sender sms.Sender,
	uploader oss.Uploader,
	qr *qrcode.Generator,
	m *metrics.Metrics,
	cfg Config,
) *NotifyService {
	if qr == nil {
		qr = qrcode.NewGenerator()
	}
	return &NotifyService{
		billRepo: billRepo,
		line:     pusher,
		sms:      sender,
		uploader: uploader,
		qr:       qr,
		metrics:  m,
		cfg:      cfg,
	}
}

// SendWelcome 租户绑定 LINE 后发送欢迎消息
func (s *NotifyService) SendWelcome(ctx context.Context, tenant *models.Tenant) error {
	if s.line == nil {
		return errors.ErrNotifyFailed.WithMessage("LINE 通知未启用")
	}
	if !tenant.HasLine() {
		return errors.ErrNotifyNoRecipient
	}

	contents, err := welcomeTemplate.Render(map[string]string{
		"banner_url":    s.cfg.BannerURL,
		"shop_name":     s.cfg.ShopName,
		"tenant_name":   tenant.FullName(),
		"customer_code": tenant.Code,
	})
	if err != nil {
		return errors.ErrNotifyFailed.WithError(err)
	}

	msg := line.FlexMessage(fmt.Sprintf("ขอบคุณสำหรับการเชื่อมต่อกับ %s", s.cfg.ShopName), contents)
	if err := s.line.Push(ctx, tenant.LineID, msg); err != nil {
		s.metrics.RecordNotification(models.NotificationChannelLine, models.NotificationStatusFailed)
		return errors.ErrNotifyFailed.WithError(err)
	}
	s.metrics.RecordNotification(models.NotificationChannelLine, models.NotificationStatusSent)
	return nil
}

// NotifyBill 发送账单通知
// 优先 LINE，未绑定或发送失败时退回短信；每次尝试都写入 bill_notifications
// 通知失败不影响账单本身，只返回记录
func (s *NotifyService) NotifyBill(ctx context.Context, bill *models.Bill, tenant *models.Tenant) (records []*models.BillNotification) {
	ctx, span := tracing.Start(ctx, "notify.Bill",
		tracing.AttrBillNumber.String(bill.BillNumber),
		tracing.AttrTenantID.Int64(tenant.ID),
	)
	defer func() {
		if n := len(records); n > 0 {
			span.SetAttributes(tracing.AttrChannel.String(records[n-1].Channel))
		}
		span.End()
	}()

	link := qrcode.PaymentLink(s.cfg.PublicBaseURL, bill.BillNumber, bill.RefNumber)
	qrURL := s.ensureQRCode(ctx, bill, link)

	if s.line != nil && tenant.HasLine() {
		n := s.pushBill(ctx, bill, tenant, link, qrURL)
		records = append(records, n)
		if n.Status == models.NotificationStatusSent {
			return records
		}
	}

	if s.sms != nil && tenant.Phone != "" {
		records = append(records, s.smsBill(ctx, bill, tenant, link))
		return records
	}

	if len(records) == 0 {
		n := &models.BillNotification{
			BillID:   bill.ID,
			TenantID: tenant.ID,
			Channel:  models.NotificationChannelLine,
			Status:   models.NotificationStatusSkipped,
			Error:    errors.ErrNotifyNoRecipient.Message,
		}
		s.record(ctx, n)
		records = append(records, n)
	}
	return records
}

// ensureQRCode 生成付款链接二维码并上传，地址写回账单
func (s *NotifyService) ensureQRCode(ctx context.Context, bill *models.Bill, link string) string {
	if bill.QRCodeURL != "" {
		return bill.QRCodeURL
	}
	png, err := s.qr.GeneratePNG(link)
	if err != nil {
		logger.Warn("generate bill qrcode failed", logger.BillNumber(bill.BillNumber), logger.Err(err))
		return ""
	}
	url, err := s.uploader.Upload(ctx, oss.JoinKey("qrcodes", bill.BillNumber+".png"), bytes.NewReader(png))
	if err != nil {
		logger.Warn("upload bill qrcode failed", logger.BillNumber(bill.BillNumber), logger.Err(err))
		return ""
	}
	if err := s.billRepo.UpdateFields(ctx, bill.ID, map[string]interface{}{"qrcode_url": url}); err != nil {
		logger.Warn("save bill qrcode url failed", logger.BillNumber(bill.BillNumber), logger.Err(err))
	}
	bill.QRCodeURL = url
	return url
}

func (s *NotifyService) pushBill(ctx context.Context, bill *models.Bill, tenant *models.Tenant, link, qrURL string) *models.BillNotification {
	n := &models.BillNotification{
		BillID:    bill.ID,
		TenantID:  tenant.ID,
		Channel:   models.NotificationChannelLine,
		Recipient: tenant.LineID,
	}

	contents, err := billTemplate.Render(billVars(bill, s.cfg.ShopName, link))
	if err != nil {
		n.Status = models.NotificationStatusFailed
		n.Error = err.Error()
		s.record(ctx, n)
		return n
	}

	messages := []line.Message{line.FlexMessage(fmt.Sprintf("ใบแจ้งหนี้ %s", bill.BillNumber), contents)}
	if qrURL != "" {
		messages = append(messages, line.ImageMessage(qrURL, ""))
	}
	n.Payload = toJSON(messages)

	if err := s.line.Push(ctx, tenant.LineID, messages...); err != nil {
		n.Status = models.NotificationStatusFailed
		n.Error = err.Error()
		logger.Warn("push bill to line failed", logger.BillNumber(bill.BillNumber), logger.TenantID(tenant.ID),
			logger.String("line_id", crypto.MaskLineID(tenant.LineID)), logger.Err(err))
	} else {
		n.Status = models.NotificationStatusSent
	}
	s.record(ctx, n)
	return n
}

func (s *NotifyService) smsBill(ctx context.Context, bill *models.Bill, tenant *models.Tenant, link string) *models.BillNotification {
	params := map[string]string{
		"bill_number": bill.BillNumber,
		"period":      fmt.Sprintf("%02d/%d", bill.Month, bill.Year),
		"amount":      money.Format(bill.TotalVat),
		"link":        link,
	}
	n := &models.BillNotification{
		BillID:    bill.ID,
		TenantID:  tenant.ID,
		Channel:   models.NotificationChannelSMS,
		Recipient: tenant.Phone,
		Payload:   toJSON(params),
	}
	if err := s.sms.Send(ctx, tenant.Phone, s.cfg.SMSTemplateCode, params); err != nil {
		n.Status = models.NotificationStatusFailed
		n.Error = err.Error()
		logger.Warn("send bill sms failed", logger.BillNumber(bill.BillNumber), logger.TenantID(tenant.ID),
			logger.String("phone", crypto.MaskPhone(tenant.Phone)), logger.Err(err))
	} else {
		n.Status = models.NotificationStatusSent
	}
	s.record(ctx, n)
	return n
}

// record 写入通知记录，写入失败只记日志
func (s *NotifyService) record(ctx context.Context, n *models.BillNotification) {
	s.metrics.RecordNotification(n.Channel, n.Status)
	if err := s.billRepo.CreateNotification(ctx, n); err != nil {
		logger.Error("save bill notification failed",
			logger.Int64("bill_id", n.BillID),
			logger.String("channel", n.Channel),
			logger.Err(err),
		)
	}
}

func billVars(bill *models.Bill, shopName, link string) map[string]string {
	return map[string]string{
		"shop_name":      shopName,
		"period":         fmt.Sprintf("%02d/%d", bill.Month, bill.Year),
		"bill_number":    bill.BillNumber,
		"ref_number":     bill.RefNumber,
		"rent":           money.Format(bill.Rent),
		"water_usage":    bill.WaterUsage.String(),
		"water":          money.Format(bill.Water),
		"electric_usage": bill.ElectricUsage.String(),
		"electric":       money.Format(bill.Electric),
		"discount":       money.Format(bill.Discount),
		"vat_percent":    bill.VatPercent.String(),
		"vat":            money.Format(bill.Vat),
		"total":          money.Format(bill.TotalVat),
		"payment_link":   link,
	}
}

func toJSON(v interface{}) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}
