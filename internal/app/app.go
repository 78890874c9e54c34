// Package app 按配置组装仓储、外部客户端和业务服务，供 HTTP 服务和命令行工具共用
package app

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/common/cache"
	"github.com/gogomarket/rental-backend/internal/common/config"
	"github.com/gogomarket/rental-backend/internal/common/jwt"
	"github.com/gogomarket/rental-backend/internal/common/logger"
	"github.com/gogomarket/rental-backend/internal/common/metrics"
	"github.com/gogomarket/rental-backend/internal/common/qrcode"
	"github.com/gogomarket/rental-backend/internal/repository"
	authService "github.com/gogomarket/rental-backend/internal/service/auth"
	billingService "github.com/gogomarket/rental-backend/internal/service/billing"
	contractService "github.com/gogomarket/rental-backend/internal/service/contract"
	lockService "github.com/gogomarket/rental-backend/internal/service/lock"
	meterService "github.com/gogomarket/rental-backend/internal/service/meter"
	notifyService "github.com/gogomarket/rental-backend/internal/service/notify"
	tenantService "github.com/gogomarket/rental-backend/internal/service/tenant"
	"github.com/gogomarket/rental-backend/pkg/line"
	"github.com/gogomarket/rental-backend/pkg/oss"
	"github.com/gogomarket/rental-backend/pkg/sms"
)

// Repositories 仓储集合
type Repositories struct {
	Admin        *repository.AdminRepository
	Tenant       *repository.TenantRepository
	Zone         *repository.ZoneRepository
	Lock         *repository.LockRepository
	Reserve      *repository.LockReserveRepository
	Contract     *repository.ContractRepository
	Binding      *repository.BindingRepository
	Meter        *repository.MeterRepository
	Usage        *repository.MeterUsageRepository
	Bill         *repository.BillRepository
	OperationLog *repository.OperationLogRepository
}

// NewRepositories 创建全部仓储
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Admin:        repository.NewAdminRepository(db),
		Tenant:       repository.NewTenantRepository(db),
		Zone:         repository.NewZoneRepository(db),
		Lock:         repository.NewLockRepository(db),
		Reserve:      repository.NewLockReserveRepository(db),
		Contract:     repository.NewContractRepository(db),
		Binding:      repository.NewBindingRepository(db),
		Meter:        repository.NewMeterRepository(db),
		Usage:        repository.NewMeterUsageRepository(db),
		Bill:         repository.NewBillRepository(db),
		OperationLog: repository.NewOperationLogRepository(db),
	}
}

// Services 业务服务集合
type Services struct {
	Auth     *authService.AuthService
	Audit    *authService.AuditService
	Tenant   *tenantService.TenantService
	Zone     *lockService.ZoneService
	Lock     *lockService.LockService
	Reserve  *lockService.ReserveService
	Contract *contractService.ContractService
	Meter    *meterService.MeterService
	Usage    *meterService.UsageService
	Ingest   *meterService.IngestService
	Notify   *notifyService.NotifyService
	Billing  *billingService.BillingService
}

// App 组装完成的应用依赖
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Store    *cache.Store
	Metrics  *metrics.Metrics
	JWT      *jwt.Manager
	Uploader oss.Uploader
	Repos    *Repositories
	Services *Services
	Location *time.Location
}

// New 按配置组装应用，redisClient 和 m 可以为 nil
func New(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, m *metrics.Metrics) (*App, error) {
	uploader, err := NewUploader(&cfg.Storage)
	if err != nil {
		return nil, err
	}
	smsSender, err := NewSMSSender(&cfg.SMS)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		DB:       db,
		Store:    cache.NewStore(redisClient),
		Metrics:  m,
		Uploader: uploader,
		Repos:    NewRepositories(db),
		Location: cfg.Server.Location(),
		JWT: jwt.NewManager(&jwt.Config{
			Secret:            cfg.JWT.Secret,
			AccessExpireTime:  cfg.JWT.AccessTokenDuration(),
			RefreshExpireTime: cfg.JWT.RefreshTokenDuration(),
			Issuer:            cfg.JWT.Issuer,
		}),
	}
	a.Services = a.newServices(NewLinePusher(&cfg.Line), smsSender)
	return a, nil
}

func (a *App) newServices(pusher line.Pusher, sender sms.Sender) *Services {
	cfg, db, repos := a.Config, a.DB, a.Repos

	notifySvc := notifyService.NewNotifyService(
		repos.Bill,
		pusher,
		sender,
		a.Uploader,
		qrcode.NewGenerator(qrcode.WithSize(cfg.Billing.QRCodeSize)),
		a.Metrics,
		notifyService.Config{
			ShopName:        cfg.Line.ShopName,
			BannerURL:       cfg.Line.BannerURL,
			PublicBaseURL:   cfg.Billing.PublicBaseURL,
			SMSTemplateCode: cfg.SMS.TemplateID,
		},
	)
	usageSvc := meterService.NewUsageService(db, repos.Meter, repos.Usage, a.Uploader, a.Metrics, a.Location)

	return &Services{
		Auth:    authService.NewAuthService(repos.Admin, a.JWT),
		Audit:   authService.NewAuditService(repos.OperationLog, a.Location),
		Tenant:  tenantService.NewTenantService(db, repos.Tenant, notifySvc),
		Zone:    lockService.NewZoneService(repos.Zone),
		Lock:    lockService.NewLockService(repos.Lock, repos.Zone, repos.Binding, repos.Meter, repos.Reserve),
		Reserve: lockService.NewReserveService(repos.Reserve, repos.Lock, repos.Binding, a.Uploader),
		Contract: contractService.NewContractService(
			db, repos.Contract, repos.Binding, repos.Tenant, repos.Lock, a.Uploader, a.Metrics, a.Location,
		),
		Meter:  meterService.NewMeterService(repos.Meter),
		Usage:  usageSvc,
		Ingest: meterService.NewIngestService(usageSvc, a.Metrics),
		Notify: notifySvc,
		Billing: billingService.NewBillingService(
			db, repos.Bill, repos.Contract, repos.Usage, notifySvc, a.Uploader, a.Store, a.Metrics,
			billingService.Config{
				BillNumberPrefix:  cfg.Billing.BillNumberPrefix,
				DefaultVatPercent: decimal.NewFromFloat(cfg.Billing.DefaultVatPercent),
			},
			a.Location,
		),
	}
}

// NewUploader 按 provider 创建文件存储
func NewUploader(cfg *config.StorageConfig) (oss.Uploader, error) {
	switch cfg.Provider {
	case "", "local":
		return oss.NewLocalUploader(cfg.LocalDir, cfg.PublicPath)
	case "aliyun":
		return oss.NewAliyunUploader(&oss.AliyunConfig{
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			AccessKeySecret: cfg.AccessKeySecret,
			BucketName:      cfg.Bucket,
			Domain:          cfg.CustomDomain,
			BasePath:        cfg.BasePath,
			PublicRead:      cfg.PublicRead,
		})
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

// NewLinePusher 未启用时返回 nil，通知服务会跳过 LINE 渠道
func NewLinePusher(cfg *config.LineConfig) line.Pusher {
	if !cfg.Enabled {
		return nil
	}
	return line.NewClient(line.Config{
		BaseURL:            cfg.BaseURL,
		ChannelAccessToken: cfg.ChannelAccessToken,
		Timeout:            time.Duration(cfg.Timeout) * time.Second,
		RetryCount:         cfg.RetryCount,
	})
}

// NewSMSSender 未启用时返回 nil
func NewSMSSender(cfg *config.SMSConfig) (sms.Sender, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Provider {
	case "mock":
		logger.Warn("sms provider is mock, messages are not delivered")
		return sms.NewMockSender(), nil
	case "", "aliyun":
		sender, err := sms.NewAliyunSender(&sms.Config{
			AccessKeyID:     cfg.AccessKeyID,
			AccessKeySecret: cfg.AccessKeySecret,
			SignName:        cfg.SignName,
		})
		if err != nil {
			return nil, err
		}
		return sender, nil
	default:
		return nil, fmt.Errorf("unknown sms provider %q", cfg.Provider)
	}
}
