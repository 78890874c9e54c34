package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/gogomarket/rental-backend/internal/app"
	"github.com/gogomarket/rental-backend/internal/common/handler"
	authHandler "github.com/gogomarket/rental-backend/internal/handler/auth"
	billingHandler "github.com/gogomarket/rental-backend/internal/handler/billing"
	contractHandler "github.com/gogomarket/rental-backend/internal/handler/contract"
	lockHandler "github.com/gogomarket/rental-backend/internal/handler/lock"
	meterHandler "github.com/gogomarket/rental-backend/internal/handler/meter"
	tenantHandler "github.com/gogomarket/rental-backend/internal/handler/tenant"
	"github.com/gogomarket/rental-backend/internal/middleware"
)

// 单个请求可携带的文件数上限，用于计算请求体大小限制
const maxFilesPerRequest = 10

// setupRouter 设置路由
func setupRouter(
	r *gin.Engine,
	a *app.App,
	logger *zap.Logger,
	redisClient *redis.Client,
	mqttClient connectionChecker,
) {
	cfg := a.Config
	svc := a.Services

	// 初始化处理器
	authH := authHandler.NewHandler(svc.Auth, svc.Audit)
	tenantH := tenantHandler.NewHandler(svc.Tenant)
	zoneH := lockHandler.NewZoneHandler(svc.Zone)
	lockH := lockHandler.NewHandler(svc.Lock)
	reserveH := lockHandler.NewReserveHandler(svc.Reserve)
	contractH := contractHandler.NewHandler(svc.Contract)
	meterH := meterHandler.NewHandler(svc.Meter, svc.Usage)
	billingH := billingHandler.NewHandler(svc.Billing)

	// 全局中间件
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS(&cfg.CORS))
	r.Use(middleware.AccessLog(logger, cfg.Metrics.Path))
	if cfg.Tracing.Enabled {
		r.Use(middleware.Tracing(cfg.Tracing.ServiceName, "/health", "/ping", "/ready", cfg.Metrics.Path))
	}
	if a.Metrics != nil {
		r.Use(a.Metrics.Middleware())
		r.GET(cfg.Metrics.Path, a.Metrics.Handler())
	}

	// 健康检查（不需要认证）
	r.GET("/health", healthHandler)
	r.GET("/ping", pingHandler)
	r.GET("/ready", readyHandler(a.DB, redisClient, mqttClient))

	// Swagger 文档
	if cfg.Server.Mode != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// 本地存储的附件、抄表照片和二维码
	if cfg.Storage.Provider == "" || cfg.Storage.Provider == "local" {
		r.Static(cfg.Storage.PublicPath, cfg.Storage.LocalDir)
	}

	api := r.Group("/api")
	api.Use(middleware.RequestSizeLimiter(handler.MaxUploadSize * maxFilesPerRequest))
	{
		// 公开接口：登录、租户 LINE 绑定、账单查看和付款凭证上传
		public := api.Group("")
		public.Use(middleware.NoCache())
		if cfg.RateLimit.Enabled {
			public.Use(middleware.IPRateLimit(a.Store, "public", cfg.RateLimit.Limit, time.Duration(cfg.RateLimit.Window)*time.Second))
		}
		authH.RegisterRoutes(public)
		tenantH.RegisterPublicRoutes(public)
		billingH.RegisterPublicRoutes(public)

		// 后台接口
		admin := api.Group("")
		admin.Use(middleware.AdminAuth(a.JWT, cfg.Auth.Enabled))
		admin.Use(middleware.NewOperationLogger(a.Repos.OperationLog).Log())
		{
			authH.RegisterProtectedRoutes(admin)
			tenantH.RegisterRoutes(admin)
			zoneH.RegisterRoutes(admin)
			lockH.RegisterRoutes(admin)
			reserveH.RegisterRoutes(admin)
			contractH.RegisterRoutes(admin)
			meterH.RegisterRoutes(admin)
			billingH.RegisterRoutes(admin)
		}
	}
}
