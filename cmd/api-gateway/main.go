// Package main 后台 API 服务入口
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gogomarket/rental-backend/internal/app"
	"github.com/gogomarket/rental-backend/internal/common/cache"
	"github.com/gogomarket/rental-backend/internal/common/config"
	"github.com/gogomarket/rental-backend/internal/common/database"
	"github.com/gogomarket/rental-backend/internal/common/handler"
	"github.com/gogomarket/rental-backend/internal/common/logger"
	"github.com/gogomarket/rental-backend/internal/common/metrics"
	"github.com/gogomarket/rental-backend/internal/common/tracing"
	"github.com/gogomarket/rental-backend/internal/scheduler"
	"github.com/gogomarket/rental-backend/pkg/mqtt"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "config file path")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	log, err := logger.Init(&cfg.Logger)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	log.Info("Starting rental backend",
		zap.String("version", version),
		zap.String("env", cfg.Server.Mode),
	)

	if err := handler.RegisterValidators(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}
	if cfg.Server.MaxUploadSize > 0 {
		handler.MaxUploadSize = cfg.Server.MaxUploadSize << 20
	}

	// 链路追踪
	tp, err := tracing.Init(&tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Server.Mode,
		Endpoint:       cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		log.Fatal("Failed to init tracing", zap.Error(err))
	}

	// 初始化数据库连接
	db, err := database.Init(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	// 初始化 Redis 连接，未启用时缓存、限流和出账锁全部降级为空操作
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.Init(&cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer cache.Close()
		log.Info("Redis connected successfully")
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.Init(cfg.Metrics.Namespace)
	}

	a, err := app.New(cfg, db, redisClient, m)
	if err != nil {
		log.Fatal("Failed to build application", zap.Error(err))
	}

	// 表读数 MQTT 接入
	var mqttStatus connectionChecker
	var readings *mqtt.ReadingHandler
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient = mqtt.NewClient(&mqtt.Config{
			Broker:         cfg.MQTT.Broker,
			ClientID:       cfg.MQTT.ClientIDPrefix + uuid.NewString()[:8],
			Username:       cfg.MQTT.Username,
			Password:       cfg.MQTT.Password,
			CleanSession:   true,
			QoS:            cfg.MQTT.QoS,
			KeepAlive:      time.Duration(cfg.MQTT.KeepAlive) * time.Second,
			ConnectTimeout: time.Duration(cfg.MQTT.ConnectTimeout) * time.Second,
			AutoReconnect:  cfg.MQTT.AutoReconnect,
		})
		connectCtx, cancelConnect := context.WithTimeout(context.Background(), 30*time.Second)
		err := mqttClient.Connect(connectCtx)
		cancelConnect()
		if err != nil {
			log.Fatal("Failed to connect to MQTT broker", zap.Error(err))
		}
		readings = mqtt.NewReadingHandler(mqttClient, a.Services.Ingest, cfg.MQTT.TopicPrefix)
		if err := readings.Start(); err != nil {
			log.Fatal("Failed to subscribe meter readings", zap.Error(err))
		}
		mqttStatus = mqttClient
		log.Info("MQTT meter readings subscribed", zap.String("topic", readings.Topic()))
	}

	// 定时任务
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.NewScheduler(a.Location, m)
		tasks := scheduler.NewTaskHandler(a.Services.Contract, a.Repos.OperationLog, m)
		if err := tasks.Register(sched, cfg.Scheduler.ExpireBindingsAt); err != nil {
			log.Fatal("Failed to register scheduled tasks", zap.Error(err))
		}
		sched.Start()
	}

	// 设置 Gin 模式
	switch cfg.Server.Mode {
	case "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	// 创建 Gin 引擎
	engine := gin.New()
	engine.MaxMultipartMemory = handler.MaxUploadSize

	// 设置路由
	setupRouter(engine, a, log, redisClient, mqttStatus)

	// 创建 HTTP 服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// 在 goroutine 中启动服务器
	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// 创建超时上下文用于优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if sched != nil {
		sched.Stop()
	}
	if readings != nil {
		if err := readings.Stop(); err != nil {
			log.Warn("Failed to unsubscribe meter readings", zap.Error(err))
		}
		mqttClient.Disconnect()
	}
	if err := tp.Shutdown(ctx); err != nil {
		log.Warn("Failed to flush traces", zap.Error(err))
	}

	// 关闭数据库连接
	if err := database.Close(); err != nil {
		log.Error("Failed to close database", zap.Error(err))
	}

	log.Info("Server exited")
}
