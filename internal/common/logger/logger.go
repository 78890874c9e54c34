// Package logger 全局 zap 日志器和常用字段
package logger

import (
	"fmt"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/gogomarket/rental-backend/internal/common/config"
)

var global atomic.Pointer[zap.Logger]

// Init 按配置构建日志器并设为全局日志器
// output 取值 stdout、file、both
func Init(cfg *config.LoggerConfig) (*zap.Logger, error) {
	sinks, err := writers(cfg)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	encCfg.EncodeDuration = zapcore.MillisDurationEncoder

	var enc zapcore.Encoder
	if cfg.Format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Caller {
		opts = append(opts, zap.AddCaller())
	}
	l := zap.New(zapcore.NewCore(enc, zapcore.NewMultiWriteSyncer(sinks...), parseLevel(cfg.Level)), opts...)
	global.Store(l)
	return l, nil
}

func writers(cfg *config.LoggerConfig) ([]zapcore.WriteSyncer, error) {
	var ws []zapcore.WriteSyncer
	switch cfg.Output {
	case "", "stdout":
		ws = append(ws, zapcore.AddSync(os.Stdout))
	case "file", "both":
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("logger: output %q requires file_path", cfg.Output)
		}
		if cfg.Output == "both" {
			ws = append(ws, zapcore.AddSync(os.Stdout))
		}
		ws = append(ws, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}))
	default:
		return nil, fmt.Errorf("logger: unknown output %q", cfg.Output)
	}
	return ws, nil
}

// parseLevel 无法识别时按 info 处理
func parseLevel(level string) zapcore.Level {
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// GetLogger 未调用 Init 时返回开发模式日志器
func GetLogger() *zap.Logger {
	if l := global.Load(); l != nil {
		return l
	}
	l, _ := zap.NewDevelopment()
	global.CompareAndSwap(nil, l)
	return global.Load()
}

// SetLogger 测试中注入 zaptest/observer
func SetLogger(l *zap.Logger) {
	global.Store(l)
}

func Sync() error {
	if l := global.Load(); l != nil {
		return l.Sync()
	}
	return nil
}

func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// Named 子模块日志器，如 scheduler、mqtt
func Named(name string) *zap.Logger {
	return GetLogger().Named(name)
}

// 常用字段构造函数
var (
	String   = zap.String
	Int      = zap.Int
	Int64    = zap.Int64
	Bool     = zap.Bool
	Err      = zap.Error
	Duration = zap.Duration
)

// Module 模块字段
func Module(name string) zap.Field {
	return zap.String("module", name)
}

// TenantID 租户ID字段
func TenantID(id int64) zap.Field {
	return zap.Int64("tenant_id", id)
}

// ContractID 合同ID字段
func ContractID(id int64) zap.Field {
	return zap.Int64("contract_id", id)
}

// LockID 锁位ID字段
func LockID(id int64) zap.Field {
	return zap.Int64("lock_id", id)
}

// BillNumber 账单号字段
func BillNumber(no string) zap.Field {
	return zap.String("bill_number", no)
}

// AssetTag 电表资产标签字段
func AssetTag(tag string) zap.Field {
	return zap.String("asset_tag", tag)
}
