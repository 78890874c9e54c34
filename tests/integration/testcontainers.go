//go:build integration

// Package integration 在真实 Postgres 和 Redis 容器上跑账单流程
package integration

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/common/cache"
	"github.com/gogomarket/rental-backend/internal/common/config"
	"github.com/gogomarket/rental-backend/internal/common/database"
	"github.com/gogomarket/rental-backend/internal/models"
)

const (
	postgresImage = "postgres:15-alpine"
	redisImage    = "redis:7-alpine"
)

// environment 集成测试依赖的容器，连接走与线上相同的 Init 路径
type environment struct {
	containers []testcontainers.Container
	DB         *gorm.DB
	Redis      *redis.Client
}

func startEnvironment(ctx context.Context) (*environment, error) {
	env := &environment{}
	dbCfg, err := env.startPostgres(ctx)
	if err != nil {
		return env, err
	}
	redisCfg, err := env.startRedis(ctx)
	if err != nil {
		return env, err
	}

	if env.DB, err = database.Init(dbCfg); err != nil {
		return env, err
	}
	if err := models.AutoMigrate(env.DB); err != nil {
		return env, fmt.Errorf("migrate: %w", err)
	}
	if env.Redis, err = cache.Init(redisCfg); err != nil {
		return env, err
	}
	return env, nil
}

func (e *environment) startPostgres(ctx context.Context) (*config.DatabaseConfig, error) {
	cfg := &config.DatabaseConfig{
		Driver:       "postgres",
		User:         "rental",
		Password:     "rental",
		Name:         "test_rental",
		SSLMode:      "disable",
		Timezone:     "UTC",
		MaxIdleConns: 2,
		MaxOpenConns: 10,
	}
	c, err := tcPostgres.Run(ctx, postgresImage,
		tcPostgres.WithDatabase(cfg.Name),
		tcPostgres.WithUsername(cfg.User),
		tcPostgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if c != nil {
		e.containers = append(e.containers, c)
	}
	if err != nil {
		return nil, fmt.Errorf("start postgres: %w", err)
	}
	if cfg.Host, cfg.Port, err = endpoint(ctx, c, "5432/tcp"); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (e *environment) startRedis(ctx context.Context) (*config.RedisConfig, error) {
	c, err := tcRedis.Run(ctx, redisImage,
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").WithStartupTimeout(30*time.Second),
		),
	)
	if c != nil {
		e.containers = append(e.containers, c)
	}
	if err != nil {
		return nil, fmt.Errorf("start redis: %w", err)
	}
	cfg := &config.RedisConfig{Enabled: true, PoolSize: 10}
	if cfg.Host, cfg.Port, err = endpoint(ctx, c, "6379/tcp"); err != nil {
		return nil, err
	}
	return cfg, nil
}

func endpoint(ctx context.Context, c testcontainers.Container, port nat.Port) (string, int, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("container host: %w", err)
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		return "", 0, fmt.Errorf("container port %s: %w", port, err)
	}
	p, err := strconv.Atoi(mapped.Port())
	if err != nil {
		return "", 0, err
	}
	return host, p, nil
}

// Close 关闭连接并销毁容器
func (e *environment) Close(ctx context.Context) error {
	var errs []error
	if e.Redis != nil {
		errs = append(errs, e.Redis.Close())
	}
	if e.DB != nil {
		if sqlDB, err := e.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	for _, c := range e.containers {
		errs = append(errs, c.Terminate(ctx))
	}
	return stderrors.Join(errs...)
}
