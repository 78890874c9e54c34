package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/common/database"
)

// HealthResponse /health 与 /ready 的响应
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Timestamp int64             `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: version, Timestamp: time.Now().Unix()})
}

func pingHandler(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

// connectionChecker MQTT 客户端的连接状态
type connectionChecker interface {
	IsConnected() bool
}

// dependencyCheck 返回状态描述；fatal 为 true 时依赖不可用会让 /ready 返回 503
type dependencyCheck struct {
	name  string
	fatal bool
	probe func(ctx context.Context) (string, bool)
}

func errStatus(err error) (string, bool) {
	if err != nil {
		return "error: " + err.Error(), false
	}
	return "ok", true
}

func dependencyChecks(db *gorm.DB, redisClient *redis.Client, mqttClient connectionChecker) []dependencyCheck {
	checks := []dependencyCheck{{
		name:  "database",
		fatal: true,
		probe: func(ctx context.Context) (string, bool) { return errStatus(database.Ping(ctx, db)) },
	}}

	redisCheck := dependencyCheck{name: "redis", fatal: true}
	if redisClient == nil {
		redisCheck.probe = func(context.Context) (string, bool) { return "disabled", true }
	} else {
		redisCheck.probe = func(ctx context.Context) (string, bool) { return errStatus(redisClient.Ping(ctx).Err()) }
	}

	// MQTT 断线时客户端会自动重连，读数会延后入库，不影响后台接口
	mqttCheck := dependencyCheck{name: "mqtt", probe: func(context.Context) (string, bool) {
		switch {
		case mqttClient == nil:
			return "disabled", true
		case mqttClient.IsConnected():
			return "ok", true
		default:
			return "disconnected", false
		}
	}}
	return append(checks, redisCheck, mqttCheck)
}

// readyHandler 并发检查依赖，Redis 和 MQTT 未启用时记为 disabled
func readyHandler(db *gorm.DB, redisClient *redis.Client, mqttClient connectionChecker) gin.HandlerFunc {
	checks := dependencyChecks(db, redisClient, mqttClient)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		var (
			mu      sync.Mutex
			results = make(map[string]string, len(checks))
			ready   = true
			g       errgroup.Group
		)
		for _, chk := range checks {
			g.Go(func() error {
				msg, ok := chk.probe(ctx)
				mu.Lock()
				defer mu.Unlock()
				results[chk.name] = msg
				if !ok && chk.fatal {
					ready = false
				}
				return nil
			})
		}
		_ = g.Wait()

		resp := HealthResponse{Status: "ready", Version: version, Timestamp: time.Now().Unix(), Checks: results}
		status := http.StatusOK
		if !ready {
			resp.Status = "not ready"
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, resp)
	}
}
