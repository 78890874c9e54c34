// Package cache 提供 Redis 缓存功能
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gogomarket/rental-backend/internal/common/config"
	"github.com/gogomarket/rental-backend/internal/common/crypto"
)

var rdb *redis.Client

// Init 初始化 Redis 连接
func Init(cfg *config.RedisConfig) (*redis.Client, error) {
	rdb = redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  time.Duration(cfg.DialTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}

	return rdb, nil
}

// Close 关闭 Redis 连接
func Close() error {
	if rdb != nil {
		return rdb.Close()
	}
	return nil
}

// 缓存键前缀
const (
	KeyPrefixBillPublic = "bill:public:"
	KeyPrefixRateLimit  = "ratelimit:"
	KeyPrefixLock       = "lock:"
)

// ErrLockHeld 锁已被其他进程持有
var ErrLockHeld = errors.New("lock is held by another process")

// BuildKey 构建缓存键
func BuildKey(prefix string, parts ...string) string {
	return prefix + strings.Join(parts, ":")
}

// Store Redis 封装
// client 为 nil 时所有读操作视为未命中，写操作直接忽略
type Store struct {
	client *redis.Client
}

// NewStore 创建缓存存储
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Enabled 是否连接了 Redis
func (s *Store) Enabled() bool {
	return s != nil && s.client != nil
}

// GetJSON 读取 JSON 缓存，返回是否命中
func (s *Store) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON 写入 JSON 缓存
func (s *Store) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

// Delete 删除缓存
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if !s.Enabled() || len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// Hit 固定窗口计数，首次计数时设置窗口过期时间
func (s *Store) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if !s.Enabled() {
		return 0, 0, nil
	}
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if n == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return n, 0, err
		}
		return n, window, nil
	}
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return n, 0, err
	}
	return n, ttl, nil
}

// TryLock 获取分布式锁，返回的 unlock 只释放自己持有的锁
func (s *Store) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if !s.Enabled() {
		return func() {}, nil
	}
	token, err := crypto.RandomToken(16)
	if err != nil {
		return nil, err
	}
	ok, err := s.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return func() {
		_ = releaseScript.Run(context.Background(), s.client, []string{key}, token).Err()
	}, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
