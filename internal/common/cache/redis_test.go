// Package cache Redis 缓存模块单元测试
package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogomarket/rental-backend/internal/common/config"
)

func setupStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client), s
}

func TestInit(t *testing.T) {
	s := miniredis.RunT(t)

	client, err := Init(&config.RedisConfig{
		Host:        s.Host(),
		Port:        s.Server().Addr().Port,
		PoolSize:    5,
		DialTimeout: 1,
		ReadTimeout: 1,
	})
	require.NoError(t, err)
	assert.NoError(t, client.Ping(context.Background()).Err())
	assert.NoError(t, Close())
	rdb = nil
}

func TestInit_Unreachable(t *testing.T) {
	_, err := Init(&config.RedisConfig{Host: "127.0.0.1", Port: 1, DialTimeout: 1})
	assert.Error(t, err)
	rdb = nil
}

func TestStore_JSON(t *testing.T) {
	store, s := setupStore(t)
	ctx := context.Background()

	type payload struct {
		BillNumber string `json:"bill_number"`
	}

	var got payload
	hit, err := store.GetJSON(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, store.SetJSON(ctx, "k", payload{BillNumber: "INV202501-x"}, time.Minute))
	hit, err = store.GetJSON(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "INV202501-x", got.BillNumber)

	s.FastForward(2 * time.Minute)
	hit, err = store.GetJSON(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, store.SetJSON(ctx, "k2", payload{}, time.Minute))
	require.NoError(t, store.Delete(ctx, "k2"))
	assert.False(t, s.Exists("k2"))
}

func TestStore_Hit(t *testing.T) {
	store, s := setupStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		n, ttl, err := store.Hit(ctx, "rl", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(i), n)
		assert.Greater(t, ttl, time.Duration(0))
	}

	s.FastForward(time.Minute + time.Second)
	n, _, err := store.Hit(ctx, "rl", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStore_TryLock(t *testing.T) {
	store, s := setupStore(t)
	ctx := context.Background()

	unlock, err := store.TryLock(ctx, "lock:billing", time.Minute)
	require.NoError(t, err)

	_, err = store.TryLock(ctx, "lock:billing", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	unlock()
	assert.False(t, s.Exists("lock:billing"))

	_, err = store.TryLock(ctx, "lock:billing", time.Minute)
	assert.NoError(t, err)
}

func TestStore_Disabled(t *testing.T) {
	var store *Store
	ctx := context.Background()

	hit, err := store.GetJSON(ctx, "k", &struct{}{})
	assert.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, store.SetJSON(ctx, "k", 1, time.Second))
	n, _, err := store.Hit(ctx, "k", time.Second)
	assert.NoError(t, err)
	assert.Zero(t, n)
	unlock, err := store.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	unlock()
	assert.False(t, NewStore(nil).Enabled())
}

func TestBuildKey(t *testing.T) {
	assert.Equal(t, "bill:public:INV1:123", BuildKey(KeyPrefixBillPublic, "INV1", "123"))
}
