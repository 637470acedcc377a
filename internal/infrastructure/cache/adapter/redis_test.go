package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Grozay/GreenKitchenWeb-sub002/internal/infrastructure/cache/port"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_GetMiss(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cache := NewRedisCache(rdb)

	mock.ExpectGet("support:status:42").RedisNil()
	_, err := cache.Get(context.Background(), "support:status:42")
	assert.ErrorIs(t, err, port.ErrMiss)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_SetGetDel(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cache := NewRedisCache(rdb)
	ctx := context.Background()

	mock.ExpectSet("k", "v", 30*time.Second).SetVal("OK")
	mock.ExpectGet("k").SetVal("v")
	mock.ExpectDel("k").SetVal(1)

	require.NoError(t, cache.Set(ctx, "k", "v", 30*time.Second))
	v, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	n, err := cache.Del(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_TransportError(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cache := NewRedisCache(rdb)

	mock.ExpectGet("k").SetErr(errors.New("connection refused"))
	_, err := cache.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, port.ErrMiss)
}

func TestMemoryCache_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Second))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	now = now.Add(2 * time.Second)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, port.ErrMiss)

	require.NoError(t, c.Set(ctx, "p", "forever", 0))
	now = now.Add(time.Hour)
	_, err = c.Get(ctx, "p")
	assert.NoError(t, err)
}
