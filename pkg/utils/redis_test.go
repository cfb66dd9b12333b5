package utils

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisConfig_Defaults(t *testing.T) {
	c := RedisConfig{Addr: "localhost:6379", PoolSize: 5}.withDefaults()
	require.Equal(t, 5, c.PoolSize)
	require.Equal(t, 3*time.Second, c.DialTimeout)
	require.Equal(t, 2*time.Second, c.PingTimeout)
	require.Equal(t, 2*time.Second, c.ReadTimeout)
}

func TestOpenRedis_RequiresAddr(t *testing.T) {
	_, err := OpenRedis(context.Background(), RedisConfig{})
	require.ErrorContains(t, err, "redis addr is required")
}

func TestSlots_ValidateArguments(t *testing.T) {
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()
	now := time.Now()

	_, err := AcquireSlot(ctx, nil, "k", "s1", 1, now, time.Minute)
	require.Error(t, err)
	_, err = AcquireSlot(ctx, rdb, "", "s1", 1, now, time.Minute)
	require.ErrorContains(t, err, "key is required")
	_, err = AcquireSlot(ctx, rdb, "k", "", 1, now, time.Minute)
	require.ErrorContains(t, err, "member is required")
	_, err = AcquireSlot(ctx, rdb, "k", "s1", 0, now, time.Minute)
	require.ErrorContains(t, err, "limit must be > 0")
	_, err = AcquireSlot(ctx, rdb, "k", "s1", 1, now, 0)
	require.ErrorContains(t, err, "ttl must be > 0")

	_, err = TouchSlot(ctx, rdb, "k", "s1", now, 0)
	require.ErrorContains(t, err, "ttl must be > 0")
	_, err = TouchSlot(ctx, rdb, "k", "", now, time.Minute)
	require.ErrorContains(t, err, "member is required")

	require.Error(t, ReleaseSlot(ctx, nil, "k", "s1"))
	require.ErrorContains(t, ReleaseSlot(ctx, rdb, "", "s1"), "key is required")
	require.ErrorContains(t, ReleaseSlot(ctx, rdb, "k", ""), "member is required")
}
