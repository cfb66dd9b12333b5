package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the client shared by the call cap and the live
// view feed. Pub/sub connections are taken from the same pool.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	PingTimeout  time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 3 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 2 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 2 * time.Second
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 20
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = 2 * time.Second
	}
	return c
}

// OpenRedis connects and verifies the server with PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	cfg = cfg.withDefaults()

	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		PoolSize:        cfg.PoolSize,
		ConnMaxIdleTime: 5 * time.Minute,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// Slots are members of a sorted set scored by their expiry in unix ms, so
// each holder expires on its own and releasing one never touches another.
// The key itself expires with its longest-lived member.

// KEYS[1] slot set, ARGV[1] member, ARGV[2] limit, ARGV[3] now ms, ARGV[4] expiry ms.
var slotAcquireScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[3])
if not redis.call('ZSCORE', KEYS[1], ARGV[1]) then
  if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[2]) then
    return 0
  end
end
redis.call('ZADD', KEYS[1], ARGV[4], ARGV[1])
local last = redis.call('ZRANGE', KEYS[1], -1, -1, 'WITHSCORES')
redis.call('PEXPIREAT', KEYS[1], last[2])
return 1
`)

// KEYS[1] slot set, ARGV[1] member, ARGV[2] now ms, ARGV[3] expiry ms.
var slotTouchScript = redis.NewScript(`
local score = redis.call('ZSCORE', KEYS[1], ARGV[1])
if not score or tonumber(score) <= tonumber(ARGV[2]) then
  return 0
end
redis.call('ZADD', KEYS[1], 'XX', ARGV[3], ARGV[1])
local last = redis.call('ZRANGE', KEYS[1], -1, -1, 'WITHSCORES')
redis.call('PEXPIREAT', KEYS[1], last[2])
return 1
`)

// KEYS[1] slot set, ARGV[1] member.
var slotReleaseScript = redis.NewScript(`
local n = redis.call('ZREM', KEYS[1], ARGV[1])
if redis.call('ZCARD', KEYS[1]) == 0 then
  redis.call('DEL', KEYS[1])
end
return n
`)

func validateSlotArgs(rdb *redis.Client, key, member string) error {
	if rdb == nil {
		return errors.New("redis client is nil")
	}
	if key == "" {
		return errors.New("key is required")
	}
	if member == "" {
		return errors.New("member is required")
	}
	return nil
}

// AcquireSlot takes one of limit slots under key for member, valid until
// now+ttl. Re-acquiring a slot member already holds succeeds and extends it.
// It reports false when all slots are held by other members.
func AcquireSlot(ctx context.Context, rdb *redis.Client, key, member string, limit int, now time.Time, ttl time.Duration) (bool, error) {
	if err := validateSlotArgs(rdb, key, member); err != nil {
		return false, err
	}
	if limit <= 0 {
		return false, errors.New("limit must be > 0")
	}
	if ttl <= 0 {
		return false, errors.New("ttl must be > 0")
	}
	n, err := slotAcquireScript.Run(ctx, rdb, []string{key}, member, limit, now.UnixMilli(), now.Add(ttl).UnixMilli()).Int()
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", key, err)
	}
	return n == 1, nil
}

// TouchSlot extends member's slot to now+ttl. It reports false when member
// holds no live slot.
func TouchSlot(ctx context.Context, rdb *redis.Client, key, member string, now time.Time, ttl time.Duration) (bool, error) {
	if err := validateSlotArgs(rdb, key, member); err != nil {
		return false, err
	}
	if ttl <= 0 {
		return false, errors.New("ttl must be > 0")
	}
	n, err := slotTouchScript.Run(ctx, rdb, []string{key}, member, now.UnixMilli(), now.Add(ttl).UnixMilli()).Int()
	if err != nil {
		return false, fmt.Errorf("touch %s: %w", key, err)
	}
	return n == 1, nil
}

// ReleaseSlot frees member's slot. Releasing an absent or expired slot is a
// no-op, so the projector and the reconciler may both release the same call.
func ReleaseSlot(ctx context.Context, rdb *redis.Client, key, member string) error {
	if err := validateSlotArgs(rdb, key, member); err != nil {
		return err
	}
	if err := slotReleaseScript.Run(ctx, rdb, []string{key}, member).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}
