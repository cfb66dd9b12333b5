package calls

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"virtual-mentor/internal/telephony"
	"virtual-mentor/pkg/utils"
)

// Limiter caps how many calls a user may have in flight. Each call holds its
// own slot, keyed by session id, so a late release for one call never frees
// another call's slot. Guest calls share no identity and are never capped.
//
// A slot acquired at dial time lasts the pending TTL; Touch extends it to the
// live TTL once the callee answers.
type Limiter interface {
	Acquire(ctx context.Context, userID, sessionID string) (bool, error)
	Touch(ctx context.Context, userID, sessionID string) error
	Release(ctx context.Context, userID, sessionID string) error
}

const (
	inflightKeyPrefix = "vm:calls:inflight:"
	callsPerUser      = 1
)

// SlotTTLs bound how long a slot survives without a terminal webhook.
type SlotTTLs struct {
	// Pending covers ringing up to the room's empty timeout.
	Pending time.Duration
	// Live covers an answered call up to its maximum duration.
	Live time.Duration
}

func (t SlotTTLs) withDefaults() SlotTTLs {
	if t.Pending <= 0 {
		t.Pending = 15 * time.Minute
	}
	if t.Live < t.Pending {
		t.Live = 4 * time.Hour
	}
	return t
}

type RedisLimiter struct {
	rdb   *redis.Client
	ttls  SlotTTLs
	clock func() time.Time
}

func NewRedisLimiter(rdb *redis.Client, ttls SlotTTLs) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, ttls: ttls.withDefaults(), clock: time.Now}
}

func (l *RedisLimiter) Acquire(ctx context.Context, userID, sessionID string) (bool, error) {
	if exempt(userID) {
		return true, nil
	}
	return utils.AcquireSlot(ctx, l.rdb, inflightKeyPrefix+userID, sessionID, callsPerUser, l.clock(), l.ttls.Pending)
}

func (l *RedisLimiter) Touch(ctx context.Context, userID, sessionID string) error {
	if exempt(userID) {
		return nil
	}
	_, err := utils.TouchSlot(ctx, l.rdb, inflightKeyPrefix+userID, sessionID, l.clock(), l.ttls.Live)
	return err
}

func (l *RedisLimiter) Release(ctx context.Context, userID, sessionID string) error {
	if exempt(userID) {
		return nil
	}
	return utils.ReleaseSlot(ctx, l.rdb, inflightKeyPrefix+userID, sessionID)
}

// MemoryLimiter is the single-process equivalent of RedisLimiter.
type MemoryLimiter struct {
	mu    sync.Mutex
	slots map[string]map[string]time.Time // user -> session -> expiry
	ttls  SlotTTLs
	clock func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		slots: map[string]map[string]time.Time{},
		ttls:  SlotTTLs{}.withDefaults(),
		clock: time.Now,
	}
}

// live drops expired slots for userID and returns what remains. Callers hold mu.
func (l *MemoryLimiter) live(userID string, now time.Time) map[string]time.Time {
	held := l.slots[userID]
	for id, exp := range held {
		if !exp.After(now) {
			delete(held, id)
		}
	}
	if len(held) == 0 {
		delete(l.slots, userID)
		return nil
	}
	return held
}

func (l *MemoryLimiter) Acquire(ctx context.Context, userID, sessionID string) (bool, error) {
	if exempt(userID) {
		return true, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	held := l.live(userID, now)
	if _, mine := held[sessionID]; !mine && len(held) >= callsPerUser {
		return false, nil
	}
	if held == nil {
		held = map[string]time.Time{}
		l.slots[userID] = held
	}
	held[sessionID] = now.Add(l.ttls.Pending)
	return true, nil
}

func (l *MemoryLimiter) Touch(ctx context.Context, userID, sessionID string) error {
	if exempt(userID) {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	if held := l.live(userID, now); held != nil {
		if _, ok := held[sessionID]; ok {
			held[sessionID] = now.Add(l.ttls.Live)
		}
	}
	return nil
}

func (l *MemoryLimiter) Release(ctx context.Context, userID, sessionID string) error {
	if exempt(userID) {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if held := l.slots[userID]; held != nil {
		delete(held, sessionID)
		if len(held) == 0 {
			delete(l.slots, userID)
		}
	}
	return nil
}

// InFlight counts userID's unexpired slots.
func (l *MemoryLimiter) InFlight(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.live(userID, l.clock()))
}

func exempt(userID string) bool {
	return userID == "" || userID == telephony.GuestUserID
}
