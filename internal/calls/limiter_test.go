package calls

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newClockedLimiter(now *time.Time) *MemoryLimiter {
	l := NewMemoryLimiter()
	l.ttls = SlotTTLs{Pending: 15 * time.Minute, Live: 4 * time.Hour}
	l.clock = func() time.Time { return *now }
	return l
}

func TestMemoryLimiter_OneSlotPerUser(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "u1", "s1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Acquire(ctx, "u1", "s2")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = l.Acquire(ctx, "u2", "s3")
	require.NoError(t, err)
	require.True(t, ok, "users are capped independently")

	require.NoError(t, l.Release(ctx, "u1", "s1"))
	require.NoError(t, l.Release(ctx, "u1", "s1"))
	ok, _ = l.Acquire(ctx, "u1", "s2")
	require.True(t, ok)
}

func TestMemoryLimiter_GuestsAreExempt(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()
	for _, id := range []string{"s1", "s2", "s3"} {
		ok, err := l.Acquire(ctx, "guest", id)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Zero(t, l.InFlight("guest"))
}

func TestMemoryLimiter_LateReleaseOfExpiredCallKeepsNewSlot(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	l := newClockedLimiter(&now)
	ctx := context.Background()

	ok, _ := l.Acquire(ctx, "u1", "call-1")
	require.True(t, ok)

	// call-1 never reported back; its pending slot lapses.
	now = now.Add(16 * time.Minute)
	ok, _ = l.Acquire(ctx, "u1", "call-2")
	require.True(t, ok)

	// The terminal webhook for call-1 arrives late.
	now = now.Add(4 * time.Minute)
	require.NoError(t, l.Release(ctx, "u1", "call-1"))

	require.Equal(t, 1, l.InFlight("u1"))
	ok, _ = l.Acquire(ctx, "u1", "call-3")
	require.False(t, ok, "call-2 still holds the user's slot")
}

func TestMemoryLimiter_TouchKeepsAnsweredCallBeyondPendingTTL(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	l := newClockedLimiter(&now)
	ctx := context.Background()

	ok, _ := l.Acquire(ctx, "u1", "call-1")
	require.True(t, ok)

	now = now.Add(time.Minute)
	require.NoError(t, l.Touch(ctx, "u1", "call-1"))

	now = now.Add(90 * time.Minute)
	ok, _ = l.Acquire(ctx, "u1", "call-2")
	require.False(t, ok, "an answered call keeps its slot for the live TTL")

	now = now.Add(4 * time.Hour)
	ok, _ = l.Acquire(ctx, "u1", "call-2")
	require.True(t, ok)
}

func TestMemoryLimiter_TouchAfterExpiryDoesNotResurrect(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	l := newClockedLimiter(&now)
	ctx := context.Background()

	ok, _ := l.Acquire(ctx, "u1", "call-1")
	require.True(t, ok)

	now = now.Add(20 * time.Minute)
	require.NoError(t, l.Touch(ctx, "u1", "call-1"))
	require.Zero(t, l.InFlight("u1"))
}
