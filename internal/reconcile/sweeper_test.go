package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"virtual-mentor/internal/audit"
	"virtual-mentor/internal/calls"
	"virtual-mentor/internal/events"
	"virtual-mentor/internal/session"
	"virtual-mentor/internal/telephony"
)

type fixture struct {
	repo     *session.MemoryRepo
	provider *telephony.StubProvider
	caps     *calls.MemoryLimiter
	log      *audit.MemoryRepo
	pub      *events.Recorder
	sweeper  *Sweeper
	now      time.Time
}

func newFixture() *fixture {
	f := &fixture{
		repo:     session.NewMemoryRepo(),
		provider: telephony.NewStubProvider(),
		caps:     calls.NewMemoryLimiter(),
		log:      audit.NewMemoryRepo(),
		pub:      &events.Recorder{},
		now:      time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC),
	}
	f.sweeper = NewSweeper(f.repo, f.provider, f.caps, audit.NewService(f.log), f.pub, 2*time.Hour)
	f.sweeper.clock = func() time.Time { return f.now }
	return f
}

func (f *fixture) open(t *testing.T, id, userID string, age time.Duration, connected bool) {
	t.Helper()
	ctx := context.Background()
	created := f.now.Add(-age)
	require.NoError(t, f.repo.Create(ctx, session.Session{
		ID:          id,
		UserID:      userID,
		Status:      session.StatusInProgress,
		CallStatus:  session.CallStatusRinging,
		RoomName:    "room-" + id,
		PhoneNumber: "+15551234567",
		CreatedAt:   created,
		UpdatedAt:   created,
	}))
	ok, err := f.caps.Acquire(ctx, userID, id)
	require.NoError(t, err)
	require.True(t, ok)
	if connected {
		_, err := f.repo.Mutate(ctx, id, func(s *session.Session) error { return s.MarkConnected(created.Add(time.Minute)) })
		require.NoError(t, err)
	}
}

func TestSweep_ClosesStaleSessionsWithoutRooms(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.open(t, "answered", "u1", 3*time.Hour, true)
	f.open(t, "unanswered", "u2", 3*time.Hour, false)
	f.open(t, "alive", "u3", 3*time.Hour, true)
	f.open(t, "recent", "u4", 10*time.Minute, false)
	f.provider.Live["room-alive"] = true

	res, err := f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, Result{Checked: 3, Closed: 2, Skipped: 1}, res)

	answered, err := f.repo.Get(ctx, "answered")
	require.NoError(t, err)
	require.Equal(t, session.StatusEnded, answered.Status)
	require.NotNil(t, answered.DurationSeconds)
	require.Equal(t, int((3*time.Hour - time.Minute).Seconds()), *answered.DurationSeconds)
	require.Contains(t, answered.Notes, "Closed by reconciliation: room no longer active")

	unanswered, err := f.repo.Get(ctx, "unanswered")
	require.NoError(t, err)
	require.Equal(t, session.StatusMissed, unanswered.Status)
	require.Equal(t, session.CallStatusDisconnected, unanswered.CallStatus)
	require.Nil(t, unanswered.DurationSeconds)

	alive, err := f.repo.Get(ctx, "alive")
	require.NoError(t, err)
	require.Equal(t, session.StatusConnected, alive.Status)

	require.Zero(t, f.caps.InFlight("u1"))
	require.Zero(t, f.caps.InFlight("u2"))
	require.Equal(t, 1, f.caps.InFlight("u3"))
	require.ElementsMatch(t, []events.Type{events.TypeEnded, events.TypeMissed}, f.pub.Types())
	require.Len(t, f.log.Events(), 2)

	// A second sweep finds nothing new to close.
	res, err = f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, res.Closed)
}

func TestSweep_ProviderFailureTouchesNothing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.open(t, "s1", "u1", 3*time.Hour, false)
	f.provider.ListErr = errors.New("livekit unavailable")
	writes := f.repo.Writes()

	_, err := f.sweeper.Sweep(ctx)
	require.ErrorContains(t, err, "livekit unavailable")
	require.Equal(t, writes, f.repo.Writes())
	require.Equal(t, 1, f.caps.InFlight("u1"))
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.sweeper.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
