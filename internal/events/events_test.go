package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"virtual-mentor/internal/session"
)

func TestFromSession_SnapshotsLifecycleFields(t *testing.T) {
	d := 60
	s := session.Session{
		ID:              "s1",
		UserID:          "u1",
		RoomName:        "call-u1-1",
		Status:          session.StatusEnded,
		CallStatus:      session.CallStatusDisconnected,
		DurationSeconds: &d,
	}
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))

	e := FromSession(TypeEnded, s, now)
	require.NotEmpty(t, e.ID)
	require.Equal(t, "s1", e.SessionID)
	require.Equal(t, 60, *e.DurationSeconds)
	require.Equal(t, time.UTC, e.OccurredAt.Location())
}

func TestTerminalType(t *testing.T) {
	typ, ok := TerminalType(session.StatusMissed)
	require.True(t, ok)
	require.Equal(t, TypeMissed, typ)

	_, ok = TerminalType(session.StatusConnected)
	require.False(t, ok)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	require.NoError(t, r.Publish(context.Background(), Event{Type: TypeCreated}))
	require.NoError(t, r.Publish(context.Background(), Event{Type: TypeRinging}))
	require.Equal(t, []Type{TypeCreated, TypeRinging}, r.Types())
}

func TestBackoff_IsCapped(t *testing.T) {
	require.Equal(t, 500*time.Millisecond, backoff(500*time.Millisecond, 1))
	require.Equal(t, 2*time.Second, backoff(500*time.Millisecond, 3))
	require.Equal(t, maxDialDelay, backoff(time.Second, 10))
	require.Equal(t, maxDialDelay, backoff(time.Second, 70))
}

func TestNewAMQPPublisher_RequiresURL(t *testing.T) {
	_, err := NewAMQPPublisher(context.Background(), AMQPOptions{Exchange: "x"})
	require.Error(t, err)
}
