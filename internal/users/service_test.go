package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"virtual-mentor/internal/conversations"
)

type brokenConvs struct{}

func (brokenConvs) LatestByPhone(ctx context.Context, phone string) (conversations.Conversation, error) {
	return conversations.Conversation{}, errors.New("timeout")
}

func TestService_ListWithStatus(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	convs := conversations.NewMemoryRepo()
	convs.Put(conversations.Conversation{ID: "c1", PhoneNumber: "+1001", Status: conversations.StatusCompleted, StartedAt: t0})
	convs.Put(conversations.Conversation{ID: "c2", PhoneNumber: "+1001", Status: conversations.StatusActive, StartedAt: t0.Add(time.Hour)})
	convs.Put(conversations.Conversation{ID: "c3", PhoneNumber: "+1002", Status: conversations.StatusCompleted, StartedAt: t0})

	repo := NewMemoryRepo(
		Profile{UID: "a", Phone: "+1001"},
		Profile{UID: "b", Phone: "+1002"},
		Profile{UID: "c", Phone: "+1003"},
		Profile{UID: "d"},
	)
	got, err := NewService(repo, convs).ListWithStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 4)
	require.Equal(t, StatusInCall, got[0].Status)
	require.Equal(t, StatusActive, got[1].Status)
	require.Equal(t, StatusInactive, got[2].Status)
	require.Equal(t, StatusInactive, got[3].Status)
}

func TestService_LookupFailureDegradesToInactive(t *testing.T) {
	repo := NewMemoryRepo(Profile{UID: "a", Phone: "+1001"})
	got, err := NewService(repo, brokenConvs{}).ListWithStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusInactive, got[0].Status)
}

func TestService_StatusMatchesFormattedPhone(t *testing.T) {
	convs := conversations.NewMemoryRepo()
	convs.Put(conversations.Conversation{ID: "c1", PhoneNumber: "+15551234567", Status: conversations.StatusActive, StartedAt: time.Now()})

	repo := NewMemoryRepo(Profile{UID: "a", Phone: "+1 (555) 123-4567"})
	got, err := NewService(repo, convs).ListWithStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusInCall, got[0].Status)
}
