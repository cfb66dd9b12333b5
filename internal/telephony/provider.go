package telephony

import (
	"context"
	"time"
)

// Provider is the telephony/SFU boundary used by business logic.
//
// Rules:
// - No provider SDK calls outside telephony adapters.
// - Request/response types stay provider-agnostic.
type Provider interface {
	Name() string
	HealthCheck(ctx context.Context) error

	CreateRoom(ctx context.Context, req CreateRoomRequest) (Room, error)
	CreateSIPParticipant(ctx context.Context, req SIPParticipantRequest) (SIPParticipant, error)
	AgentToken(req AgentTokenRequest) (string, error)

	// ActiveRooms reports which of the named rooms still exist at the provider.
	ActiveRooms(ctx context.Context, names []string) (map[string]bool, error)
}

type CreateRoomRequest struct {
	Name string

	// EmptyTimeout is how long the provider keeps the room once nobody is in it.
	EmptyTimeout    time.Duration
	MaxParticipants int
}

type Room struct {
	Name      string    `json:"name"`
	SID       string    `json:"sid,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// SIPParticipantRequest dials To over the configured trunk and bridges the leg into RoomName.
type SIPParticipantRequest struct {
	RoomName string
	To       string

	Identity string
	Name     string

	PlayDialtone bool
}

type SIPParticipant struct {
	ParticipantID       string `json:"participantId"`
	ParticipantIdentity string `json:"participantIdentity"`
	RoomName            string `json:"roomName"`
	SIPCallID           string `json:"-"`
}

type AgentTokenRequest struct {
	RoomName string
	Identity string
	Name     string
	TTL      time.Duration
}
