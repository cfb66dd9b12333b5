package telephony

import (
	"context"
	"sync"
	"time"
)

// StubProvider is an in-process Provider for tests. Failures are injected
// through the Err fields; every call is recorded.
type StubProvider struct {
	mu sync.Mutex

	CreateRoomErr error
	DialErr       error
	TokenErr      error
	ListErr       error

	// Live lists rooms that ActiveRooms reports as existing.
	Live map[string]bool

	Rooms []CreateRoomRequest
	Dials []SIPParticipantRequest

	// OnDial runs after a successful dial, before it returns; tests use it to
	// simulate webhooks racing the initiator.
	OnDial func(req SIPParticipantRequest)
}

func NewStubProvider() *StubProvider { return &StubProvider{Live: map[string]bool{}} }

func (p *StubProvider) Name() string { return "stub" }

func (p *StubProvider) HealthCheck(ctx context.Context) error { return nil }

func (p *StubProvider) CreateRoom(ctx context.Context, req CreateRoomRequest) (Room, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Rooms = append(p.Rooms, req)
	if p.CreateRoomErr != nil {
		return Room{}, p.CreateRoomErr
	}
	p.Live[req.Name] = true
	return Room{Name: req.Name, SID: "RM_" + req.Name, CreatedAt: time.Now().UTC()}, nil
}

func (p *StubProvider) CreateSIPParticipant(ctx context.Context, req SIPParticipantRequest) (SIPParticipant, error) {
	p.mu.Lock()
	p.Dials = append(p.Dials, req)
	err := p.DialErr
	hook := p.OnDial
	p.mu.Unlock()

	if err != nil {
		return SIPParticipant{}, err
	}
	if hook != nil {
		hook(req)
	}
	return SIPParticipant{
		ParticipantID:       "PA_" + req.Identity,
		ParticipantIdentity: req.Identity,
		RoomName:            req.RoomName,
		SIPCallID:           "SCL_" + req.RoomName,
	}, nil
}

func (p *StubProvider) AgentToken(req AgentTokenRequest) (string, error) {
	p.mu.Lock()
	err := p.TokenErr
	p.mu.Unlock()
	if err != nil {
		return "", err
	}
	return MintAgentToken("stub-key", "stub-secret-stub-secret-stub-secret", req)
}

func (p *StubProvider) ActiveRooms(ctx context.Context, names []string) (map[string]bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ListErr != nil {
		return nil, p.ListErr
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		if p.Live[n] {
			out[n] = true
		}
	}
	return out, nil
}

// CloseRoom marks a room as gone.
func (p *StubProvider) CloseRoom(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.Live, name)
}

func (p *StubProvider) DialCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Dials)
}
