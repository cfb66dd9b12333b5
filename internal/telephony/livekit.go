package telephony

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
)

// LiveKitConfig holds the credentials for one LiveKit project.
type LiveKitConfig struct {
	URL        string
	APIKey     string
	APISecret  string
	SIPTrunkID string
}

// LiveKitProvider implements Provider on the LiveKit room service and SIP APIs.
type LiveKitProvider struct {
	cfg   LiveKitConfig
	rooms *lksdk.RoomServiceClient
	sip   *lksdk.SIPClient
}

func NewLiveKitProvider(cfg LiveKitConfig) (*LiveKitProvider, error) {
	if cfg.URL == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("telephony: livekit url, api key and api secret are required")
	}
	return &LiveKitProvider{
		cfg:   cfg,
		rooms: lksdk.NewRoomServiceClient(cfg.URL, cfg.APIKey, cfg.APISecret),
		sip:   lksdk.NewSIPClient(cfg.URL, cfg.APIKey, cfg.APISecret),
	}, nil
}

func (p *LiveKitProvider) Name() string { return "livekit" }

func (p *LiveKitProvider) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	// An impossible name keeps the response empty.
	if _, err := p.rooms.ListRooms(ctx, &livekit.ListRoomsRequest{Names: []string{"healthcheck"}}); err != nil {
		return fmt.Errorf("livekit health check: %w", err)
	}
	return nil
}

func (p *LiveKitProvider) CreateRoom(ctx context.Context, req CreateRoomRequest) (Room, error) {
	r, err := p.rooms.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:            req.Name,
		EmptyTimeout:    uint32(req.EmptyTimeout / time.Second),
		MaxParticipants: uint32(req.MaxParticipants),
	})
	if err != nil {
		return Room{}, fmt.Errorf("livekit create room: %w", err)
	}
	out := Room{Name: r.GetName(), SID: r.GetSid()}
	if ct := r.GetCreationTime(); ct > 0 {
		out.CreatedAt = time.Unix(ct, 0).UTC()
	}
	return out, nil
}

func (p *LiveKitProvider) CreateSIPParticipant(ctx context.Context, req SIPParticipantRequest) (SIPParticipant, error) {
	if p.cfg.SIPTrunkID == "" {
		return SIPParticipant{}, errors.New("telephony: livekit sip trunk id is required")
	}
	info, err := p.sip.CreateSIPParticipant(ctx, &livekit.CreateSIPParticipantRequest{
		SipTrunkId:          p.cfg.SIPTrunkID,
		SipCallTo:           req.To,
		RoomName:            req.RoomName,
		ParticipantIdentity: req.Identity,
		ParticipantName:     req.Name,
		PlayDialtone:        req.PlayDialtone,
	})
	if err != nil {
		return SIPParticipant{}, err
	}
	return SIPParticipant{
		ParticipantID:       info.GetParticipantId(),
		ParticipantIdentity: info.GetParticipantIdentity(),
		RoomName:            info.GetRoomName(),
		SIPCallID:           info.GetSipCallId(),
	}, nil
}

func (p *LiveKitProvider) AgentToken(req AgentTokenRequest) (string, error) {
	return MintAgentToken(p.cfg.APIKey, p.cfg.APISecret, req)
}

func (p *LiveKitProvider) ActiveRooms(ctx context.Context, names []string) (map[string]bool, error) {
	out := make(map[string]bool, len(names))
	if len(names) == 0 {
		return out, nil
	}
	res, err := p.rooms.ListRooms(ctx, &livekit.ListRoomsRequest{Names: names})
	if err != nil {
		return nil, fmt.Errorf("livekit list rooms: %w", err)
	}
	for _, r := range res.GetRooms() {
		out[r.GetName()] = true
	}
	return out, nil
}

// MintAgentToken issues a room-scoped join token with publish, subscribe and data grants.
func MintAgentToken(apiKey, apiSecret string, req AgentTokenRequest) (string, error) {
	if req.RoomName == "" || req.Identity == "" {
		return "", errors.New("telephony: room name and identity are required")
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	allow := true
	at := auth.NewAccessToken(apiKey, apiSecret)
	at.SetIdentity(req.Identity).
		SetName(req.Name).
		SetValidFor(ttl).
		SetVideoGrant(&auth.VideoGrant{
			RoomJoin:       true,
			Room:           req.RoomName,
			CanPublish:     &allow,
			CanSubscribe:   &allow,
			CanPublishData: &allow,
		})
	return at.ToJWT()
}
