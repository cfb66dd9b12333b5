package calls

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"virtual-mentor/internal/apperr"
	"virtual-mentor/internal/events"
	"virtual-mentor/internal/session"
	"virtual-mentor/internal/telephony"
	"virtual-mentor/pkg/logger"
)

// Config is the static part of call initiation.
type Config struct {
	// RoomBaseURL is the LiveKit URL; the room URL is RoomBaseURL + "/" + room.
	RoomBaseURL     string
	EmptyTimeout    time.Duration
	MaxParticipants int
	AgentTokenTTL   time.Duration

	// Missing names LiveKit variables that are unset. Non-empty disables calls.
	Missing []string
}

// Initiator places an outbound AI-mentor call.
//
// Contract:
// - Steps run in order: validate, config check, cap, room, persist, dial.
// - A failed dial is compensated (session marked missed/failed) before the error is returned.
// - Nothing is retried internally; callers retry by calling again.
type Initiator struct {
	sessions session.Repository
	provider telephony.Provider
	limiter  Limiter
	events   events.Publisher
	cfg      Config
	clock    func() time.Time
}

func NewInitiator(sessions session.Repository, provider telephony.Provider, limiter Limiter, pub events.Publisher, cfg Config) *Initiator {
	if pub == nil {
		pub = events.Noop{}
	}
	if cfg.EmptyTimeout <= 0 {
		cfg.EmptyTimeout = 10 * time.Minute
	}
	if cfg.MaxParticipants <= 0 {
		cfg.MaxParticipants = 10
	}
	if cfg.AgentTokenTTL <= 0 {
		cfg.AgentTokenTTL = time.Hour
	}
	return &Initiator{
		sessions: sessions,
		provider: provider,
		limiter:  limiter,
		events:   pub,
		cfg:      cfg,
		clock:    time.Now,
	}
}

var e164 = regexp.MustCompile(`^\+[0-9]{8,15}$`)

func (s *Initiator) Initiate(ctx context.Context, req Request) (Result, error) {
	phone := session.NormalizePhone(req.PhoneNumber)
	if phone == "" {
		return Result{}, apperr.InvalidRequest("Phone number is required")
	}
	if !e164.MatchString(phone) {
		return Result{}, apperr.InvalidRequest("Phone number must be in E.164 format, e.g. +15551234567")
	}
	if len(s.cfg.Missing) > 0 || s.provider == nil {
		return Result{}, apperr.Configuration("LiveKit is not configured", s.cfg.Missing...)
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = telephony.GuestUserID
	}
	now := s.clock().UTC()
	roomName := telephony.RoomName(userID, now)
	log := logger.From(ctx).With("room", roomName, "user_id", userID, "phone", phone)

	sessionID := uuid.NewString()
	if s.limiter != nil {
		ok, err := s.limiter.Acquire(ctx, userID, sessionID)
		if err != nil {
			return Result{}, apperr.Internal("call limiter unavailable", err)
		}
		if !ok {
			return Result{}, apperr.Conflict("A call is already in progress for this user", nil)
		}
	}
	holdCap := false
	defer func() {
		if !holdCap {
			s.release(ctx, userID, sessionID)
		}
	}()

	if _, err := s.provider.CreateRoom(ctx, telephony.CreateRoomRequest{
		Name:            roomName,
		EmptyTimeout:    s.cfg.EmptyTimeout,
		MaxParticipants: s.cfg.MaxParticipants,
	}); err != nil {
		log.Error("room creation failed", "err", err)
		return Result{}, apperr.Provider("Failed to initiate call", err)
	}

	sess := session.Session{
		ID:          sessionID,
		UserID:      userID,
		Status:      session.StatusInProgress,
		CallStatus:  session.CallStatusInitiating,
		RoomName:    roomName,
		PhoneNumber: phone,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		if errors.Is(err, session.ErrDuplicateRoom) {
			return Result{}, apperr.Conflict("Room name already in use", err)
		}
		return Result{}, apperr.Internal("Failed to save session", err)
	}
	log = log.With("session_id", sess.ID)
	s.publish(ctx, events.TypeCreated, sess)

	calleeName := strings.TrimSpace(req.UserName)
	if calleeName == "" {
		calleeName = telephony.DefaultCalleeName
	}
	participant, err := s.provider.CreateSIPParticipant(ctx, telephony.SIPParticipantRequest{
		RoomName:     roomName,
		To:           phone,
		Identity:     telephony.PhoneIdentity(userID),
		Name:         calleeName,
		PlayDialtone: true,
	})
	if err != nil {
		log.Error("dial failed", "err", err)
		s.compensate(ctx, sess.ID, err)
		return Result{}, apperr.Provider("Failed to initiate call", err)
	}
	// From here on the terminal webhook (or the reconciler) owns the cap.
	holdCap = true

	ringing, err := s.sessions.Mutate(ctx, sess.ID, func(x *session.Session) error {
		return x.MarkRinging(s.clock().UTC())
	})
	switch {
	case err == nil:
		s.publish(ctx, events.TypeRinging, ringing)
	case errors.Is(err, session.ErrNoChange):
		log.Debug("ringing skipped; session already advanced", "call_status", string(ringing.CallStatus))
	default:
		log.Warn("ringing update failed", "err", err)
	}

	token, err := s.provider.AgentToken(telephony.AgentTokenRequest{
		RoomName: roomName,
		Identity: telephony.AgentIdentity(roomName),
		Name:     telephony.AgentName,
		TTL:      s.cfg.AgentTokenTTL,
	})
	if err != nil {
		return Result{}, apperr.Internal("Failed to mint agent token", err)
	}

	log.Info("call initiated", "participant_id", participant.ParticipantID)
	return Result{
		Success:        true,
		SessionID:      sess.ID,
		RoomName:       roomName,
		PhoneNumber:    phone,
		RoomURL:        s.cfg.RoomBaseURL + "/" + roomName,
		SIPParticipant: participant,
		AgentToken:     token,
		Message:        "Calling " + phone + "...",
	}, nil
}

// compensate marks the session missed/failed. It must survive a cancelled request.
func (s *Initiator) compensate(ctx context.Context, sessionID string, cause error) {
	ctx = context.WithoutCancel(ctx)
	failed, err := s.sessions.Mutate(ctx, sessionID, func(x *session.Session) error {
		return x.MarkDialFailed(s.clock().UTC(), cause.Error())
	})
	if err != nil {
		if !errors.Is(err, session.ErrNoChange) {
			logger.From(ctx).Error("dial failure compensation failed", "session_id", sessionID, "err", err)
		}
		return
	}
	s.publish(ctx, events.TypeMissed, failed)
}

func (s *Initiator) release(ctx context.Context, userID, sessionID string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.Release(context.WithoutCancel(ctx), userID, sessionID); err != nil {
		logger.From(ctx).Warn("call cap release failed", "user_id", userID, "err", err)
	}
}

func (s *Initiator) publish(ctx context.Context, t events.Type, sess session.Session) {
	if err := s.events.Publish(ctx, events.FromSession(t, sess, s.clock())); err != nil {
		logger.From(ctx).Warn("lifecycle event publish failed", "type", string(t), "session_id", sess.ID, "err", err)
	}
}
