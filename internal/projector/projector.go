// Package projector folds verified telephony webhooks into session state.
//
// Events may arrive duplicated and out of order. Every update is a guarded
// transition evaluated inside the store's per-record lock, so replays and late
// arrivals either apply cleanly or leave the session untouched.
package projector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"virtual-mentor/internal/audit"
	"virtual-mentor/internal/events"
	"virtual-mentor/internal/session"
	"virtual-mentor/internal/telephony"
	"virtual-mentor/pkg/logger"
)

// CallSlots tracks each call's slot in its user's in-flight cap. Touch
// extends the slot of an answered call; Release frees it once the call is
// over. Both are keyed by session id.
type CallSlots interface {
	Touch(ctx context.Context, userID, sessionID string) error
	Release(ctx context.Context, userID, sessionID string) error
}

// EventLog records the outcome of each handled webhook.
type EventLog interface {
	Record(ctx context.Context, sessionID, roomName, kind string, outcome audit.Outcome, detail string) error
}

type Projector struct {
	sessions session.Repository
	log      EventLog
	caps     CallSlots
	events   events.Publisher
	clock    func() time.Time
}

// New builds a Projector. log, caps and pub may be nil.
func New(sessions session.Repository, log EventLog, caps CallSlots, pub events.Publisher) *Projector {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Projector{sessions: sessions, log: log, caps: caps, events: pub, clock: time.Now}
}

// Apply projects e. It returns an error only when the store failed, in which
// case the sender should redeliver.
func (p *Projector) Apply(ctx context.Context, e telephony.Event) error {
	kind := string(e.Kind())
	room := telephony.RoomNameOf(e)
	log := logger.From(ctx).With("event", kind, "room", room)

	switch e.(type) {
	case telephony.Unknown, telephony.TrackPublished, telephony.TrackUnpublished:
		log.Debug("event not projected")
		return nil
	}

	sess, err := p.sessions.FindByRoomName(ctx, room)
	if errors.Is(err, session.ErrNotFound) {
		log.Warn("no session for room")
		p.record(ctx, "", room, kind, audit.OutcomeUnmatched, "no session for room")
		return nil
	}
	if err != nil {
		return fmt.Errorf("projector: lookup room %q: %w", room, err)
	}
	log = log.With("session_id", sess.ID)

	now := p.clock().UTC()
	var transition func(*session.Session) error
	switch ev := e.(type) {
	case telephony.RoomStarted:
		log.Info("room started")
		p.record(ctx, sess.ID, room, kind, audit.OutcomeIgnored, "informational")
		return nil
	case telephony.ParticipantJoined:
		if !telephony.IsPhoneLeg(ev.Participant.Identity) {
			p.record(ctx, sess.ID, room, kind, audit.OutcomeIgnored, "participant "+ev.Participant.Identity+" is not the phone leg")
			return nil
		}
		transition = func(s *session.Session) error { return s.MarkConnected(now) }
	case telephony.ParticipantLeft:
		if !telephony.IsPhoneLeg(ev.Participant.Identity) {
			p.record(ctx, sess.ID, room, kind, audit.OutcomeIgnored, "participant "+ev.Participant.Identity+" is not the phone leg")
			return nil
		}
		transition = func(s *session.Session) error { return s.MarkParticipantLeft(now) }
	case telephony.RoomFinished:
		lifetime := ev.Lifetime()
		transition = func(s *session.Session) error { return s.MarkRoomFinished(now, lifetime) }
	default:
		return nil
	}

	updated, err := p.sessions.Mutate(ctx, sess.ID, transition)
	if errors.Is(err, session.ErrNoChange) {
		log.Info("event ignored by guard", "status", string(updated.Status), "call_status", string(updated.CallStatus))
		p.record(ctx, sess.ID, room, kind, audit.OutcomeIgnored, "session already "+string(updated.Status))
		return nil
	}
	if err != nil {
		return fmt.Errorf("projector: update session %s: %w", sess.ID, err)
	}

	log.Info("session updated", "status", string(updated.Status), "call_status", string(updated.CallStatus))
	p.record(ctx, sess.ID, room, kind, audit.OutcomeApplied, "status "+string(updated.Status))
	p.afterTransition(ctx, updated)
	return nil
}

// afterTransition runs the side effects of a committed transition. Both are
// best-effort; the session row is already the source of truth.
func (p *Projector) afterTransition(ctx context.Context, s session.Session) {
	log := logger.From(ctx).With("session_id", s.ID)

	if s.Status == session.StatusConnected {
		if p.caps != nil {
			if err := p.caps.Touch(ctx, s.UserID, s.ID); err != nil {
				log.Warn("call slot extend failed", "user_id", s.UserID, "err", err)
			}
		}
		p.publish(ctx, events.TypeConnected, s)
		return
	}
	t, ok := events.TerminalType(s.Status)
	if !ok {
		return
	}
	if p.caps != nil {
		if err := p.caps.Release(ctx, s.UserID, s.ID); err != nil {
			log.Warn("call cap release failed", "user_id", s.UserID, "err", err)
		}
	}
	p.publish(ctx, t, s)
}

func (p *Projector) publish(ctx context.Context, t events.Type, s session.Session) {
	if err := p.events.Publish(ctx, events.FromSession(t, s, p.clock())); err != nil {
		logger.From(ctx).Warn("lifecycle event publish failed", "type", string(t), "session_id", s.ID, "err", err)
	}
}

func (p *Projector) record(ctx context.Context, sessionID, room, kind string, outcome audit.Outcome, detail string) {
	if p.log == nil {
		return
	}
	if err := p.log.Record(ctx, sessionID, room, kind, outcome, detail); err != nil {
		logger.From(ctx).Warn("call event record failed", "room", room, "err", err)
	}
}
