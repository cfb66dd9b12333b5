// Package events publishes session lifecycle changes for downstream consumers
// (analytics, follow-up scheduling). Publishing is best-effort: a broker outage
// never fails a call or a webhook.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"virtual-mentor/internal/session"
)

type Type string

const (
	TypeCreated   Type = "session.created"
	TypeRinging   Type = "session.ringing"
	TypeConnected Type = "session.connected"
	TypeEnded     Type = "session.ended"
	TypeCompleted Type = "session.completed"
	TypeMissed    Type = "session.missed"
)

// Event is the message body published for every lifecycle change.
type Event struct {
	ID              string             `json:"id"`
	Type            Type               `json:"type"`
	SessionID       string             `json:"sessionId"`
	UserID          string             `json:"userId"`
	RoomName        string             `json:"roomName"`
	Status          session.Status     `json:"status"`
	CallStatus      session.CallStatus `json:"callStatus"`
	DurationSeconds *int               `json:"duration,omitempty"`
	OccurredAt      time.Time          `json:"occurredAt"`
}

// FromSession snapshots s as an event of type t.
func FromSession(t Type, s session.Session, now time.Time) Event {
	return Event{
		ID:              uuid.NewString(),
		Type:            t,
		SessionID:       s.ID,
		UserID:          s.UserID,
		RoomName:        s.RoomName,
		Status:          s.Status,
		CallStatus:      s.CallStatus,
		DurationSeconds: s.DurationSeconds,
		OccurredAt:      now.UTC(),
	}
}

// TerminalType maps a terminal session status onto its event type.
func TerminalType(s session.Status) (Type, bool) {
	switch s {
	case session.StatusEnded:
		return TypeEnded, true
	case session.StatusCompleted:
		return TypeCompleted, true
	case session.StatusMissed:
		return TypeMissed, true
	default:
		return "", false
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Noop discards events. It is used when AMQP_URL is unset.
type Noop struct{}

func (Noop) Publish(ctx context.Context, e Event) error { return nil }
func (Noop) Close() error                              { return nil }

// Recorder keeps published events in memory for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
