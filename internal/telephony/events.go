package telephony

import (
	"errors"
	"fmt"
	"time"

	"github.com/livekit/protocol/livekit"
)

var (
	ErrInvalidSignature = errors.New("telephony: webhook signature invalid")
	ErrMalformedEvent   = errors.New("telephony: webhook event malformed")
)

type Kind string

const (
	KindRoomStarted       Kind = "room_started"
	KindRoomFinished      Kind = "room_finished"
	KindParticipantJoined Kind = "participant_joined"
	KindParticipantLeft   Kind = "participant_left"
	KindTrackPublished    Kind = "track_published"
	KindTrackUnpublished  Kind = "track_unpublished"
	KindUnknown           Kind = "unknown"
)

// Event is a verified provider webhook. The set of implementations is closed;
// consumers switch on the concrete type.
type Event interface {
	Kind() Kind
	header() Header
}

// Header carries the delivery metadata common to every event.
type Header struct {
	ID         string
	OccurredAt time.Time
}

func (h Header) header() Header { return h }

// HeaderOf exposes the delivery metadata of any event.
func HeaderOf(e Event) Header { return e.header() }

type RoomInfo struct {
	Name      string
	SID       string
	CreatedAt time.Time
}

type Participant struct {
	Identity string
	Name     string
}

type RoomStarted struct {
	Header
	Room RoomInfo
}

type RoomFinished struct {
	Header
	Room RoomInfo
}

type ParticipantJoined struct {
	Header
	Room        RoomInfo
	Participant Participant
}

type ParticipantLeft struct {
	Header
	Room        RoomInfo
	Participant Participant
}

type TrackPublished struct {
	Header
	Room        RoomInfo
	Participant Participant
	TrackSID    string
}

type TrackUnpublished struct {
	Header
	Room        RoomInfo
	Participant Participant
	TrackSID    string
}

// Unknown is any event name this service does not project.
type Unknown struct {
	Header
	Name     string
	RoomName string
}

func (RoomStarted) Kind() Kind       { return KindRoomStarted }
func (RoomFinished) Kind() Kind      { return KindRoomFinished }
func (ParticipantJoined) Kind() Kind { return KindParticipantJoined }
func (ParticipantLeft) Kind() Kind   { return KindParticipantLeft }
func (TrackPublished) Kind() Kind    { return KindTrackPublished }
func (TrackUnpublished) Kind() Kind  { return KindTrackUnpublished }
func (Unknown) Kind() Kind           { return KindUnknown }

// RoomNameOf returns the room an event refers to, or "" for events without one.
func RoomNameOf(e Event) string {
	switch ev := e.(type) {
	case RoomStarted:
		return ev.Room.Name
	case RoomFinished:
		return ev.Room.Name
	case ParticipantJoined:
		return ev.Room.Name
	case ParticipantLeft:
		return ev.Room.Name
	case TrackPublished:
		return ev.Room.Name
	case TrackUnpublished:
		return ev.Room.Name
	case Unknown:
		return ev.RoomName
	default:
		return ""
	}
}

// Lifetime is the provider-reported room lifetime at the time the room finished.
// It is zero when the provider did not report a creation time.
func (e RoomFinished) Lifetime() time.Duration {
	if e.Room.CreatedAt.IsZero() || e.OccurredAt.IsZero() || e.OccurredAt.Before(e.Room.CreatedAt) {
		return 0
	}
	return e.OccurredAt.Sub(e.Room.CreatedAt)
}

// FromLiveKit converts a decoded LiveKit webhook into an Event. A known kind
// without its required fields yields ErrMalformedEvent.
func FromLiveKit(ev *livekit.WebhookEvent) (Event, error) {
	if ev == nil {
		return nil, ErrMalformedEvent
	}
	h := Header{ID: ev.GetId()}
	if ts := ev.GetCreatedAt(); ts > 0 {
		h.OccurredAt = time.Unix(ts, 0).UTC()
	}

	var room RoomInfo
	if r := ev.GetRoom(); r != nil {
		room = RoomInfo{Name: r.GetName(), SID: r.GetSid()}
		if ct := r.GetCreationTime(); ct > 0 {
			room.CreatedAt = time.Unix(ct, 0).UTC()
		}
	}
	var p Participant
	if pi := ev.GetParticipant(); pi != nil {
		p = Participant{Identity: pi.GetIdentity(), Name: pi.GetName()}
	}
	trackSID := ev.GetTrack().GetSid()

	kind := Kind(ev.GetEvent())
	switch kind {
	case KindRoomStarted, KindRoomFinished, KindParticipantJoined, KindParticipantLeft:
		if room.Name == "" {
			return nil, fmt.Errorf("%w: %s without room name", ErrMalformedEvent, kind)
		}
	}
	switch kind {
	case KindParticipantJoined, KindParticipantLeft:
		if p.Identity == "" {
			return nil, fmt.Errorf("%w: %s without participant identity", ErrMalformedEvent, kind)
		}
	}

	switch kind {
	case KindRoomStarted:
		return RoomStarted{Header: h, Room: room}, nil
	case KindRoomFinished:
		return RoomFinished{Header: h, Room: room}, nil
	case KindParticipantJoined:
		return ParticipantJoined{Header: h, Room: room, Participant: p}, nil
	case KindParticipantLeft:
		return ParticipantLeft{Header: h, Room: room, Participant: p}, nil
	case KindTrackPublished:
		return TrackPublished{Header: h, Room: room, Participant: p, TrackSID: trackSID}, nil
	case KindTrackUnpublished:
		return TrackUnpublished{Header: h, Room: room, Participant: p, TrackSID: trackSID}, nil
	default:
		return Unknown{Header: h, Name: ev.GetEvent(), RoomName: room.Name}, nil
	}
}
