package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// maxDetail bounds the detail column; provider error strings can be long.
const maxDetail = 512

var (
	ErrInvalidEvent  = errors.New("audit: invalid event")
	errNotConfigured = errors.New("audit: repository not configured")
)

// Repository stores call events. There is deliberately no update or delete.
type Repository interface {
	Append(ctx context.Context, e Event) error
	ListBySession(ctx context.Context, sessionID string) ([]Event, error)
}

// Service is the call event log written by the projector and the
// reconciler and read by the admin API.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeApplied, OutcomeIgnored, OutcomeUnmatched:
		return true
	}
	return false
}

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errNotConfigured
	}
	switch {
	case e.RoomName == "":
		return fmt.Errorf("%w: room name is required", ErrInvalidEvent)
	case e.Kind == "":
		return fmt.Errorf("%w: kind is required", ErrInvalidEvent)
	case !e.Outcome.Valid():
		return fmt.Errorf("%w: outcome %q", ErrInvalidEvent, e.Outcome)
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	if len(e.Detail) > maxDetail {
		e.Detail = e.Detail[:maxDetail]
	}
	return s.repo.Append(ctx, e)
}

// Record satisfies the projector's and reconciler's EventLog.
func (s *Service) Record(ctx context.Context, sessionID, roomName, kind string, outcome Outcome, detail string) error {
	return s.Append(ctx, Event{
		SessionID: sessionID,
		RoomName:  roomName,
		Kind:      kind,
		Outcome:   outcome,
		Detail:    detail,
	})
}

func (s *Service) ListBySession(ctx context.Context, sessionID string) ([]Event, error) {
	if s.repo == nil {
		return nil, errNotConfigured
	}
	return s.repo.ListBySession(ctx, sessionID)
}
