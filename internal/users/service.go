package users

import (
	"context"
	"errors"

	"virtual-mentor/internal/conversations"
	"virtual-mentor/internal/session"
	"virtual-mentor/pkg/logger"
)

// LatestConversation is the slice of conversations.Repository the status lookup needs.
type LatestConversation interface {
	LatestByPhone(ctx context.Context, phoneNumber string) (conversations.Conversation, error)
}

// Service derives a user's call status from their most recent conversation.
type Service struct {
	users Repository
	convs LatestConversation
}

func NewService(users Repository, convs LatestConversation) *Service {
	return &Service{users: users, convs: convs}
}

func (s *Service) Get(ctx context.Context, uid string) (Profile, error) {
	return s.users.Get(ctx, uid)
}

// ListWithStatus maps the latest conversation onto a status: active → in-call,
// completed → active, none → inactive. A failed lookup degrades to inactive.
func (s *Service) ListWithStatus(ctx context.Context) ([]WithStatus, error) {
	profiles, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]WithStatus, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, WithStatus{Profile: p, Status: s.statusOf(ctx, p)})
	}
	return out, nil
}

func (s *Service) statusOf(ctx context.Context, p Profile) Status {
	phone := session.NormalizePhone(p.Phone)
	if phone == "" || s.convs == nil {
		return StatusInactive
	}
	c, err := s.convs.LatestByPhone(ctx, phone)
	if err != nil {
		if !errors.Is(err, conversations.ErrNotFound) {
			logger.From(ctx).Warn("conversation lookup failed", "uid", p.UID, "err", err)
		}
		return StatusInactive
	}
	switch c.Status {
	case conversations.StatusActive:
		return StatusInCall
	case conversations.StatusCompleted:
		return StatusActive
	default:
		return StatusInactive
	}
}
