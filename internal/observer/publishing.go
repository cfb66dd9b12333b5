package observer

import (
	"context"

	"virtual-mentor/internal/session"
	"virtual-mentor/pkg/logger"
)

// PublishingRepo decorates a session.Repository so that every successful
// write notifies the feed. Notification failures are logged, never returned:
// the write already happened.
type PublishingRepo struct {
	session.Repository
	feed Feed
}

func NewPublishingRepo(inner session.Repository, feed Feed) *PublishingRepo {
	return &PublishingRepo{Repository: inner, feed: feed}
}

func (r *PublishingRepo) Create(ctx context.Context, s session.Session) error {
	if err := r.Repository.Create(ctx, s); err != nil {
		return err
	}
	r.publish(ctx, PhoneTopic(s.PhoneNumber))
	return nil
}

func (r *PublishingRepo) Mutate(ctx context.Context, id string, fn func(*session.Session) error) (session.Session, error) {
	s, err := r.Repository.Mutate(ctx, id, fn)
	if err != nil {
		return s, err
	}
	r.publish(ctx, PhoneTopic(s.PhoneNumber))
	return s, nil
}

func (r *PublishingRepo) AppendMessage(ctx context.Context, m session.Message) (session.Message, error) {
	out, err := r.Repository.AppendMessage(ctx, m)
	if err != nil {
		return out, err
	}
	r.publish(ctx, MessagesTopic(out.SessionID))
	return out, nil
}

func (r *PublishingRepo) publish(ctx context.Context, topic string) {
	if err := r.feed.Publish(ctx, topic); err != nil {
		logger.From(ctx).Warn("feed publish failed", "topic", topic, "err", err)
	}
}
