// Package observer mirrors a user's most recent call session to live clients.
//
// A watch resolves the user to a phone number, follows the latest session for
// that phone and the message stream of that session. When the latest session
// changes, the old message subscription is closed before the new one is
// opened, and only the current subscription is ever read, so a view never
// carries messages of a session other than the selected one.
package observer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"virtual-mentor/internal/session"
	"virtual-mentor/internal/users"
	"virtual-mentor/pkg/logger"
)

// View is one snapshot of the watched conversation.
type View struct {
	Conversation *Conversation    `json:"conversation"`
	Messages     []session.Message `json:"messages"`
	Loading      bool              `json:"loading"`
	Error        string            `json:"error,omitempty"`
}

// Conversation is the session as presented to live clients.
type Conversation struct {
	ID          string             `json:"id"`
	UserID      string             `json:"userId"`
	PhoneNumber string             `json:"phoneNumber"`
	Status      session.Status     `json:"status"`
	CallStatus  session.CallStatus `json:"callStatus"`
	IsActive    bool               `json:"isActive"`
	Notes       string             `json:"notes,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

type UserLookup interface {
	Get(ctx context.Context, uid string) (users.Profile, error)
}

type SessionReader interface {
	LatestByPhone(ctx context.Context, phoneNumber string) (session.Session, error)
	ListMessages(ctx context.Context, sessionID string) ([]session.Message, error)
}

type Watcher struct {
	users    UserLookup
	sessions SessionReader
	feed     Feed
}

func NewWatcher(u UserLookup, s SessionReader, f Feed) *Watcher {
	return &Watcher{users: u, sessions: s, feed: f}
}

var ErrUserNotFound = errors.New("observer: user not found")

// Watch calls emit with a fresh View on every relevant change until ctx ends.
// emit is called from the Watch goroutine only. All subscriptions are closed
// before Watch returns.
func (w *Watcher) Watch(ctx context.Context, userID string, emit func(View)) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		emit(View{Loading: false})
		return nil
	}
	emit(View{Loading: true})

	profile, err := w.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			emit(View{Error: "user not found"})
			return ErrUserNotFound
		}
		emit(View{Error: "failed to load user"})
		return fmt.Errorf("observer: load user %s: %w", userID, err)
	}
	phone := session.NormalizePhone(profile.Phone)
	if phone == "" {
		emit(View{})
		return nil
	}

	t := &tracker{w: w, phone: phone, emit: emit, log: logger.From(ctx).With("user_id", userID, "phone", phone)}
	defer t.closeMessages()

	// Subscribe before the first read so no write between the two is missed.
	phoneSub, err := w.feed.Subscribe(ctx, PhoneTopic(phone))
	if err != nil {
		emit(View{Error: "live updates unavailable"})
		return fmt.Errorf("observer: subscribe phone: %w", err)
	}
	defer phoneSub.Close()

	if err := t.refresh(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-phoneSub.C():
		case <-t.messages():
		}
		if err := t.refresh(ctx); err != nil {
			return err
		}
	}
}

// tracker holds the state of one Watch call.
type tracker struct {
	w     *Watcher
	phone string
	emit  func(View)
	log   *slog.Logger

	current string
	msgSub  Subscription
}

// messages returns the current subscription's channel, or nil (never ready).
func (t *tracker) messages() <-chan struct{} {
	if t.msgSub == nil {
		return nil
	}
	return t.msgSub.C()
}

// refresh re-reads the latest session and its messages and emits a view.
// Read errors are reported in the view; only a failed subscribe ends the watch.
func (t *tracker) refresh(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	sess, err := t.w.sessions.LatestByPhone(ctx, t.phone)
	if errors.Is(err, session.ErrNotFound) {
		t.closeMessages()
		t.emit(View{})
		return nil
	}
	if err != nil {
		t.log.Warn("latest session lookup failed", "err", err)
		t.emit(View{Error: "failed to load session"})
		return nil
	}

	if sess.ID != t.current {
		t.closeMessages()
		sub, err := t.w.feed.Subscribe(ctx, MessagesTopic(sess.ID))
		if err != nil {
			t.emit(View{Error: "live updates unavailable"})
			return fmt.Errorf("observer: subscribe messages: %w", err)
		}
		t.msgSub, t.current = sub, sess.ID
	}

	msgs, err := t.w.sessions.ListMessages(ctx, sess.ID)
	if err != nil {
		t.log.Warn("message lookup failed", "session_id", sess.ID, "err", err)
		t.emit(View{Conversation: toConversation(sess), Messages: []session.Message{}, Error: "failed to load messages"})
		return nil
	}
	t.emit(View{Conversation: toConversation(sess), Messages: msgs})
	return nil
}

// closeMessages drops the current message subscription; the caller opens the next one.
func (t *tracker) closeMessages() {
	if t.msgSub != nil {
		_ = t.msgSub.Close()
		t.msgSub = nil
	}
	t.current = ""
}

func toConversation(s session.Session) *Conversation {
	return &Conversation{
		ID:          s.ID,
		UserID:      s.UserID,
		PhoneNumber: s.PhoneNumber,
		Status:      s.Status,
		CallStatus:  s.CallStatus,
		IsActive:    !s.Status.Terminal(),
		Notes:       s.Notes,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}
