package session

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("session: not found")
	ErrDuplicateRoom = errors.New("session: room name already in use")
)

// Repository is the persistence contract for sessions and their messages.
//
// Mutate is the only update path: it loads the record under the store's
// per-record lock, applies fn and writes the result back atomically. If fn
// returns ErrNoChange (or any error) nothing is written and the error is
// returned together with the current record.
type Repository interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	FindByRoomName(ctx context.Context, roomName string) (Session, error)
	LatestByPhone(ctx context.Context, phoneNumber string) (Session, error)
	Mutate(ctx context.Context, id string, fn func(*Session) error) (Session, error)

	// ListOpen returns non-terminal sessions created before the cutoff.
	ListOpen(ctx context.Context, createdBefore time.Time) ([]Session, error)
	// ListCreated returns sessions created in [from, to).
	ListCreated(ctx context.Context, from, to time.Time) ([]Session, error)

	AppendMessage(ctx context.Context, m Message) (Message, error)
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)
}
