package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory Repository used by tests and local runs.
// A single mutex serializes Mutate, which gives the same per-record
// atomicity the Postgres row lock gives.
type MemoryRepo struct {
	mu       sync.Mutex
	sessions map[string]Session
	byRoom   map[string]string
	messages map[string][]Message
	writes   int
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		sessions: map[string]Session{},
		byRoom:   map[string]string{},
		messages: map[string][]Message{},
	}
}

func (r *MemoryRepo) Create(ctx context.Context, s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byRoom[s.RoomName]; ok {
		return ErrDuplicateRoom
	}
	r.sessions[s.ID] = copySession(s)
	r.byRoom[s.RoomName] = s.ID
	r.writes++
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return copySession(s), nil
}

func (r *MemoryRepo) FindByRoomName(ctx context.Context, roomName string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byRoom[roomName]
	if !ok {
		return Session{}, ErrNotFound
	}
	return copySession(r.sessions[id]), nil
}

func (r *MemoryRepo) LatestByPhone(ctx context.Context, phoneNumber string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var (
		best  Session
		found bool
	)
	for _, s := range r.sessions {
		if s.PhoneNumber != phoneNumber {
			continue
		}
		if !found || s.CreatedAt.After(best.CreatedAt) {
			best, found = s, true
		}
	}
	if !found {
		return Session{}, ErrNotFound
	}
	return copySession(best), nil
}

func (r *MemoryRepo) Mutate(ctx context.Context, id string, fn func(*Session) error) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	next := copySession(cur)
	if err := fn(&next); err != nil {
		return copySession(cur), err
	}
	r.sessions[id] = next
	r.writes++
	return copySession(next), nil
}

func (r *MemoryRepo) ListOpen(ctx context.Context, createdBefore time.Time) ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Session
	for _, s := range r.sessions {
		if s.Status.Terminal() || !s.CreatedAt.Before(createdBefore) {
			continue
		}
		out = append(out, copySession(s))
	}
	sortByCreated(out)
	return out, nil
}

func (r *MemoryRepo) ListCreated(ctx context.Context, from, to time.Time) ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Session
	for _, s := range r.sessions {
		if s.CreatedAt.Before(from) || !s.CreatedAt.Before(to) {
			continue
		}
		out = append(out, copySession(s))
	}
	sortByCreated(out)
	return out, nil
}

func (r *MemoryRepo) AppendMessage(ctx context.Context, m Message) (Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[m.SessionID]; !ok {
		return Message{}, ErrNotFound
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	r.messages[m.SessionID] = append(r.messages[m.SessionID], m)
	r.writes++
	return m, nil
}

func (r *MemoryRepo) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return nil, ErrNotFound
	}
	out := make([]Message, len(r.messages[sessionID]))
	copy(out, r.messages[sessionID])
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Writes counts successful writes; tests use it to assert that nothing was persisted.
func (r *MemoryRepo) Writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

func sortByCreated(s []Session) {
	sort.Slice(s, func(i, j int) bool { return s[i].CreatedAt.Before(s[j].CreatedAt) })
}

// copySession detaches the pointer fields so callers cannot mutate stored state.
func copySession(s Session) Session {
	if s.ConnectedAt != nil {
		t := *s.ConnectedAt
		s.ConnectedAt = &t
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		s.EndedAt = &t
	}
	if s.DurationSeconds != nil {
		d := *s.DurationSeconds
		s.DurationSeconds = &d
	}
	return s
}
