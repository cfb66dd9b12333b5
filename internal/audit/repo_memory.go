package audit

import (
	"context"
	"sync"
)

// MemoryRepo keeps call events in arrival order, indexed by session.
type MemoryRepo struct {
	mu        sync.Mutex
	all       []Event
	bySession map[string][]int
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{bySession: map[string][]int{}} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, e)
	if e.SessionID != "" {
		r.bySession[e.SessionID] = append(r.bySession[e.SessionID], len(r.all)-1)
	}
	return nil
}

func (r *MemoryRepo) ListBySession(ctx context.Context, sessionID string) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.bySession[sessionID]
	out := make([]Event, 0, len(idx))
	for _, i := range idx {
		out = append(out, r.all[i])
	}
	return out, nil
}

// Events returns every recorded event, unmatched rooms included.
func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.all...)
}
