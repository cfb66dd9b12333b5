package conversations

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is a simple in-memory repository useful for tests.
type MemoryRepo struct {
	mu       sync.Mutex
	convs    map[string]Conversation
	messages map[string][]Message
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{convs: map[string]Conversation{}, messages: map[string][]Message{}}
}

// Put seeds a conversation, standing in for the external writer.
func (r *MemoryRepo) Put(c Conversation, msgs ...Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convs[c.ID] = c
	r.messages[c.ID] = append(r.messages[c.ID], msgs...)
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) ListMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.convs[conversationID]; !ok {
		return nil, ErrNotFound
	}
	out := make([]Message, len(r.messages[conversationID]))
	copy(out, r.messages[conversationID])
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) LatestByPhone(ctx context.Context, phoneNumber string) (Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var (
		best  Conversation
		found bool
	)
	for _, c := range r.convs {
		if c.PhoneNumber == phoneNumber && (!found || c.StartedAt.After(best.StartedAt)) {
			best, found = c, true
		}
	}
	if !found {
		return Conversation{}, ErrNotFound
	}
	return best, nil
}
