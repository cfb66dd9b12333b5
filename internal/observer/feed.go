package observer

import (
	"context"
	"sync"
)

// Feed is a change-notification bus. Notices carry no payload: subscribers
// re-read the store, so a burst of writes collapses into one refresh.
type Feed interface {
	Subscribe(ctx context.Context, topic string) (Subscription, error)
	Publish(ctx context.Context, topic string) error
}

// Subscription delivers notices for one topic until Close.
// Close is idempotent; callers stop reading C once they call it.
type Subscription interface {
	C() <-chan struct{}
	Close() error
}

const topicPrefix = "vm:"

// PhoneTopic is notified whenever any session for phone is created or updated.
func PhoneTopic(phone string) string { return topicPrefix + "phone:" + phone }

// MessagesTopic is notified whenever a message is appended to the session.
func MessagesTopic(sessionID string) string { return topicPrefix + "session:" + sessionID + ":messages" }

// MemoryFeed is an in-process Feed for tests and single-instance runs.
type MemoryFeed struct {
	mu   sync.Mutex
	subs map[string]map[*memorySub]struct{}
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: map[string]map[*memorySub]struct{}{}}
}

func (f *MemoryFeed) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &memorySub{feed: f, topic: topic, ch: make(chan struct{}, 1)}
	if f.subs[topic] == nil {
		f.subs[topic] = map[*memorySub]struct{}{}
	}
	f.subs[topic][s] = struct{}{}
	return s, nil
}

func (f *MemoryFeed) Publish(ctx context.Context, topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for s := range f.subs[topic] {
		notify(s.ch)
	}
	return nil
}

// Subscribers counts open subscriptions across all topics.
func (f *MemoryFeed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, set := range f.subs {
		n += len(set)
	}
	return n
}

type memorySub struct {
	feed  *MemoryFeed
	topic string
	ch    chan struct{}
}

func (s *memorySub) C() <-chan struct{} { return s.ch }

func (s *memorySub) Close() error {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	if set := s.feed.subs[s.topic]; set != nil {
		delete(set, s)
		if len(set) == 0 {
			delete(s.feed.subs, s.topic)
		}
	}
	return nil
}

// notify coalesces: a pending notice already covers this one.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
