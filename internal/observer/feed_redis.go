package observer

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisFeed fans notices out across API instances over Redis pub/sub.
type RedisFeed struct {
	rdb *redis.Client
}

func NewRedisFeed(rdb *redis.Client) *RedisFeed { return &RedisFeed{rdb: rdb} }

func (f *RedisFeed) Publish(ctx context.Context, topic string) error {
	return f.rdb.Publish(ctx, topic, "changed").Err()
}

// Subscribe waits for the subscription to be confirmed so that no notice
// published after it returns can be missed.
func (f *RedisFeed) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	ps := f.rdb.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	s := &redisSub{
		ps:   ps,
		in:   ps.Channel(),
		ch:   make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.pump()
	return s, nil
}

type redisSub struct {
	ps   *redis.PubSub
	in   <-chan *redis.Message
	ch   chan struct{}
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func (s *redisSub) pump() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case _, ok := <-s.in:
			if !ok {
				return
			}
			notify(s.ch)
		}
	}
}

func (s *redisSub) C() <-chan struct{} { return s.ch }

func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		err = s.ps.Close()
		<-s.done
	})
	return err
}
