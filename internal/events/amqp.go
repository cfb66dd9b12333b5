package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const maxDialDelay = 60 * time.Second

type AMQPOptions struct {
	URL      string
	Exchange string

	RetryAttempts int
	Delay         time.Duration
	Logger        *slog.Logger
}

func (o AMQPOptions) withDefaults() AMQPOptions {
	out := o
	if out.RetryAttempts <= 0 {
		out.RetryAttempts = 5
	}
	if out.Delay <= 0 {
		out.Delay = 500 * time.Millisecond
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return out
}

// ErrNotConnected is returned by Publish while the broker connection is down.
var ErrNotConnected = errors.New("events: amqp connection is down")

// AMQPPublisher publishes lifecycle events to a durable topic exchange.
// The routing key is the event type.
//
// A supervisor watches the connection and redials when the broker drops it;
// publishes in the meantime fail fast with ErrNotConnected.
type AMQPPublisher struct {
	mu       sync.RWMutex
	conn     *amqp091.Connection
	exchange string
	log      *slog.Logger

	connect     func(ctx context.Context) (*amqp091.Connection, error)
	notifyClose func(conn *amqp091.Connection) <-chan *amqp091.Error
	delay       time.Duration

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewAMQPPublisher dials the broker and declares the exchange. The
// reconnect supervisor outlives ctx and stops on Close.
func NewAMQPPublisher(ctx context.Context, opts AMQPOptions) (*AMQPPublisher, error) {
	opts = opts.withDefaults()
	if opts.URL == "" || opts.Exchange == "" {
		return nil, errors.New("events: amqp url and exchange are required")
	}

	p := &AMQPPublisher{
		exchange: opts.Exchange,
		log:      opts.Logger,
		delay:    opts.Delay,
		connect: func(ctx context.Context) (*amqp091.Connection, error) {
			conn, err := dialWithRetry(ctx, opts)
			if err != nil {
				return nil, err
			}
			if err := declareExchange(conn, opts.Exchange); err != nil {
				conn.Close()
				return nil, err
			}
			return conn, nil
		},
		notifyClose: func(conn *amqp091.Connection) <-chan *amqp091.Error {
			return conn.NotifyClose(make(chan *amqp091.Error, 1))
		},
	}

	conn, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	p.conn = conn

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.supervise(sctx, conn)
	return p, nil
}

func declareExchange(conn *amqp091.Connection, exchange string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	return nil
}

// supervise swaps in a fresh connection each time the current one closes,
// until ctx ends.
func (p *AMQPPublisher) supervise(ctx context.Context, conn *amqp091.Connection) {
	defer close(p.done)
	for {
		closed := p.notifyClose(conn)
		select {
		case <-ctx.Done():
			return
		case err, ok := <-closed:
			if !ok {
				err = &amqp091.Error{Reason: "connection closed"}
			}
			p.log.Error("amqp connection closed, reconnecting", slog.Any("error", err))
		}

		p.setConn(nil)
		next, err := p.redial(ctx)
		if err != nil {
			return
		}
		p.setConn(next)
		conn = next
		p.log.Info("amqp reconnected")
	}
}

// redial retries connect with capped exponential backoff until it succeeds
// or ctx ends.
func (p *AMQPPublisher) redial(ctx context.Context) (*amqp091.Connection, error) {
	for attempt := 1; ; attempt++ {
		conn, err := p.connect(ctx)
		if err == nil {
			if ctx.Err() != nil {
				conn.Close()
				return nil, ctx.Err()
			}
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		wait := backoff(p.delay, attempt)
		p.log.Warn("amqp reconnect failed", slog.Int("attempt", attempt), slog.Duration("retry_in", wait), slog.Any("error", err))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (p *AMQPPublisher) setConn(conn *amqp091.Connection) {
	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()
}

func (p *AMQPPublisher) current() *amqp091.Connection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.conn
}

func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	conn := p.current()
	if conn == nil || conn.IsClosed() {
		return ErrNotConnected
	}
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(
		ctx, p.exchange, string(e.Type), false, false,
		amqp091.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp091.Persistent,
			MessageId:     e.ID,
			CorrelationId: e.SessionID,
			Timestamp:     e.OccurredAt,
			Body:          body,
		},
	)
	if err == nil {
		p.log.Debug("published", slog.String("key", string(e.Type)), slog.String("session_id", e.SessionID))
	}
	return err
}

// Close stops the supervisor and closes the current connection.
func (p *AMQPPublisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		if p.done != nil {
			<-p.done
		}
		p.mu.Lock()
		conn := p.conn
		p.conn = nil
		p.mu.Unlock()
		if conn != nil && !conn.IsClosed() {
			err = conn.Close()
		}
	})
	return err
}

// dialWithRetry connects with exponential backoff and respects ctx for shutdown.
func dialWithRetry(ctx context.Context, opts AMQPOptions) (*amqp091.Connection, error) {
	var lastErr error
	for i := 1; i <= opts.RetryAttempts; i++ {
		conn, err := amqp091.Dial(opts.URL)
		if err == nil {
			if i > 1 {
				opts.Logger.Info("amqp connected", slog.Int("attempt", i))
			}
			return conn, nil
		}
		lastErr = err

		sleep := backoff(opts.Delay, i)
		opts.Logger.Warn("amqp dial failed",
			slog.Int("attempt", i),
			slog.Duration("sleep", sleep),
			slog.Any("error", err),
		)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("amqp dial cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("amqp: failed to connect after %d attempts: %w", opts.RetryAttempts, lastErr)
}

func backoff(base time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d <= 0 || d > maxDialDelay {
		return maxDialDelay
	}
	return d
}
