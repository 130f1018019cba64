package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"example.com/sia/internal/logger"
)

var (
	// ErrQueueFull is returned when the async queue cannot take another event.
	ErrQueueFull = errors.New("events: publish queue full")
	// ErrQueueClosed is returned for events published after Drain.
	ErrQueueClosed = errors.New("events: publish queue closed")
)

const (
	defaultQueueSize      = 64
	defaultPublishTimeout = 5 * time.Second
)

// AsyncPublisher queues events and hands them to the wrapped Publisher from a single
// goroutine, in the order they were queued. Publish never waits on the wrapped Publisher.
type AsyncPublisher struct {
	inner   Publisher
	log     *logger.Logger
	timeout time.Duration

	once   sync.Once
	mu     sync.Mutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

// AsyncOption configures an AsyncPublisher.
type AsyncOption func(*AsyncPublisher)

// WithQueueSize bounds the number of queued events.
func WithQueueSize(n int) AsyncOption {
	return func(p *AsyncPublisher) {
		if n > 0 {
			p.queue = make(chan Event, n)
		}
	}
}

// WithPublishTimeout bounds each hand-off to the wrapped Publisher.
func WithPublishTimeout(d time.Duration) AsyncOption {
	return func(p *AsyncPublisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewAsyncPublisher wraps inner. Delivery failures are logged, not returned.
func NewAsyncPublisher(inner Publisher, log *logger.Logger, opts ...AsyncOption) *AsyncPublisher {
	if log == nil {
		log = logger.Nop()
	}
	p := &AsyncPublisher{
		inner:   inner,
		log:     log,
		timeout: defaultPublishTimeout,
		queue:   make(chan Event, defaultQueueSize),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish queues evt. The caller's context only scopes the enqueue.
func (p *AsyncPublisher) Publish(ctx context.Context, evt Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.once.Do(p.start)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrQueueClosed
	}
	select {
	case p.queue <- evt:
		return nil
	default:
		return ErrQueueFull
	}
}

// Drain stops accepting events and waits until the queued ones were handed off or ctx ends.
// The wrapped Publisher stays open.
func (p *AsyncPublisher) Drain(ctx context.Context) error {
	p.once.Do(p.start)

	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue and closes the wrapped Publisher.
func (p *AsyncPublisher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	drainErr := p.Drain(ctx)
	return errors.Join(drainErr, p.inner.Close())
}

func (p *AsyncPublisher) start() {
	go p.run()
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for evt := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if err := p.inner.Publish(ctx, evt); err != nil {
			p.log.Warn("publish progress event failed",
				"event_type", evt.EventType(),
				"aggregate_id", evt.AggregateID(),
				"error", err,
			)
		}
		cancel()
	}
}
